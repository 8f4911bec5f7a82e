package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/caseflow/caseflow/internal/domain/ticket"
	"github.com/caseflow/caseflow/internal/infrastructure/sse"
)

func (s *Server) listCases(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "owner is required")
		return
	}
	cases, err := s.lifecycleSvc.ListByOwner(r.Context(), owner)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"cases": cases})
}

func (s *Server) getCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := uuid.Parse(chi.URLParam(r, "caseId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid caseId")
		return
	}
	c, err := s.lifecycleSvc.GetByID(r.Context(), caseID)
	if err != nil {
		if errors.Is(err, ticket.ErrCaseNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "case not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func encodeEvent(ev *sse.RenderEvent) ([]byte, error) {
	return json.Marshal(ev)
}
