package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	appDispatcher "github.com/caseflow/caseflow/internal/application/dispatcher"
	appLifecycle "github.com/caseflow/caseflow/internal/application/lifecycle"
	"github.com/caseflow/caseflow/internal/infrastructure/sse"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	dispatcherSvc *appDispatcher.Service
	lifecycleSvc  *appLifecycle.Service
	renderHub     *sse.Hub
	logger        zerolog.Logger
}

func NewServer(dispatcherSvc *appDispatcher.Service, lifecycleSvc *appLifecycle.Service, renderHub *sse.Hub, logger zerolog.Logger) *Server {
	return &Server{
		dispatcherSvc: dispatcherSvc,
		lifecycleSvc:  lifecycleSvc,
		renderHub:     renderHub,
		logger:        logger.With().Str("service", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/interactions", s.handleInteraction)
		r.Route("/cases", func(r chi.Router) {
			r.Get("/", s.listCases)
			r.Get("/{caseId}", s.getCase)
		})
		r.Get("/render/sse", s.renderStream)
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
