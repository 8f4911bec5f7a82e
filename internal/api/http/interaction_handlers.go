package httpapi

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/caseflow/caseflow/internal/application/dispatcher"
	"github.com/caseflow/caseflow/internal/infrastructure/sse"
)

type interactionResponse struct {
	Handled bool                `json:"handled"`
	Outcome *dispatcher.Outcome `json:"outcome,omitempty"`
}

// handleInteraction is the gateway's webhook: one UI event in, one
// outcome out. Unhandled events return handled=false so the gateway can
// offer them to other consumers.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var ev dispatcher.Event
	if err := decodeBody(r, &ev); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if ev.ActorID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "actorId is required")
		return
	}

	handled, outcome := s.dispatcherSvc.Handle(r.Context(), ev)
	if !handled {
		respondJSON(w, http.StatusOK, interactionResponse{Handled: false})
		return
	}

	// Channel-visible outcomes also go to connected renderers.
	if !outcome.Ephemeral {
		s.renderHub.Broadcast(&sse.RenderEvent{
			ChannelID: ev.ChannelID,
			ActorID:   ev.ActorID,
			Outcome:   outcome,
		})
	}
	respondJSON(w, http.StatusOK, interactionResponse{Handled: true, Outcome: &outcome})
}

// renderStream serves the SSE feed of rendered outcomes.
func (s *Server) renderStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "SSE_UNSUPPORTED", "streaming unsupported")
		return
	}

	client := sse.NewClient(uuid.NewString())
	s.renderHub.Register(client)
	defer s.renderHub.Unregister(client.ClientID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-client.Events:
			if !open {
				return
			}
			data, err := encodeEvent(ev)
			if err != nil {
				s.logger.Error().Err(err).Msg("failed to encode render event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: render\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
