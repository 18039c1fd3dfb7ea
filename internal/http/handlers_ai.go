package http

import (
	"net/http"

	"budget/internal/log"
)

type askRequest struct {
	Prompt string `json:"prompt"`
}

type askResponse struct {
	Reply string `json:"reply"`
}

// handleAsk relays a prompt to the assistant. There is no retry; an
// upstream failure is reported once as a 500.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpAsk, err)
		return
	}

	s.metrics.aiRequests.Add(1)
	reply, err := s.assistant.Ask(r.Context(), req.Prompt)
	if err != nil {
		s.metrics.aiFailures.Add(1)
		writeError(w, r, log.OpAsk, err)
		return
	}
	writeJSON(w, http.StatusOK, askResponse{Reply: reply})
}
