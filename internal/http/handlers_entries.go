package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"budget/internal/auth"
	"budget/internal/core"
	"budget/internal/log"
)

type replaceRequest struct {
	Entries json.RawMessage `json:"entries"`
}

// handleListEntries returns the ledger, optionally filtered by ?type= and
// ordered by ?sort=. Without parameters it is date descending.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := core.ParseTypeFilter(q.Get("type"))
	if err != nil {
		writeError(w, r, log.OpList, badRequest("Invalid type filter"))
		return
	}
	order, err := core.ParseSortOrder(q.Get("sort"))
	if err != nil {
		writeError(w, r, log.OpList, badRequest("Invalid sort order"))
		return
	}

	entries, err := s.entries.List(r.Context(), core.Query{Type: filter, Sort: order})
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleReplaceEntries swaps the whole ledger for the posted list.
func (s *Server) handleReplaceEntries(w http.ResponseWriter, r *http.Request) {
	var req replaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpReplace, err)
		return
	}
	if !bytes.HasPrefix(bytes.TrimSpace(req.Entries), []byte("[")) {
		writeError(w, r, log.OpReplace, badRequest(msgEntriesNotArray))
		return
	}

	var entries []core.Entry
	if err := json.Unmarshal(req.Entries, &entries); err != nil {
		if !errors.Is(err, core.ErrInvalidEntry) {
			err = badRequest("Invalid entry: %v", err)
		}
		writeError(w, r, log.OpReplace, err)
		return
	}

	replacedBy := ""
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		replacedBy = claims.Username
	}
	if err := s.entries.Replace(r.Context(), replacedBy, entries); err != nil {
		writeError(w, r, log.OpReplace, err)
		return
	}
	s.metrics.replaces.Add(1)
	writeMessage(w, http.StatusOK, msgEntriesUpdated)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.entries.Summary(r.Context())
	if err != nil {
		writeError(w, r, log.OpSummary, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
