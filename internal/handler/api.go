package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/github-explorer/internal/auth"
	"github.com/sakif/github-explorer/internal/explorer"
)

// APIHandler serves the JSON form of the explorer.
type APIHandler struct {
	searches Searcher
	logger   *slog.Logger
}

// NewAPIHandler wires the handler.
func NewAPIHandler(searches Searcher, logger *slog.Logger) *APIHandler {
	return &APIHandler{searches: searches, logger: logger}
}

// SearchResponse is the body of GET /api/search.
type SearchResponse struct {
	Query string `json:"query"`
	State any    `json:"state"`
}

// HandleSearch runs a search and returns the resulting state. A failed
// search is still a 200: the failure is part of the state, exactly as the
// page shows it.
//
// HTTP: GET /api/search?q=octocat (RequireSession, rate limited)
func (h *APIHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "sign in required"})
		return
	}

	query, state, err := h.searches.Search(r.Context(), sess.ID, r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Info("api search rejected", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{Query: query, State: explorer.ToJSON(state)})
}

// HandleCurrent returns the session's last query and state without
// searching.
//
// HTTP: GET /api/search/current (RequireSession)
func (h *APIHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "sign in required"})
		return
	}

	query, state := h.searches.Current(sess.ID)
	writeJSON(w, http.StatusOK, SearchResponse{Query: query, State: explorer.ToJSON(state)})
}
