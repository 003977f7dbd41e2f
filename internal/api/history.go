package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/boardsync-core/internal/libsync"
)

// handleListRuns returns recorded syncs, optionally for one board.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "sync history is not configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.history.List(r.Context(), r.URL.Query().Get("board"), limit)
	if err != nil {
		s.logger.Error("listing sync runs failed", "error", err)
		writeInternalError(w, "failed to list sync runs")
		return
	}
	if runs == nil {
		runs = []libsync.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}
