package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/boardsync-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// The WebSocket authenticates with a ticket, not a header.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/boards", func(r chi.Router) {
				r.With(s.require(auth.PermBoardRead)).Get("/", s.handleListBoards)
				r.With(s.require(auth.PermBoardRescan)).Post("/rescan", s.handleRescan)

				r.Route("/{key}", func(r chi.Router) {
					r.With(s.require(auth.PermBoardRead)).Get("/", s.handleGetBoard)
					r.With(s.require(auth.PermBoardRead)).Post("/diff", s.handleDiff)
					r.With(s.require(auth.PermBoardSync)).Post("/sync", s.handleSync)
				})
			})

			r.Route("/catalog/{major}", func(r chi.Router) {
				r.With(s.require(auth.PermCatalogRead)).Get("/modules", s.handleCatalogModules)
				r.With(s.require(auth.PermBoardSync)).Post("/refresh", s.handleCatalogRefresh)
			})

			r.With(s.require(auth.PermHistoryRead)).Get("/sync/runs", s.handleListRuns)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"scanning": s.boards.Scanning(),
		"syncing":  s.syncer.Running(),
		"clients":  s.hub.ClientCount(),
	})
}
