// Package api provides the HTTP REST API and WebSocket event stream for
// Board Sync Core.
//
// All routes live under /api/v1. Every route except /health and /ws requires a
// bearer token (see package auth); viewers may read, operators may also
// rescan and write to boards.
//
//	GET  /health
//	GET  /boards                      ready boards
//	GET  /boards/{key}                one board (key URL-escaped)
//	POST /boards/rescan?full=true     run a discovery pass and return its summary
//	POST /boards/{key}/diff           resolve + diff, no writes
//	POST /boards/{key}/sync           resolve + diff + install + re-diff
//	GET  /catalog/{major}/modules     catalog listing for a firmware major
//	POST /catalog/{major}/refresh     drop cached index and reload
//	GET  /sync/runs?board=&limit=     sync history, newest first
//	POST /auth/ws-ticket              single-use ticket for the WebSocket
//	GET  /ws?ticket=                  event stream
//
// The WebSocket hub is an events.Sink. Clients subscribe to channels named
// after event types ("board.created", "sync.install_result", ...) or to
// "*" for everything.
//
// Lifecycle:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
