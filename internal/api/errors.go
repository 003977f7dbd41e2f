package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/boardsync-core/internal/board"
	"github.com/nerrad567/boardsync-core/internal/bundle"
	"github.com/nerrad567/boardsync-core/internal/libsync"
	"github.com/nerrad567/boardsync-core/internal/transport"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeBusy         = "busy"
	ErrCodeUnavailable  = "unavailable"
	ErrCodeUpstream     = "upstream_error"
	ErrCodeInternal     = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps board, catalog, sync and transport errors to a status.
//
//	board not found, program file missing      404
//	invalid request, unknown module            400
//	board busy                                 409
//	no session, unreachable board              503
//	catalog unavailable                        502
//	anything else                              500
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, board.ErrBoardNotFound), errors.Is(err, libsync.ErrFileNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, libsync.ErrInvalidRequest), errors.Is(err, bundle.ErrUnknownModule):
		writeBadRequest(w, err.Error())
	case errors.Is(err, board.ErrBusy):
		writeError(w, http.StatusConflict, ErrCodeBusy, "another sync is running")
	case errors.Is(err, board.ErrNoSession), errors.Is(err, transport.ErrUnreachable):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	case errors.Is(err, bundle.ErrCatalogUnavailable), errors.Is(err, bundle.ErrFileUnavailable):
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
