package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/boardsync-core/internal/board"
	"github.com/nerrad567/boardsync-core/internal/libsync"
)

// boardResponse is a board plus derived fields.
type boardResponse struct {
	board.Board
	Editable      bool `json:"editable"`
	FirmwareMajor int  `json:"firmware_major"`
}

func newBoardResponse(b board.Board) boardResponse {
	return boardResponse{Board: b, Editable: b.Editable(), FirmwareMajor: b.FirmwareMajor()}
}

// passResponse is the JSON form of a discovery pass.
type passResponse struct {
	board.PassResult
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) handleListBoards(w http.ResponseWriter, _ *http.Request) {
	boards := s.boards.Boards()
	out := make([]boardResponse, 0, len(boards))
	for _, b := range boards {
		out = append(out, newBoardResponse(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"boards":   out,
		"count":    len(out),
		"scanning": s.boards.Scanning(),
	})
}

func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	key, ok := boardKey(w, r)
	if !ok {
		return
	}
	b, err := s.boards.Board(key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBoardResponse(b))
}

// handleRescan runs a discovery pass, or joins the one in flight, and
// returns its summary. ?full=true clears the registry first.
func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	full := false
	if v := r.URL.Query().Get("full"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "full must be a boolean")
			return
		}
		full = parsed
	}

	res, err := s.boards.Rescan(r.Context(), full)
	if err != nil && errors.Is(err, r.Context().Err()) {
		// Client went away; the pass itself keeps running.
		return
	}
	resp := passResponse{PassResult: res, DurationMS: res.Duration.Milliseconds()}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDiff resolves and classifies modules without writing to the board.
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	s.runSync(w, r, false)
}

// handleSync installs everything the diff reports as needed, then re-diffs.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	s.runSync(w, r, true)
}

func (s *Server) runSync(w http.ResponseWriter, r *http.Request, install bool) {
	key, ok := boardKey(w, r)
	if !ok {
		return
	}

	var req libsync.Request
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req.Install = install

	if s.syncer.Running() {
		writeError(w, http.StatusConflict, ErrCodeBusy, "another sync is running")
		return
	}

	var rep *libsync.Report
	err := s.boards.TryDo(r.Context(), key, func(ctx context.Context) error {
		sess, b, err := s.boards.Session(ctx, key, install)
		if err != nil {
			return err
		}
		rep, err = s.syncer.Sync(ctx, libsync.Target{
			BoardKey:      key,
			Session:       sess,
			FirmwareMajor: b.FirmwareMajor(),
		}, req)
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rep.Ignored {
		writeError(w, http.StatusConflict, ErrCodeBusy, "another sync is running")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// boardKey returns the unescaped {key} parameter. USB fallback keys
// contain slashes and arrive percent-encoded.
func boardKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil || key == "" {
		writeBadRequest(w, "invalid board key")
		return "", false
	}
	return key, true
}

// decodeOptionalJSON decodes the body into v; an empty body leaves v untouched.
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
