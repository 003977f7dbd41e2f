package libsync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultRunLimit = 50
	maxRunLimit     = 200

	// timeLayout is fixed width so started_at sorts as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Run is the stored record of one sync that ran.
type Run struct {
	ID         string            `json:"id"`
	BoardKey   string            `json:"board_key"`
	Mode       Mode              `json:"mode"`
	Requested  []string          `json:"requested"`
	Installed  []string          `json:"installed"`
	Failed     map[string]string `json:"failed"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// History stores sync runs in the sync_runs table.
type History struct {
	db *sql.DB
}

// NewHistory creates a run history backed by db.
//
// Parameters:
//   - db: Open SQLite connection with the sync_runs migration applied
//
// Returns:
//   - *History: Store ready for use
func NewHistory(db *sql.DB) *History {
	return &History{db: db}
}

// Record inserts a run.
func (h *History) Record(ctx context.Context, run Run) error {
	if run.ID == "" || run.BoardKey == "" {
		return fmt.Errorf("%w: run id and board key are required", ErrInvalidRequest)
	}
	requested, err := marshalList(run.Requested)
	if err != nil {
		return err
	}
	installed, err := marshalList(run.Installed)
	if err != nil {
		return err
	}
	if run.Failed == nil {
		run.Failed = map[string]string{}
	}
	failed, err := json.Marshal(run.Failed)
	if err != nil {
		return fmt.Errorf("marshalling failed modules: %w", err)
	}

	_, err = h.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, board_key, mode, requested, installed, failed, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.BoardKey,
		string(run.Mode),
		requested,
		installed,
		string(failed),
		run.Error,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting sync run: %w", err)
	}
	return nil
}

// List returns recent runs, newest first. An empty boardKey lists every
// board.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - boardKey: Board to filter on, or "" for all
//   - limit: Maximum runs to return (default 50, max 200)
//
// Returns:
//   - []Run: Runs ordered by start time descending
//   - error: nil on success, otherwise the underlying database error
func (h *History) List(ctx context.Context, boardKey string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}
	if limit > maxRunLimit {
		limit = maxRunLimit
	}

	query := `SELECT id, board_key, mode, requested, installed, failed, error, started_at, finished_at
		FROM sync_runs`
	args := []any{}
	if boardKey != "" {
		query += ` WHERE board_key = ?`
		args = append(args, boardKey)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run                         Run
			mode, requested, installed  string
			failed, startedAt, finished string
		)
		if err := rows.Scan(&run.ID, &run.BoardKey, &mode, &requested, &installed, &failed, &run.Error, &startedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		run.Mode = Mode(mode)
		if err := json.Unmarshal([]byte(requested), &run.Requested); err != nil {
			return nil, fmt.Errorf("decoding requested modules: %w", err)
		}
		if err := json.Unmarshal([]byte(installed), &run.Installed); err != nil {
			return nil, fmt.Errorf("decoding installed modules: %w", err)
		}
		if err := json.Unmarshal([]byte(failed), &run.Failed); err != nil {
			return nil, fmt.Errorf("decoding failed modules: %w", err)
		}
		if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync runs: %w", err)
	}
	return out, nil
}

func marshalList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshalling module list: %w", err)
	}
	return string(data), nil
}
