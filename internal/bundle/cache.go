package bundle

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Logger defines the logging interface used by the bundle package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// CachedSource is a read-through SQLite cache in front of another Source.
// Entries younger than the TTL are served without contacting upstream.
// When upstream fails, an expired entry is served instead of the error.
//
// It expects the catalog_index and catalog_file tables from the migrations.
type CachedSource struct {
	upstream Source
	db       *sql.DB
	ttl      time.Duration
	now      func() time.Time
	logger   Logger
}

// NewCachedSource wraps upstream with a cache stored in db.
func NewCachedSource(upstream Source, db *sql.DB, ttl time.Duration) *CachedSource {
	return &CachedSource{
		upstream: upstream,
		db:       db,
		ttl:      ttl,
		now:      time.Now,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the cache.
func (c *CachedSource) SetLogger(logger Logger) {
	c.logger = logger
}

// FetchIndex returns the cached index for major, refreshing it when stale.
// When a refreshed index differs from the cached one, the major's cached
// files are dropped: they belong to the previous bundle.
func (c *CachedSource) FetchIndex(ctx context.Context, major int) ([]byte, error) {
	return c.readThrough(ctx,
		`SELECT body, fetched_at FROM catalog_index WHERE firmware_major = ?`,
		[]any{major},
		func() ([]byte, error) { return c.upstream.FetchIndex(ctx, major) },
		`INSERT INTO catalog_index (firmware_major, body, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(firmware_major) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at`,
		"index", fmt.Sprint(major),
		func(prev, data []byte) {
			if prev != nil && bytes.Equal(prev, data) {
				return
			}
			if _, err := c.db.ExecContext(ctx, `DELETE FROM catalog_file WHERE firmware_major = ?`, major); err != nil {
				c.logger.Warn("bundle: dropping files of previous bundle failed", "firmware_major", major, "error", err)
				return
			}
			c.logger.Debug("bundle: index changed, cached files dropped", "firmware_major", major)
		},
	)
}

// FetchFile returns a cached module file, refreshing it when stale.
func (c *CachedSource) FetchFile(ctx context.Context, major int, path string) ([]byte, error) {
	return c.readThrough(ctx,
		`SELECT body, fetched_at FROM catalog_file WHERE firmware_major = ? AND path = ?`,
		[]any{major, path},
		func() ([]byte, error) { return c.upstream.FetchFile(ctx, major, path) },
		`INSERT INTO catalog_file (firmware_major, path, body, fetched_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(firmware_major, path) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at`,
		"file", path,
		nil,
	)
}

// Purge drops every cached entry for major so the next fetch goes upstream.
func (c *CachedSource) Purge(ctx context.Context, major int) error {
	for _, q := range []string{
		`DELETE FROM catalog_index WHERE firmware_major = ?`,
		`DELETE FROM catalog_file WHERE firmware_major = ?`,
	} {
		if _, err := c.db.ExecContext(ctx, q, major); err != nil {
			return fmt.Errorf("bundle: purging cache: %w", err)
		}
	}
	return nil
}

func (c *CachedSource) readThrough(
	ctx context.Context,
	selectQ string, keyArgs []any,
	fetch func() ([]byte, error),
	upsertQ string,
	kind, key string,
	stored func(prev, data []byte),
) ([]byte, error) {
	var (
		cached    []byte
		fetchedAt string
		haveCache bool
	)
	err := c.db.QueryRowContext(ctx, selectQ, keyArgs...).Scan(&cached, &fetchedAt)
	switch {
	case err == nil:
		haveCache = true
		if ts, perr := time.Parse(time.RFC3339Nano, fetchedAt); perr == nil && c.now().Sub(ts) < c.ttl {
			return cached, nil
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		c.logger.Warn("bundle: cache lookup failed", "kind", kind, "key", key, "error", err)
	}

	data, err := fetch()
	if err != nil {
		if haveCache {
			c.logger.Warn("bundle: upstream failed, serving stale cache", "kind", kind, "key", key, "error", err)
			return cached, nil
		}
		return nil, err
	}

	args := append(append([]any{}, keyArgs...), data, c.now().UTC().Format(time.RFC3339Nano))
	if _, err := c.db.ExecContext(ctx, upsertQ, args...); err != nil {
		c.logger.Warn("bundle: cache store failed", "kind", kind, "key", key, "error", err)
		return data, nil
	}
	if stored != nil {
		var prev []byte
		if haveCache {
			prev = cached
		}
		stored(prev, data)
	}
	return data, nil
}
