package bundle

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Manager hands out one Catalog per firmware major. Concurrent callers asking
// for a major that is not loaded yet share a single load.
type Manager struct {
	src    Source
	mu     sync.RWMutex
	loaded map[int]*Catalog
	gens   map[int]uint64 // bumped by Invalidate; a load from an older gen is not kept
	group  singleflight.Group
	logger Logger
}

// NewManager creates a manager loading catalogs from src.
func NewManager(src Source) *Manager {
	return &Manager{
		src:    src,
		loaded: make(map[int]*Catalog),
		gens:   make(map[int]uint64),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Catalog returns the catalog for a firmware major, loading it on first use.
// A failed load is not remembered; the next call retries.
func (m *Manager) Catalog(ctx context.Context, major int) (*Catalog, error) {
	m.mu.RLock()
	c, ok := m.loaded[major]
	m.mu.RUnlock()
	if ok {
		return c, nil
	}

	v, err, _ := m.group.Do(strconv.Itoa(major), func() (any, error) {
		m.mu.RLock()
		c, ok := m.loaded[major]
		gen := m.gens[major]
		m.mu.RUnlock()
		if ok {
			return c, nil
		}

		// Shared by every waiter, so one caller's cancellation must not fail the rest.
		c, err := Load(context.WithoutCancel(ctx), m.src, major)
		if err != nil {
			m.logger.Warn("bundle: catalog load failed", "firmware_major", major, "error", err)
			return nil, err
		}
		m.mu.Lock()
		stale := m.gens[major] != gen
		if !stale {
			m.loaded[major] = c
		}
		m.mu.Unlock()
		if stale {
			m.logger.Debug("bundle: discarding catalog loaded before invalidation", "firmware_major", major)
			return c, nil
		}
		m.logger.Info("bundle: catalog loaded", "firmware_major", major, "modules", len(c.names))
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Catalog), nil
}

// Invalidate forgets the loaded catalog for major. A load already in flight
// still answers its own callers but is not kept.
func (m *Manager) Invalidate(major int) {
	m.mu.Lock()
	delete(m.loaded, major)
	m.gens[major]++
	m.mu.Unlock()
	m.group.Forget(strconv.Itoa(major))
}

// Loaded returns the firmware majors currently loaded.
func (m *Manager) Loaded() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, 0, len(m.loaded))
	for k := range m.loaded {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// purger is implemented by sources that cache upstream data.
type purger interface {
	Purge(ctx context.Context, major int) error
}

// Refresh drops the loaded catalog and any cached copy of its index so the
// next Catalog call downloads it again.
func (m *Manager) Refresh(ctx context.Context, major int) error {
	if p, ok := m.src.(purger); ok {
		if err := p.Purge(ctx, major); err != nil {
			return fmt.Errorf("refreshing firmware %d: %w", major, err)
		}
	}
	m.Invalidate(major)
	return nil
}
