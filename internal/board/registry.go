package board

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/boardsync-core/internal/events"
	"github.com/nerrad567/boardsync-core/internal/transport"
)

// Logger defines the logging interface used by the Registry.
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

// Options tunes discovery.
type Options struct {
	// Interval between incremental passes in Run.
	Interval time.Duration

	// SettleDelay is the wait after the initial full pass before the
	// web-only pass that picks up boards announcing late over mDNS.
	SettleDelay time.Duration

	// ConnectTimeout bounds each Connect and DeviceInfo call.
	ConnectTimeout time.Duration
}

const (
	defaultInterval       = 10 * time.Second
	defaultConnectTimeout = 5 * time.Second
	rescanKey             = "rescan"
)

// entry is the registry's mutable record for one identity.
type entry struct {
	mu    sync.Mutex
	board Board

	// ready is closed by the creating goroutine once the board is complete.
	ready chan struct{}

	// slot serialises actions targeting the board.
	slot chan struct{}
}

type sessionKey struct {
	kind    transport.Kind
	address string
}

// Registry is the canonical board registry and discovery reconciler.
// All public methods are safe for concurrent use.
type Registry struct {
	channels map[transport.Kind]transport.Channel
	order    []transport.Kind
	opts     Options

	mu         sync.Mutex // guards boards and generation
	boards     map[string]*entry
	generation uint64

	sessMu   sync.Mutex
	sessions map[sessionKey]transport.Session

	scans    singleflight.Group
	scanning atomic.Bool

	sink     events.Sink
	observer PassObserver
	logger   Logger
	now      func() time.Time
}

// NewRegistry creates a registry discovering boards over channels.
// A nil channel is skipped.
func NewRegistry(channels []transport.Channel, opts Options) *Registry {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	r := &Registry{
		channels: make(map[transport.Kind]transport.Channel),
		opts:     opts,
		boards:   make(map[string]*entry),
		sessions: make(map[sessionKey]transport.Session),
		sink:     events.Discard,
		logger:   noopLogger{},
		now:      time.Now,
	}
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		if _, dup := r.channels[ch.Kind()]; !dup {
			r.order = append(r.order, ch.Kind())
		}
		r.channels[ch.Kind()] = ch
	}
	return r
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetSink sets where board events are published.
func (r *Registry) SetSink(sink events.Sink) {
	if sink == nil {
		sink = events.Discard
	}
	r.sink = sink
}

// SetObserver registers a receiver for pass summaries.
func (r *Registry) SetObserver(o PassObserver) {
	r.observer = o
}

// Kinds returns the configured channel kinds in registration order.
func (r *Registry) Kinds() []transport.Kind {
	return append([]transport.Kind(nil), r.order...)
}

// Boards returns a snapshot of every ready board, sorted by key.
func (r *Registry) Boards() []Board {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.boards))
	for _, e := range r.boards {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	out := make([]Board, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.board.Ready {
			out = append(out, e.board.clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Board returns a snapshot of the ready board with key.
func (r *Registry) Board(key string) (Board, error) {
	e, ok := r.lookup(key)
	if !ok {
		return Board{}, fmt.Errorf("%w: %s", ErrBoardNotFound, key)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.board.Ready {
		return Board{}, fmt.Errorf("%w: %s", ErrBoardNotFound, key)
	}
	return e.board.clone(), nil
}

// Generation returns the registry generation. It increases on every clear.
func (r *Registry) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Clear empties the registry and closes every cached session. Passes that
// started before the call no longer register boards.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.boards = make(map[string]*entry)
	r.generation++
	gen := r.generation
	r.mu.Unlock()

	r.closeSessions(func(sessionKey) bool { return true })
	r.logger.Info("board registry cleared", "generation", gen)
	events.Stamp(r.sink, events.Event{Type: events.TypeRegistryCleared})
}

func (r *Registry) lookup(key string) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.boards[key]
	return e, ok
}

// lookupOrCreate returns the entry for key, creating a provisional one with
// the given metadata when absent. ok is false when gen is no longer the
// current generation.
func (r *Registry) lookupOrCreate(gen uint64, key string, ep transport.Endpoint, info transport.DeviceInfo) (e *entry, created, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.generation {
		return nil, false, false
	}
	if e, found := r.boards[key]; found {
		return e, false, true
	}

	e = &entry{
		board: Board{
			Key:             key,
			Serial:          info.SerialNumber,
			Name:            displayName(ep, info),
			FirmwareVersion: info.FirmwareVersion,
			BoardID:         info.BoardID,
			IP:              info.IP,
			Channels:        make(map[transport.Kind]ChannelState),
		},
		ready: make(chan struct{}),
		slot:  make(chan struct{}, 1),
	}
	r.boards[key] = e
	return e, true, true
}

func (r *Registry) current(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return gen == r.generation
}

// Session returns a connected session for a ready board. Channels are tried
// in USB, web, BLE order; with preferEditable, writable channels go first.
func (r *Registry) Session(ctx context.Context, key string, preferEditable bool) (transport.Session, Board, error) {
	b, err := r.Board(key)
	if err != nil {
		return nil, Board{}, err
	}

	var candidates []ChannelState
	for _, kind := range transport.Kinds {
		if cs, ok := b.Channels[kind]; ok {
			candidates = append(candidates, cs)
		}
	}
	if preferEditable {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Editable && !candidates[j].Editable
		})
	}

	var lastErr error
	for _, cs := range candidates {
		ch, ok := r.channels[cs.Endpoint.Kind]
		if !ok {
			continue
		}
		sess, err := r.session(ctx, ch, cs.Endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		return sess, b, nil
	}
	if lastErr != nil {
		return nil, b, fmt.Errorf("%w: %s: %v", ErrNoSession, key, lastErr)
	}
	return nil, b, fmt.Errorf("%w: %s", ErrNoSession, key)
}

// TryDo runs fn while holding the board's action slot. When another action
// already holds the slot, TryDo returns ErrBusy without running fn.
func (r *Registry) TryDo(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	e, ok := r.lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBoardNotFound, key)
	}
	select {
	case e.slot <- struct{}{}:
	default:
		return fmt.Errorf("%w: %s", ErrBusy, key)
	}
	defer func() { <-e.slot }()
	return fn(ctx)
}

// session returns the cached session for ep or connects a new one.
func (r *Registry) session(ctx context.Context, ch transport.Channel, ep transport.Endpoint) (transport.Session, error) {
	k := sessionKey{kind: ep.Kind, address: ep.Address}

	r.sessMu.Lock()
	sess, ok := r.sessions[k]
	r.sessMu.Unlock()
	if ok {
		return sess, nil
	}

	cctx, cancel := context.WithTimeout(ctx, r.opts.ConnectTimeout)
	defer cancel()
	sess, err := ch.Connect(cctx, ep)
	if err != nil {
		return nil, err
	}

	r.sessMu.Lock()
	defer r.sessMu.Unlock()
	if existing, ok := r.sessions[k]; ok {
		sess.Close() //nolint:errcheck // lost the race, keep the cached one
		return existing, nil
	}
	r.sessions[k] = sess
	return sess, nil
}

// dropSession closes and forgets the cached session for ep.
func (r *Registry) dropSession(ep transport.Endpoint) {
	k := sessionKey{kind: ep.Kind, address: ep.Address}
	r.closeSessions(func(sk sessionKey) bool { return sk == k })
}

func (r *Registry) closeSessions(match func(sessionKey) bool) {
	r.sessMu.Lock()
	var doomed []transport.Session
	for k, s := range r.sessions {
		if match(k) {
			doomed = append(doomed, s)
			delete(r.sessions, k)
		}
	}
	r.sessMu.Unlock()

	for _, s := range doomed {
		if err := s.Close(); err != nil {
			r.logger.Debug("closing session failed", "address", s.Endpoint().Address, "error", err)
		}
	}
}

// Close drops every cached session.
func (r *Registry) Close() error {
	r.closeSessions(func(sessionKey) bool { return true })
	return nil
}
