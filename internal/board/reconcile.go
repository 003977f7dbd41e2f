package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/boardsync-core/internal/events"
	"github.com/nerrad567/boardsync-core/internal/transport"
)

// passStats counts endpoint outcomes across the channels of one pass.
type passStats struct {
	endpoints atomic.Int64
	resolved  atomic.Int64
	failed    atomic.Int64
}

// runPass executes one discovery pass over kinds (every channel when empty).
// Channels run concurrently; endpoints within a channel run in order.
func (r *Registry) runPass(ctx context.Context, full bool, kinds []transport.Kind) PassResult {
	start := r.now()
	if full {
		r.Clear()
	}
	gen := r.Generation()
	if len(kinds) == 0 {
		kinds = r.order
	}

	var (
		g      errgroup.Group
		stats  passStats
		errMu  sync.Mutex
		joined error
	)
	for _, kind := range kinds {
		ch, ok := r.channels[kind]
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := r.scanChannel(ctx, gen, ch, &stats); err != nil {
				errMu.Lock()
				joined = errors.Join(joined, err)
				errMu.Unlock()
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // channel errors are collected in joined

	res := PassResult{
		Generation: gen,
		Full:       full,
		Kinds:      append([]transport.Kind(nil), kinds...),
		Endpoints:  int(stats.endpoints.Load()),
		Resolved:   int(stats.resolved.Load()),
		Failed:     int(stats.failed.Load()),
		Boards:     len(r.Boards()),
		Duration:   r.now().Sub(start),
		Err:        joined,
	}
	r.logger.Debug("discovery pass complete",
		"full", full,
		"endpoints", res.Endpoints,
		"resolved", res.Resolved,
		"failed", res.Failed,
		"boards", res.Boards,
		"duration", res.Duration,
	)
	if r.observer != nil {
		r.observer.ObservePass(res)
	}
	return res
}

// scanChannel enumerates one channel and resolves each endpoint. An
// enumerate failure is returned; endpoint failures are logged and skipped.
func (r *Registry) scanChannel(ctx context.Context, gen uint64, ch transport.Channel, stats *passStats) error {
	kind := ch.Kind()
	eps, err := ch.Enumerate(ctx)
	if err != nil {
		r.logger.Warn("channel enumerate failed", "channel", kind, "error", err)
		return fmt.Errorf("%s: %w", kind, err)
	}

	seen := make(map[string]bool, len(eps))
	for _, ep := range eps {
		ep.Kind = kind
		seen[ep.Address] = true
		stats.endpoints.Add(1)
		if err := r.resolve(ctx, gen, ch, ep); err != nil {
			stats.failed.Add(1)
			r.logger.Warn("board unreachable, retrying next pass",
				"channel", kind, "address", ep.Address, "error", err)
			continue
		}
		stats.resolved.Add(1)
	}

	// Sessions for endpoints that vanished from this channel are stale.
	r.closeSessions(func(k sessionKey) bool { return k.kind == kind && !seen[k.address] })
	return nil
}

// resolve maps one endpoint onto its canonical Board.
func (r *Registry) resolve(ctx context.Context, gen uint64, ch transport.Channel, ep transport.Endpoint) error {
	sess, err := r.session(ctx, ch, ep)
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrUnreachable, err)
	}

	ictx, cancel := context.WithTimeout(ctx, r.opts.ConnectTimeout)
	info, err := sess.DeviceInfo(ictx)
	cancel()
	if err != nil {
		r.dropSession(ep)
		return fmt.Errorf("%w: %v", transport.ErrUnreachable, err)
	}

	key := IdentityKey(ep, info)
	e, created, ok := r.lookupOrCreate(gen, key, ep, info)
	if !ok {
		r.logger.Debug("discarding result from superseded pass", "key", key, "channel", ep.Kind)
		return nil
	}
	if created {
		defer close(e.ready)
	} else {
		select {
		case <-e.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	editable := sess.IsWritable(ctx)
	r.record(gen, e, created, ep, info, editable)
	r.releaseEndpoint(gen, key, ep)
	return nil
}

// releaseEndpoint detaches ep from every board other than key. A mount
// point or address answers for one board at a time; when a different board
// turns up there, the previous owner loses that channel.
func (r *Registry) releaseEndpoint(gen uint64, key string, ep transport.Endpoint) {
	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		return
	}
	others := make([]*entry, 0, len(r.boards))
	for k, e := range r.boards {
		if k != key {
			others = append(others, e)
		}
	}
	r.mu.Unlock()

	for _, e := range others {
		e.mu.Lock()
		cs, ok := e.board.Channels[ep.Kind]
		released := ok && cs.Endpoint.Address == ep.Address
		if released {
			delete(e.board.Channels, ep.Kind)
		}
		prevKey, prevName := e.board.Key, e.board.Name
		e.mu.Unlock()
		if !released {
			continue
		}

		r.logger.Info("board left endpoint",
			"key", prevKey, "channel", ep.Kind, "address", ep.Address, "now", key)
		events.Stamp(r.sink, events.Event{
			Type:     events.TypeBoardUpdated,
			BoardKey: prevKey,
			Channel:  string(ep.Kind),
			Board:    prevName,
		})
	}
}

// record stores the channel state for ep and publishes the resulting events.
func (r *Registry) record(gen uint64, e *entry, created bool, ep transport.Endpoint, info transport.DeviceInfo, editable bool) {
	e.mu.Lock()
	prev, hadChannel := e.board.Channels[ep.Kind]
	if !created {
		// The most recent report wins for metadata that can change between
		// passes, such as the firmware version after an upgrade.
		if info.BoardName != "" {
			e.board.Name = info.BoardName
		}
		if info.FirmwareVersion != "" {
			e.board.FirmwareVersion = info.FirmwareVersion
		}
		if info.BoardID != "" {
			e.board.BoardID = info.BoardID
		}
		if info.IP != "" {
			e.board.IP = info.IP
		}
	}
	e.board.Channels[ep.Kind] = ChannelState{
		Endpoint: ep,
		Editable: editable,
		SeenAt:   r.now().UTC(),
	}
	e.board.Ready = true
	snapshot := e.board.clone()
	e.mu.Unlock()

	if !r.current(gen) {
		return
	}

	ev := events.Event{
		Type:     events.TypeBoardUpdated,
		BoardKey: snapshot.Key,
		Channel:  string(ep.Kind),
		Board:    snapshot.Name,
		Editable: editable,
	}
	if created {
		ev.Type = events.TypeBoardCreated
		r.logger.Info("board discovered", "key", snapshot.Key, "name", snapshot.Name, "channel", ep.Kind)
	}
	events.Stamp(r.sink, ev)

	if hadChannel && prev.Editable != editable {
		r.logger.Info("board editability changed", "key", snapshot.Key, "channel", ep.Kind, "editable", editable)
		ev.Type = events.TypeBoardEditableChanged
		ev.Timestamp = time.Time{}
		events.Stamp(r.sink, ev)
	}
}
