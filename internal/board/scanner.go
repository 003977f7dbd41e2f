package board

import (
	"context"
	"time"

	"github.com/nerrad567/boardsync-core/internal/transport"
)

// Rescan runs a discovery pass and waits for it. When a pass is already in
// flight the call joins it instead of starting another, so full may be
// ignored. The pass itself is not cancelled by ctx; ctx only bounds the
// wait.
func (r *Registry) Rescan(ctx context.Context, full bool) (PassResult, error) {
	return r.rescan(ctx, full, nil)
}

// TryRescan starts a pass in the background unless one is running. It
// reports whether a pass was started.
func (r *Registry) TryRescan(full bool) bool {
	if r.scanning.Load() {
		return false
	}
	go r.rescan(context.Background(), full, nil) //nolint:errcheck // result reaches the observer
	return true
}

// Scanning reports whether a pass is in flight.
func (r *Registry) Scanning() bool {
	return r.scanning.Load()
}

func (r *Registry) rescan(ctx context.Context, full bool, kinds []transport.Kind) (PassResult, error) {
	ch := r.scans.DoChan(rescanKey, func() (any, error) {
		r.scanning.Store(true)
		defer r.scanning.Store(false)
		return r.runPass(context.WithoutCancel(ctx), full, kinds), nil
	})
	select {
	case res := <-ch:
		return res.Val.(PassResult), nil
	case <-ctx.Done():
		return PassResult{}, ctx.Err()
	}
}

// Run performs the initial full pass, a web-only pass after the settle
// delay, then incremental passes every interval until ctx is cancelled.
// Cached sessions are closed on return.
func (r *Registry) Run(ctx context.Context) {
	defer r.Close() //nolint:errcheck // sessions hold no unflushed state

	r.logger.Info("board discovery started",
		"channels", r.order,
		"interval", r.opts.Interval,
		"settle_delay", r.opts.SettleDelay,
	)
	if _, err := r.rescan(ctx, true, nil); err != nil {
		return
	}

	if _, ok := r.channels[transport.KindWeb]; ok && r.opts.SettleDelay > 0 {
		select {
		case <-time.After(r.opts.SettleDelay):
			if _, err := r.rescan(ctx, false, []transport.Kind{transport.KindWeb}); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("board discovery stopped")
			return
		case <-ticker.C:
			if _, err := r.rescan(ctx, false, nil); err != nil {
				return
			}
		}
	}
}
