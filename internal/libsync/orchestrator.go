package libsync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/boardsync-core/internal/bundle"
	"github.com/nerrad567/boardsync-core/internal/events"
)

// Logger defines the logging interface used by the Orchestrator.
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

// CatalogProvider hands out the catalog for a firmware major.
// *bundle.Manager satisfies it.
type CatalogProvider interface {
	Catalog(ctx context.Context, major int) (*bundle.Catalog, error)
}

// RunRecorder persists finished syncs. *History satisfies it.
type RunRecorder interface {
	Record(ctx context.Context, run Run) error
}

// Orchestrator resolves, diffs and installs library modules.
// It is safe for concurrent use; top-level syncs are mutually exclusive.
type Orchestrator struct {
	catalogs CatalogProvider
	running  atomic.Bool

	sink     events.Sink
	history  RunRecorder
	observer RunObserver
	logger   Logger
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator using catalogs.
func NewOrchestrator(catalogs CatalogProvider) *Orchestrator {
	return &Orchestrator{
		catalogs: catalogs,
		sink:     events.Discard,
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger sets the logger for the orchestrator.
func (o *Orchestrator) SetLogger(logger Logger) {
	o.logger = logger
}

// SetSink sets where sync events are published.
func (o *Orchestrator) SetSink(sink events.Sink) {
	if sink == nil {
		sink = events.Discard
	}
	o.sink = sink
}

// SetHistory sets where finished syncs are recorded.
func (o *Orchestrator) SetHistory(h RunRecorder) {
	o.history = h
}

// SetObserver registers a receiver for finished syncs.
func (o *Orchestrator) SetObserver(obs RunObserver) {
	o.observer = obs
}

// Running reports whether a sync is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

func (o *Orchestrator) catalog(ctx context.Context, t Target) (*bundle.Catalog, error) {
	if t.Session == nil {
		return nil, fmt.Errorf("%w: no session for %s", ErrInvalidRequest, t.BoardKey)
	}
	return o.catalogs.Catalog(ctx, t.FirmwareMajor)
}

// Sync runs one top-level request: resolve, diff and, when asked, install
// the plan and diff again. If another sync is running the request is
// dropped and the returned report has Ignored set.
//
// Parameters:
//   - ctx: Context for board and catalog I/O
//   - t: Board to operate on
//   - req: What to resolve and whether to install
//
// Returns:
//   - *Report: Final rows plus install outcome
//   - error: Resolve, catalog or transport failure that aborted the sync
func (o *Orchestrator) Sync(ctx context.Context, t Target, req Request) (*Report, error) {
	if req.Mode == "" {
		req.Mode = ModeProgram
	}
	if !o.running.CompareAndSwap(false, true) {
		o.logger.Info("sync already running, request ignored", "board", t.BoardKey, "mode", req.Mode)
		return &Report{BoardKey: t.BoardKey, Mode: req.Mode, Ignored: true}, nil
	}
	defer o.running.Store(false)

	rep := &Report{
		ID:        uuid.NewString(),
		BoardKey:  t.BoardKey,
		Mode:      req.Mode,
		StartedAt: o.now().UTC(),
	}
	err := o.run(ctx, t, req, rep)
	rep.FinishedAt = o.now().UTC()

	ev := events.Event{
		Type:     events.TypePlanComplete,
		BoardKey: t.BoardKey,
		Status:   "complete",
		Detail:   fmt.Sprintf("%d modules, %d pending, %d installed, %d failed", len(rep.Rows), len(rep.Pending()), len(rep.Installed), len(rep.Failed)),
	}
	if err != nil {
		ev.Status = "failed"
		ev.Detail = err.Error()
		o.logger.Warn("sync failed", "board", t.BoardKey, "mode", req.Mode, "error", err)
	} else {
		o.logger.Info("sync complete",
			"board", t.BoardKey,
			"mode", req.Mode,
			"modules", len(rep.Rows),
			"installed", len(rep.Installed),
			"failed", len(rep.Failed),
		)
	}
	events.Stamp(o.sink, ev)

	o.record(ctx, rep, err)
	if o.observer != nil {
		o.observer.ObserveRun(rep, err)
	}
	return rep, err
}

func (o *Orchestrator) run(ctx context.Context, t Target, req Request, rep *Report) error {
	res, err := o.resolve(ctx, t, req)
	if err != nil {
		return err
	}
	rep.Resolution = res

	rows, err := o.Diff(ctx, t, res.Roots)
	if err != nil {
		return err
	}
	if !req.Install {
		rep.Rows = rows
		o.publishRows(t, rows)
		return nil
	}

	plan := Plan(rows, req.Force)
	if len(plan) > 0 {
		inst, err := o.Install(ctx, t, plan)
		if err != nil {
			return err
		}
		rep.Installed = inst.Installed
		if len(inst.Failed) > 0 {
			rep.Failed = make(map[string]string, len(inst.Failed))
			for name, ferr := range inst.Failed {
				rep.Failed[name] = ferr.Error()
			}
		}
		if rows, err = o.Diff(ctx, t, res.Roots); err != nil {
			return err
		}
	}
	rep.Rows = rows
	o.publishRows(t, rows)
	return nil
}

func (o *Orchestrator) resolve(ctx context.Context, t Target, req Request) (Resolution, error) {
	switch req.Mode {
	case ModeProgram:
		return o.ResolveFromProgram(ctx, t, req.Path)
	case ModeInstalled:
		return o.ResolveFromInstalled(ctx, t)
	case ModeExplicit:
		return o.ResolveFromExplicitSet(ctx, t, req.Names)
	default:
		return Resolution{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, req.Mode)
	}
}

func (o *Orchestrator) publishRows(t Target, rows []ModuleState) {
	for _, row := range rows {
		events.Stamp(o.sink, events.Event{
			Type:           events.TypeModuleStatus,
			BoardKey:       t.BoardKey,
			Module:         row.Module.Name,
			Status:         string(row.Status),
			BoardVersion:   row.BoardVersion,
			CatalogVersion: row.Module.Version,
		})
	}
}

func (o *Orchestrator) record(ctx context.Context, rep *Report, runErr error) {
	if o.history == nil {
		return
	}
	run := Run{
		ID:         rep.ID,
		BoardKey:   rep.BoardKey,
		Mode:       rep.Mode,
		Requested:  rep.Resolution.Roots,
		Installed:  rep.Installed,
		Failed:     rep.Failed,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.FinishedAt,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := o.history.Record(context.WithoutCancel(ctx), run); err != nil {
		o.logger.Warn("recording sync run failed", "id", run.ID, "error", err)
	}
}
