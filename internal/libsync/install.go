package libsync

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/nerrad567/boardsync-core/internal/bundle"
	"github.com/nerrad567/boardsync-core/internal/events"
	"github.com/nerrad567/boardsync-core/internal/transport"
)

// Install writes each named module to the board. Modules are independent: a
// failure stops that module and the next one is attempted. Files already
// written are left in place. Callers re-run Diff to see the outcome.
func (o *Orchestrator) Install(ctx context.Context, t Target, names []string) (InstallResult, error) {
	cat, err := o.catalog(ctx, t)
	if err != nil {
		return InstallResult{}, err
	}

	res := InstallResult{Installed: []string{}, Failed: make(map[string]error)}
	for _, name := range dedupe(names) {
		err := o.installModule(ctx, t, cat, name)
		ev := events.Event{
			Type:     events.TypeInstallResult,
			BoardKey: t.BoardKey,
			Module:   name,
			Status:   "installed",
		}
		if err != nil {
			res.Failed[name] = err
			ev.Status = "failed"
			ev.Detail = err.Error()
			o.logger.Warn("module install failed", "board", t.BoardKey, "module", name, "error", err)
		} else {
			res.Installed = append(res.Installed, name)
			o.logger.Info("module installed", "board", t.BoardKey, "module", name)
		}
		events.Stamp(o.sink, ev)
	}
	return res, nil
}

func (o *Orchestrator) installModule(ctx context.Context, t Target, cat *bundle.Catalog, name string) error {
	m, err := cat.Module(name)
	if err != nil {
		return err
	}
	files, err := cat.Files(ctx, m)
	if err != nil {
		return err
	}

	made := make(map[string]bool)
	if m.Package {
		if err := ensureDir(ctx, t.Session, transport.Join(libDir, m.Name)); err != nil {
			return err
		}
		made[transport.Join(libDir, m.Name)] = true
	}

	for _, f := range files {
		dst := transport.Join(libDir, f.Path)
		for _, dir := range parents(dst) {
			if made[dir] {
				continue
			}
			if err := ensureDir(ctx, t.Session, dir); err != nil {
				return err
			}
			made[dir] = true
		}
		if err := t.Session.Write(ctx, dst, f.Data, f.ModTime); err != nil {
			return writeErr(dst, err)
		}
	}
	return nil
}

// parents returns the directories strictly between /lib and p, outermost
// first.
func parents(p string) []string {
	var out []string
	for dir := path.Dir(p); dir != libDir && dir != "/" && dir != "."; dir = path.Dir(dir) {
		out = append(out, dir)
	}
	sort.Strings(out)
	return out
}

// ensureDir creates dir; an existing directory is fine.
func ensureDir(ctx context.Context, sess transport.Session, dir string) error {
	err := sess.Mkdir(ctx, transport.Dir(dir))
	if err == nil || errors.Is(err, transport.ErrExists) {
		return nil
	}
	return writeErr(dir, err)
}

func writeErr(p string, err error) error {
	if errors.Is(err, transport.ErrConflict) {
		return fmt.Errorf("%w: %s", ErrDriveNotWritable, p)
	}
	return fmt.Errorf("writing %s: %w", p, err)
}
