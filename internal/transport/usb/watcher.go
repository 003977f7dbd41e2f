package usb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce coalesces the burst of events a single mount produces.
const defaultDebounce = 750 * time.Millisecond

// MountWatcher watches the mount roots and fires a debounced callback when a
// volume appears or disappears directly under one of them.
type MountWatcher struct {
	fsw      *fsnotify.Watcher
	roots    map[string]bool
	debounce time.Duration
	onChange func(ctx context.Context)
	logger   Logger
}

// NewMountWatcher creates a watcher over the channel's mount roots.
// Roots that do not exist are skipped; at least one must be watchable.
//
// Parameters:
//   - roots: Mount roots to watch (non-recursive)
//   - debounce: Quiet period before onChange fires; zero uses the default
//   - onChange: Callback invoked once per burst of mount events
//
// Returns:
//   - *MountWatcher: Watcher ready for Run
//   - error: If fsnotify cannot be initialised or no root could be added
func NewMountWatcher(roots []string, debounce time.Duration, onChange func(ctx context.Context)) (*MountWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("usb: create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	w := &MountWatcher{
		fsw:      fsw,
		roots:    make(map[string]bool),
		debounce: debounce,
		onChange: onChange,
		logger:   noopLogger{},
	}

	var errs []error
	for _, root := range roots {
		if err := fsw.Add(root); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("watch %q: %w", root, err))
			}
			continue
		}
		w.roots[filepath.Clean(root)] = true
	}
	if len(w.roots) == 0 {
		fsw.Close() //nolint:errcheck // best-effort cleanup
		if len(errs) > 0 {
			return nil, fmt.Errorf("usb: no watchable mount root: %w", errors.Join(errs...))
		}
		return nil, fmt.Errorf("usb: no watchable mount root among %v", roots)
	}
	return w, nil
}

// SetLogger sets the logger for the watcher.
func (w *MountWatcher) SetLogger(logger Logger) {
	w.logger = logger
}

// Run processes filesystem events until ctx is cancelled.
func (w *MountWatcher) Run(ctx context.Context) error {
	var (
		mu    sync.Mutex
		timer *time.Timer
	)

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("usb: close fsnotify", "error", err)
		}
	}()

	fire := func() {
		if ctx.Err() != nil || w.onChange == nil {
			return
		}
		w.onChange(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("usb: fsnotify event channel closed")
			}
			if !w.roots[filepath.Dir(evt.Name)] {
				continue
			}
			if !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Remove) && !evt.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("usb: mount change", "path", evt.Name, "op", evt.Op.String())

			mu.Lock()
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("usb: fsnotify error channel closed")
			}
			w.logger.Warn("usb: fsnotify error", "error", err)
		}
	}
}
