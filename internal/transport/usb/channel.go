package usb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/nerrad567/boardsync-core/internal/transport"
)

// Logger defines the logging interface used by the USB channel.
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

// Channel discovers board volumes under a set of mount roots.
type Channel struct {
	roots  []string
	logger Logger
}

// NewChannel creates a USB channel scanning the given mount roots.
// Roots that do not exist are skipped on every pass.
func NewChannel(roots []string) *Channel {
	return &Channel{
		roots:  append([]string(nil), roots...),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the channel.
func (c *Channel) SetLogger(logger Logger) {
	c.logger = logger
}

// Kind returns transport.KindUSB.
func (c *Channel) Kind() transport.Kind {
	return transport.KindUSB
}

// Roots returns the configured mount roots.
func (c *Channel) Roots() []string {
	return append([]string(nil), c.roots...)
}

// Enumerate lists board volumes. A volume is reported once even when it is
// reachable from two roots.
func (c *Channel) Enumerate(ctx context.Context) ([]transport.Endpoint, error) {
	seen := make(map[string]bool)
	var endpoints []transport.Endpoint

	for _, root := range c.roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				c.logger.Debug("usb: skipping mount root", "root", root, "error", err)
			}
			continue
		}
		for _, e := range entries {
			mount := filepath.Join(root, e.Name())
			if !isBoardVolume(mount) {
				continue
			}
			resolved := mount
			if r, err := filepath.EvalSymlinks(mount); err == nil {
				resolved = r
			}
			if seen[resolved] {
				continue
			}
			seen[resolved] = true
			endpoints = append(endpoints, transport.Endpoint{
				Kind:       transport.KindUSB,
				Address:    mount,
				Name:       e.Name(),
				FallbackID: mount,
			})
		}
	}

	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].Address < endpoints[j].Address
	})
	return endpoints, nil
}

// Connect opens a session on a mounted volume.
func (c *Channel) Connect(_ context.Context, ep transport.Endpoint) (transport.Session, error) {
	if ep.Kind != transport.KindUSB {
		return nil, fmt.Errorf("%w: endpoint kind %q", transport.ErrUnsupported, ep.Kind)
	}
	if !isBoardVolume(ep.Address) {
		return nil, fmt.Errorf("%w: %s is not a board volume", transport.ErrUnreachable, ep.Address)
	}
	return &Session{endpoint: ep, root: ep.Address}, nil
}

// isBoardVolume reports whether dir looks like a mounted board filesystem.
func isBoardVolume(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, bootInfoFile))
	return err == nil && info.Mode().IsRegular()
}
