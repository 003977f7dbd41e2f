package usb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/nerrad567/boardsync-core/internal/transport"
)

// Session reads and writes a mounted board volume with plain file I/O.
type Session struct {
	endpoint transport.Endpoint
	root     string
}

// Endpoint returns the endpoint the session was opened from.
func (s *Session) Endpoint() transport.Endpoint {
	return s.endpoint
}

// DeviceInfo parses boot_out.txt. The file is read on every call: another
// board, or new firmware, may appear at the same mount point.
func (s *Session) DeviceInfo(_ context.Context) (transport.DeviceInfo, error) {
	data, err := os.ReadFile(filepath.Join(s.root, bootInfoFile))
	if err != nil {
		return transport.DeviceInfo{}, fmt.Errorf("%w: reading %s: %v", transport.ErrUnreachable, bootInfoFile, err)
	}
	return parseBootInfo(data), nil
}

// List returns the entries of a directory on the volume.
func (s *Session) List(ctx context.Context, p string) ([]transport.FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.hostPath(p))
	if err != nil {
		return nil, s.mapErr(p, err)
	}
	out := make([]transport.FileEntry, 0, len(entries))
	for _, e := range entries {
		fe := transport.FileEntry{Name: e.Name(), IsDir: e.IsDir()}
		if info, err := e.Info(); err == nil {
			fe.Size = info.Size()
			fe.ModTime = info.ModTime()
		}
		out = append(out, fe)
	}
	return out, nil
}

// Read returns the contents of a file on the volume.
func (s *Session) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.hostPath(p))
	if err != nil {
		return nil, s.mapErr(p, err)
	}
	return data, nil
}

// Write creates or replaces a file and sets its modification time.
func (s *Session) Write(ctx context.Context, p string, data []byte, modTime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := s.hostPath(p)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return s.mapErr(p, err)
	}
	if !modTime.IsZero() {
		// FAT only keeps 2s resolution; a failed stamp is not a failed write.
		_ = os.Chtimes(target, modTime, modTime)
	}
	return nil
}

// Mkdir creates a directory on the volume.
func (s *Session) Mkdir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Mkdir(s.hostPath(p), 0o755); err != nil {
		return s.mapErr(p, err)
	}
	return nil
}

// IsWritable reports whether the host may write to the volume.
func (s *Session) IsWritable(_ context.Context) bool {
	return hostCanWrite(s.root)
}

// Close is a no-op for mounted volumes.
func (s *Session) Close() error {
	return nil
}

// hostPath maps an absolute board path onto the mount, refusing to escape it.
func (s *Session) hostPath(p string) string {
	clean := path.Clean("/" + strings.TrimRight(p, "/"))
	return filepath.Join(s.root, filepath.FromSlash(clean))
}

func (s *Session) mapErr(p string, err error) error {
	switch {
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %s", transport.ErrExists, p)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", transport.ErrNotFound, p)
	case isReadOnlyErr(err):
		return fmt.Errorf("%w: %s: %v", transport.ErrConflict, p, err)
	default:
		return fmt.Errorf("usb: %s: %w", p, err)
	}
}
