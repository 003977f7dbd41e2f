// Package transporttest provides in-memory transport channels and boards for
// tests of packages built on the transport capability.
package transporttest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/boardsync-core/internal/transport"
)

// File is a stored file and the timestamp it was written with.
type File struct {
	Data    []byte
	ModTime time.Time
}

// Board is an in-memory board filesystem.
type Board struct {
	mu        sync.Mutex
	info      transport.DeviceInfo
	files     map[string]File
	dirs      map[string]bool
	writable  bool
	writeHook func(path string) error
	writes    []string
	mkdirs    []string
}

// NewBoard creates a writable board with "/" and "/lib/" present.
func NewBoard(info transport.DeviceInfo) *Board {
	return &Board{
		info:     info,
		files:    make(map[string]File),
		dirs:     map[string]bool{"/": true, "/lib/": true},
		writable: true,
	}
}

// SetInfo replaces the board's self-reported metadata.
func (b *Board) SetInfo(info transport.DeviceInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.info = info
}

// SetWritable sets what IsWritable reports and whether writes succeed.
func (b *Board) SetWritable(w bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writable = w
}

// SetWriteHook installs a function consulted before every file write and
// mkdir; a non-nil return value is returned from the operation.
func (b *Board) SetWriteHook(hook func(path string) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writeHook = hook
}

// PutFile stores a file directly, creating parent directories.
func (b *Board) PutFile(path string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[path] = File{Data: append([]byte(nil), data...)}
	for dir := parentDir(path); dir != "/"; dir = parentDir(strings.TrimSuffix(dir, "/")) {
		b.dirs[dir] = true
	}
}

// PutDir creates a directory directly.
func (b *Board) PutDir(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dirs[transport.Dir(path)] = true
}

// File returns a stored file.
func (b *Board) File(path string) (File, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.files[path]
	return f, ok
}

// Writes returns the paths written through sessions, in order.
func (b *Board) Writes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.writes...)
}

// Mkdirs returns the directories created through sessions, in order.
func (b *Board) Mkdirs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.mkdirs...)
}

func parentDir(path string) string {
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return "/"
	}
	return path[:i+1]
}

type attachment struct {
	endpoint transport.Endpoint
	board    *Board
}

// Channel is an in-memory transport channel.
type Channel struct {
	kind transport.Kind

	mu           sync.Mutex
	attached     []attachment
	enumerateErr error
	connectErr   map[string]error
	connectHook  func(ep transport.Endpoint)
	connects     int
}

// NewChannel creates an empty channel of the given kind.
func NewChannel(kind transport.Kind) *Channel {
	return &Channel{kind: kind, connectErr: make(map[string]error)}
}

// Attach makes a board visible at an endpoint. The endpoint's kind is forced
// to the channel kind.
func (c *Channel) Attach(ep transport.Endpoint, b *Board) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ep.Kind = c.kind
	c.attached = append(c.attached, attachment{endpoint: ep, board: b})
}

// Detach removes the board at address.
func (c *Channel) Detach(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.attached[:0]
	for _, a := range c.attached {
		if a.endpoint.Address != address {
			kept = append(kept, a)
		}
	}
	c.attached = kept
}

// SetEnumerateError makes Enumerate fail with err (nil clears it).
func (c *Channel) SetEnumerateError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enumerateErr = err
}

// FailConnect makes Connect to address fail with err (nil clears it).
func (c *Channel) FailConnect(address string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.connectErr, address)
		return
	}
	c.connectErr[address] = err
}

// SetConnectHook installs a function called at the start of every Connect.
// Tests use it to block a channel mid-pass.
func (c *Channel) SetConnectHook(hook func(ep transport.Endpoint)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectHook = hook
}

// Connects returns how many times Connect was called.
func (c *Channel) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

// Kind returns the channel kind.
func (c *Channel) Kind() transport.Kind {
	return c.kind
}

// Enumerate lists attached endpoints.
func (c *Channel) Enumerate(ctx context.Context) ([]transport.Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enumerateErr != nil {
		return nil, c.enumerateErr
	}
	out := make([]transport.Endpoint, 0, len(c.attached))
	for _, a := range c.attached {
		out = append(out, a.endpoint)
	}
	return out, nil
}

// Connect opens a session to an attached board.
func (c *Channel) Connect(_ context.Context, ep transport.Endpoint) (transport.Session, error) {
	c.mu.Lock()
	hook := c.connectHook
	c.connects++
	c.mu.Unlock()

	if hook != nil {
		hook(ep)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.connectErr[ep.Address]; ok {
		return nil, err
	}
	for _, a := range c.attached {
		if a.endpoint.Address == ep.Address {
			return &Session{endpoint: a.endpoint, board: a.board}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", transport.ErrUnreachable, ep.Address)
}

// Session is a session on an in-memory board.
type Session struct {
	endpoint transport.Endpoint
	board    *Board
}

// NewSession opens a session on b directly, without a channel.
func NewSession(ep transport.Endpoint, b *Board) *Session {
	return &Session{endpoint: ep, board: b}
}

// Endpoint returns the session endpoint.
func (s *Session) Endpoint() transport.Endpoint {
	return s.endpoint
}

// DeviceInfo returns the board metadata.
func (s *Session) DeviceInfo(ctx context.Context) (transport.DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return transport.DeviceInfo{}, err
	}
	s.board.mu.Lock()
	defer s.board.mu.Unlock()
	return s.board.info, nil
}

// List returns the direct children of a directory, sorted by name.
func (s *Session) List(ctx context.Context, path string) ([]transport.FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := s.board
	b.mu.Lock()
	defer b.mu.Unlock()

	dir := transport.Dir(path)
	if !b.dirs[dir] {
		return nil, fmt.Errorf("%w: %s", transport.ErrNotFound, path)
	}
	var out []transport.FileEntry
	for d := range b.dirs {
		if name, ok := directChild(dir, strings.TrimSuffix(d, "/")); ok {
			out = append(out, transport.FileEntry{Name: name, IsDir: true})
		}
	}
	for p, f := range b.files {
		if name, ok := directChild(dir, p); ok {
			out = append(out, transport.FileEntry{Name: name, Size: int64(len(f.Data)), ModTime: f.ModTime})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func directChild(dir, p string) (string, bool) {
	rest, ok := strings.CutPrefix(p, dir)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// Read returns a file's contents.
func (s *Session) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.board.mu.Lock()
	defer s.board.mu.Unlock()
	f, ok := s.board.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", transport.ErrNotFound, path)
	}
	return append([]byte(nil), f.Data...), nil
}

// Write stores a file. The parent directory must exist.
func (s *Session) Write(ctx context.Context, path string, data []byte, modTime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := s.board
	b.mu.Lock()
	hook := b.writeHook
	b.mu.Unlock()
	if hook != nil {
		if err := hook(path); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.writable {
		return fmt.Errorf("%w: %s", transport.ErrConflict, path)
	}
	if !b.dirs[parentDir(path)] {
		return fmt.Errorf("%w: parent of %s", transport.ErrNotFound, path)
	}
	b.files[path] = File{Data: append([]byte(nil), data...), ModTime: modTime}
	b.writes = append(b.writes, path)
	return nil
}

// Mkdir creates a directory.
func (s *Session) Mkdir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := s.board
	b.mu.Lock()
	hook := b.writeHook
	b.mu.Unlock()
	if hook != nil {
		if err := hook(path); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	dir := transport.Dir(path)
	if b.dirs[dir] {
		return fmt.Errorf("%w: %s", transport.ErrExists, path)
	}
	if !b.writable {
		return fmt.Errorf("%w: %s", transport.ErrConflict, path)
	}
	b.dirs[dir] = true
	b.mkdirs = append(b.mkdirs, dir)
	return nil
}

// IsWritable reports the board's writable flag.
func (s *Session) IsWritable(context.Context) bool {
	s.board.mu.Lock()
	defer s.board.mu.Unlock()
	return s.board.writable
}

// Close is a no-op.
func (s *Session) Close() error {
	return nil
}
