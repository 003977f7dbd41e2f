package transport

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Kind identifies a transport channel.
type Kind string

// Channel kinds.
const (
	KindUSB Kind = "usb"
	KindWeb Kind = "web"
	KindBLE Kind = "ble"
)

// Kinds lists every channel kind in preference order for sessions.
var Kinds = []Kind{KindUSB, KindWeb, KindBLE}

// Endpoint is a raw discovery result from one channel.
// It is produced fresh on every discovery pass and never mutated.
type Endpoint struct {
	Kind Kind `json:"kind"`

	// Address is the mount path (usb) or host:port (web).
	Address string `json:"address"`

	// Name is the advertised display name (volume label, mDNS instance name).
	Name string `json:"name"`

	// FallbackID is the channel-derived pseudo identity used when the board
	// reports no serial number.
	FallbackID string `json:"fallback_id"`
}

// Identity returns FallbackID, or Address when FallbackID is empty.
func (e Endpoint) Identity() string {
	if e.FallbackID != "" {
		return e.FallbackID
	}
	return e.Address
}

// DeviceInfo is the board's self-reported metadata.
type DeviceInfo struct {
	SerialNumber    string `json:"serial_number,omitempty"`
	BoardName       string `json:"board_name,omitempty"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
	BoardID         string `json:"board_id,omitempty"`
	IP              string `json:"ip,omitempty"`
}

// FirmwareMajor returns the leading integer of FirmwareVersion, or 0 when
// the version is absent or malformed.
func (d DeviceInfo) FirmwareMajor() int {
	head, _, _ := strings.Cut(d.FirmwareVersion, ".")
	n, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// FileEntry is one row of a directory listing.
type FileEntry struct {
	Name    string    `json:"name"`
	IsDir   bool      `json:"directory"`
	Size    int64     `json:"file_size"`
	ModTime time.Time `json:"modified"`
}

// Channel enumerates and connects to boards reachable over one transport.
type Channel interface {
	// Kind returns the channel kind.
	Kind() Kind

	// Enumerate lists the endpoints currently visible on this channel.
	Enumerate(ctx context.Context) ([]Endpoint, error)

	// Connect opens a session to an endpoint. Failures wrap ErrUnreachable.
	Connect(ctx context.Context, ep Endpoint) (Session, error)
}

// Session is a connected handle to one board on one channel.
//
// Implementations must be safe for concurrent use: the reconciler and the
// sync orchestrator may share a cached session.
type Session interface {
	// Endpoint returns the endpoint this session was opened from.
	Endpoint() Endpoint

	// DeviceInfo returns the board's self-reported metadata. It is read from
	// the board on every call; a session outlives the board behind it when
	// one board is swapped for another at the same address.
	DeviceInfo(ctx context.Context) (DeviceInfo, error)

	// List returns the entries of a directory. Missing directory: ErrNotFound.
	List(ctx context.Context, path string) ([]FileEntry, error)

	// Read returns the contents of a file. Missing file: ErrNotFound.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write creates or replaces a file, stamping it with modTime.
	// A read-only board filesystem: ErrConflict.
	Write(ctx context.Context, path string, data []byte, modTime time.Time) error

	// Mkdir creates a directory. Already present: ErrExists.
	// A read-only board filesystem: ErrConflict.
	Mkdir(ctx context.Context, path string) error

	// IsWritable reports whether this host may currently write to the board.
	IsWritable(ctx context.Context) bool

	// Close releases the session.
	Close() error
}

// Dir returns path with exactly one trailing slash.
func Dir(path string) string {
	return strings.TrimRight(path, "/") + "/"
}

// Join joins board path elements with forward slashes.
func Join(elem ...string) string {
	var b strings.Builder
	for _, e := range elem {
		e = strings.Trim(e, "/")
		if e == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(e)
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}
