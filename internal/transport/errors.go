package transport

import "errors"

// Transport errors shared by every channel implementation.
//
//	if errors.Is(err, transport.ErrConflict) {
//	    // board filesystem is read-only to us right now
//	}
var (
	// ErrUnreachable is returned when an endpoint cannot be enumerated or connected.
	ErrUnreachable = errors.New("transport: unreachable")

	// ErrNotFound is returned when a read or list target does not exist.
	ErrNotFound = errors.New("transport: not found")

	// ErrConflict is returned when the board refuses a write because its
	// filesystem is not writable by this host.
	ErrConflict = errors.New("transport: write conflict")

	// ErrExists is returned by Mkdir when the directory already exists.
	ErrExists = errors.New("transport: already exists")

	// ErrUnsupported is returned by channels that have no implementation yet.
	ErrUnsupported = errors.New("transport: unsupported")
)
