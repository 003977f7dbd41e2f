package libsync

import "errors"

// Domain errors for the libsync package.
var (
	// ErrFileNotFound is returned when the program to resolve imports from
	// does not exist on the board.
	ErrFileNotFound = errors.New("libsync: file not found")

	// ErrDriveNotWritable is reported for a module whose files could not be
	// written because the board's filesystem is read-only to this host.
	ErrDriveNotWritable = errors.New("libsync: drive not writable")

	// ErrInvalidRequest is returned for a request that cannot be run.
	ErrInvalidRequest = errors.New("libsync: invalid request")
)
