package modver

import "errors"

var (
	// ErrInvalidVersion is returned when a version string cannot be parsed.
	ErrInvalidVersion = errors.New("modver: invalid version")

	// ErrBadBinaryFormat is returned when a compiled module's header does not
	// match the firmware it would run on.
	ErrBadBinaryFormat = errors.New("modver: bad binary format")
)
