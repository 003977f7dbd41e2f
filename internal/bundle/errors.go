package bundle

import "errors"

var (
	// ErrCatalogUnavailable is returned when the index for a firmware major
	// cannot be retrieved or decoded.
	ErrCatalogUnavailable = errors.New("bundle: catalog unavailable")

	// ErrUnknownModule is returned when a module name is not in the catalog.
	ErrUnknownModule = errors.New("bundle: unknown module")

	// ErrFileUnavailable is returned when a module file cannot be fetched.
	ErrFileUnavailable = errors.New("bundle: file unavailable")
)
