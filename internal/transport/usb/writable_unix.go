//go:build unix

package usb

import (
	"errors"

	"golang.org/x/sys/unix"
)

// hostCanWrite reports whether the volume root accepts writes from this host.
func hostCanWrite(root string) bool {
	return unix.Access(root, unix.W_OK) == nil
}

// isReadOnlyErr reports whether err means the volume refused a write.
func isReadOnlyErr(err error) bool {
	return errors.Is(err, unix.EROFS) || errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM)
}
