//go:build !unix

package usb

import (
	"errors"
	"io/fs"
	"os"
)

// hostCanWrite reports whether the volume root accepts writes from this host.
func hostCanWrite(root string) bool {
	info, err := os.Stat(root)
	if err != nil {
		return false
	}
	return info.Mode().Perm()&0o200 != 0
}

// isReadOnlyErr reports whether err means the volume refused a write.
func isReadOnlyErr(err error) bool {
	return errors.Is(err, fs.ErrPermission)
}
