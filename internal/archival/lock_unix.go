//go:build unix

package archival

import (
	"errors"
	"io/fs"
	"syscall"
)

// isLocked reports whether a delete failed because something still holds the file.
func isLocked(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETXTBSY)
}
