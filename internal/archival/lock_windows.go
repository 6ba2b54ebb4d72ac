//go:build windows

package archival

import (
	"errors"
	"io/fs"

	"golang.org/x/sys/windows"
)

// isLocked reports whether a delete failed because another handle (an upload
// still draining, a virus scanner) has the file open.
func isLocked(err error) bool {
	return errors.Is(err, windows.ERROR_SHARING_VIOLATION) ||
		errors.Is(err, windows.ERROR_LOCK_VIOLATION) ||
		errors.Is(err, fs.ErrPermission)
}
