//go:build !unix && !windows

package archival

import (
	"errors"
	"io/fs"
)

func isLocked(err error) bool {
	return errors.Is(err, fs.ErrPermission)
}
