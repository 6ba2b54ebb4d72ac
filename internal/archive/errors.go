package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingParent is returned when the Drive root folder is not configured.
	ErrMissingParent = errors.New("archive parent folder is not configured (DRIVE_PARENT_FOLDER_ID)")

	// ErrMissingBucket is returned when the Cloud Storage bucket is not configured.
	ErrMissingBucket = errors.New("archive bucket is not configured (GCS_ARCHIVE_BUCKET)")

	// ErrUnknownBackend is returned for an unrecognized ARCHIVE_BACKEND.
	ErrUnknownBackend = errors.New("unknown archive backend")
)

// RepositoryError wraps a failed remote call with the backend and operation.
type RepositoryError struct {
	Op      string
	Backend string
	Err     error
	Details string
}

func (e *RepositoryError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("archive/%s: %s failed: %s: %v", e.Backend, e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("archive/%s: %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

func wrapError(backend, op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var repoErr *RepositoryError
	if errors.As(err, &repoErr) {
		return err
	}
	return &RepositoryError{Op: op, Backend: backend, Err: err, Details: details}
}
