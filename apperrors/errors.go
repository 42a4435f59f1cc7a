package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for client-facing rejections. Handlers map these onto
// HTTP statuses; services never inspect transport codes.
var (
	ErrUnsupportedFormat   = errors.New("unsupported file format")
	ErrSessionNotFound     = errors.New("upload session not found")
	ErrFileNotFound        = errors.New("file not found")
	ErrInvalidChunkIndex   = errors.New("invalid chunk index")
	ErrSessionCompleted    = errors.New("session already completed")
	ErrSessionCancelled    = errors.New("session is cancelled")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrConcurrencyConflict = errors.New("concurrent session modification")
)

// StorageError is a fatal chunk-storage failure (disk full, permissions).
// The failed chunk is recorded in session state, never silently dropped.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// MergeError indicates a chunk expected at merge time was missing or
// unreadable. MissingChunk is -1 when the failure was not a missing file.
type MergeError struct {
	MissingChunk int32
	Err          error
}

func (e *MergeError) Error() string {
	if e.MissingChunk >= 0 {
		return fmt.Sprintf("merge failed: chunk %d does not exist", e.MissingChunk)
	}
	return fmt.Sprintf("merge failed: %v", e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }

func IsConcurrencyConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
