package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/Yulian302/lfusys-services-uploads/apperrors"
	"github.com/Yulian302/lfusys-services-uploads/logging"
)

// ChunkStore stages raw chunk payloads per session until merge or cancel.
type ChunkStore interface {
	StoreChunk(sessionID string, index int32, data []byte) error

	// Merge streams chunks 0..totalChunks-1 concatenated in ascending
	// order. A missing chunk surfaces through the reader as a MergeError
	// carrying the missing index.
	Merge(sessionID string, totalChunks int32) io.ReadCloser

	// Cleanup removes the session's staging directory, deepest entries
	// first. Individual deletion failures are logged and swallowed;
	// callers treat any returned error as a warning only.
	Cleanup(sessionID string) error
}

type DiskChunkStore struct {
	root   string
	logger logging.Logger
}

func NewDiskChunkStore(root string, l logging.Logger) *DiskChunkStore {
	return &DiskChunkStore{
		root:   root,
		logger: l,
	}
}

func (s *DiskChunkStore) sessionDir(sessionID string) string {
	return filepath.Join(s.root, sessionID)
}

func (s *DiskChunkStore) chunkPath(sessionID string, index int32) string {
	return filepath.Join(s.sessionDir(sessionID), fmt.Sprintf("chunk_%d", index))
}

// StoreChunk overwrites any prior content at the same index.
func (s *DiskChunkStore) StoreChunk(sessionID string, index int32, data []byte) error {
	dir := s.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &apperrors.StorageError{Op: "create staging directory", Err: err}
	}

	if err := os.WriteFile(s.chunkPath(sessionID, index), data, 0o644); err != nil {
		return &apperrors.StorageError{Op: "write chunk", Err: err}
	}

	s.logger.Debug("stored chunk", "session_id", sessionID, "chunk_index", index, "size", len(data))
	return nil
}

func (s *DiskChunkStore) Merge(sessionID string, totalChunks int32) io.ReadCloser {
	pr, pw := io.Pipe()

	go func() {
		for i := int32(0); i < totalChunks; i++ {
			f, err := os.Open(s.chunkPath(sessionID, i))
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					pw.CloseWithError(&apperrors.MergeError{MissingChunk: i, Err: err})
				} else {
					pw.CloseWithError(&apperrors.MergeError{MissingChunk: -1, Err: err})
				}
				return
			}

			_, err = io.Copy(pw, f)
			f.Close()
			if err != nil {
				pw.CloseWithError(&apperrors.MergeError{MissingChunk: -1, Err: err})
				return
			}
		}
		pw.Close()
	}()

	return pr
}

func (s *DiskChunkStore) Cleanup(sessionID string) error {
	dir := s.sessionDir(sessionID)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk staging directory: %w", err)
	}

	// deepest entries first
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))

	removed := 0
	for _, path := range paths {
		if err := os.Remove(path); err != nil {
			s.logger.Warn("failed to remove staged file", "path", path, "error", err)
			continue
		}
		removed++
	}

	s.logger.Info("cleaned up staging directory", "session_id", sessionID, "removed", removed)
	return nil
}
