package store

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Yulian302/lfusys-services-uploads/apperrors"
	"github.com/Yulian302/lfusys-services-uploads/logging"
	"github.com/Yulian302/lfusys-services-uploads/models"
)

// LocalFileStorage persists merged files on the local filesystem, laid out
// as <root>/files/<ext>/<directoryName>/<storedName>.<ext>.
type LocalFileStorage struct {
	root   string
	logger logging.Logger
}

func NewLocalFileStorage(root string, l logging.Logger) *LocalFileStorage {
	return &LocalFileStorage{
		root:   root,
		logger: l,
	}
}

func (s *LocalFileStorage) Persist(ctx context.Context, file models.File, content io.Reader, size int64) error {
	target := filepath.Join(s.root, filepath.FromSlash(file.StorageKey()))

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &apperrors.StorageError{Op: "create upload directory", Err: err}
	}

	out, err := os.Create(target)
	if err != nil {
		return &apperrors.StorageError{Op: "create merged file", Err: err}
	}

	if _, err := io.Copy(out, content); err != nil {
		out.Close()
		os.Remove(target)
		return err
	}

	if err := out.Close(); err != nil {
		return &apperrors.StorageError{Op: "close merged file", Err: err}
	}

	s.logger.Info("persisted merged file", "file_id", file.FileId, "path", target)
	return nil
}

func (s *LocalFileStorage) GenerateDownloadUrl(ctx context.Context, key string, ttl time.Duration) (string, error) {
	abs, err := filepath.Abs(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil {
		return "", err
	}
	return "file://" + abs, nil
}
