package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Yulian302/lfusys-services-uploads/caching"
	"github.com/Yulian302/lfusys-services-uploads/logging"
	"github.com/Yulian302/lfusys-services-uploads/models"
	"github.com/Yulian302/lfusys-services-uploads/store"
)

const (
	filesCacheKey = "files:all"
	filesCacheTTL = 5 * time.Minute
)

type FileService interface {
	GetFiles(ctx context.Context) (*models.FilesResponse, error)
	GetDownloadUrl(ctx context.Context, fileID string, ttl time.Duration) (string, error)
}

type FileServiceImpl struct {
	fileStore   store.FileStore
	fileStorage store.FileStorage
	cachingSvc  caching.CachingService

	logger logging.Logger
}

func NewFileServiceImpl(fileStore store.FileStore, fileStorage store.FileStorage, cachingSvc caching.CachingService, l logging.Logger) *FileServiceImpl {
	return &FileServiceImpl{
		fileStore:   fileStore,
		fileStorage: fileStorage,
		cachingSvc:  cachingSvc,
		logger:      l,
	}
}

func (svc *FileServiceImpl) GetFiles(ctx context.Context) (*models.FilesResponse, error) {
	if cached, err := svc.cachingSvc.Get(ctx, filesCacheKey); err == nil {
		var files []models.File
		if unmarshalErr := json.Unmarshal(cached, &files); unmarshalErr == nil {
			return &models.FilesResponse{Files: files}, nil
		} else {
			svc.logger.Warn("dropping unreadable files cache entry", "error", unmarshalErr)
		}
	} else if !errors.Is(err, caching.ErrCacheMiss) {
		svc.logger.Warn("files cache read failed", "error", err)
	}

	files, err := svc.fileStore.List(ctx)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(files); err == nil {
		if err := svc.cachingSvc.Set(ctx, filesCacheKey, encoded, filesCacheTTL); err != nil {
			svc.logger.Warn("files cache write failed", "error", err)
		}
	}

	return &models.FilesResponse{Files: files}, nil
}

func (svc *FileServiceImpl) GetDownloadUrl(ctx context.Context, fileID string, ttl time.Duration) (string, error) {
	file, err := svc.fileStore.Get(ctx, fileID)
	if err != nil {
		return "", err
	}

	return svc.fileStorage.GenerateDownloadUrl(ctx, file.StorageKey(), ttl)
}
