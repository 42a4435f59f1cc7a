package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Yulian302/lfusys-services-uploads/apperrors"
	"github.com/Yulian302/lfusys-services-uploads/caching"
	"github.com/Yulian302/lfusys-services-uploads/logging"
	"github.com/Yulian302/lfusys-services-uploads/models"
	"github.com/Yulian302/lfusys-services-uploads/queues"
	"github.com/Yulian302/lfusys-services-uploads/retries"
	"github.com/Yulian302/lfusys-services-uploads/store"
	"github.com/google/uuid"
)

// UploadService coordinates the chunk-upload session lifecycle: session
// creation, idempotent chunk acceptance, failed-chunk gating, ordered merge
// and permanent-storage handoff.
type UploadService interface {
	StartUpload(ctx context.Context, req models.ChunkUploadStartRequest) (*models.ChunkUploadStartResponse, error)
	UploadChunk(ctx context.Context, req models.ChunkUploadRequest) (*models.ChunkUploadResponse, error)
	CompleteUpload(ctx context.Context, sessionID string) (*models.ChunkUploadCompleteResponse, error)
	CancelUpload(ctx context.Context, sessionID string) (*models.ChunkUploadCancelResponse, error)
	GetUploadStatus(ctx context.Context, sessionID string) (*models.UploadStatusResponse, error)
}

type UploadServiceImpl struct {
	sessionStore store.SessionStore
	chunkStore   store.ChunkStore
	fileStorage  store.FileStorage
	fileStore    store.FileStore
	notifier     queues.UploadsNotifier
	cachingSvc   caching.CachingService

	logger logging.Logger
}

func NewUploadServiceImpl(
	sessionStore store.SessionStore,
	chunkStore store.ChunkStore,
	fileStorage store.FileStorage,
	fileStore store.FileStore,
	notifier queues.UploadsNotifier,
	cachingSvc caching.CachingService,
	l logging.Logger,
) *UploadServiceImpl {
	return &UploadServiceImpl{
		sessionStore: sessionStore,
		chunkStore:   chunkStore,
		fileStorage:  fileStorage,
		fileStore:    fileStore,
		notifier:     notifier,
		cachingSvc:   cachingSvc,
		logger:       l,
	}
}

func (svc *UploadServiceImpl) StartUpload(ctx context.Context, req models.ChunkUploadStartRequest) (*models.ChunkUploadStartResponse, error) {
	fileType, err := models.FileTypeFromFileName(req.FileName)
	if err != nil {
		return nil, err
	}

	if req.TotalSize <= 0 {
		return nil, fmt.Errorf("%w: totalSize must be positive", apperrors.ErrInvalidArgument)
	}
	if req.TotalChunks <= 0 {
		return nil, fmt.Errorf("%w: totalChunks must be positive", apperrors.ErrInvalidArgument)
	}

	session := models.NewUploadSession(uuid.NewString(), req.FileName, fileType, req.TotalSize, req.TotalChunks)

	if err := svc.sessionStore.Create(ctx, session); err != nil {
		svc.logger.Error("failed to create upload session", "file_name", req.FileName, "error", err)
		return nil, err
	}

	svc.logger.Info("upload session started", "session_id", session.SessionId, "file_name", req.FileName, "total_chunks", req.TotalChunks)
	return &models.ChunkUploadStartResponse{SessionId: session.SessionId}, nil
}

// UploadChunk runs the session read-modify-write under a bounded retry:
// concurrent chunk uploads for the same session contend on the shared
// counter and chunk map, and a stale save surfaces as a concurrency
// conflict that is safe to re-run from the top.
func (svc *UploadServiceImpl) UploadChunk(ctx context.Context, req models.ChunkUploadRequest) (*models.ChunkUploadResponse, error) {
	var resp *models.ChunkUploadResponse

	err := retries.Retry(
		ctx,
		retries.DefaultAttempts,
		retries.DefaultBaseDelay,
		func() error {
			r, err := svc.uploadChunkOnce(ctx, req)
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		apperrors.IsConcurrencyConflict,
	)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (svc *UploadServiceImpl) uploadChunkOnce(ctx context.Context, req models.ChunkUploadRequest) (*models.ChunkUploadResponse, error) {
	session, err := svc.sessionStore.Get(ctx, req.SessionId)
	if err != nil {
		return nil, err
	}

	// Range validation comes first: an out-of-range index is rejected the
	// same way whatever the session status.
	if req.ChunkIndex < 0 || req.ChunkIndex >= session.TotalChunks {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", apperrors.ErrInvalidChunkIndex, req.ChunkIndex, session.TotalChunks)
	}

	switch session.Status {
	case models.StatusCompleted:
		return nil, apperrors.ErrSessionCompleted
	case models.StatusCancelled:
		return nil, apperrors.ErrSessionCancelled
	}

	// Repeat submission of an already-accepted chunk: no write, no counter
	// change, stable result.
	if session.IsChunkCompleted(req.ChunkIndex) {
		return &models.ChunkUploadResponse{Progress: session.Progress()}, nil
	}

	if err := svc.chunkStore.StoreChunk(req.SessionId, req.ChunkIndex, req.ChunkData); err != nil {
		session.RecordChunkFailed(req.ChunkIndex)
		if saveErr := svc.sessionStore.Save(ctx, session); saveErr != nil {
			if apperrors.IsConcurrencyConflict(saveErr) {
				return nil, saveErr
			}
			svc.logger.Error("failed to record chunk failure", "session_id", req.SessionId, "chunk_index", req.ChunkIndex, "error", saveErr)
		}
		svc.logger.Error("chunk write failed", "session_id", req.SessionId, "chunk_index", req.ChunkIndex, "error", err)
		return nil, err
	}

	session.RecordChunkCompleted(req.ChunkIndex)

	if err := svc.sessionStore.Save(ctx, session); err != nil {
		return nil, err
	}

	return &models.ChunkUploadResponse{Progress: session.Progress()}, nil
}

func (svc *UploadServiceImpl) CompleteUpload(ctx context.Context, sessionID string) (*models.ChunkUploadCompleteResponse, error) {
	session, err := svc.sessionStore.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch session.Status {
	case models.StatusCompleted:
		return nil, apperrors.ErrSessionCompleted
	case models.StatusCancelled:
		return nil, apperrors.ErrSessionCancelled
	}

	failedChunks := session.FailedChunks()
	if len(failedChunks) > 0 {
		if err := svc.transitionSession(ctx, sessionID, func(s *models.UploadSession) error {
			s.MarkFailed()
			return nil
		}); err != nil {
			svc.logger.Error("failed to mark session failed", "session_id", sessionID, "error", err)
		}

		svc.logger.Warn("completion blocked by incomplete chunks", "session_id", sessionID, "failed_chunks", len(failedChunks))
		return &models.ChunkUploadCompleteResponse{
			Success:      false,
			Message:      "partial chunk failure",
			FailedChunks: failedChunks,
		}, nil
	}

	file := models.File{
		FileId:        uuid.NewString(),
		SessionId:     session.SessionId,
		OriginName:    session.FileName,
		StoredName:    uuid.NewString(),
		DirectoryName: uuid.NewString(),
		FileType:      session.FileType,
		Size:          session.TotalSize,
		TotalChunks:   session.TotalChunks,
		CreatedAt:     time.Now().UTC(),
	}

	// On merge or persist failure the session keeps its pre-merge status:
	// a chunk missing despite being recorded COMPLETED is a consistency
	// anomaly for operator inspection.
	merged := svc.chunkStore.Merge(sessionID, session.TotalChunks)
	defer merged.Close()

	if err := svc.fileStorage.Persist(ctx, file, merged, session.TotalSize); err != nil {
		svc.logger.Error("merge failed", "session_id", sessionID, "error", err)
		return nil, err
	}

	if err := svc.fileStore.Create(ctx, file); err != nil {
		svc.logger.Error("failed to create file record", "session_id", sessionID, "file_id", file.FileId, "error", err)
		return nil, err
	}

	if err := svc.transitionSession(ctx, sessionID, func(s *models.UploadSession) error {
		s.MarkCompleted()
		return nil
	}); err != nil {
		svc.logger.Error("failed to mark session completed", "session_id", sessionID, "error", err)
		return nil, err
	}

	if err := svc.chunkStore.Cleanup(sessionID); err != nil {
		svc.logger.Warn("staging cleanup after merge failed", "session_id", sessionID, "error", err)
	}

	if err := svc.notifier.PublishCompleted(ctx, models.UploadCompletedEvent{
		SessionId: sessionID,
		FileId:    file.FileId,
	}); err != nil {
		svc.logger.Warn("failed to publish completion event", "session_id", sessionID, "error", err)
	}

	if err := svc.cachingSvc.Delete(ctx, filesCacheKey); err != nil {
		svc.logger.Warn("cached files invalidation failed", "session_id", sessionID, "error", err)
	}

	svc.logger.Info("upload completed", "session_id", sessionID, "file_id", file.FileId)
	return &models.ChunkUploadCompleteResponse{
		Success:      true,
		Message:      "upload completed",
		FailedChunks: []int32{},
		FileId:       file.FileId,
	}, nil
}

func (svc *UploadServiceImpl) CancelUpload(ctx context.Context, sessionID string) (*models.ChunkUploadCancelResponse, error) {
	session, err := svc.sessionStore.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Status == models.StatusCompleted {
		return nil, apperrors.ErrSessionCompleted
	}

	// Cancelling twice is an idempotent no-op.
	if session.Status == models.StatusCancelled {
		return &models.ChunkUploadCancelResponse{Success: true, Message: "session already cancelled"}, nil
	}

	if err := svc.transitionSession(ctx, sessionID, func(s *models.UploadSession) error {
		if s.Status == models.StatusCompleted {
			return apperrors.ErrSessionCompleted
		}
		s.MarkCancelled()
		return nil
	}); err != nil {
		return nil, err
	}

	// Cancellation favors forward progress over perfect tidiness: a
	// cleanup failure is only a warning.
	if err := svc.chunkStore.Cleanup(sessionID); err != nil {
		svc.logger.Warn("staging cleanup on cancel failed", "session_id", sessionID, "error", err)
	}

	svc.logger.Info("upload cancelled", "session_id", sessionID)
	return &models.ChunkUploadCancelResponse{Success: true, Message: "upload cancelled"}, nil
}

func (svc *UploadServiceImpl) GetUploadStatus(ctx context.Context, sessionID string) (*models.UploadStatusResponse, error) {
	session, err := svc.sessionStore.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &models.UploadStatusResponse{
		Status:   session.Status,
		Progress: session.Progress(),
	}, nil
}

// transitionSession re-reads the session and applies mutate under the
// standard conflict-retry budget, so status flips survive racing chunk
// uploads.
func (svc *UploadServiceImpl) transitionSession(ctx context.Context, sessionID string, mutate func(*models.UploadSession) error) error {
	return retries.Retry(
		ctx,
		retries.DefaultAttempts,
		retries.DefaultBaseDelay,
		func() error {
			session, err := svc.sessionStore.Get(ctx, sessionID)
			if err != nil {
				return err
			}
			if err := mutate(session); err != nil {
				return err
			}
			return svc.sessionStore.Save(ctx, session)
		},
		apperrors.IsConcurrencyConflict,
	)
}
