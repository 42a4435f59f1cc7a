package services

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Yulian302/lfusys-services-uploads/apperrors"
	"github.com/Yulian302/lfusys-services-uploads/caching"
	"github.com/Yulian302/lfusys-services-uploads/logging"
	"github.com/Yulian302/lfusys-services-uploads/models"
	"github.com/Yulian302/lfusys-services-uploads/queues"
	"github.com/Yulian302/lfusys-services-uploads/store"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type testEnv struct {
	svc         *UploadServiceImpl
	sessions    *store.MemorySessionStore
	files       *store.MemoryFileStore
	chunkRoot   string
	storageRoot string
}

func newTestEnv(t *testing.T) *testEnv {
	logger := logging.NewNullLogger()

	env := &testEnv{
		sessions:    store.NewMemorySessionStore(),
		files:       store.NewMemoryFileStore(),
		chunkRoot:   t.TempDir(),
		storageRoot: t.TempDir(),
	}

	env.svc = NewUploadServiceImpl(
		env.sessions,
		store.NewDiskChunkStore(env.chunkRoot, logger),
		store.NewLocalFileStorage(env.storageRoot, logger),
		env.files,
		queues.NewNullUploadsNotifier(),
		caching.NewNullCachingService(),
		logger,
	)
	return env
}

// withChunkStore swaps the coordinator's chunk store, keeping everything
// else. Used to inject write failures.
func (env *testEnv) withChunkStore(cs store.ChunkStore) {
	env.svc.chunkStore = cs
}

func (env *testEnv) start(t *testing.T, fileName string, totalSize int64, totalChunks int32) string {
	resp, err := env.svc.StartUpload(context.Background(), models.ChunkUploadStartRequest{
		FileName:    fileName,
		TotalSize:   totalSize,
		TotalChunks: totalChunks,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.SessionId)
	return resp.SessionId
}

func (env *testEnv) upload(sessionID string, index int32, data string) (*models.ChunkUploadResponse, error) {
	return env.svc.UploadChunk(context.Background(), models.ChunkUploadRequest{
		SessionId:  sessionID,
		ChunkIndex: index,
		ChunkData:  []byte(data),
		ChunkSize:  int64(len(data)),
	})
}

func TestStartUpload_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.StartUpload(ctx, models.ChunkUploadStartRequest{FileName: "a.zip", TotalSize: 10, TotalChunks: 1})
	require.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)

	_, err = env.svc.StartUpload(ctx, models.ChunkUploadStartRequest{FileName: "a.csv", TotalSize: 0, TotalChunks: 1})
	require.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = env.svc.StartUpload(ctx, models.ChunkUploadStartRequest{FileName: "a.csv", TotalSize: 10, TotalChunks: 0})
	require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestUploadChunk_SessionNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.upload("no-such-session", 0, "data")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestUploadChunk_InvalidIndex(t *testing.T) {
	env := newTestEnv(t)
	id := env.start(t, "data.csv", 30, 3)

	_, err := env.upload(id, 3, "data")
	require.ErrorIs(t, err, apperrors.ErrInvalidChunkIndex)

	_, err = env.upload(id, -1, "data")
	require.ErrorIs(t, err, apperrors.ErrInvalidChunkIndex)

	// range validation wins over status checks
	_, err = env.svc.CancelUpload(context.Background(), id)
	require.NoError(t, err)

	_, err = env.upload(id, 3, "data")
	require.ErrorIs(t, err, apperrors.ErrInvalidChunkIndex)
}

func TestUploadChunk_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	id := env.start(t, "data.csv", 30, 3)

	first, err := env.upload(id, 0, "chunk-data-0")
	require.NoError(t, err)

	second, err := env.upload(id, 0, "chunk-data-0")
	require.NoError(t, err)
	require.Equal(t, first.Progress, second.Progress)

	session, err := env.sessions.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, int32(1), session.CompletedChunks)
}

func TestUploadChunk_ProgressMonotonic(t *testing.T) {
	env := newTestEnv(t)
	id := env.start(t, "data.csv", 30, 3)

	want := []int{33, 66, 100}
	for i := int32(0); i < 3; i++ {
		resp, err := env.upload(id, i, "x")
		require.NoError(t, err)
		require.Equal(t, want[i], resp.Progress)
	}
}

func TestCompleteUpload_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.start(t, "data.csv", 300, 3)

	// arrival order is irrelevant; merge is by index
	for _, i := range []int32{2, 0, 1} {
		_, err := env.upload(id, i, "chunk-data-"+string(rune('0'+i)))
		require.NoError(t, err)
	}

	resp, err := env.svc.CompleteUpload(ctx, id)
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.FileId)
	require.Empty(t, resp.FailedChunks)

	file, err := env.files.Get(ctx, resp.FileId)
	require.NoError(t, err)
	require.Equal(t, "data.csv", file.OriginName)

	merged, err := os.ReadFile(filepath.Join(env.storageRoot, filepath.FromSlash(file.StorageKey())))
	require.NoError(t, err)
	require.Equal(t, "chunk-data-0chunk-data-1chunk-data-2", string(merged))

	session, err := env.sessions.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, session.Status)

	// staging area is gone
	_, statErr := os.Stat(filepath.Join(env.chunkRoot, id))
	require.True(t, errors.Is(statErr, os.ErrNotExist))

	// the session is terminal now
	_, err = env.upload(id, 0, "late")
	require.ErrorIs(t, err, apperrors.ErrSessionCompleted)

	_, err = env.svc.CompleteUpload(ctx, id)
	require.ErrorIs(t, err, apperrors.ErrSessionCompleted)

	_, err = env.svc.CancelUpload(ctx, id)
	require.ErrorIs(t, err, apperrors.ErrSessionCompleted)
}

func TestCompleteUpload_GateOnFailedChunk(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.start(t, "data.csv", 30, 3)

	env.withChunkStore(&flakyChunkStore{
		ChunkStore: store.NewDiskChunkStore(env.chunkRoot, logging.NewNullLogger()),
		failIndex:  1,
	})

	_, err := env.upload(id, 0, "AAA")
	require.NoError(t, err)

	_, err = env.upload(id, 1, "BBB")
	var storageErr *apperrors.StorageError
	require.ErrorAs(t, err, &storageErr)

	_, err = env.upload(id, 2, "CCC")
	require.NoError(t, err)

	resp, err := env.svc.CompleteUpload(ctx, id)
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.Equal(t, "partial chunk failure", resp.Message)
	require.Equal(t, []int32{1}, resp.FailedChunks)
	require.Empty(t, resp.FileId)

	// merge never ran, nothing was persisted
	files, err := env.files.List(ctx)
	require.NoError(t, err)
	require.Empty(t, files)

	session, err := env.sessions.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, session.Status)
}

func TestCompleteUpload_NeverUploadedChunkBlocks(t *testing.T) {
	env := newTestEnv(t)
	id := env.start(t, "data.csv", 30, 3)

	_, err := env.upload(id, 0, "AAA")
	require.NoError(t, err)

	resp, err := env.svc.CompleteUpload(context.Background(), id)
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.Equal(t, []int32{1, 2}, resp.FailedChunks)
}

func TestCompleteUpload_MergeFailureLeavesSessionNonTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.start(t, "data.csv", 30, 3)

	for i := int32(0); i < 3; i++ {
		_, err := env.upload(id, i, "x")
		require.NoError(t, err)
	}

	// simulate a storage consistency anomaly: a chunk recorded COMPLETED
	// vanishes from the staging area before merge
	require.NoError(t, os.Remove(filepath.Join(env.chunkRoot, id, "chunk_1")))

	_, err := env.svc.CompleteUpload(ctx, id)
	require.Error(t, err)

	var mergeErr *apperrors.MergeError
	require.ErrorAs(t, err, &mergeErr)
	require.Equal(t, int32(1), mergeErr.MissingChunk)

	// session keeps its pre-merge status for operator inspection
	session, err := env.sessions.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.StatusInProgress, session.Status)
}

func TestCancelUpload_Semantics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.start(t, "data.csv", 30, 3)

	_, err := env.upload(id, 0, "AAA")
	require.NoError(t, err)

	resp, err := env.svc.CancelUpload(ctx, id)
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "upload cancelled", resp.Message)

	// staged bytes are gone
	_, statErr := os.Stat(filepath.Join(env.chunkRoot, id))
	require.True(t, errors.Is(statErr, os.ErrNotExist))

	// further uploads are rejected
	_, err = env.upload(id, 1, "BBB")
	require.ErrorIs(t, err, apperrors.ErrSessionCancelled)

	// cancelling again is an idempotent success
	resp, err = env.svc.CancelUpload(ctx, id)
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "session already cancelled", resp.Message)
}

func TestUploadChunk_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const totalChunks = 4
	id := env.start(t, "data.bin", 40, totalChunks)

	var g errgroup.Group
	for i := int32(0); i < totalChunks; i++ {
		g.Go(func() error {
			_, err := env.upload(id, i, "chunk")
			return err
		})
	}
	require.NoError(t, g.Wait())

	session, err := env.sessions.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, int32(totalChunks), session.CompletedChunks)
	require.Equal(t, 100, session.Progress())

	resp, err := env.svc.CompleteUpload(ctx, id)
	require.NoError(t, err)
	require.True(t, resp.Success)
}

func TestGetUploadStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.start(t, "data.csv", 30, 2)

	status, err := env.svc.GetUploadStatus(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, status.Status)
	require.Equal(t, 0, status.Progress)

	_, err = env.upload(id, 0, "AAA")
	require.NoError(t, err)

	status, err = env.svc.GetUploadStatus(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.StatusInProgress, status.Status)
	require.Equal(t, 50, status.Progress)

	_, err = env.svc.GetUploadStatus(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

// flakyChunkStore fails writes for one index and delegates the rest.
type flakyChunkStore struct {
	store.ChunkStore
	failIndex int32
}

func (s *flakyChunkStore) StoreChunk(sessionID string, index int32, data []byte) error {
	if index == s.failIndex {
		return &apperrors.StorageError{Op: "write chunk", Err: io.ErrShortWrite}
	}
	return s.ChunkStore.StoreChunk(sessionID, index, data)
}
