package store

import (
	"context"
	"testing"

	"github.com/Yulian302/lfusys-services-uploads/apperrors"
	"github.com/Yulian302/lfusys-services-uploads/models"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()

	session := models.NewUploadSession("sess-1", "data.csv", models.FileTypeCSV, 300, 3)
	require.NoError(t, s.Create(ctx, session))

	require.Error(t, s.Create(ctx, session))

	got, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "data.csv", got.FileName)

	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestMemorySessionStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()

	session := models.NewUploadSession("sess-1", "data.csv", models.FileTypeCSV, 300, 3)
	require.NoError(t, s.Create(ctx, session))

	got, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	got.RecordChunkCompleted(0)

	again, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, int32(0), again.CompletedChunks)
}

func TestMemorySessionStore_SaveVersionConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()

	session := models.NewUploadSession("sess-1", "data.csv", models.FileTypeCSV, 300, 3)
	require.NoError(t, s.Create(ctx, session))

	// two readers take the same snapshot
	a, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	b, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)

	a.RecordChunkCompleted(0)
	require.NoError(t, s.Save(ctx, a))

	// the second writer's version is stale now
	b.RecordChunkCompleted(1)
	require.ErrorIs(t, s.Save(ctx, b), apperrors.ErrConcurrencyConflict)

	// re-reading picks up the new version and succeeds
	b, err = s.Get(ctx, "sess-1")
	require.NoError(t, err)
	b.RecordChunkCompleted(1)
	require.NoError(t, s.Save(ctx, b))

	final, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, int32(2), final.CompletedChunks)
}

func TestMemoryFileStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryFileStore()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrFileNotFound)

	require.NoError(t, s.Create(ctx, models.File{FileId: "f1", OriginName: "a.csv"}))
	require.NoError(t, s.Create(ctx, models.File{FileId: "f2", OriginName: "b.json"}))

	got, err := s.Get(ctx, "f1")
	require.NoError(t, err)
	require.Equal(t, "a.csv", got.OriginName)

	files, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, "f1", files[0].FileId)
}
