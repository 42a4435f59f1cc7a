package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Yulian302/lfusys-services-uploads/apperrors"
	"github.com/Yulian302/lfusys-services-uploads/logging"
	"github.com/stretchr/testify/require"
)

func newChunkStore(t *testing.T) *DiskChunkStore {
	return NewDiskChunkStore(t.TempDir(), logging.NewNullLogger())
}

func TestDiskChunkStore_MergeInIndexOrder(t *testing.T) {
	s := newChunkStore(t)

	// upload out of order; merge must still be ordered
	require.NoError(t, s.StoreChunk("sess", 2, []byte("CCC")))
	require.NoError(t, s.StoreChunk("sess", 0, []byte("AAA")))
	require.NoError(t, s.StoreChunk("sess", 1, []byte("BBB")))

	merged := s.Merge("sess", 3)
	defer merged.Close()

	data, err := io.ReadAll(merged)
	require.NoError(t, err)
	require.Equal(t, "AAABBBCCC", string(data))
}

func TestDiskChunkStore_StoreChunkOverwrites(t *testing.T) {
	s := newChunkStore(t)

	require.NoError(t, s.StoreChunk("sess", 0, []byte("old")))
	require.NoError(t, s.StoreChunk("sess", 0, []byte("new")))

	merged := s.Merge("sess", 1)
	defer merged.Close()

	data, err := io.ReadAll(merged)
	require.NoError(t, err)
	require.Equal(t, "new", string(data))
}

func TestDiskChunkStore_MergeMissingChunk(t *testing.T) {
	s := newChunkStore(t)

	require.NoError(t, s.StoreChunk("sess", 0, []byte("AAA")))
	require.NoError(t, s.StoreChunk("sess", 2, []byte("CCC")))

	merged := s.Merge("sess", 3)
	defer merged.Close()

	_, err := io.ReadAll(merged)
	require.Error(t, err)

	var mergeErr *apperrors.MergeError
	require.True(t, errors.As(err, &mergeErr))
	require.Equal(t, int32(1), mergeErr.MissingChunk)
}

func TestDiskChunkStore_Cleanup(t *testing.T) {
	root := t.TempDir()
	s := NewDiskChunkStore(root, logging.NewNullLogger())

	require.NoError(t, s.StoreChunk("sess", 0, []byte("AAA")))
	require.NoError(t, s.StoreChunk("sess", 1, []byte("BBB")))

	require.NoError(t, s.Cleanup("sess"))

	_, err := os.Stat(filepath.Join(root, "sess"))
	require.True(t, errors.Is(err, os.ErrNotExist))

	// cleaning an already-clean session is a no-op
	require.NoError(t, s.Cleanup("sess"))
}
