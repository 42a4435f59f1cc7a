package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Yulian302/lfusys-services-uploads/apperrors"
	"github.com/Yulian302/lfusys-services-uploads/models"
)

// MemorySessionStore keeps sessions in process memory with the same
// version-checked Save semantics as the DynamoDB store. Used for local
// runs and tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.UploadSession
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*models.UploadSession),
	}
}

func (s *MemorySessionStore) IsReady(ctx context.Context) error { return nil }

func (s *MemorySessionStore) Name() string { return "SessionStore[memory]" }

func (s *MemorySessionStore) Create(ctx context.Context, session *models.UploadSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.SessionId]; exists {
		return fmt.Errorf("session %s already exists", session.SessionId)
	}

	s.sessions[session.SessionId] = session.Clone()
	return nil
}

func (s *MemorySessionStore) Get(ctx context.Context, sessionID string) (*models.UploadSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}

	return session.Clone(), nil
}

func (s *MemorySessionStore) Save(ctx context.Context, session *models.UploadSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[session.SessionId]
	if !ok {
		return apperrors.ErrSessionNotFound
	}

	if current.Version != session.Version {
		return apperrors.ErrConcurrencyConflict
	}

	session.Version++
	session.UpdatedAt = time.Now().UTC()
	s.sessions[session.SessionId] = session.Clone()
	return nil
}

// MemoryFileStore is the in-process counterpart of the DynamoDB file store.
type MemoryFileStore struct {
	mu    sync.Mutex
	files map[string]models.File
	order []string
}

func NewMemoryFileStore() *MemoryFileStore {
	return &MemoryFileStore{
		files: make(map[string]models.File),
	}
}

func (s *MemoryFileStore) IsReady(ctx context.Context) error { return nil }

func (s *MemoryFileStore) Name() string { return "FileStore[memory]" }

func (s *MemoryFileStore) Create(ctx context.Context, file models.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[file.FileId]; !exists {
		s.order = append(s.order, file.FileId)
	}
	s.files[file.FileId] = file
	return nil
}

func (s *MemoryFileStore) Get(ctx context.Context, fileID string) (*models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, ok := s.files[fileID]
	if !ok {
		return nil, apperrors.ErrFileNotFound
	}
	return &file, nil
}

func (s *MemoryFileStore) List(ctx context.Context) ([]models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files := make([]models.File, 0, len(s.order))
	for _, id := range s.order {
		files = append(files, s.files[id])
	}
	return files, nil
}
