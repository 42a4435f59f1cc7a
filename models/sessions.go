package models

import "time"

type UploadStatus string

const (
	StatusPending    UploadStatus = "PENDING"
	StatusInProgress UploadStatus = "IN_PROGRESS"
	StatusCompleted  UploadStatus = "COMPLETED"
	StatusFailed     UploadStatus = "FAILED"
	StatusCancelled  UploadStatus = "CANCELLED"
)

// IsTerminal reports whether no further chunk writes are accepted.
func (s UploadStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type ChunkState string

const (
	ChunkCompleted ChunkState = "COMPLETED"
	ChunkFailed    ChunkState = "FAILED"
)

// UploadSession is one client's attempt to upload one file via chunks.
// Version is the optimistic-concurrency token: the session store rejects a
// Save whose Version does not match the stored row.
type UploadSession struct {
	SessionId       string               `dynamodbav:"session_id"`
	FileName        string               `dynamodbav:"file_name"`
	FileType        FileType             `dynamodbav:"file_type"`
	TotalSize       int64                `dynamodbav:"total_size"`
	TotalChunks     int32                `dynamodbav:"total_chunks"`
	CompletedChunks int32                `dynamodbav:"completed_chunks"`
	ChunkStates     map[int32]ChunkState `dynamodbav:"-"`
	Status          UploadStatus         `dynamodbav:"status"`
	Version         int64                `dynamodbav:"version"`
	CreatedAt       time.Time            `dynamodbav:"created_at"`
	UpdatedAt       time.Time            `dynamodbav:"updated_at"`
}

func NewUploadSession(sessionId, fileName string, fileType FileType, totalSize int64, totalChunks int32) *UploadSession {
	now := time.Now().UTC()
	return &UploadSession{
		SessionId:   sessionId,
		FileName:    fileName,
		FileType:    fileType,
		TotalSize:   totalSize,
		TotalChunks: totalChunks,
		ChunkStates: make(map[int32]ChunkState),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *UploadSession) IsChunkCompleted(index int32) bool {
	return s.ChunkStates[index] == ChunkCompleted
}

// RecordChunkCompleted marks index COMPLETED. The counter moves only on
// the first completion of an index, so repeat submissions stay no-ops.
// A PENDING session flips to IN_PROGRESS on its first completed chunk.
func (s *UploadSession) RecordChunkCompleted(index int32) bool {
	if s.ChunkStates[index] == ChunkCompleted {
		return false
	}

	if s.ChunkStates == nil {
		s.ChunkStates = make(map[int32]ChunkState)
	}
	s.ChunkStates[index] = ChunkCompleted
	s.CompletedChunks++

	if s.Status == StatusPending {
		s.Status = StatusInProgress
	}
	return true
}

// RecordChunkFailed marks index FAILED without touching the counter or the
// session status. A previously COMPLETED index is left untouched.
func (s *UploadSession) RecordChunkFailed(index int32) {
	if s.ChunkStates[index] == ChunkCompleted {
		return
	}
	if s.ChunkStates == nil {
		s.ChunkStates = make(map[int32]ChunkState)
	}
	s.ChunkStates[index] = ChunkFailed
}

// FailedChunks returns every index in [0, TotalChunks) without a COMPLETED
// entry, in ascending order. A chunk that was never attempted blocks
// completion the same way an explicitly FAILED one does.
func (s *UploadSession) FailedChunks() []int32 {
	var failed []int32
	for i := int32(0); i < s.TotalChunks; i++ {
		if s.ChunkStates[i] != ChunkCompleted {
			failed = append(failed, i)
		}
	}
	return failed
}

func (s *UploadSession) MarkCompleted() { s.Status = StatusCompleted }
func (s *UploadSession) MarkFailed()    { s.Status = StatusFailed }
func (s *UploadSession) MarkCancelled() { s.Status = StatusCancelled }

// Progress is floor(completedChunks / totalChunks * 100).
func (s *UploadSession) Progress() int {
	if s.TotalChunks == 0 {
		return 0
	}
	return int(float64(s.CompletedChunks) / float64(s.TotalChunks) * 100)
}

// Clone returns a deep copy. The in-memory store hands out clones so
// callers mutate their own snapshot until Save.
func (s *UploadSession) Clone() *UploadSession {
	cp := *s
	cp.ChunkStates = make(map[int32]ChunkState, len(s.ChunkStates))
	for k, v := range s.ChunkStates {
		cp.ChunkStates[k] = v
	}
	return &cp
}
