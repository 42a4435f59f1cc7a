package models

// Request/response shapes of the chunk-upload HTTP API.

type ChunkUploadStartRequest struct {
	FileName    string `json:"fileName" binding:"required"`
	TotalSize   int64  `json:"totalSize" binding:"required"`
	TotalChunks int32  `json:"totalChunks" binding:"required"`
}

type ChunkUploadStartResponse struct {
	SessionId string `json:"sessionId"`
}

type ChunkUploadRequest struct {
	SessionId  string `json:"sessionId" binding:"required"`
	ChunkIndex int32  `json:"chunkIndex"`
	ChunkData  []byte `json:"chunkData" binding:"required"`
	ChunkSize  int64  `json:"chunkSize"`
}

type ChunkUploadResponse struct {
	Progress int `json:"progress"`
}

type ChunkUploadCompleteResponse struct {
	Success      bool    `json:"success"`
	Message      string  `json:"message"`
	FailedChunks []int32 `json:"failedChunks"`
	FileId       string  `json:"fileId,omitempty"`
}

type ChunkUploadCancelResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type UploadStatusResponse struct {
	Status   UploadStatus `json:"status"`
	Progress int          `json:"progress"`
}
