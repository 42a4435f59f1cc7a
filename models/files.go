package models

import "time"

// File is the permanent record of a merged upload.
type File struct {
	FileId        string    `dynamodbav:"file_id"`        // Unique file identifier
	SessionId     string    `dynamodbav:"session_id"`     // Upload session that produced it
	OriginName    string    `dynamodbav:"origin_name"`    // Client-supplied file name
	StoredName    string    `dynamodbav:"stored_name"`    // Name in permanent storage
	DirectoryName string    `dynamodbav:"directory_name"` // Storage subdirectory
	FileType      FileType  `dynamodbav:"file_type"`
	Size          int64     `dynamodbav:"file_size"`
	TotalChunks   int32     `dynamodbav:"total_chunks"`
	CreatedAt     time.Time `dynamodbav:"created_at"`
}

// StorageKey is the object key (or relative path) of the stored content.
func (f File) StorageKey() string {
	return "files/" + f.FileType.Extension() + "/" + f.DirectoryName + "/" + f.StoredName + "." + f.FileType.Extension()
}

type FilesResponse struct {
	Files []File `json:"files"`
}

type UploadCompletedEvent struct {
	SessionId string `json:"sessionId"`
	FileId    string `json:"fileId"`
}
