package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Yulian302/lfusys-services-uploads/logging"
	"github.com/Yulian302/lfusys-services-uploads/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// FileStorage is the permanent home of merged file content.
type FileStorage interface {
	// Persist writes the merged content under the file's storage key.
	// The content reader may fail mid-stream (merge errors surface through
	// it); Persist must propagate that failure, not truncate silently.
	Persist(ctx context.Context, file models.File, content io.Reader, size int64) error

	GenerateDownloadUrl(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type S3FileStorageImpl struct {
	client     *s3.Client
	bucketName string

	logger logging.Logger
}

func NewS3FileStorageImpl(client *s3.Client, bucketName string, l logging.Logger) *S3FileStorageImpl {
	return &S3FileStorageImpl{
		client:     client,
		bucketName: bucketName,
		logger:     l,
	}
}

func (s *S3FileStorageImpl) Persist(ctx context.Context, file models.File, content io.Reader, size int64) error {
	key := file.StorageKey()

	exists, err := s.fileExists(ctx, key)
	if err != nil {
		s.logger.Error("failed to check if final file exists", "file_id", file.FileId, "key", key, "error", err)
		return fmt.Errorf("failed to check file existence: %w", err)
	}
	if exists {
		s.logger.Info("persisted file already exists, skipping", "file_id", file.FileId, "key", key)
		return nil
	}

	s.logger.Info("persisting merged file", "file_id", file.FileId, "key", key, "size", size)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          content,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		s.logger.Error("failed to put merged object", "key", key, "error", err)
		return fmt.Errorf("failed to put merged object: %w", err)
	}

	s.logger.Info("successfully persisted merged file", "file_id", file.FileId, "key", key)
	return nil
}

func (s *S3FileStorageImpl) GenerateDownloadUrl(ctx context.Context, key string, ttl time.Duration) (string, error) {
	presigner := s3.NewPresignClient(s.client)

	presigned, err := presigner.PresignGetObject(
		ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(s.bucketName),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(ttl),
	)
	if err != nil {
		return "", err
	}

	return presigned.URL, nil
}

func (s *S3FileStorageImpl) fileExists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})

	if err == nil {
		return true, nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
		return false, nil
	}

	return false, err
}

// DeletePrefix removes every object under prefix. Used by operational
// tooling to reclaim abandoned staging areas in the bucket.
func (s *S3FileStorageImpl) DeletePrefix(ctx context.Context, prefix string) error {
	if prefix == "" {
		return fmt.Errorf("prefix cannot be empty")
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName),
		Prefix: aws.String(prefix),
	})

	totalDeleted := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list objects for deletion: %w", err)
		}

		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}

		_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucketName),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects: %w", err)
		}

		totalDeleted += len(objects)
	}

	s.logger.Info("deleted prefix", "prefix", prefix, "total_deleted", totalDeleted)
	return nil
}
