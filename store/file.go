package store

import (
	"context"
	"time"

	"github.com/Yulian302/lfusys-services-uploads/apperrors"
	"github.com/Yulian302/lfusys-services-uploads/health"
	"github.com/Yulian302/lfusys-services-uploads/models"
	"github.com/Yulian302/lfusys-services-uploads/retries"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// FileStore holds permanent records of merged uploads.
type FileStore interface {
	Get(ctx context.Context, fileID string) (*models.File, error)
	Create(ctx context.Context, file models.File) error
	List(ctx context.Context) ([]models.File, error)

	health.ReadinessCheck
}

type DynamoDbFileStoreImpl struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoDbFileStoreImpl(client *dynamodb.Client, tableName string) *DynamoDbFileStoreImpl {
	return &DynamoDbFileStoreImpl{
		client:    client,
		tableName: tableName,
	}
}

func (s *DynamoDbFileStoreImpl) IsReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})

	return err
}

func (s *DynamoDbFileStoreImpl) Name() string {
	return "FileStore[files]"
}

func (s *DynamoDbFileStoreImpl) Get(ctx context.Context, fileID string) (*models.File, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"file_id": &types.AttributeValueMemberS{Value: fileID},
		},
	})
	if err != nil {
		return nil, err
	}

	if out.Item == nil {
		return nil, apperrors.ErrFileNotFound
	}

	var file models.File
	if err = attributevalue.UnmarshalMap(out.Item, &file); err != nil {
		return nil, err
	}

	return &file, nil
}

func (s *DynamoDbFileStoreImpl) Create(ctx context.Context, file models.File) error {
	fileItem, err := attributevalue.MarshalMap(file)
	if err != nil {
		return err
	}

	return retries.Retry(
		ctx,
		retries.DefaultAttempts,
		retries.DefaultBaseDelay,
		func() error {
			_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
				TableName: aws.String(s.tableName),
				Item:      fileItem,
			})
			return err
		},
		retries.IsRetriableDbError,
	)
}

func (s *DynamoDbFileStoreImpl) List(ctx context.Context) ([]models.File, error) {
	var files []models.File

	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}

		var pageFiles []models.File
		if err = attributevalue.UnmarshalListOfMaps(page.Items, &pageFiles); err != nil {
			return nil, err
		}
		files = append(files, pageFiles...)
	}

	return files, nil
}
