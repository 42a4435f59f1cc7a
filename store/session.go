package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
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

// SessionStore is the durable registry of upload sessions. Save performs a
// version-checked write: a stale Version yields ErrConcurrencyConflict and
// the caller's read-modify-write is expected to run again.
type SessionStore interface {
	Create(ctx context.Context, session *models.UploadSession) error
	Get(ctx context.Context, sessionID string) (*models.UploadSession, error)
	Save(ctx context.Context, session *models.UploadSession) error

	health.ReadinessCheck
}

type SessionStoreImpl struct {
	client    *dynamodb.Client
	tableName string
}

func NewSessionStoreImpl(client *dynamodb.Client, tableName string) *SessionStoreImpl {
	return &SessionStoreImpl{
		client:    client,
		tableName: tableName,
	}
}

func (s *SessionStoreImpl) IsReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	return retries.Retry(
		ctx,
		retries.HealthAttempts,
		retries.HealthBaseDelay,
		func() error {
			_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
				TableName: aws.String(s.tableName),
			})

			return err
		},
		retries.IsRetriableDbError,
	)
}

func (s *SessionStoreImpl) Name() string {
	return "SessionStore[sessions]"
}

// sessionItem is the DynamoDB shape of UploadSession. The chunk-state map
// is stored with string keys because attributevalue requires them.
type sessionItem struct {
	models.UploadSession
	ChunkStates map[string]string `dynamodbav:"chunk_states"`
}

func toSessionItem(session *models.UploadSession) sessionItem {
	item := sessionItem{
		UploadSession: *session,
		ChunkStates:   make(map[string]string, len(session.ChunkStates)),
	}
	for idx, state := range session.ChunkStates {
		item.ChunkStates[strconv.FormatInt(int64(idx), 10)] = string(state)
	}
	return item
}

func fromSessionItem(item sessionItem) (*models.UploadSession, error) {
	session := item.UploadSession
	session.ChunkStates = make(map[int32]models.ChunkState, len(item.ChunkStates))
	for key, state := range item.ChunkStates {
		idx, err := strconv.ParseInt(key, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid chunk index %q in stored session: %w", key, err)
		}
		session.ChunkStates[int32(idx)] = models.ChunkState(state)
	}
	return &session, nil
}

func (s *SessionStoreImpl) Create(ctx context.Context, session *models.UploadSession) error {
	item, err := attributevalue.MarshalMap(toSessionItem(session))
	if err != nil {
		return err
	}

	return retries.Retry(
		ctx,
		retries.DefaultAttempts,
		retries.DefaultBaseDelay,
		func() error {
			_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
				TableName:           aws.String(s.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_not_exists(session_id)"),
			})
			return err
		},
		retries.IsRetriableDbError,
	)
}

func (s *SessionStoreImpl) Get(ctx context.Context, sessionID string) (*models.UploadSession, error) {
	var item sessionItem

	err := retries.Retry(
		ctx,
		retries.DefaultAttempts,
		retries.DefaultBaseDelay,
		func() error {
			out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
				TableName: aws.String(s.tableName),
				Key: map[string]types.AttributeValue{
					"session_id": &types.AttributeValueMemberS{
						Value: sessionID,
					},
				},
			})
			if err != nil {
				return err
			}

			if out.Item == nil {
				return apperrors.ErrSessionNotFound
			}

			return attributevalue.UnmarshalMap(out.Item, &item)
		},
		retries.IsRetriableDbError,
	)

	if err != nil {
		return nil, err
	}

	return fromSessionItem(item)
}

// Save writes the session iff the stored version still matches the version
// the caller read. On success the in-memory session's Version is advanced
// to the newly written one.
func (s *SessionStoreImpl) Save(ctx context.Context, session *models.UploadSession) error {
	expectedVersion := session.Version

	next := session.Clone()
	next.Version = expectedVersion + 1
	next.UpdatedAt = time.Now().UTC()

	item, err := attributevalue.MarshalMap(toSessionItem(next))
	if err != nil {
		return err
	}

	err = retries.Retry(
		ctx,
		retries.DefaultAttempts,
		retries.DefaultBaseDelay,
		func() error {
			_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
				TableName:           aws.String(s.tableName),
				Item:                item,
				ConditionExpression: aws.String("attribute_exists(session_id) AND version = :v"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":v": &types.AttributeValueMemberN{
						Value: strconv.FormatInt(expectedVersion, 10),
					},
				},
			})
			if isConditionalCheckFailed(err) {
				return apperrors.ErrConcurrencyConflict
			}
			return err
		},
		retries.IsRetriableDbError,
	)
	if err != nil {
		return err
	}

	session.Version = next.Version
	session.UpdatedAt = next.UpdatedAt
	return nil
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
