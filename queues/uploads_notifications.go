package queues

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Yulian302/lfusys-services-uploads/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// UploadsNotifier publishes completed-upload events so downstream
// consumers (parsers, indexers) can pick up freshly merged files.
// Publishing is best-effort from the coordinator's point of view.
type UploadsNotifier interface {
	PublishCompleted(ctx context.Context, evt models.UploadCompletedEvent) error
}

type SqsUploadsNotifier struct {
	client   *sqs.Client
	queueUrl string
}

func NewSqsUploadsNotifier(client *sqs.Client, queueUrl string) *SqsUploadsNotifier {
	return &SqsUploadsNotifier{
		client:   client,
		queueUrl: queueUrl,
	}
}

func (n *SqsUploadsNotifier) PublishCompleted(ctx context.Context, evt models.UploadCompletedEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal completion event: %w", err)
	}

	_, err = n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueUrl),
		MessageBody: aws.String(string(body)),
	})
	return err
}

// NullUploadsNotifier drops events. Used when no queue is configured.
type NullUploadsNotifier struct{}

func NewNullUploadsNotifier() *NullUploadsNotifier { return &NullUploadsNotifier{} }

func (n *NullUploadsNotifier) PublishCompleted(ctx context.Context, evt models.UploadCompletedEvent) error {
	return nil
}
