package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"card-ledger-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSAPI is the subset of the SQS client the queue touches, small enough to
// mock in tests.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// Enqueuer submits canonical transaction records for asynchronous
// reconciliation.
type Enqueuer interface {
	Enqueue(ctx context.Context, rec models.CanonicalTransaction) error
}

// Queue is a durable work queue on an SQS FIFO queue. The record's dedup
// key doubles as the message deduplication id and group id, so the queue
// collapses concurrent duplicate submissions for one key and serializes
// delivery per key.
type Queue struct {
	Client   SQSAPI
	QueueURL string
}

func NewQueue(client SQSAPI, queueURL string) *Queue {
	return &Queue{Client: client, QueueURL: queueURL}
}

// Make sure we conform to the interface
var _ Enqueuer = (*Queue)(nil)

func (q *Queue) Enqueue(ctx context.Context, rec models.CanonicalTransaction) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction record for queue: %w", err)
	}

	dedupKey := rec.DedupKey()
	_, err = q.Client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               aws.String(q.QueueURL),
		MessageBody:            aws.String(string(body)),
		MessageDeduplicationId: aws.String(dedupKey),
		MessageGroupId:         aws.String(dedupKey),
	})
	if err != nil {
		return fmt.Errorf("failed to send message to queue: %w", err)
	}
	return nil
}
