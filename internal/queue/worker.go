package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"card-ledger-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const (
	// A job is attempted up to maxAttempts times, backing off exponentially
	// from baseBackoff between attempts. After that the message stays on
	// the queue for the redrive policy; it is never silently discarded.
	maxAttempts = 3
	baseBackoff = 2 * time.Second

	receiveBatchSize = 10
	receiveWaitTime  = 20 // seconds, long poll
)

// Processor reconciles one canonical transaction record.
type Processor interface {
	ProcessAuthorization(ctx context.Context, rec models.CanonicalTransaction) error
	ProcessClearing(ctx context.Context, rec models.CanonicalTransaction) error
}

// Worker drains the queue and dispatches each record to the reconciliation
// engine by event type.
type Worker struct {
	queue     *Queue
	processor Processor
	logger    *slog.Logger
}

func NewWorker(queue *Queue, processor Processor, logger *slog.Logger) *Worker {
	return &Worker{queue: queue, processor: processor, logger: logger}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.Poll(ctx)
	}
}

// Poll performs one long-poll receive and handles every message in the
// batch.
func (w *Worker) Poll(ctx context.Context) {
	out, err := w.queue.Client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(w.queue.QueueURL),
		MaxNumberOfMessages: receiveBatchSize,
		WaitTimeSeconds:     receiveWaitTime,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("failed to receive messages", "error", err)
			time.Sleep(time.Second)
		}
		return
	}

	for _, msg := range out.Messages {
		w.handle(ctx, msg)
	}
}

func (w *Worker) handle(ctx context.Context, msg types.Message) {
	var rec models.CanonicalTransaction
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &rec); err != nil {
		// Malformed records should have been rejected upstream; fail the
		// job and leave the message for the redrive policy.
		w.logger.Error("failed to decode queued transaction record", "error", err)
		return
	}

	w.logger.Info("processing transaction job",
		"dedupKey", rec.DedupKey(),
		"type", string(rec.Type))

	var err error
	if rec.Type == models.TypeAuthorization {
		err = w.processor.ProcessAuthorization(ctx, rec)
	} else {
		err = w.processor.ProcessClearing(ctx, rec)
	}

	if err == nil {
		_, delErr := w.queue.Client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(w.queue.QueueURL),
			ReceiptHandle: msg.ReceiptHandle,
		})
		if delErr != nil {
			// The job itself succeeded; redelivery is absorbed by the
			// engine's idempotency.
			w.logger.Error("failed to delete completed message", "error", delErr)
		}
		return
	}

	attempt := receiveCount(msg)
	if attempt >= maxAttempts {
		w.logger.Error("transaction job failed permanently, retaining for inspection",
			"dedupKey", rec.DedupKey(),
			"attempts", attempt,
			"error", err)
		return
	}

	delay := baseBackoff << (attempt - 1)
	w.logger.Warn("transaction job failed, scheduling retry",
		"dedupKey", rec.DedupKey(),
		"attempt", attempt,
		"delay", delay.String(),
		"error", err)

	_, visErr := w.queue.Client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(w.queue.QueueURL),
		ReceiptHandle:     msg.ReceiptHandle,
		VisibilityTimeout: int32(delay / time.Second),
	})
	if visErr != nil {
		w.logger.Error("failed to schedule retry", "error", visErr)
	}
}

func receiveCount(msg types.Message) int {
	v := msg.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
