package queue

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"card-ledger-backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSQS struct {
	mock.Mock
}

func (m *mockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*sqs.SendMessageOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*sqs.ReceiveMessageOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*sqs.DeleteMessageOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSQS) ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*sqs.ChangeMessageVisibilityOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

type stubProcessor struct {
	authCalls  []models.CanonicalTransaction
	clearCalls []models.CanonicalTransaction
	err        error
}

func (p *stubProcessor) ProcessAuthorization(ctx context.Context, rec models.CanonicalTransaction) error {
	p.authCalls = append(p.authCalls, rec)
	return p.err
}

func (p *stubProcessor) ProcessClearing(ctx context.Context, rec models.CanonicalTransaction) error {
	p.clearCalls = append(p.clearCalls, rec)
	return p.err
}

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/000000000000/transactions.fifo"

func testRecord(txType models.TransactionType) models.CanonicalTransaction {
	return models.CanonicalTransaction{
		AuthorizationTransactionID: "auth-1",
		TransactionCorrelationID:   "corr-1",
		ProcessorID:                "p1",
		Type:                       txType,
		BillingAmount:              decimal.NewFromInt(100),
		BillingCurrency:            "USD",
		CardID:                     "card-1",
		UserID:                     "user-1",
		IsSuccessful:               true,
	}
}

func message(t *testing.T, rec models.CanonicalTransaction, receiveCount string) types.Message {
	t.Helper()
	body, err := json.Marshal(rec)
	require.NoError(t, err)
	return types.Message{
		Body:          aws.String(string(body)),
		ReceiptHandle: aws.String("rh-1"),
		Attributes: map[string]string{
			string(types.MessageSystemAttributeNameApproximateReceiveCount): receiveCount,
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnqueueSetsDedupAndGroupID(t *testing.T) {
	client := new(mockSQS)
	q := NewQueue(client, testQueueURL)

	client.On("SendMessage", mock.Anything, mock.MatchedBy(func(in *sqs.SendMessageInput) bool {
		return aws.ToString(in.QueueUrl) == testQueueURL &&
			aws.ToString(in.MessageDeduplicationId) == "AUTHORIZATION-p1-corr-1" &&
			aws.ToString(in.MessageGroupId) == "AUTHORIZATION-p1-corr-1"
	})).Return(&sqs.SendMessageOutput{}, nil)

	err := q.Enqueue(context.Background(), testRecord(models.TypeAuthorization))
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestWorkerDispatchesByTypeAndDeletes(t *testing.T) {
	client := new(mockSQS)
	processor := &stubProcessor{}
	w := NewWorker(NewQueue(client, testQueueURL), processor, testLogger())

	client.On("ReceiveMessage", mock.Anything, mock.Anything).Return(&sqs.ReceiveMessageOutput{
		Messages: []types.Message{
			message(t, testRecord(models.TypeAuthorization), "1"),
			message(t, testRecord(models.TypeClearing), "1"),
		},
	}, nil)
	client.On("DeleteMessage", mock.Anything, mock.Anything).Return(&sqs.DeleteMessageOutput{}, nil).Twice()

	w.Poll(context.Background())

	require.Len(t, processor.authCalls, 1)
	require.Len(t, processor.clearCalls, 1)
	assert.Equal(t, "corr-1", processor.authCalls[0].TransactionCorrelationID)
	client.AssertExpectations(t)
}

func TestWorkerRetriesWithExponentialBackoff(t *testing.T) {
	cases := []struct {
		receiveCount string
		wantTimeout  int32
	}{
		{"1", 2},
		{"2", 4},
	}
	for _, tc := range cases {
		client := new(mockSQS)
		processor := &stubProcessor{err: assert.AnError}
		w := NewWorker(NewQueue(client, testQueueURL), processor, testLogger())

		client.On("ReceiveMessage", mock.Anything, mock.Anything).Return(&sqs.ReceiveMessageOutput{
			Messages: []types.Message{message(t, testRecord(models.TypeAuthorization), tc.receiveCount)},
		}, nil)
		client.On("ChangeMessageVisibility", mock.Anything, mock.MatchedBy(func(in *sqs.ChangeMessageVisibilityInput) bool {
			return in.VisibilityTimeout == tc.wantTimeout
		})).Return(&sqs.ChangeMessageVisibilityOutput{}, nil)

		w.Poll(context.Background())

		client.AssertExpectations(t)
		client.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
	}
}

func TestWorkerRetainsAfterMaxAttempts(t *testing.T) {
	client := new(mockSQS)
	processor := &stubProcessor{err: assert.AnError}
	w := NewWorker(NewQueue(client, testQueueURL), processor, testLogger())

	client.On("ReceiveMessage", mock.Anything, mock.Anything).Return(&sqs.ReceiveMessageOutput{
		Messages: []types.Message{message(t, testRecord(models.TypeClearing), "3")},
	}, nil)

	w.Poll(context.Background())

	require.Len(t, processor.clearCalls, 1)
	client.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "ChangeMessageVisibility", mock.Anything, mock.Anything)
}

func TestWorkerLeavesMalformedMessage(t *testing.T) {
	client := new(mockSQS)
	processor := &stubProcessor{}
	w := NewWorker(NewQueue(client, testQueueURL), processor, testLogger())

	client.On("ReceiveMessage", mock.Anything, mock.Anything).Return(&sqs.ReceiveMessageOutput{
		Messages: []types.Message{{
			Body:          aws.String("{not json"),
			ReceiptHandle: aws.String("rh-bad"),
		}},
	}, nil)

	w.Poll(context.Background())

	assert.Empty(t, processor.authCalls)
	assert.Empty(t, processor.clearCalls)
	client.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
}
