package query

import (
	"context"
	"fmt"
	"time"

	"card-ledger-backend/internal/models"
	"card-ledger-backend/internal/storage"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Params narrow and page a transaction listing.
type Params struct {
	CardID      string
	ProcessorID string
	Status      models.TransactionStatus
	Page        int
	Limit       int
}

// TransactionView is the external read model of a ledger row. BillingAmount
// resolves to the clearing amount once the transaction has cleared.
type TransactionView struct {
	ID                         string                   `json:"id"`
	ProcessorID                string                   `json:"processorId"`
	ProcessorName              string                   `json:"processorName"`
	TransactionCorrelationID   string                   `json:"transactionCorrelationId"`
	AuthorizationTransactionID string                   `json:"authorizationTransactionId"`
	ClearingTransactionID      *string                  `json:"clearingTransactionId,omitempty"`
	Status                     models.TransactionStatus `json:"status"`
	Type                       models.TransactionType   `json:"type"`
	BillingAmount              decimal.Decimal          `json:"billingAmount"`
	BillingCurrency            string                   `json:"billingCurrency"`
	CardID                     string                   `json:"cardId"`
	UserID                     string                   `json:"userId"`
	MCC                        string                   `json:"mcc"`
	ReferenceNumber            string                   `json:"referenceNumber"`
	Metadata                   datatypes.JSON           `json:"metadata"`
	CreatedAt                  string                   `json:"createdAt"`
	UpdatedAt                  string                   `json:"updatedAt"`
}

type Result struct {
	Transactions []TransactionView `json:"transactions"`
	Total        int64             `json:"total"`
	Page         int               `json:"page"`
	Limit        int               `json:"limit"`
}

// Service answers the read-side questions; it never writes.
type Service struct {
	store storage.Store
}

func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

func (s *Service) ListTransactions(ctx context.Context, params Params) (*Result, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = defaultLimit
	}
	if params.Limit > maxLimit {
		params.Limit = maxLimit
	}

	txs, total, err := s.store.ListTransactions(ctx, storage.TransactionFilter{
		CardID:      params.CardID,
		ProcessorID: params.ProcessorID,
		Status:      params.Status,
		Page:        params.Page,
		Limit:       params.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	views := make([]TransactionView, 0, len(txs))
	for i := range txs {
		views = append(views, toView(&txs[i]))
	}

	return &Result{
		Transactions: views,
		Total:        total,
		Page:         params.Page,
		Limit:        params.Limit,
	}, nil
}

func (s *Service) GetCard(ctx context.Context, cardID string) (*models.Card, error) {
	return s.store.GetCard(ctx, cardID)
}

func toView(t *models.Transaction) TransactionView {
	return TransactionView{
		ID:                         t.ID.String(),
		ProcessorID:                t.ProcessorID,
		ProcessorName:              t.ProcessorName,
		TransactionCorrelationID:   t.TransactionCorrelationID,
		AuthorizationTransactionID: t.AuthorizationTransactionID,
		ClearingTransactionID:      t.ClearingTransactionID,
		Status:                     t.Status,
		Type:                       t.Type,
		BillingAmount:              billingAmount(t),
		BillingCurrency:            t.Currency,
		CardID:                     t.CardID,
		UserID:                     t.UserID,
		MCC:                        t.MCC,
		ReferenceNumber:            t.ReferenceNumber,
		Metadata:                   t.Metadata,
		CreatedAt:                  t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:                  t.UpdatedAt.Format(time.RFC3339),
	}
}

// billingAmount falls back to the auth amount when the clearing amount is
// not set.
func billingAmount(t *models.Transaction) decimal.Decimal {
	if t.Type == models.TypeAuthorization {
		return t.AuthAmount
	}
	if t.ClearingAmount != nil {
		return *t.ClearingAmount
	}
	return t.AuthAmount
}
