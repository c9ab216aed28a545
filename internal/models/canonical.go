package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CanonicalTransaction is the well-typed record the processor-adapter layer
// produces from a raw webhook payload. It is the only input the
// reconciliation engine accepts.
type CanonicalTransaction struct {
	AuthorizationTransactionID string                 `json:"authorizationTransactionId" binding:"required"`
	ClearingTransactionID      *string                `json:"clearingTransactionId,omitempty"`
	TransactionCorrelationID   string                 `json:"transactionCorrelationId" binding:"required"`
	ProcessorID                string                 `json:"processorId" binding:"required"`
	ProcessorName              string                 `json:"processorName"`
	Type                       TransactionType        `json:"type" binding:"required"`
	Status                     TransactionStatus      `json:"status"`
	BillingAmount              decimal.Decimal        `json:"billingAmount"`
	BillingCurrency            string                 `json:"billingCurrency"`
	CardID                     string                 `json:"cardId" binding:"required"`
	UserID                     string                 `json:"userId"`
	MCC                        string                 `json:"mcc"`
	ReferenceNumber            string                 `json:"referenceNumber"`
	Metadata                   map[string]interface{} `json:"metadata"`
	IsSuccessful               bool                   `json:"isSuccessful"`
}

// DedupKey is the work-queue deduplication key: one in-flight job per
// event type per logical transaction.
func (c CanonicalTransaction) DedupKey() string {
	return fmt.Sprintf("%s-%s-%s", c.Type, c.ProcessorID, c.TransactionCorrelationID)
}

// MetadataJSON serializes the opaque metadata bag for a jsonb column.
func (c CanonicalTransaction) MetadataJSON() datatypes.JSON {
	if c.Metadata == nil {
		return datatypes.JSON([]byte(`{}`))
	}
	raw, err := json.Marshal(c.Metadata)
	if err != nil {
		return datatypes.JSON([]byte(`{}`))
	}
	return datatypes.JSON(raw)
}

// NewTransaction builds the ledger row created by a first authorization.
func NewTransaction(rec CanonicalTransaction) *Transaction {
	return &Transaction{
		ProcessorID:                rec.ProcessorID,
		ProcessorName:              rec.ProcessorName,
		TransactionCorrelationID:   rec.TransactionCorrelationID,
		AuthorizationTransactionID: rec.AuthorizationTransactionID,
		Status:                     StatusPending,
		Type:                       TypeAuthorization,
		AuthAmount:                 rec.BillingAmount,
		Currency:                   rec.BillingCurrency,
		MCC:                        rec.MCC,
		CardID:                     rec.CardID,
		UserID:                     rec.UserID,
		ReferenceNumber:            rec.ReferenceNumber,
		Metadata:                   rec.MetadataJSON(),
	}
}
