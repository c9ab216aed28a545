package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TransactionStatus string

const (
	StatusPending TransactionStatus = "PENDING"
	StatusSettled TransactionStatus = "SETTLED"
)

type TransactionType string

const (
	TypeAuthorization TransactionType = "AUTHORIZATION"
	TypeClearing      TransactionType = "CLEARING"
)

// Transaction is the canonical ledger record of one authorization and,
// once it arrives, its clearing. Exactly one row exists per
// (transaction_correlation_id, processor_id); clearing mutates the row,
// it never creates a second one.
type Transaction struct {
	ID                         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProcessorID                string    `gorm:"index;uniqueIndex:idx_tx_correlation_processor"`
	ProcessorName              string
	TransactionCorrelationID   string `gorm:"uniqueIndex:idx_tx_correlation_processor"`
	AuthorizationTransactionID string
	ClearingTransactionID      *string
	Status                     TransactionStatus `gorm:"type:varchar(16);index"`
	Type                       TransactionType   `gorm:"type:varchar(16)"`
	AuthAmount                 decimal.Decimal   `gorm:"type:numeric(19,4)"`
	ClearingAmount             *decimal.Decimal  `gorm:"type:numeric(19,4)"`
	Currency                   string            `gorm:"type:varchar(3)"`
	MCC                        string            `gorm:"column:mcc"`
	CardID                     string            `gorm:"index"`
	UserID                     string            `gorm:"index"`
	ReferenceNumber            string
	Metadata                   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
