package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PendingClearingTransaction buffers a clearing record that arrived before
// its authorization. TransactionData holds the full canonical record so the
// clearing can be replayed verbatim once the authorization shows up.
type PendingClearingTransaction struct {
	ID                       uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProcessorID              string    `gorm:"index;uniqueIndex:idx_pending_correlation_processor"`
	TransactionCorrelationID string    `gorm:"uniqueIndex:idx_pending_correlation_processor"`
	TransactionData          datatypes.JSON `gorm:"type:jsonb"`
	RetryCount               int
	LastRetryAt              *time.Time
	ExpiresAt                time.Time `gorm:"index"`
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

func (p *PendingClearingTransaction) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
