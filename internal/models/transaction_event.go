package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EventType string

const (
	EventAuthorizationProcessed EventType = "AUTHORIZATION_TRANSACTION_PROCESSED"
	EventClearingProcessed      EventType = "CLEARING_TRANSACTION_PROCESSED"
	EventCardholderNotified     EventType = "CARDHOLDER_NOTIFIED"
	EventAnalyticsSent          EventType = "ANALYTICS_SENT"
)

// TransactionEvent is the append-only audit trail. Rows are written once and
// never updated or deleted.
type TransactionEvent struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	TransactionID uuid.UUID `gorm:"type:uuid;index"`
	EventType     EventType `gorm:"type:varchar(75)"`
	Data          datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time
}

func (e *TransactionEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
