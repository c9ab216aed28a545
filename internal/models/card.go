package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Card is the running balance projection for one card. AvailableCredit and
// CurrentUtilization are derived from the balances and recomputed on every
// write, always under the row lock that guards the write itself.
type Card struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CardID             string          `gorm:"uniqueIndex"`
	UserID             string          `gorm:"index"`
	CreditLimit        decimal.Decimal `gorm:"type:numeric(19,4)"`
	PendingBalance     decimal.Decimal `gorm:"type:numeric(19,4)"`
	SettledBalance     decimal.Decimal `gorm:"type:numeric(19,4)"`
	AvailableCredit    decimal.Decimal `gorm:"type:numeric(19,4)"`
	CurrentUtilization decimal.Decimal `gorm:"type:numeric(19,4)"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Recompute refreshes the derived fields from the current balances.
func (c *Card) Recompute() {
	committed := c.PendingBalance.Add(c.SettledBalance)
	c.AvailableCredit = c.CreditLimit.Sub(committed)
	if c.CreditLimit.IsZero() {
		c.CurrentUtilization = decimal.Zero
		return
	}
	c.CurrentUtilization = committed.Div(c.CreditLimit).Mul(decimal.NewFromInt(100))
}
