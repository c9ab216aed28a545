package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRecomputeDerivesCreditAndUtilization(t *testing.T) {
	c := Card{
		CreditLimit:    decimal.NewFromInt(10000),
		PendingBalance: decimal.NewFromInt(1000),
		SettledBalance: decimal.NewFromInt(500),
	}
	c.Recompute()

	assert.True(t, c.AvailableCredit.Equal(decimal.NewFromInt(8500)))
	assert.True(t, c.CurrentUtilization.Equal(decimal.NewFromInt(15)))
}

func TestRecomputeZeroCreditLimit(t *testing.T) {
	c := Card{
		PendingBalance: decimal.NewFromInt(100),
	}
	c.Recompute()

	assert.True(t, c.AvailableCredit.Equal(decimal.NewFromInt(-100)))
	assert.True(t, c.CurrentUtilization.IsZero())
}

func TestDedupKey(t *testing.T) {
	rec := CanonicalTransaction{
		TransactionCorrelationID: "corr-9",
		ProcessorID:              "proc-2",
		Type:                     TypeClearing,
	}
	assert.Equal(t, "CLEARING-proc-2-corr-9", rec.DedupKey())
}

func TestNewTransactionDefaults(t *testing.T) {
	rec := CanonicalTransaction{
		AuthorizationTransactionID: "auth-1",
		TransactionCorrelationID:   "corr-1",
		ProcessorID:                "p1",
		Type:                       TypeAuthorization,
		BillingAmount:              decimal.NewFromInt(250),
		BillingCurrency:            "EUR",
		CardID:                     "card-1",
		UserID:                     "user-1",
		Metadata:                   map[string]interface{}{"k": "v"},
	}
	tx := NewTransaction(rec)

	assert.Equal(t, StatusPending, tx.Status)
	assert.Equal(t, TypeAuthorization, tx.Type)
	assert.True(t, tx.AuthAmount.Equal(decimal.NewFromInt(250)))
	assert.Nil(t, tx.ClearingAmount)
	assert.JSONEq(t, `{"k":"v"}`, string(tx.Metadata))
}
