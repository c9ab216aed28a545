package cardledger_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"card-ledger-backend/internal/services/cardledger"
	"card-ledger-backend/internal/storage/storagetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUpdater() *cardledger.Updater {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return cardledger.NewUpdater(decimal.NewFromInt(10000), logger)
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestApplyAuthorizationCreatesCard(t *testing.T) {
	u := newUpdater()
	store := storagetest.NewFake()

	card, err := u.ApplyAuthorization(context.Background(), store, "card-1", "user-1", dec(1500))
	require.NoError(t, err)

	assert.Equal(t, "card-1", card.CardID)
	assert.Equal(t, "user-1", card.UserID)
	assert.True(t, card.CreditLimit.Equal(dec(10000)))
	assert.True(t, card.PendingBalance.Equal(dec(1500)))
	assert.True(t, card.SettledBalance.Equal(dec(0)))
	assert.True(t, card.AvailableCredit.Equal(dec(8500)))
	assert.True(t, card.CurrentUtilization.Equal(dec(15)))
}

func TestApplyAuthorizationAccumulatesPending(t *testing.T) {
	u := newUpdater()
	store := storagetest.NewFake()
	ctx := context.Background()

	_, err := u.ApplyAuthorization(ctx, store, "card-1", "user-1", dec(1000))
	require.NoError(t, err)
	card, err := u.ApplyAuthorization(ctx, store, "card-1", "user-1", dec(500))
	require.NoError(t, err)

	assert.True(t, card.PendingBalance.Equal(dec(1500)))
	assert.True(t, card.AvailableCredit.Equal(dec(8500)))

	stored, ok := store.Card("card-1")
	require.True(t, ok)
	assert.True(t, stored.PendingBalance.Equal(dec(1500)))
}

func TestApplyClearingMovesPendingToSettled(t *testing.T) {
	u := newUpdater()
	store := storagetest.NewFake()
	ctx := context.Background()

	_, err := u.ApplyAuthorization(ctx, store, "card-1", "user-1", dec(1000))
	require.NoError(t, err)

	card, err := u.ApplyClearing(ctx, store, "card-1", dec(1000))
	require.NoError(t, err)

	assert.True(t, card.PendingBalance.Equal(dec(0)))
	assert.True(t, card.SettledBalance.Equal(dec(1000)))
	assert.True(t, card.AvailableCredit.Equal(dec(9000)))
	assert.True(t, card.CurrentUtilization.Equal(dec(10)))
}

func TestApplyClearingUnknownCardIsTolerated(t *testing.T) {
	u := newUpdater()
	store := storagetest.NewFake()

	card, err := u.ApplyClearing(context.Background(), store, "card-missing", dec(100))
	require.NoError(t, err)
	assert.Nil(t, card)
}

func TestOverLimitAuthorizationIsWrittenAnyway(t *testing.T) {
	u := newUpdater()
	store := storagetest.NewFake()

	card, err := u.ApplyAuthorization(context.Background(), store, "card-1", "user-1", dec(15000))
	require.NoError(t, err)

	assert.True(t, card.CurrentUtilization.Equal(dec(150)))
	assert.True(t, card.AvailableCredit.Equal(dec(-5000)))

	stored, ok := store.Card("card-1")
	require.True(t, ok)
	assert.True(t, stored.PendingBalance.Equal(dec(15000)))
}
