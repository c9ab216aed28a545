package cardledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"card-ledger-backend/internal/models"
	"card-ledger-backend/internal/storage"

	"github.com/shopspring/decimal"
)

var overLimit = decimal.NewFromInt(100)

// Updater owns every write to the cards table. Both methods require the
// tx-scoped store of an open database transaction and take the card row
// lock before read-modify-write, so two workers reconciling transactions
// for the same card serialize at the database instead of losing updates.
type Updater struct {
	defaultCreditLimit decimal.Decimal
	logger             *slog.Logger
}

func NewUpdater(defaultCreditLimit decimal.Decimal, logger *slog.Logger) *Updater {
	return &Updater{defaultCreditLimit: defaultCreditLimit, logger: logger}
}

// ApplyAuthorization reserves amount against the card's pending balance,
// creating the card lazily on first sight. The unique constraint on card_id
// makes the find-or-create safe under concurrent first-authorizations.
func (u *Updater) ApplyAuthorization(ctx context.Context, store storage.Store, cardID, userID string, amount decimal.Decimal) (*models.Card, error) {
	fresh := &models.Card{
		CardID:         cardID,
		UserID:         userID,
		CreditLimit:    u.defaultCreditLimit,
		PendingBalance: amount,
		SettledBalance: decimal.Zero,
	}
	fresh.Recompute()

	card, created, err := store.FindOrCreateCard(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create card %s: %w", cardID, err)
	}

	if created {
		u.logger.Info("created new card",
			"cardId", card.CardID,
			"utilization", card.CurrentUtilization.String())
	} else {
		card.PendingBalance = card.PendingBalance.Add(amount)
		card.Recompute()
		if err := store.SaveCard(ctx, card); err != nil {
			return nil, fmt.Errorf("failed to update card %s: %w", cardID, err)
		}
		u.logger.Info("updated card utilization",
			"cardId", card.CardID,
			"utilization", card.CurrentUtilization.String())
	}

	u.checkCreditLimit(card)
	return card, nil
}

// ApplyClearing moves amount from the pending balance to the settled
// balance. A clearing for an unknown card is tolerated: warn and return
// without mutation.
func (u *Updater) ApplyClearing(ctx context.Context, store storage.Store, cardID string, amount decimal.Decimal) (*models.Card, error) {
	card, err := store.LockCard(ctx, cardID)
	if errors.Is(err, storage.ErrNotFound) {
		u.logger.Warn("card not found for clearing transaction", "cardId", cardID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock card %s: %w", cardID, err)
	}

	card.SettledBalance = card.SettledBalance.Add(amount)
	card.PendingBalance = card.PendingBalance.Sub(amount)
	card.Recompute()

	if err := store.SaveCard(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to update card %s: %w", cardID, err)
	}
	u.logger.Info("card utilization updated after clearing",
		"cardId", card.CardID,
		"utilization", card.CurrentUtilization.String())

	u.checkCreditLimit(card)
	return card, nil
}

// A breach is surfaced, not prevented: the card might be blocked here.
func (u *Updater) checkCreditLimit(card *models.Card) {
	if card.CurrentUtilization.GreaterThan(overLimit) {
		u.logger.Error("card has exceeded the credit limit",
			"cardId", card.CardID,
			"utilization", card.CurrentUtilization.String())
	}
}
