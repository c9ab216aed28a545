package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"card-ledger-backend/internal/models"
	"card-ledger-backend/internal/storage"

	"gorm.io/datatypes"
)

func eventData(payload map[string]interface{}) datatypes.JSON {
	raw, err := json.Marshal(payload)
	if err != nil {
		return datatypes.JSON([]byte(`{}`))
	}
	return datatypes.JSON(raw)
}

// RegisterCardholderNotifier subscribes the cardholder notification
// listener: on every authorization it records a CARDHOLDER_NOTIFIED audit
// row. The downstream notification channel itself is out of scope; the
// audit row is the contract.
func RegisterCardholderNotifier(bus *Bus, store storage.Store, logger *slog.Logger) {
	bus.Subscribe(TopicAuthorization, func(ctx context.Context, tx models.Transaction) error {
		logger.Info("notifying cardholder about authorization",
			"userId", tx.UserID,
			"cardId", tx.CardID)

		return store.AppendTransactionEvent(ctx, &models.TransactionEvent{
			TransactionID: tx.ID,
			EventType:     models.EventCardholderNotified,
			Data: eventData(map[string]interface{}{
				"userId":           tx.UserID,
				"notificationType": string(models.TypeAuthorization),
				"amount":           tx.AuthAmount.String(),
				"currency":         tx.Currency,
			}),
		})
	})
}

// RegisterAnalyticsPublisher subscribes the analytics listener: every
// cleared transaction is recorded as an ANALYTICS_SENT audit row.
func RegisterAnalyticsPublisher(bus *Bus, store storage.Store, logger *slog.Logger) {
	bus.Subscribe(TopicClearing, func(ctx context.Context, tx models.Transaction) error {
		logger.Info("sending analytics for cleared transaction",
			"transactionId", tx.ID.String())

		var clearingAmount string
		if tx.ClearingAmount != nil {
			clearingAmount = tx.ClearingAmount.String()
		}

		return store.AppendTransactionEvent(ctx, &models.TransactionEvent{
			TransactionID: tx.ID,
			EventType:     models.EventAnalyticsSent,
			Data: eventData(map[string]interface{}{
				"transactionType": string(models.TypeClearing),
				"amount":          clearingAmount,
				"currency":        tx.Currency,
				"cardId":          tx.CardID,
				"userId":          tx.UserID,
			}),
		})
	})
}
