package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"card-ledger-backend/internal/events"
	"card-ledger-backend/internal/models"
	"card-ledger-backend/internal/services/cardledger"
	"card-ledger-backend/internal/storage"

	"gorm.io/datatypes"
)

// Clearing events arriving before their authorization are buffered this
// long before the cleanup sweep evicts them.
const DefaultPendingClearingTTL = 24 * time.Hour

// Service merges authorization and clearing notifications into one ledger
// row per logical transaction, keeps the card projection in step, and owns
// the pending-clearing buffer for clearings that arrive out of order.
//
// Every operation is one database transaction: the transaction row, the
// card row and the audit events it writes commit or roll back together.
type Service struct {
	store      storage.Store
	cards      *cardledger.Updater
	emitter    events.Emitter
	logger     *slog.Logger
	pendingTTL time.Duration
}

func NewService(
	store storage.Store,
	cards *cardledger.Updater,
	emitter events.Emitter,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:      store,
		cards:      cards,
		emitter:    emitter,
		logger:     logger,
		pendingTTL: DefaultPendingClearingTTL,
	}
}

// ProcessAuthorization persists the first authorization for a correlation
// key and reserves its amount on the card. A duplicate delivery is absorbed
// silently: at-least-once queueing makes redelivery an expected event, not
// an error.
func (s *Service) ProcessAuthorization(ctx context.Context, rec models.CanonicalTransaction) error {
	var persisted *models.Transaction

	err := s.store.InTransaction(ctx, func(tx storage.Store) error {
		t, created, err := tx.FindOrCreateTransaction(ctx, models.NewTransaction(rec))
		if err != nil {
			return fmt.Errorf("failed to find or create transaction: %w", err)
		}

		if !created {
			s.logger.Warn("transaction already exists for correlation id and processor",
				"processorId", t.ProcessorID,
				"authorizationTransactionId", t.AuthorizationTransactionID)
			return nil
		}

		if _, err := s.cards.ApplyAuthorization(ctx, tx, t.CardID, t.UserID, t.AuthAmount); err != nil {
			return err
		}

		err = tx.AppendTransactionEvent(ctx, &models.TransactionEvent{
			TransactionID: t.ID,
			EventType:     models.EventAuthorizationProcessed,
			Data: auditData(map[string]interface{}{
				"status":      string(t.Status),
				"type":        string(models.TypeAuthorization),
				"processorId": rec.ProcessorID,
				"rawData":     rec.Metadata,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to append authorization audit event: %w", err)
		}

		persisted = t
		return nil
	})
	if err != nil {
		s.logger.Error("error processing authorization transaction",
			"processorId", rec.ProcessorID,
			"correlationId", rec.TransactionCorrelationID,
			"error", err)
		return err
	}

	if persisted == nil {
		return nil
	}

	s.emitter.Emit(ctx, events.TopicAuthorization, *persisted)

	// Best-effort replay of a clearing that arrived before this
	// authorization; failures here are retried by the buffered row's own
	// lifecycle, never surfaced to the authorization job.
	if err := s.ProcessPendingClearingTransactions(ctx, rec.TransactionCorrelationID, rec.ProcessorID); err != nil {
		s.logger.Error("error processing pending clearing transactions",
			"processorId", rec.ProcessorID,
			"correlationId", rec.TransactionCorrelationID,
			"error", err)
	}

	return nil
}

// ProcessClearing settles the matching authorization row, or buffers the
// record when that row does not exist yet. Clearing a transaction that is
// already settled is a logged no-op.
func (s *Service) ProcessClearing(ctx context.Context, rec models.CanonicalTransaction) error {
	var settled *models.Transaction

	err := s.store.InTransaction(ctx, func(tx storage.Store) error {
		existing, err := tx.LockTransaction(ctx, rec.TransactionCorrelationID, rec.ProcessorID)
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("authorization transaction not found, storing clearing for later processing",
				"processorId", rec.ProcessorID,
				"correlationId", rec.TransactionCorrelationID)
			return s.storePendingClearing(ctx, tx, rec)
		}
		if err != nil {
			return fmt.Errorf("failed to lock transaction: %w", err)
		}

		settled, err = s.settleLocked(ctx, tx, existing, rec)
		return err
	})
	if err != nil {
		s.logger.Error("error processing clearing transaction",
			"processorId", rec.ProcessorID,
			"correlationId", rec.TransactionCorrelationID,
			"error", err)
		return err
	}

	if settled != nil {
		s.emitter.Emit(ctx, events.TopicClearing, *settled)
	}
	return nil
}

// settleLocked applies a clearing record to a transaction row already held
// under FOR UPDATE. Returns nil when the row was already settled.
func (s *Service) settleLocked(ctx context.Context, tx storage.Store, existing *models.Transaction, rec models.CanonicalTransaction) (*models.Transaction, error) {
	if existing.Status == models.StatusSettled {
		s.logger.Warn("transaction to be settled is already settled",
			"processorId", rec.ProcessorID,
			"correlationId", rec.TransactionCorrelationID)
		return nil, nil
	}

	amount := rec.BillingAmount
	existing.Metadata = mergeMetadata(existing.Metadata, rec.Metadata)
	existing.ClearingAmount = &amount
	existing.ClearingTransactionID = rec.ClearingTransactionID
	existing.Status = models.StatusSettled
	existing.Type = models.TypeClearing

	if err := tx.SaveTransaction(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to settle transaction: %w", err)
	}

	// The reservation taken at authorization time is what gets released.
	if _, err := s.cards.ApplyClearing(ctx, tx, existing.CardID, existing.AuthAmount); err != nil {
		return nil, err
	}

	err := tx.AppendTransactionEvent(ctx, &models.TransactionEvent{
		TransactionID: existing.ID,
		EventType:     models.EventClearingProcessed,
		Data: auditData(map[string]interface{}{
			"status":      string(models.StatusSettled),
			"type":        string(models.TypeClearing),
			"processorId": rec.ProcessorID,
			"rawData":     rec.Metadata,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append clearing audit event: %w", err)
	}

	return existing, nil
}

func (s *Service) storePendingClearing(ctx context.Context, tx storage.Store, rec models.CanonicalTransaction) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal clearing record: %w", err)
	}

	_, _, err = tx.FindOrCreatePendingClearing(ctx, &models.PendingClearingTransaction{
		ProcessorID:              rec.ProcessorID,
		TransactionCorrelationID: rec.TransactionCorrelationID,
		TransactionData:          datatypes.JSON(payload),
		RetryCount:               0,
		ExpiresAt:                time.Now().Add(s.pendingTTL),
	})
	if err != nil {
		return fmt.Errorf("failed to store pending clearing transaction: %w", err)
	}

	s.logger.Info("stored pending clearing transaction",
		"processorId", rec.ProcessorID,
		"correlationId", rec.TransactionCorrelationID)
	return nil
}

// ProcessPendingClearingTransactions replays a buffered clearing for the
// given correlation key, deleting the buffer row in the same transaction on
// success. On failure the row's retry counters are bumped in a follow-up
// transaction (so they survive the rollback) and the error propagates to
// the caller, which governs retry.
func (s *Service) ProcessPendingClearingTransactions(ctx context.Context, correlationID, processorID string) error {
	var replayed *models.Transaction

	err := s.store.InTransaction(ctx, func(tx storage.Store) error {
		pending, err := tx.LockPendingClearing(ctx, correlationID, processorID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to lock pending clearing transaction: %w", err)
		}

		s.logger.Info("processing pending clearing transaction",
			"processorId", processorID,
			"correlationId", correlationID)

		var rec models.CanonicalTransaction
		if err := json.Unmarshal(pending.TransactionData, &rec); err != nil {
			return fmt.Errorf("failed to decode buffered clearing payload: %w", err)
		}

		existing, err := tx.LockTransaction(ctx, correlationID, processorID)
		if err != nil {
			return fmt.Errorf("authorization transaction not found for clearing replay: %w", err)
		}

		replayed, err = s.settleLocked(ctx, tx, existing, rec)
		if err != nil {
			return err
		}

		return tx.DeletePendingClearing(ctx, pending)
	})
	if err != nil {
		s.bumpPendingRetry(ctx, correlationID, processorID)
		return err
	}

	if replayed != nil {
		s.logger.Info("successfully processed and removed pending clearing transaction",
			"processorId", processorID,
			"correlationId", correlationID)
		s.emitter.Emit(ctx, events.TopicClearing, *replayed)
	}
	return nil
}

func (s *Service) bumpPendingRetry(ctx context.Context, correlationID, processorID string) {
	err := s.store.InTransaction(ctx, func(tx storage.Store) error {
		pending, err := tx.LockPendingClearing(ctx, correlationID, processorID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		now := time.Now()
		pending.RetryCount++
		pending.LastRetryAt = &now
		return tx.SavePendingClearing(ctx, pending)
	})
	if err != nil {
		s.logger.Error("failed to record pending clearing retry",
			"processorId", processorID,
			"correlationId", correlationID,
			"error", err)
	}
}

// CleanupExpiredPendingClearingTransactions evicts buffered clearings whose
// expiry has passed and reports how many were removed. Idempotent and safe
// to run concurrently with replay.
func (s *Service) CleanupExpiredPendingClearingTransactions(ctx context.Context) (int64, error) {
	count, err := s.store.DeleteExpiredPendingClearing(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired pending clearing transactions: %w", err)
	}
	if count > 0 {
		s.logger.Info("cleaned up expired pending clearing transactions", "count", count)
	}
	return count, nil
}

// mergeMetadata is a shallow union; keys from the clearing record win.
func mergeMetadata(existing datatypes.JSON, incoming map[string]interface{}) datatypes.JSON {
	if len(incoming) == 0 {
		return existing
	}

	base := map[string]interface{}{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &base); err != nil {
			base = map[string]interface{}{}
		}
	}
	for k, v := range incoming {
		base[k] = v
	}

	raw, err := json.Marshal(base)
	if err != nil {
		return existing
	}
	return datatypes.JSON(raw)
}

func auditData(payload map[string]interface{}) datatypes.JSON {
	raw, err := json.Marshal(payload)
	if err != nil {
		return datatypes.JSON([]byte(`{}`))
	}
	return datatypes.JSON(raw)
}
