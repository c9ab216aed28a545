package repository

import (
	"context"
	"errors"
	"time"

	"card-ledger-backend/internal/models"
	"card-ledger-backend/internal/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *LedgerStore) FindOrCreatePendingClearing(ctx context.Context, p *models.PendingClearingTransaction) (*models.PendingClearingTransaction, bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "transaction_correlation_id"},
			{Name: "processor_id"},
		},
		DoNothing: true,
	}).Create(p)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return p, true, nil
	}

	var existing models.PendingClearingTransaction
	err := s.db.WithContext(ctx).
		Where("transaction_correlation_id = ? AND processor_id = ?", p.TransactionCorrelationID, p.ProcessorID).
		First(&existing).Error
	if err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (s *LedgerStore) LockPendingClearing(ctx context.Context, correlationID, processorID string) (*models.PendingClearingTransaction, error) {
	var p models.PendingClearingTransaction
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transaction_correlation_id = ? AND processor_id = ?", correlationID, processorID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *LedgerStore) SavePendingClearing(ctx context.Context, p *models.PendingClearingTransaction) error {
	return s.db.WithContext(ctx).Save(p).Error
}

func (s *LedgerStore) DeletePendingClearing(ctx context.Context, p *models.PendingClearingTransaction) error {
	return s.db.WithContext(ctx).Delete(p).Error
}

// DeleteExpiredPendingClearing is safe to run concurrently with replay: a
// row consumed by replay no longer matches the delete predicate.
func (s *LedgerStore) DeleteExpiredPendingClearing(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&models.PendingClearingTransaction{})
	return res.RowsAffected, res.Error
}
