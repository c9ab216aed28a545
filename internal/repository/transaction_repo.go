package repository

import (
	"context"
	"errors"

	"card-ledger-backend/internal/models"
	"card-ledger-backend/internal/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FindOrCreateTransaction leans on the unique composite index over
// (transaction_correlation_id, processor_id): the insert is attempted with
// ON CONFLICT DO NOTHING, and a zero rows-affected result means another
// delivery already created the row.
func (s *LedgerStore) FindOrCreateTransaction(ctx context.Context, t *models.Transaction) (*models.Transaction, bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "transaction_correlation_id"},
			{Name: "processor_id"},
		},
		DoNothing: true,
	}).Create(t)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return t, true, nil
	}

	var existing models.Transaction
	err := s.db.WithContext(ctx).
		Where("transaction_correlation_id = ? AND processor_id = ?", t.TransactionCorrelationID, t.ProcessorID).
		First(&existing).Error
	if err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (s *LedgerStore) LockTransaction(ctx context.Context, correlationID, processorID string) (*models.Transaction, error) {
	var t models.Transaction
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transaction_correlation_id = ? AND processor_id = ?", correlationID, processorID).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *LedgerStore) SaveTransaction(ctx context.Context, t *models.Transaction) error {
	return s.db.WithContext(ctx).Save(t).Error
}

func (s *LedgerStore) ListTransactions(ctx context.Context, filter storage.TransactionFilter) ([]models.Transaction, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Transaction{})

	if filter.CardID != "" {
		query = query.Where("card_id = ?", filter.CardID)
	}
	if filter.ProcessorID != "" {
		query = query.Where("processor_id = ?", filter.ProcessorID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txs []models.Transaction
	err := query.
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&txs).Error
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}
