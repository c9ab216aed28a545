package repository

import (
	"context"

	"card-ledger-backend/internal/models"
)

func (s *LedgerStore) AppendTransactionEvent(ctx context.Context, e *models.TransactionEvent) error {
	return s.db.WithContext(ctx).Create(e).Error
}
