package repository

import (
	"context"

	"card-ledger-backend/internal/storage"

	"gorm.io/gorm"
)

// LedgerStore is the gorm-backed implementation of storage.Store.
type LedgerStore struct {
	db *gorm.DB
}

func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// Make sure we conform to the interface
var _ storage.Store = (*LedgerStore)(nil)

// Expose DB if needed
func (s *LedgerStore) DB() *gorm.DB {
	return s.db
}

// InTransaction scopes fn to one database transaction; fn receives a store
// bound to that transaction, so every lock and write it performs commits or
// rolls back as a unit.
func (s *LedgerStore) InTransaction(ctx context.Context, fn func(tx storage.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&LedgerStore{db: tx})
	})
}
