package storage

import (
	"context"
	"time"

	"card-ledger-backend/internal/models"
)

// TransactionFilter narrows a paginated transaction listing.
type TransactionFilter struct {
	CardID      string
	ProcessorID string
	Status      models.TransactionStatus
	Page        int
	Limit       int
}

// Store is the ledger persistence contract. Implementations back it with a
// relational database; tests substitute an in-memory fake.
//
// Methods whose name starts with Lock acquire a pessimistic row lock
// (SELECT ... FOR UPDATE) and therefore only make sense on a Store obtained
// inside InTransaction.
type Store interface {
	// InTransaction runs fn against a Store scoped to one database
	// transaction. Any error from fn rolls back every write made through
	// that scoped Store.
	InTransaction(ctx context.Context, fn func(tx Store) error) error

	// FindOrCreateTransaction atomically creates the row unless one already
	// exists for its (correlationID, processorID); created reports which.
	// The returned row is the persisted one in both cases.
	FindOrCreateTransaction(ctx context.Context, t *models.Transaction) (tx *models.Transaction, created bool, err error)
	// LockTransaction loads the row for (correlationID, processorID) under
	// FOR UPDATE. Returns ErrNotFound if no row exists.
	LockTransaction(ctx context.Context, correlationID, processorID string) (*models.Transaction, error)
	SaveTransaction(ctx context.Context, t *models.Transaction) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, int64, error)

	// FindOrCreateCard atomically creates the card unless one exists for its
	// CardID; an existing card is returned locked FOR UPDATE.
	FindOrCreateCard(ctx context.Context, c *models.Card) (card *models.Card, created bool, err error)
	// LockCard loads the card row under FOR UPDATE. Returns ErrNotFound if
	// the card has never been seen.
	LockCard(ctx context.Context, cardID string) (*models.Card, error)
	SaveCard(ctx context.Context, c *models.Card) error
	GetCard(ctx context.Context, cardID string) (*models.Card, error)

	AppendTransactionEvent(ctx context.Context, e *models.TransactionEvent) error

	FindOrCreatePendingClearing(ctx context.Context, p *models.PendingClearingTransaction) (pending *models.PendingClearingTransaction, created bool, err error)
	LockPendingClearing(ctx context.Context, correlationID, processorID string) (*models.PendingClearingTransaction, error)
	SavePendingClearing(ctx context.Context, p *models.PendingClearingTransaction) error
	DeletePendingClearing(ctx context.Context, p *models.PendingClearingTransaction) error
	// DeleteExpiredPendingClearing removes every buffered row whose
	// expiry is before now and reports how many were removed.
	DeleteExpiredPendingClearing(ctx context.Context, now time.Time) (int64, error)
}
