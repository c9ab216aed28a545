// Package events carries the post-commit side effects of reconciliation.
// Emission is fire-and-forget: listeners run only after the ledger
// transaction has committed, and a failing listener can never roll back
// ledger writes.
package events

import (
	"context"
	"log/slog"
	"sync"

	"card-ledger-backend/internal/models"
)

type Topic string

const (
	TopicAuthorization Topic = "transaction.AUTHORIZATION"
	TopicClearing      Topic = "transaction.CLEARING"
)

type Handler func(ctx context.Context, tx models.Transaction) error

// Emitter publishes a committed transaction snapshot to interested
// listeners.
type Emitter interface {
	Emit(ctx context.Context, topic Topic, tx models.Transaction)
}

// Bus is an in-process Emitter with a static set of subscribers wired at
// startup.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]Handler
	logger   *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		handlers: make(map[Topic][]Handler),
		logger:   logger,
	}
}

var _ Emitter = (*Bus)(nil)

func (b *Bus) Subscribe(topic Topic, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Emit dispatches to every subscriber of topic. Listener errors are
// logged and dropped.
func (b *Bus) Emit(ctx context.Context, topic Topic, tx models.Transaction) {
	b.mu.RLock()
	handlers := b.handlers[topic]
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, tx); err != nil {
			b.logger.Error("event listener failed",
				"topic", string(topic),
				"transactionId", tx.ID.String(),
				"error", err)
		}
	}
}
