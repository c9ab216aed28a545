// Package storagetest provides an in-memory storage.Store used by the
// service tests. Transactions are modelled as copy-on-write snapshots under
// one mutex, which also serializes concurrent callers the way row locks do
// in the real database.
package storagetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"card-ledger-backend/internal/models"
	"card-ledger-backend/internal/storage"

	"github.com/google/uuid"
)

type state struct {
	transactions map[string]models.Transaction
	cards        map[string]models.Card
	pendings     map[string]models.PendingClearingTransaction
	events       []models.TransactionEvent
}

func newState() *state {
	return &state{
		transactions: make(map[string]models.Transaction),
		cards:        make(map[string]models.Card),
		pendings:     make(map[string]models.PendingClearingTransaction),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.cards {
		c.cards[k] = v
	}
	for k, v := range s.pendings {
		c.pendings[k] = v
	}
	c.events = append(c.events, s.events...)
	return c
}

func key(correlationID, processorID string) string {
	return correlationID + "|" + processorID
}

// Fake is an in-memory storage.Store.
type Fake struct {
	mu sync.Mutex
	st *state

	// FailOnce maps a method name to an error returned (and consumed) on
	// its next invocation, for exercising rollback paths.
	FailOnce map[string]error
}

func NewFake() *Fake {
	return &Fake{st: newState(), FailOnce: make(map[string]error)}
}

var _ storage.Store = (*Fake)(nil)

func (f *Fake) failing(op string) error {
	if err, ok := f.FailOnce[op]; ok {
		delete(f.FailOnce, op)
		return err
	}
	return nil
}

func (f *Fake) InTransaction(ctx context.Context, fn func(tx storage.Store) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	work := f.st.clone()
	if err := fn(&txFake{f: f, st: work}); err != nil {
		return err
	}
	f.st = work
	return nil
}

// Non-transactional calls commit immediately.
func (f *Fake) FindOrCreateTransaction(ctx context.Context, t *models.Transaction) (*models.Transaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&txFake{f: f, st: f.st}).FindOrCreateTransaction(ctx, t)
}

func (f *Fake) LockTransaction(ctx context.Context, correlationID, processorID string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&txFake{f: f, st: f.st}).LockTransaction(ctx, correlationID, processorID)
}

func (f *Fake) SaveTransaction(ctx context.Context, t *models.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&txFake{f: f, st: f.st}).SaveTransaction(ctx, t)
}

func (f *Fake) ListTransactions(ctx context.Context, filter storage.TransactionFilter) ([]models.Transaction, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&txFake{f: f, st: f.st}).ListTransactions(ctx, filter)
}

func (f *Fake) FindOrCreateCard(ctx context.Context, c *models.Card) (*models.Card, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&txFake{f: f, st: f.st}).FindOrCreateCard(ctx, c)
}

func (f *Fake) LockCard(ctx context.Context, cardID string) (*models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&txFake{f: f, st: f.st}).LockCard(ctx, cardID)
}

func (f *Fake) SaveCard(ctx context.Context, c *models.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&txFake{f: f, st: f.st}).SaveCard(ctx, c)
}

func (f *Fake) GetCard(ctx context.Context, cardID string) (*models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&txFake{f: f, st: f.st}).GetCard(ctx, cardID)
}

func (f *Fake) AppendTransactionEvent(ctx context.Context, e *models.TransactionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&txFake{f: f, st: f.st}).AppendTransactionEvent(ctx, e)
}

func (f *Fake) FindOrCreatePendingClearing(ctx context.Context, p *models.PendingClearingTransaction) (*models.PendingClearingTransaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&txFake{f: f, st: f.st}).FindOrCreatePendingClearing(ctx, p)
}

func (f *Fake) LockPendingClearing(ctx context.Context, correlationID, processorID string) (*models.PendingClearingTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&txFake{f: f, st: f.st}).LockPendingClearing(ctx, correlationID, processorID)
}

func (f *Fake) SavePendingClearing(ctx context.Context, p *models.PendingClearingTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&txFake{f: f, st: f.st}).SavePendingClearing(ctx, p)
}

func (f *Fake) DeletePendingClearing(ctx context.Context, p *models.PendingClearingTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&txFake{f: f, st: f.st}).DeletePendingClearing(ctx, p)
}

func (f *Fake) DeleteExpiredPendingClearing(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return (&txFake{f: f, st: f.st}).DeleteExpiredPendingClearing(ctx, now)
}

// Snapshot helpers for assertions.

func (f *Fake) Transactions() []models.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Transaction, 0, len(f.st.transactions))
	for _, t := range f.st.transactions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (f *Fake) Card(cardID string) (models.Card, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.st.cards[cardID]
	return c, ok
}

func (f *Fake) Pendings() []models.PendingClearingTransaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.PendingClearingTransaction, 0, len(f.st.pendings))
	for _, p := range f.st.pendings {
		out = append(out, p)
	}
	return out
}

func (f *Fake) Events() []models.TransactionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TransactionEvent(nil), f.st.events...)
}

func (f *Fake) CountEvents(eventType models.EventType) int {
	n := 0
	for _, e := range f.Events() {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

// txFake operates on a working state while Fake's mutex is held.
type txFake struct {
	f  *Fake
	st *state
}

var _ storage.Store = (*txFake)(nil)

func (t *txFake) InTransaction(ctx context.Context, fn func(tx storage.Store) error) error {
	// Nested scopes join the enclosing transaction.
	return fn(t)
}

func (t *txFake) FindOrCreateTransaction(ctx context.Context, tr *models.Transaction) (*models.Transaction, bool, error) {
	if err := t.f.failing("FindOrCreateTransaction"); err != nil {
		return nil, false, err
	}
	k := key(tr.TransactionCorrelationID, tr.ProcessorID)
	if existing, ok := t.st.transactions[k]; ok {
		cp := existing
		return &cp, false, nil
	}
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	now := time.Now()
	tr.CreatedAt = now
	tr.UpdatedAt = now
	t.st.transactions[k] = *tr
	cp := *tr
	return &cp, true, nil
}

func (t *txFake) LockTransaction(ctx context.Context, correlationID, processorID string) (*models.Transaction, error) {
	if err := t.f.failing("LockTransaction"); err != nil {
		return nil, err
	}
	tr, ok := t.st.transactions[key(correlationID, processorID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := tr
	return &cp, nil
}

func (t *txFake) SaveTransaction(ctx context.Context, tr *models.Transaction) error {
	if err := t.f.failing("SaveTransaction"); err != nil {
		return err
	}
	tr.UpdatedAt = time.Now()
	t.st.transactions[key(tr.TransactionCorrelationID, tr.ProcessorID)] = *tr
	return nil
}

func (t *txFake) ListTransactions(ctx context.Context, filter storage.TransactionFilter) ([]models.Transaction, int64, error) {
	var matched []models.Transaction
	for _, tr := range t.st.transactions {
		if filter.CardID != "" && tr.CardID != filter.CardID {
			continue
		}
		if filter.ProcessorID != "" && tr.ProcessorID != filter.ProcessorID {
			continue
		}
		if filter.Status != "" && tr.Status != filter.Status {
			continue
		}
		matched = append(matched, tr)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (t *txFake) FindOrCreateCard(ctx context.Context, c *models.Card) (*models.Card, bool, error) {
	if err := t.f.failing("FindOrCreateCard"); err != nil {
		return nil, false, err
	}
	if existing, ok := t.st.cards[c.CardID]; ok {
		cp := existing
		return &cp, false, nil
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	t.st.cards[c.CardID] = *c
	cp := *c
	return &cp, true, nil
}

func (t *txFake) LockCard(ctx context.Context, cardID string) (*models.Card, error) {
	if err := t.f.failing("LockCard"); err != nil {
		return nil, err
	}
	c, ok := t.st.cards[cardID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := c
	return &cp, nil
}

func (t *txFake) SaveCard(ctx context.Context, c *models.Card) error {
	if err := t.f.failing("SaveCard"); err != nil {
		return err
	}
	c.UpdatedAt = time.Now()
	t.st.cards[c.CardID] = *c
	return nil
}

func (t *txFake) GetCard(ctx context.Context, cardID string) (*models.Card, error) {
	return t.LockCard(ctx, cardID)
}

func (t *txFake) AppendTransactionEvent(ctx context.Context, e *models.TransactionEvent) error {
	if err := t.f.failing("AppendTransactionEvent"); err != nil {
		return err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = time.Now()
	t.st.events = append(t.st.events, *e)
	return nil
}

func (t *txFake) FindOrCreatePendingClearing(ctx context.Context, p *models.PendingClearingTransaction) (*models.PendingClearingTransaction, bool, error) {
	if err := t.f.failing("FindOrCreatePendingClearing"); err != nil {
		return nil, false, err
	}
	k := key(p.TransactionCorrelationID, p.ProcessorID)
	if existing, ok := t.st.pendings[k]; ok {
		cp := existing
		return &cp, false, nil
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	t.st.pendings[k] = *p
	cp := *p
	return &cp, true, nil
}

func (t *txFake) LockPendingClearing(ctx context.Context, correlationID, processorID string) (*models.PendingClearingTransaction, error) {
	if err := t.f.failing("LockPendingClearing"); err != nil {
		return nil, err
	}
	p, ok := t.st.pendings[key(correlationID, processorID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (t *txFake) SavePendingClearing(ctx context.Context, p *models.PendingClearingTransaction) error {
	if err := t.f.failing("SavePendingClearing"); err != nil {
		return err
	}
	p.UpdatedAt = time.Now()
	t.st.pendings[key(p.TransactionCorrelationID, p.ProcessorID)] = *p
	return nil
}

func (t *txFake) DeletePendingClearing(ctx context.Context, p *models.PendingClearingTransaction) error {
	if err := t.f.failing("DeletePendingClearing"); err != nil {
		return err
	}
	delete(t.st.pendings, key(p.TransactionCorrelationID, p.ProcessorID))
	return nil
}

func (t *txFake) DeleteExpiredPendingClearing(ctx context.Context, now time.Time) (int64, error) {
	var removed int64
	for k, p := range t.st.pendings {
		if p.ExpiresAt.Before(now) {
			delete(t.st.pendings, k)
			removed++
		}
	}
	return removed, nil
}
