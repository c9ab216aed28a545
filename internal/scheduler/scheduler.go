package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	// CleanupEntryName identifies the recurring pending-clearing sweep.
	CleanupEntryName = "cleanup-expired-pending-clearing"

	cleanupSpec = "0 * * * *" // hourly
)

// CleanupService is the slice of the reconciliation service the scheduler
// needs.
type CleanupService interface {
	CleanupExpiredPendingClearingTransactions(ctx context.Context) (int64, error)
}

// Scheduler wraps a cron runner with named entries so that registering an
// entry twice replaces the first registration instead of doubling it. That
// makes (re)installation on boot idempotent.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
		logger:  logger,
	}
}

// Register installs cmd under name, removing any existing entry of the same
// name first.
func (s *Scheduler) Register(name, spec string, cmd func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
	}
	id, err := s.cron.AddFunc(spec, cmd)
	if err != nil {
		return err
	}
	s.entries[name] = id
	return nil
}

// EntryCount reports how many named entries are installed.
func (s *Scheduler) EntryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// InstallCleanup registers the hourly sweep of expired pending clearing
// transactions.
func (s *Scheduler) InstallCleanup(svc CleanupService) error {
	err := s.Register(CleanupEntryName, cleanupSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		s.logger.Info("starting cleanup of expired pending clearing transactions")
		count, err := svc.CleanupExpiredPendingClearingTransactions(ctx)
		if err != nil {
			s.logger.Error("error during pending clearing transaction cleanup", "error", err)
			return
		}
		s.logger.Info("cleanup completed", "removed", count)
	})
	if err != nil {
		return err
	}
	s.logger.Info("scheduled cleanup job for pending clearing transactions to run every hour")
	return nil
}
