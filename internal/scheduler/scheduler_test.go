package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCleanup struct {
	calls int
	count int64
	err   error
}

func (s *stubCleanup) CleanupExpiredPendingClearingTransactions(ctx context.Context) (int64, error) {
	s.calls++
	return s.count, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegisterReplacesEntryWithSameName(t *testing.T) {
	s := New(testLogger())

	require.NoError(t, s.Register("job", "@hourly", func() {}))
	require.NoError(t, s.Register("job", "@hourly", func() {}))

	assert.Equal(t, 1, s.EntryCount())
	assert.Len(t, s.cron.Entries(), 1)
}

func TestRegisterDistinctNames(t *testing.T) {
	s := New(testLogger())

	require.NoError(t, s.Register("job-a", "@hourly", func() {}))
	require.NoError(t, s.Register("job-b", "@daily", func() {}))

	assert.Equal(t, 2, s.EntryCount())
}

func TestRegisterRejectsInvalidSpec(t *testing.T) {
	s := New(testLogger())

	err := s.Register("job", "not a cron spec", func() {})
	require.Error(t, err)
	assert.Equal(t, 0, s.EntryCount())
}

func TestInstallCleanupIsIdempotent(t *testing.T) {
	s := New(testLogger())
	svc := &stubCleanup{}

	require.NoError(t, s.InstallCleanup(svc))
	require.NoError(t, s.InstallCleanup(svc))

	assert.Equal(t, 1, s.EntryCount())
	assert.Len(t, s.cron.Entries(), 1)
}

func TestInstalledCleanupInvokesService(t *testing.T) {
	s := New(testLogger())
	svc := &stubCleanup{count: 3}

	require.NoError(t, s.InstallCleanup(svc))

	for _, entry := range s.cron.Entries() {
		entry.Job.Run()
	}
	assert.Equal(t, 1, svc.calls)
}

func TestInstalledCleanupSwallowsServiceError(t *testing.T) {
	s := New(testLogger())
	svc := &stubCleanup{err: assert.AnError}

	require.NoError(t, s.InstallCleanup(svc))

	for _, entry := range s.cron.Entries() {
		entry.Job.Run()
	}
	assert.Equal(t, 1, svc.calls)
}
