package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-economy/internal/config"
)

type fakeSyncer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSyncer) SyncActivation(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return 1, f.err
}

func (f *fakeSyncer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePruner struct {
	cutoffs []time.Time
	err     error
}

func (f *fakePruner) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return 3, f.err
}

var fixedNow = time.Date(2025, 3, 31, 0, 10, 0, 0, time.UTC)

func TestScheduler_PruneCutoffs(t *testing.T) {
	caps := &fakePruner{}
	audits := &fakePruner{}
	s := NewScheduler(config.JobsConfig{CapRetentionDays: 30, AuditRetentionDays: 90},
		&fakeSyncer{}, caps, audits, func() time.Time { return fixedNow })

	require.NoError(t, s.PruneCaps(context.Background()))
	require.NoError(t, s.PruneAudits(context.Background()))

	require.Len(t, caps.cutoffs, 1)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 10, 0, 0, time.UTC), caps.cutoffs[0])
	require.Len(t, audits.cutoffs, 1)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 10, 0, 0, time.UTC), audits.cutoffs[0])
}

func TestScheduler_ZeroRetentionKeepsEverything(t *testing.T) {
	caps := &fakePruner{}
	s := NewScheduler(config.JobsConfig{}, &fakeSyncer{}, caps, &fakePruner{}, nil)

	require.NoError(t, s.PruneCaps(context.Background()))
	assert.Empty(t, caps.cutoffs)
}

func TestScheduler_ErrorsAreWrapped(t *testing.T) {
	boom := errors.New("boom")
	s := NewScheduler(config.JobsConfig{CapRetentionDays: 1},
		&fakeSyncer{err: boom}, &fakePruner{err: boom}, &fakePruner{}, nil)

	err := s.SyncSeasonal(context.Background())
	assert.ErrorIs(t, err, boom)

	err = s.PruneCaps(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "daily caps")
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := NewScheduler(config.JobsConfig{SeasonalSyncSpec: "not a schedule"},
		&fakeSyncer{}, &fakePruner{}, &fakePruner{}, nil)

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seasonal_sync")
}

func TestScheduler_RunsJobs(t *testing.T) {
	syncer := &fakeSyncer{}
	s := NewScheduler(config.JobsConfig{SeasonalSyncSpec: "@every 1s"},
		syncer, &fakePruner{}, &fakePruner{}, nil)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	// One sync runs at startup, the next on the schedule.
	assert.GreaterOrEqual(t, syncer.Calls(), 1)
	assert.Eventually(t, func() bool { return syncer.Calls() >= 2 }, 5*time.Second, 50*time.Millisecond)
}
