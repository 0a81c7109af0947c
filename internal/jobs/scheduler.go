// Package jobs runs the ledger's periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"token-economy/internal/config"
)

// SeasonalSyncer flips scheduled seasonal currencies on and off.
type SeasonalSyncer interface {
	SyncActivation(ctx context.Context) (int64, error)
}

// Pruner deletes rows older than a cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler manages background jobs.
type Scheduler struct {
	cron     *cron.Cron
	cfg      config.JobsConfig
	seasonal SeasonalSyncer
	caps     Pruner
	audits   Pruner
	now      func() time.Time
}

// NewScheduler creates a scheduler that evaluates specs in UTC.
func NewScheduler(cfg config.JobsConfig, seasonal SeasonalSyncer, caps, audits Pruner, now func() time.Time) *Scheduler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		cfg:      cfg,
		seasonal: seasonal,
		caps:     caps,
		audits:   audits,
		now:      now,
	}
}

// Start registers every job and starts the scheduler. Jobs run with ctx;
// an invalid schedule fails before anything is scheduled.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"seasonal_sync", s.cfg.SeasonalSyncSpec, s.SyncSeasonal},
		{"cap_prune", s.cfg.CapPruneSpec, s.PruneCaps},
		{"audit_prune", s.cfg.AuditPruneSpec, s.PruneAudits},
	}

	for _, j := range jobs {
		j := j // per-iteration copy; go.mod targets Go 1.21 loop semantics
		if j.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, func() {
			if err := j.run(ctx); err != nil {
				log.Error().Err(err).Str("job", j.name).Msg("Scheduled job failed")
			}
		}); err != nil {
			return fmt.Errorf("invalid schedule %q for %s: %w", j.spec, j.name, err)
		}
	}

	// Currencies whose window opened while the service was down are
	// corrected right away.
	if err := s.SyncSeasonal(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial seasonal sync failed")
	}

	s.cron.Start()
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("Job scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Job scheduler stopped")
}

// SyncSeasonal activates and deactivates scheduled seasonal currencies.
func (s *Scheduler) SyncSeasonal(ctx context.Context) error {
	n, err := s.seasonal.SyncActivation(ctx)
	if err != nil {
		return fmt.Errorf("failed to sync seasonal currencies: %w", err)
	}
	if n > 0 {
		log.Info().Int64("changed", n).Msg("Seasonal currencies synced")
	}
	return nil
}

// PruneCaps deletes daily cap rows past their retention.
func (s *Scheduler) PruneCaps(ctx context.Context) error {
	return s.prune(ctx, "daily caps", s.caps, s.cfg.CapRetentionDays)
}

// PruneAudits deletes mini-game audit rows past their retention.
func (s *Scheduler) PruneAudits(ctx context.Context) error {
	return s.prune(ctx, "mini-game audits", s.audits, s.cfg.AuditRetentionDays)
}

func (s *Scheduler) prune(ctx context.Context, what string, p Pruner, days int) error {
	if days <= 0 {
		return nil
	}
	cutoff := s.now().AddDate(0, 0, -days)
	n, err := p.PruneBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune %s: %w", what, err)
	}
	log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msgf("Pruned %s", what)
	return nil
}
