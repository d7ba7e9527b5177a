// Package sweep runs the periodic housekeeping jobs: releasing unpaid
// holds past the expiry window and purging dead refresh tokens.
package sweep

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// HoldReleaser releases unpaid reservations older than a window.
type HoldReleaser interface {
	ExpireUnpaid(ctx context.Context, olderThan time.Duration) (int, error)
}

// TokenPurger deletes refresh tokens that expired or were revoked before
// cutoff.
type TokenPurger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config controls the jobs.  A zero HoldExpiry leaves holds alone.
type Config struct {
	HoldExpiry time.Duration
	Interval   time.Duration
}

// Sweeper owns the scheduler and its jobs.
type Sweeper struct {
	holds  HoldReleaser
	tokens TokenPurger
	cfg    Config
	log    *zap.Logger
	now    func() time.Time
	sched  gocron.Scheduler
}

// New returns a Sweeper; either dependency may be nil to skip its job.
func New(holds HoldReleaser, tokens TokenPurger, cfg Config, log *zap.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{holds: holds, tokens: tokens, cfg: cfg, log: log, now: time.Now}
}

// ReleaseHolds runs one hold expiry pass.
func (s *Sweeper) ReleaseHolds(ctx context.Context) {
	if s.holds == nil || s.cfg.HoldExpiry <= 0 {
		return
	}
	n, err := s.holds.ExpireUnpaid(ctx, s.cfg.HoldExpiry)
	if err != nil {
		s.log.Warn("hold expiry sweep failed", zap.Int("released", n), zap.Error(err))
	}
}

// PurgeTokens runs one refresh token purge.
func (s *Sweeper) PurgeTokens(ctx context.Context) {
	if s.tokens == nil {
		return
	}
	n, err := s.tokens.PurgeExpired(ctx, s.now().UTC())
	if err != nil {
		s.log.Warn("refresh token purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("purged refresh tokens", zap.Int64("count", n))
	}
}

// bounded runs fn with a deadline of one interval so a slow pass never
// overlaps the next.
func (s *Sweeper) bounded(fn func(context.Context)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Interval)
		defer cancel()
		fn(ctx)
	}
}

// Start schedules the jobs and starts the scheduler.  Hold expiry runs
// every Interval starting now; the token purge runs daily at 03:00 UTC.
func (s *Sweeper) Start() error {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return err
	}
	if s.holds != nil && s.cfg.HoldExpiry > 0 {
		_, err = sched.NewJob(
			gocron.DurationJob(s.cfg.Interval),
			gocron.NewTask(s.bounded(s.ReleaseHolds)),
			gocron.WithName("hold-expiry"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			_ = sched.Shutdown()
			return err
		}
	}
	if s.tokens != nil {
		_, err = sched.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(3, 0, 0))),
			gocron.NewTask(s.bounded(s.PurgeTokens)),
			gocron.WithName("refresh-token-purge"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return err
		}
	}
	sched.Start()
	s.sched = sched
	s.log.Info("sweeper started",
		zap.Duration("hold_expiry", s.cfg.HoldExpiry), zap.Duration("interval", s.cfg.Interval))
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *Sweeper) Stop() error {
	if s.sched == nil {
		return nil
	}
	return s.sched.Shutdown()
}
