package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lox/fiat/internal/logger"
)

// DefaultSchedule syncs a few minutes after each quarter hour.
const DefaultSchedule = "5,20,35,50 * * * *"

type Scheduler struct {
	syncer   *Syncer
	schedule cron.Schedule
	spec     string
	log      *slog.Logger
}

// NewScheduler validates spec, a standard five-field cron expression.
func NewScheduler(syncer *Syncer, spec string, log *slog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse sync schedule %q: %w", spec, err)
	}
	return &Scheduler{
		syncer:   syncer,
		schedule: sched,
		spec:     spec,
		log:      logger.Component(log, "scheduler"),
	}, nil
}

// Next returns the first sync time after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run syncs once immediately and then on schedule until ctx is done. A sync still in
// progress when the next one is due makes that one skip.
func (s *Scheduler) Run(ctx context.Context) {
	s.syncOnce(ctx)

	cronLog := cron.PrintfLogger(slog.NewLogLogger(s.log.Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() { s.syncOnce(ctx) }))
	c.Start()
	s.log.Info("scheduler started", "schedule", s.spec, "next", s.Next(time.Now()).UTC().Format(time.RFC3339))

	<-ctx.Done()
	s.log.Info("scheduler shutting down")
	<-c.Stop().Done()
}

func (s *Scheduler) syncOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.syncer.Sync(ctx); err != nil {
		s.log.Warn("sync failed", "error", err)
	}
}
