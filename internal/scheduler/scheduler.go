// Package scheduler runs the pipeline on a fixed interval for deployments
// without an external cron trigger.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/caparkapa-educatedear/hepsiburada-bot/internal/pipeline"
)

// Runner is the interface for executing one pipeline run.
type Runner interface {
	RunOnce(ctx context.Context) (pipeline.RunSummary, error)
}

// Scheduler periodically triggers pipeline runs.
type Scheduler struct {
	runner   Runner
	log      *slog.Logger
	interval time.Duration
}

// New creates a Scheduler firing every interval.
func New(runner Runner, interval time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{runner: runner, interval: interval, log: log}
}

// Run starts the scheduler loop, blocking until ctx is cancelled. Ticks
// that land while a run is still in flight are skipped, not queued.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	sum, err := s.runner.RunOnce(ctx)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		s.log.Debug("previous run still in progress, skipping tick")
		return
	}
	if err != nil {
		s.log.Error("scheduled run failed", "error", err)
		return
	}
	s.log.Info("scheduled run finished",
		"scraped", sum.Scraped, "new", sum.New, "sent", sum.Dispatch.Sent, "failed", sum.Dispatch.Failed)
}
