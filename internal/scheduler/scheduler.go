// Package scheduler triggers subscription update runs on a cron spec.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/trustmaster/telerss/internal/updater"
)

const runAllTimeout = 10 * time.Minute

type Scheduler struct {
	ctx   context.Context
	cron  *cron.Cron
	coord *updater.Coordinator
	spec  string
	log   *slog.Logger
}

func New(
	ctx context.Context,
	coord *updater.Coordinator,
	spec string,
	log *slog.Logger,
) *Scheduler {
	return &Scheduler{
		ctx:   ctx,
		cron:  cron.New(),
		coord: coord,
		spec:  spec,
		log:   log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runAll); err != nil {
		return fmt.Errorf("add cron func: %w", err)
	}

	s.cron.Start()

	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) runAll() {
	ctx, cancel := context.WithTimeout(s.ctx, runAllTimeout)
	defer cancel()

	if ctx.Err() != nil {
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	}

	start := time.Now()

	if err := s.coord.RunAll(ctx); err != nil {
		s.log.ErrorContext(ctx, "Update run finished with errors",
			"error", err,
			"durationSeconds", time.Since(start).Seconds())

		return
	}

	s.log.InfoContext(ctx, "Update run is completed",
		"durationSeconds", time.Since(start).Seconds())
}
