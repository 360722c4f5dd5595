package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	HourlyPruneSpec       = "0 * * * *"
	ModelRefreshSpec      = "*/30 * * * *"
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	pruneHistoryTimeout   = 5 * time.Minute
	refreshModelsTimeout  = time.Minute
)

type HistoryPruner interface {
	PruneHistory(ctx context.Context, retention time.Duration) (int64, error)
}

type ModelRefresher interface {
	RefreshModels(ctx context.Context) []string
}

type Scheduler struct {
	ctx       context.Context
	cron      *cron.Cron
	pruner    HistoryPruner
	refresher ModelRefresher
	retention time.Duration
	log       *slog.Logger
}

// New builds a scheduler. A non-positive retention keeps history forever.
func New(
	ctx context.Context,
	pruner HistoryPruner,
	refresher ModelRefresher,
	retention time.Duration,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:       ctx,
		cron:      c,
		pruner:    pruner,
		refresher: refresher,
		retention: retention,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if s.retention > 0 {
		if _, err := s.cron.AddFunc(HourlyPruneSpec, s.pruneHistory); err != nil {
			return err
		}
	}

	if s.refresher != nil {
		if _, err := s.cron.AddFunc(ModelRefreshSpec, s.refreshModels); err != nil {
			return err
		}
	}

	s.cron.Start()

	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) pruneHistory() {
	ctx, cancel := context.WithTimeout(s.ctx, pruneHistoryTimeout)
	defer cancel()

	if ctx.Err() != nil {
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	}

	pruned, err := s.pruner.PruneHistory(ctx, s.retention)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to prune history",
			"error", err,
			"retention", s.retention)
		return
	}

	if pruned > 0 {
		s.log.InfoContext(ctx, "History is pruned",
			"pruned", pruned,
			"retention", s.retention)
	}
}

func (s *Scheduler) refreshModels() {
	ctx, cancel := context.WithTimeout(s.ctx, refreshModelsTimeout)
	defer cancel()

	if ctx.Err() != nil {
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	}

	models := s.refresher.RefreshModels(ctx)

	s.log.DebugContext(ctx, "Models are refreshed",
		"modelCount", len(models))
}
