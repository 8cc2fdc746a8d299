package outbox

import (
	"context"
	"time"

	"carelink-chat/config"
	"carelink-chat/internal/repository"
	"carelink-chat/pkg/events"
	"carelink-chat/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const sweepInterval = time.Hour

// Runner drives the processor and, when retention is set, periodically purges published rows.
type Runner struct {
	processor *Processor
	repo      repository.OutboxRepository
	retention time.Duration
	every     time.Duration
	log       *logger.Logger
}

func NewRunner(processor *Processor) *Runner {
	return &Runner{processor: processor, repo: processor.repo, every: sweepInterval, log: processor.log}
}

// WithRetention enables the sweeper. Zero disables it.
func (r *Runner) WithRetention(retention time.Duration) *Runner {
	r.retention = retention
	return r
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.processor.Run(ctx)
		return nil
	})
	if r.retention > 0 {
		g.Go(func() error {
			r.sweepLoop(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(r.every)
	defer ticker.Stop()
	for {
		r.Sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep purges once and returns the number of rows removed.
func (r *Runner) Sweep(ctx context.Context) int64 {
	cutoff := r.processor.clock().Add(-r.retention)
	n, err := r.repo.PurgeCompleted(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Warnf("outbox purge before %s: %v", cutoff.Format(time.RFC3339), err)
		}
		return 0
	}
	if n > 0 {
		r.log.Debugf("outbox purged %d completed events", n)
	}
	return n
}

func ProcessorFromConfig(cfg *config.Config, repo repository.OutboxRepository, publisher events.Publisher, log *logger.Logger) *Processor {
	return NewProcessor(repo, publisher, log, cfg.OutboxBatch, cfg.OutboxInterval, cfg.OutboxMaxRetries)
}
