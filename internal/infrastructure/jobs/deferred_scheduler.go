package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
	"wallet-ledger.backend/pkg/logger"
)

// deferredTicker is the slice of the deferred usecase the scheduler drives
type deferredTicker interface {
	Tick(ctx context.Context) error
}

// DeferredSchedulerJob drives the deferred intent state machines on a
// fixed tick.
type DeferredSchedulerJob struct {
	deferred deferredTicker
	interval time.Duration
	stop     chan struct{}
}

func NewDeferredSchedulerJob(deferred deferredTicker, interval time.Duration) *DeferredSchedulerJob {
	return &DeferredSchedulerJob{
		deferred: deferred,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (j *DeferredSchedulerJob) Start(ctx context.Context) {
	logger.Info(ctx, "starting deferred scheduler", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "deferred scheduler stopped")
			return
		case <-j.stop:
			logger.Info(ctx, "deferred scheduler stopped")
			return
		case <-ticker.C:
			if err := j.deferred.Tick(ctx); err != nil {
				logger.Error(ctx, "deferred tick failed", zap.Error(err))
			}
		}
	}
}

func (j *DeferredSchedulerJob) Stop() {
	close(j.stop)
}
