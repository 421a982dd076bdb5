package daemon

import (
	"context"
	"time"

	"cellar/internal/logging"
)

const (
	defaultSweepInterval = 5 * time.Minute
	defaultStaleAfter    = 30 * time.Minute
)

// sweepStaleTasks fails label tasks stuck in processing until ctx ends.
func (d *Daemon) sweepStaleTasks(ctx context.Context) {
	interval := time.Duration(d.cfg.Workers.SweepIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweepOnce(ctx, time.Now())
		}
	}
}

func (d *Daemon) sweepOnce(ctx context.Context, now time.Time) int64 {
	staleAfter := time.Duration(d.cfg.Workers.StaleTaskMinutes) * time.Minute
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	failed, err := d.store.FailStaleProcessing(ctx, now.Add(-staleAfter))
	if err != nil {
		if ctx.Err() == nil {
			logging.WarnWithContext(d.logger, "stale task sweep failed", "stale_sweep_failed", "", logging.Error(err))
		}
		return 0
	}
	if failed > 0 {
		d.logger.Warn("failed stale label tasks",
			logging.Int64("count", failed),
			logging.Duration("stale_after", staleAfter),
			logging.String(logging.FieldEventType, "label_tasks_stale"),
		)
	}
	return failed
}
