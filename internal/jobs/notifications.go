// Package jobs runs the periodic background work: delivering pending
// notifications, retrying failed ones, purging expired ones and expiring
// stale visits. Each job is an independent ticker loop so one schedule
// cannot starve another, and each tick runs under its own timeout.
package jobs

import (
	"context"
	"log"
	"time"

	"gatepass/visits/internal/config"
	"gatepass/visits/internal/notify"
)

func StartNotificationSweepJob(ctx context.Context, cfg config.Config, engine *notify.Engine) {
	if !cfg.SweepJobEnabled {
		return
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	run(ctx, interval, cfg.JobTimeout, func(tickCtx context.Context) {
		processed, err := engine.SweepPending(tickCtx)
		if err != nil {
			log.Printf("notification sweep error: %v", err)
			return
		}
		if processed > 0 {
			log.Printf("notification sweep delivered %d notifications", processed)
		}
	})
}

func StartNotificationRetryJob(ctx context.Context, cfg config.Config, engine *notify.Engine) {
	if !cfg.SweepJobEnabled {
		return
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	run(ctx, interval, cfg.JobTimeout, func(tickCtx context.Context) {
		retried, err := engine.RetryFailed(tickCtx)
		if err != nil {
			log.Printf("notification retry error: %v", err)
			return
		}
		if retried > 0 {
			log.Printf("notification retry requeued %d notifications", retried)
		}
	})
}

func StartNotificationCleanupJob(ctx context.Context, cfg config.Config, engine *notify.Engine) {
	if !cfg.SweepJobEnabled {
		return
	}
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	run(ctx, interval, cfg.JobTimeout, func(tickCtx context.Context) {
		deleted, err := engine.CleanupExpired(tickCtx)
		if err != nil {
			log.Printf("notification cleanup error: %v", err)
			return
		}
		if deleted > 0 {
			log.Printf("notification cleanup removed %d expired notifications", deleted)
		}
	})
}

func run(ctx context.Context, interval, timeout time.Duration, tick func(context.Context)) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				tick(tickCtx)
				cancel()
			}
		}
	}()
}
