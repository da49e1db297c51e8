package jobs

import (
	"context"
	"log"
	"time"

	"gatepass/visits/internal/config"
	"gatepass/visits/internal/operations"
)

// StartVisitExpiryJob moves scheduled visits whose gate pass lapsed
// before check-in into the terminal expired state.
func StartVisitExpiryJob(ctx context.Context, cfg config.Config, service *operations.Service) {
	if !cfg.SweepJobEnabled {
		return
	}
	interval := cfg.ExpiryInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	batch := cfg.ExpiryBatchSize
	if batch <= 0 {
		batch = 200
	}
	run(ctx, interval, cfg.JobTimeout, func(tickCtx context.Context) {
		expired, err := service.ExpireVisits(tickCtx, time.Now().UTC(), batch)
		if err != nil {
			log.Printf("visit expiry error: %v", err)
			return
		}
		if expired > 0 {
			log.Printf("visit expiry closed %d visits", expired)
		}
	})
}
