package jobs

import (
	"context"
	"time"

	"prediction-engine/internal/services"

	"github.com/rs/zerolog/log"
)

// MarketSyncJob periodically mirrors upstream markets
type MarketSyncJob struct {
	service  *services.MarketSyncService
	interval time.Duration
	stopChan chan struct{}
}

func NewMarketSyncJob(service *services.MarketSyncService, interval time.Duration) *MarketSyncJob {
	return &MarketSyncJob{
		service:  service,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start syncs once immediately, then on every tick until Stop is called
func (j *MarketSyncJob) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info().Dur("interval", j.interval).Msg("[MarketSync] Starting market sync job")
	j.run(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.run(ctx)
		case <-j.stopChan:
			log.Info().Msg("[MarketSync] Stopping market sync job")
			return
		}
	}
}

// Stop stops the sync loop
func (j *MarketSyncJob) Stop() {
	close(j.stopChan)
}

func (j *MarketSyncJob) run(ctx context.Context) {
	if _, err := j.service.SyncTopMarkets(ctx); err != nil {
		log.Error().Err(err).Msg("[MarketSync] Sync error")
	}
}
