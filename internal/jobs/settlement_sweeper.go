package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"prediction-engine/internal/models"
	"prediction-engine/internal/services"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// SettlementSweeper periodically resolves open markets past their expiry
type SettlementSweeper struct {
	settlement  *services.SettlementService
	interval    time.Duration
	parallelism int
	stopChan    chan struct{}
}

// NewSettlementSweeper creates a new sweeper job
func NewSettlementSweeper(settlement *services.SettlementService, interval time.Duration, parallelism int) *SettlementSweeper {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &SettlementSweeper{
		settlement:  settlement,
		interval:    interval,
		parallelism: parallelism,
		stopChan:    make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called
func (s *SettlementSweeper) Start() {
	log.Info().Dur("interval", s.interval).Msg("[SettlementSweeper] Starting settlement sweep job")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-s.stopChan:
			log.Info().Msg("[SettlementSweeper] Stopping settlement sweep job")
			return
		}
	}
}

// Stop stops the sweep loop
func (s *SettlementSweeper) Stop() {
	close(s.stopChan)
}

// Sweep resolves every expired market it can and returns how many settled.
// A market whose oracle fails stays open for the next sweep.
func (s *SettlementSweeper) Sweep(ctx context.Context) int {
	markets, err := s.settlement.ListExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("[SettlementSweeper] Error fetching expired markets")
		return 0
	}
	if len(markets) == 0 {
		return 0
	}

	log.Info().Int("markets", len(markets)).Msg("[SettlementSweeper] Checking expired markets")

	var resolved atomic.Int32
	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for _, market := range markets {
		market := market
		g.Go(func() error {
			if s.resolve(ctx, market) {
				resolved.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	if n := resolved.Load(); n > 0 {
		log.Info().Int32("resolved", n).Msg("[SettlementSweeper] Resolved markets")
	}
	return int(resolved.Load())
}

func (s *SettlementSweeper) resolve(ctx context.Context, market models.Market) bool {
	ok, err := s.settlement.ResolveExpired(ctx, market)
	if err != nil {
		log.Warn().Err(err).
			Uint("market_id", market.ID).
			Str("source", market.ResolutionSource).
			Msg("[SettlementSweeper] Error resolving market, will retry next sweep")
		return false
	}
	return ok
}
