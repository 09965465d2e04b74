package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prediction-engine/internal/models"
	"prediction-engine/internal/oracle"
	"prediction-engine/internal/polymarket"
	"prediction-engine/internal/repository"

	"github.com/rs/zerolog/log"
)

// externalIDPrefix namespaces mirrored ids so other sources cannot collide
const externalIDPrefix = "polymarket:"

// minRemaining skips upstream markets about to close
const minRemaining = time.Hour

// MarketLister is the part of the Polymarket client the sync needs
type MarketLister interface {
	GetActiveMarkets(ctx context.Context, limit int) ([]polymarket.PolymarketMarket, error)
}

// MarketSyncService mirrors popular binary Polymarket markets as local
// markets resolved by the polymarket oracle
type MarketSyncService struct {
	markets *MarketService
	store   *repository.Store
	client  MarketLister
	limit   int
}

func NewMarketSyncService(markets *MarketService, store *repository.Store, client MarketLister, limit int) *MarketSyncService {
	if limit <= 0 {
		limit = 20
	}
	return &MarketSyncService{
		markets: markets,
		store:   store,
		client:  client,
		limit:   limit,
	}
}

// SyncTopMarkets creates local markets for the highest volume binary
// upstream markets not mirrored yet. It returns how many were created.
func (s *MarketSyncService) SyncTopMarkets(ctx context.Context) (int, error) {
	upstream, err := s.client.GetActiveMarkets(ctx, s.limit*3)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch markets from Polymarket: %w", err)
	}

	created := 0
	considered := 0
	cutoff := s.markets.now().Add(minRemaining)
	for _, pm := range upstream {
		if considered >= s.limit {
			break
		}
		if pm.Closed || !pm.IsBinary() || !pm.EndTime().After(cutoff) {
			continue
		}
		considered++

		externalID := externalIDPrefix + pm.ID
		if _, err := s.store.Markets.FindByExternalID(ctx, externalID); err == nil {
			continue
		} else if !errors.Is(err, models.ErrNotFound) {
			return created, err
		}

		outcomes := pm.ParseOutcomes()
		_, err := s.markets.CreateMarket(ctx, models.CreateMarketRequest{
			Question:         pm.Question,
			AnswerA:          outcomes[0],
			AnswerB:          outcomes[1],
			ExpiresAt:        pm.EndTime(),
			ResolutionSource: oracle.SourcePolymarket,
			ResolutionMeta:   map[string]any{"marketId": pm.ID},
			ExternalID:       externalID,
		})
		if err != nil {
			log.Warn().Err(err).Str("external_id", externalID).Msg("[MarketSync] skipping market")
			continue
		}
		created++
	}

	log.Info().Int("created", created).Int("considered", considered).Msg("[MarketSync] sync completed")
	return created, nil
}
