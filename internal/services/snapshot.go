package services

import (
	"context"
	"time"

	"prediction-engine/internal/amm"
	"prediction-engine/internal/events"
	"prediction-engine/internal/models"
	"prediction-engine/internal/repository"

	"github.com/rs/zerolog/log"
)

// publishTimeout bounds how long a trade or settlement waits on event sinks
const publishTimeout = 2 * time.Second

// buildSnapshot renders the public view of a market with its latest trades
func buildSnapshot(ctx context.Context, store *repository.Store, market *models.Market, recentLimit int) (models.MarketSnapshot, error) {
	priceA := market.Price(amm.SideA)
	priceB := market.Price(amm.SideB)

	snapshot := models.MarketSnapshot{
		ID:           market.ID,
		Question:     market.Question,
		AnswerA:      market.AnswerA,
		AnswerB:      market.AnswerB,
		PoolA:        market.PoolA,
		PoolB:        market.PoolB,
		PriceA:       amm.Percent(priceA),
		PriceB:       amm.Percent(priceB),
		MultiplierA:  multiplier(priceA),
		MultiplierB:  multiplier(priceB),
		Status:       market.Status,
		ExpiresAt:    market.ExpiresAt,
		RecentTrades: []models.Wager{},
	}

	if recentLimit > 0 {
		trades, err := store.Wagers.Recent(ctx, market.ID, recentLimit)
		if err != nil {
			return models.MarketSnapshot{}, err
		}
		snapshot.RecentTrades = trades
	}
	return snapshot, nil
}

// multiplier is the gross payout per unit staked at price, nil at price 0
func multiplier(price float64) *float64 {
	if price <= 0 {
		return nil
	}
	m := amm.RoundCurrency(1 / price)
	return &m
}

// publish sends an event without letting sink failures reach the caller
func publish(ctx context.Context, publisher events.Publisher, event events.Event) {
	if publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).
			Str("type", event.Type).
			Uint("market_id", event.MarketID).
			Msg("failed to publish market event")
	}
}
