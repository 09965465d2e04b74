package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"prediction-engine/internal/polymarket"
)

// winningPrice is the outcome price at which a closed upstream market counts
// as settled on that outcome
const winningPrice = 0.99

// PolymarketMeta is the resolution metadata of a mirrored market
type PolymarketMeta struct {
	MarketID string `json:"marketId"`
}

// MarketFetcher is the part of the Polymarket client the oracle needs
type MarketFetcher interface {
	GetMarketByID(ctx context.Context, marketID string) (*polymarket.PolymarketMarket, error)
}

// PolymarketOracle follows the settlement of a mirrored upstream market
type PolymarketOracle struct {
	client MarketFetcher
}

func NewPolymarketOracle(client MarketFetcher) *PolymarketOracle {
	return &PolymarketOracle{client: client}
}

// ValidateMeta requires the upstream market id. Answer labels are taken from
// the upstream outcomes when the market is mirrored.
func (o *PolymarketOracle) ValidateMeta(raw json.RawMessage, _, _ string) error {
	var meta PolymarketMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return fmt.Errorf("polymarket: decode meta: %w", err)
	}
	if strings.TrimSpace(meta.MarketID) == "" {
		return fmt.Errorf("polymarket: marketId is required")
	}
	return nil
}

func (o *PolymarketOracle) Resolve(ctx context.Context, raw json.RawMessage) (Outcome, error) {
	var meta PolymarketMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Outcome{}, fmt.Errorf("polymarket: decode meta: %w", err)
	}
	if meta.MarketID == "" {
		return Outcome{}, fmt.Errorf("polymarket: marketId is required")
	}

	m, err := o.client.GetMarketByID(ctx, meta.MarketID)
	if err != nil {
		return Outcome{}, err
	}
	if !m.Closed {
		return Pending(), nil
	}

	outcomes := m.ParseOutcomes()
	prices := m.ParseOutcomePrices()
	if len(outcomes) != 2 || len(prices) != 2 {
		return NoOutcome(), nil
	}
	for i, p := range prices {
		if p >= winningPrice {
			return Answer(outcomes[i]), nil
		}
	}
	// closed without a clear winner, e.g. cancelled or split 50/50
	return NoOutcome(), nil
}
