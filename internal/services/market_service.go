package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"prediction-engine/internal/events"
	"prediction-engine/internal/models"
	"prediction-engine/internal/oracle"
	"prediction-engine/internal/repository"

	"github.com/rs/zerolog/log"
)

// MarketService opens markets and serves read views
type MarketService struct {
	store            *repository.Store
	publisher        events.Publisher
	oracles          *oracle.Registry
	defaultLiquidity float64
	recentTrades     int
	resolvedLimit    int
	now              func() time.Time
}

func NewMarketService(
	store *repository.Store,
	publisher events.Publisher,
	oracles *oracle.Registry,
	defaultLiquidity float64,
	recentTrades, resolvedLimit int,
) *MarketService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if oracles == nil {
		oracles = oracle.NewRegistry()
	}
	return &MarketService{
		store:            store,
		publisher:        publisher,
		oracles:          oracles,
		defaultLiquidity: defaultLiquidity,
		recentTrades:     recentTrades,
		resolvedLimit:    resolvedLimit,
		now:              time.Now,
	}
}

// CreateMarket validates and opens a new market with empty pools
func (s *MarketService) CreateMarket(ctx context.Context, req models.CreateMarketRequest) (*models.Market, error) {
	market, err := s.newMarket(req)
	if err != nil {
		return nil, err
	}

	if market.ExternalID != nil {
		if _, err := s.store.Markets.FindByExternalID(ctx, *market.ExternalID); err == nil {
			return nil, fmt.Errorf("external id %q already mirrored: %w", *market.ExternalID, models.ErrInvalidMarket)
		} else if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}

	if err := s.store.Markets.CreateMarket(ctx, market); err != nil {
		return nil, err
	}

	log.Info().
		Uint("market_id", market.ID).
		Str("question", market.Question).
		Str("source", market.ResolutionSource).
		Time("expires_at", market.ExpiresAt).
		Msg("market created")
	publish(ctx, s.publisher, events.NewEvent(events.TypeMarketCreated, market.ID, market))
	return market, nil
}

func (s *MarketService) newMarket(req models.CreateMarketRequest) (*models.Market, error) {
	question := strings.TrimSpace(req.Question)
	answerA := strings.TrimSpace(req.AnswerA)
	answerB := strings.TrimSpace(req.AnswerB)

	switch {
	case question == "":
		return nil, fmt.Errorf("question is required: %w", models.ErrInvalidMarket)
	case answerA == "" || answerB == "":
		return nil, fmt.Errorf("both answers are required: %w", models.ErrInvalidMarket)
	case answerA == answerB:
		return nil, fmt.Errorf("answers must differ: %w", models.ErrInvalidMarket)
	case answerA == models.ResultNoResult || answerB == models.ResultNoResult:
		return nil, fmt.Errorf("%q is reserved: %w", models.ResultNoResult, models.ErrInvalidMarket)
	}

	liquidity := req.Liquidity
	if liquidity == 0 {
		liquidity = s.defaultLiquidity
	}
	if liquidity <= 0 || math.IsInf(liquidity, 0) || math.IsNaN(liquidity) {
		return nil, fmt.Errorf("liquidity must be positive: %w", models.ErrInvalidMarket)
	}

	if !req.ExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("expiry must be in the future: %w", models.ErrInvalidMarket)
	}

	source := strings.TrimSpace(req.ResolutionSource)
	if source == "" {
		source = oracle.SourceManual
	}
	o, ok := s.oracles.Lookup(source)
	if !ok {
		return nil, fmt.Errorf("unknown resolution source %q: %w", source, models.ErrInvalidMarket)
	}

	meta := "{}"
	if len(req.ResolutionMeta) > 0 {
		b, err := json.Marshal(req.ResolutionMeta)
		if err != nil {
			return nil, fmt.Errorf("resolution meta: %v: %w", err, models.ErrInvalidMarket)
		}
		meta = string(b)
	}
	if v, ok := o.(oracle.MetaValidator); ok {
		if err := v.ValidateMeta(json.RawMessage(meta), answerA, answerB); err != nil {
			return nil, fmt.Errorf("resolution meta: %v: %w", err, models.ErrInvalidMarket)
		}
	}

	market := &models.Market{
		Question:         question,
		AnswerA:          answerA,
		AnswerB:          answerB,
		LiquidityParam:   liquidity,
		ResolutionSource: source,
		ResolutionMeta:   meta,
		ExpiresAt:        req.ExpiresAt.UTC(),
	}
	if id := strings.TrimSpace(req.ExternalID); id != "" {
		market.ExternalID = &id
	}
	return market, nil
}

// GetSnapshot returns the public view of a market in any status
func (s *MarketService) GetSnapshot(ctx context.Context, marketID uint) (*models.MarketSnapshot, error) {
	market, err := s.store.Markets.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	snapshot, err := buildSnapshot(ctx, s.store, market, s.recentTrades)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ListPredictions returns every open market and the latest resolved ones
func (s *MarketService) ListPredictions(ctx context.Context) (*models.PredictionsResponse, error) {
	open, err := s.store.Markets.ListOpen(ctx)
	if err != nil {
		return nil, err
	}

	resp := &models.PredictionsResponse{
		Active:   make([]models.MarketSnapshot, 0, len(open)),
		Resolved: []models.ResolvedMarket{},
	}
	for i := range open {
		snapshot, err := buildSnapshot(ctx, s.store, &open[i], s.recentTrades)
		if err != nil {
			return nil, err
		}
		resp.Active = append(resp.Active, snapshot)
	}

	resolved, err := s.store.Archive.ListResolved(ctx, s.resolvedLimit)
	if err != nil {
		return nil, err
	}
	if resolved != nil {
		resp.Resolved = resolved
	}
	return resp, nil
}

// UserPositions returns a user's open positions valued at current prices
func (s *MarketService) UserPositions(ctx context.Context, userID string) ([]models.PositionView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("userId is required: %w", models.ErrInvalidRequest)
	}

	positions, err := s.store.Positions.ListUserPositions(ctx, userID)
	if err != nil {
		return nil, err
	}

	markets := make(map[uint]*models.Market)
	views := make([]models.PositionView, 0, len(positions))
	for _, p := range positions {
		market, ok := markets[p.MarketID]
		if !ok {
			market, err = s.store.Markets.GetMarket(ctx, p.MarketID)
			if err != nil {
				return nil, err
			}
			markets[p.MarketID] = market
		}

		side, ok := market.SideOf(p.Side)
		if !ok {
			return nil, fmt.Errorf("position side %q on market %d: %w", p.Side, p.MarketID, models.ErrInvariant)
		}
		price := market.Price(side)
		views = append(views, models.PositionView{
			Position:     p,
			Question:     market.Question,
			CurrentPrice: price,
			MarketValue:  p.Shares * price,
		})
	}
	return views, nil
}
