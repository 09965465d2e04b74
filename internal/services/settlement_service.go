package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"prediction-engine/internal/amm"
	"prediction-engine/internal/archive"
	"prediction-engine/internal/events"
	"prediction-engine/internal/models"
	"prediction-engine/internal/oracle"
	"prediction-engine/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// exportTimeout bounds the archive upload after a settlement commits
const exportTimeout = 30 * time.Second

// SettlementService closes markets and pays winning positions
type SettlementService struct {
	store         *repository.Store
	locks         *MarketLocks
	publisher     events.Publisher
	exporter      archive.Exporter
	oracles       *oracle.Registry
	houseFee      float64
	oracleTimeout time.Duration
	now           func() time.Time
}

// NewSettlementService creates a settlement service. exporter may be nil.
func NewSettlementService(
	store *repository.Store,
	locks *MarketLocks,
	publisher events.Publisher,
	exporter archive.Exporter,
	oracles *oracle.Registry,
	houseFee float64,
	oracleTimeout time.Duration,
) *SettlementService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if oracles == nil {
		oracles = oracle.NewRegistry()
	}
	if oracleTimeout <= 0 {
		oracleTimeout = 15 * time.Second
	}
	return &SettlementService{
		store:         store,
		locks:         locks,
		publisher:     publisher,
		exporter:      exporter,
		oracles:       oracles,
		houseFee:      houseFee,
		oracleTimeout: oracleTimeout,
		now:           time.Now,
	}
}

// Resolve settles a market on result, which must be one of its answers or
// models.ResultNoResult. Every winning position is paid shares*(1-fee), every
// position is cleared and the market is archived, all in one transaction.
func (s *SettlementService) Resolve(ctx context.Context, marketID uint, result string, manual bool) (*models.ResolveResponse, error) {
	resp, err := func() (*models.ResolveResponse, error) {
		unlock := s.locks.Lock(marketID)
		defer unlock()

		var resp *models.ResolveResponse
		err := s.store.Transaction(ctx, func(tx *repository.Store) error {
			var err error
			resp, err = s.settle(ctx, tx, marketID, result, manual)
			return err
		})
		return resp, err
	}()
	if err != nil {
		return nil, err
	}

	log.Info().
		Uint("market_id", marketID).
		Str("result", resp.Resolved.Result).
		Int("positions", resp.Resolved.TotalPositions).
		Int("winners", resp.Resolved.WinnerCount).
		Str("total_paid", resp.Resolved.TotalPaid.StringFixed(amm.CurrencyPlaces)).
		Bool("manual", manual).
		Msg("market resolved")

	publish(ctx, s.publisher, events.NewEvent(events.TypeResolved, marketID, resp.Resolved))
	s.export(ctx, &resp.Resolved)
	return resp, nil
}

func (s *SettlementService) settle(ctx context.Context, tx *repository.Store, marketID uint, result string, manual bool) (*models.ResolveResponse, error) {
	market, err := tx.Markets.GetOpenMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if result != models.ResultNoResult && result != market.AnswerA && result != market.AnswerB {
		return nil, fmt.Errorf("result %q on market %d: %w", result, marketID, models.ErrInvalidSide)
	}

	positions, err := tx.Positions.ListPositions(ctx, marketID)
	if err != nil {
		return nil, err
	}

	payouts := models.PayoutList{}
	total := decimal.Zero
	for _, p := range positions {
		if p.Side != result {
			continue
		}

		wagers, err := tx.Wagers.UnpaidBuys(ctx, marketID, p.UserID, p.Side)
		if err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, 0, len(wagers))
		for _, w := range wagers {
			ids = append(ids, w.ID)
		}
		if _, err := tx.Wagers.MarkPaid(ctx, ids); err != nil {
			return nil, err
		}

		amount := amm.NetOfFee(p.Shares, s.houseFee)
		if err := tx.Archive.RecordPayout(ctx, &models.Payout{
			MarketID: marketID,
			UserID:   p.UserID,
			Side:     p.Side,
			Shares:   p.Shares,
			Amount:   amount,
		}); err != nil {
			return nil, err
		}

		payouts = append(payouts, models.PayoutEntry{UserID: p.UserID, Shares: p.Shares, Amount: amount})
		total = total.Add(amount)
	}

	if _, err := tx.Positions.ClearMarket(ctx, marketID); err != nil {
		return nil, err
	}

	resolvedAt := s.now().UTC()
	market, err = tx.Markets.Resolve(ctx, marketID, result, resolvedAt)
	if err != nil {
		return nil, err
	}

	resolved := models.ResolvedMarket{
		MarketID:       market.ID,
		Question:       market.Question,
		AnswerA:        market.AnswerA,
		AnswerB:        market.AnswerB,
		Status:         market.Status,
		Result:         result,
		PoolA:          market.PoolA,
		PoolB:          market.PoolB,
		TotalPositions: len(positions),
		WinnerCount:    len(payouts),
		TotalPaid:      total,
		Payouts:        payouts,
		Manual:         manual,
		ResolvedAt:     resolvedAt,
	}
	if err := tx.Archive.AppendResolved(ctx, &resolved); err != nil {
		return nil, err
	}

	return &models.ResolveResponse{Resolved: resolved, Payouts: payouts}, nil
}

// ResolveExpired asks the market's oracle for an outcome and settles on it.
// The oracle is consulted before the market lock is taken. It returns false
// when the outcome is not yet known and the market stays open.
func (s *SettlementService) ResolveExpired(ctx context.Context, market models.Market) (bool, error) {
	o, ok := s.oracles.Lookup(market.ResolutionSource)
	if !ok {
		log.Warn().
			Uint("market_id", market.ID).
			Str("source", market.ResolutionSource).
			Msg("no oracle registered for resolution source")
		return false, nil
	}

	octx, cancel := context.WithTimeout(ctx, s.oracleTimeout)
	outcome, err := o.Resolve(octx, json.RawMessage(market.ResolutionMeta))
	cancel()
	if err != nil {
		return false, fmt.Errorf("market %d via %s: %w: %w", market.ID, market.ResolutionSource, models.ErrUpstreamUnavailable, err)
	}

	var result string
	switch {
	case outcome.Known:
		result = outcome.Answer
	case outcome.Final:
		result = models.ResultNoResult
	default:
		return false, nil
	}

	if _, err := s.Resolve(ctx, market.ID, result, false); err != nil {
		if errors.Is(err, models.ErrAlreadyResolved) {
			// settled by an operator between the sweep listing and now
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListExpired returns open markets past their expiry
func (s *SettlementService) ListExpired(ctx context.Context) ([]models.Market, error) {
	return s.store.Markets.ListExpired(ctx, s.now())
}

func (s *SettlementService) export(ctx context.Context, resolved *models.ResolvedMarket) {
	if s.exporter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exportTimeout)
	defer cancel()
	if err := s.exporter.Export(ctx, resolved); err != nil {
		log.Error().Err(err).Uint("market_id", resolved.MarketID).Msg("failed to export resolved market")
	}
}
