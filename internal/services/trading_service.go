package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"prediction-engine/internal/amm"
	"prediction-engine/internal/events"
	"prediction-engine/internal/models"
	"prediction-engine/internal/repository"
	"prediction-engine/internal/utils"

	"github.com/rs/zerolog/log"
)

// sellDust absorbs float residue when a user sells a position in full
const sellDust = 1e-9

// TradingService executes buys and sells against the LMSR market maker
type TradingService struct {
	store        *repository.Store
	locks        *MarketLocks
	publisher    events.Publisher
	solver       amm.Solver
	houseFee     float64
	recentTrades int
}

// NewTradingService creates a trading service. houseFee is the fraction kept
// on every sell; recentTrades is how many trades a snapshot carries.
func NewTradingService(store *repository.Store, locks *MarketLocks, publisher events.Publisher, houseFee float64, recentTrades int) *TradingService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &TradingService{
		store:        store,
		locks:        locks,
		publisher:    publisher,
		solver:       amm.DefaultSolver,
		houseFee:     houseFee,
		recentTrades: recentTrades,
	}
}

// Buy spends req.Amount on req.Side. Pool, position and wager writes commit
// together or not at all.
func (s *TradingService) Buy(ctx context.Context, req models.BetRequest) (*models.BetResponse, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("userId is required: %w", models.ErrInvalidRequest)
	}
	if !validQuantity(req.Amount) {
		return nil, models.ErrInvalidAmount
	}
	// shares are solved for the amount as recorded, so the wager log and the
	// pools agree to the cent
	spend := amm.Currency(req.Amount)
	if !spend.IsPositive() {
		return nil, fmt.Errorf("amount %v rounds to %s: %w", req.Amount, spend.StringFixed(amm.CurrencyPlaces), models.ErrInvalidAmount)
	}
	amount := spend.InexactFloat64()

	resp, err := func() (*models.BetResponse, error) {
		unlock := s.locks.Lock(req.PredictionID)
		defer unlock()

		var (
			market *models.Market
			wager  models.Wager
		)
		err := s.store.Transaction(ctx, func(tx *repository.Store) error {
			m, err := tx.Markets.GetOpenMarket(ctx, req.PredictionID)
			if err != nil {
				return err
			}
			side, ok := m.SideOf(req.Side)
			if !ok {
				return fmt.Errorf("%q on market %d: %w", req.Side, m.ID, models.ErrInvalidSide)
			}

			shares, err := s.solver.SharesForSpend(side, m.PoolA, m.PoolB, m.LiquidityParam, amount)
			if err != nil {
				return fmt.Errorf("market %d: %w: %w", m.ID, models.ErrInvariant, err)
			}
			if amm.RoundCurrency(shares) == 0 {
				return models.ErrTradeTooSmall
			}

			poolA, poolB := amm.Shift(side, m.PoolA, m.PoolB, shares)
			if !validPools(poolA, poolB) {
				return fmt.Errorf("market %d pools %v/%v: %w", m.ID, poolA, poolB, models.ErrInvariant)
			}
			if err := tx.Markets.UpdatePools(ctx, m.ID, poolA, poolB); err != nil {
				return err
			}
			if err := tx.Positions.AddShares(ctx, req.UserID, m.ID, m.Label(side), shares); err != nil {
				return err
			}

			m.PoolA, m.PoolB = poolA, poolB
			wager = models.Wager{
				UserID:     req.UserID,
				Username:   utils.DisplayName(req.UserID, req.Username),
				MarketID:   m.ID,
				Side:       m.Label(side),
				Type:       models.WagerTypeBuy,
				Amount:     spend,
				Shares:     shares,
				PriceAfter: m.Price(side),
			}
			if err := tx.Wagers.Append(ctx, &wager); err != nil {
				return err
			}
			market = m
			return nil
		})
		if err != nil {
			return nil, err
		}

		snapshot, err := buildSnapshot(ctx, s.store, market, s.recentTrades)
		if err != nil {
			return nil, err
		}
		return &models.BetResponse{Bet: wager, Market: snapshot}, nil
	}()
	if err != nil {
		return nil, err
	}

	log.Info().
		Uint("market_id", resp.Market.ID).
		Str("user_id", req.UserID).
		Str("side", resp.Bet.Side).
		Str("amount", resp.Bet.Amount.StringFixed(amm.CurrencyPlaces)).
		Float64("shares", resp.Bet.Shares).
		Msg("buy executed")
	publish(ctx, s.publisher, events.NewEvent(events.TypeTrade, resp.Market.ID, resp))
	return resp, nil
}

// Sell returns req.Shares of req.Side to the pool and pays out the released
// amount net of the house fee.
func (s *TradingService) Sell(ctx context.Context, req models.CashoutRequest) (*models.CashoutResponse, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("userId is required: %w", models.ErrInvalidRequest)
	}
	if !validQuantity(req.Shares) {
		return nil, models.ErrInvalidAmount
	}

	resp, err := func() (*models.CashoutResponse, error) {
		unlock := s.locks.Lock(req.PredictionID)
		defer unlock()

		var (
			market *models.Market
			wager  models.Wager
		)
		err := s.store.Transaction(ctx, func(tx *repository.Store) error {
			m, err := tx.Markets.GetOpenMarket(ctx, req.PredictionID)
			if err != nil {
				return err
			}
			side, ok := m.SideOf(req.Side)
			if !ok {
				return fmt.Errorf("%q on market %d: %w", req.Side, m.ID, models.ErrInvalidSide)
			}
			label := m.Label(side)

			held, err := tx.Positions.GetShares(ctx, req.UserID, m.ID, label)
			if err != nil {
				return err
			}
			if req.Shares > held+sellDust {
				return fmt.Errorf("user %s holds %.6f %q shares, requested %.6f: %w",
					req.UserID, held, label, req.Shares, models.ErrInsufficientShares)
			}
			shares := math.Min(req.Shares, held)

			gross := amm.AmountForSell(side, m.PoolA, m.PoolB, m.LiquidityParam, shares)
			payout := amm.NetOfFee(gross, s.houseFee)

			poolA, poolB := amm.Shift(side, m.PoolA, m.PoolB, -shares)
			poolA, poolB = math.Max(poolA, 0), math.Max(poolB, 0)
			if !validPools(poolA, poolB) {
				return fmt.Errorf("market %d pools %v/%v: %w", m.ID, poolA, poolB, models.ErrInvariant)
			}
			if err := tx.Markets.UpdatePools(ctx, m.ID, poolA, poolB); err != nil {
				return err
			}
			if err := tx.Positions.RemoveShares(ctx, req.UserID, m.ID, label, shares); err != nil {
				return err
			}

			m.PoolA, m.PoolB = poolA, poolB
			wager = models.Wager{
				UserID:     req.UserID,
				Username:   utils.DisplayName(req.UserID, req.Username),
				MarketID:   m.ID,
				Side:       label,
				Type:       models.WagerTypeSell,
				Amount:     payout,
				Shares:     shares,
				PriceAfter: m.Price(side),
			}
			if err := tx.Wagers.Append(ctx, &wager); err != nil {
				return err
			}
			market = m
			return nil
		})
		if err != nil {
			return nil, err
		}

		snapshot, err := buildSnapshot(ctx, s.store, market, s.recentTrades)
		if err != nil {
			return nil, err
		}
		return &models.CashoutResponse{Payout: wager.Amount, Bet: wager, Market: snapshot}, nil
	}()
	if err != nil {
		return nil, err
	}

	log.Info().
		Uint("market_id", resp.Market.ID).
		Str("user_id", req.UserID).
		Str("side", resp.Bet.Side).
		Float64("shares", resp.Bet.Shares).
		Str("payout", resp.Payout.StringFixed(amm.CurrencyPlaces)).
		Msg("sell executed")
	publish(ctx, s.publisher, events.NewEvent(events.TypeTrade, resp.Market.ID, resp))
	return resp, nil
}

// Quote previews a buy without touching storage
func (s *TradingService) Quote(ctx context.Context, marketID uint, sideLabel string, amount float64) (*models.QuoteResponse, error) {
	if !validQuantity(amount) || !amm.Currency(amount).IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	amount = amm.RoundCurrency(amount)
	m, err := s.store.Markets.GetOpenMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	side, ok := m.SideOf(sideLabel)
	if !ok {
		return nil, fmt.Errorf("%q on market %d: %w", sideLabel, m.ID, models.ErrInvalidSide)
	}

	q, err := amm.QuoteBuy(side, m.PoolA, m.PoolB, m.LiquidityParam, amount)
	if err != nil {
		return nil, fmt.Errorf("market %d: %w: %w", m.ID, models.ErrInvariant, err)
	}
	return &models.QuoteResponse{
		MarketID: m.ID,
		Side:     m.Label(side),
		Amount:   amount,
		Quote:    q,
	}, nil
}

// Snapshot renders the public view of a market
func (s *TradingService) Snapshot(ctx context.Context, market *models.Market) (models.MarketSnapshot, error) {
	return buildSnapshot(ctx, s.store, market, s.recentTrades)
}

func validQuantity(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}

func validPools(a, b float64) bool {
	return a >= 0 && b >= 0 && !math.IsNaN(a) && !math.IsNaN(b) && !math.IsInf(a, 0) && !math.IsInf(b, 0)
}
