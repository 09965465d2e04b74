package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"prediction-engine/internal/amm"
	"prediction-engine/internal/events"
	"prediction-engine/internal/models"
	"prediction-engine/internal/oracle"
	"prediction-engine/internal/repository"
	"prediction-engine/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFee = 0.05

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturePublisher) Publish(_ context.Context, e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capturePublisher) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

type captureExporter struct {
	mu       sync.Mutex
	exported []uint
}

func (c *captureExporter) Export(_ context.Context, r *models.ResolvedMarket) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exported = append(c.exported, r.MarketID)
	return nil
}

type testEngine struct {
	store      *repository.Store
	trading    *TradingService
	settlement *SettlementService
	markets    *MarketService
	oracles    *oracle.Registry
	publisher  *capturePublisher
	exporter   *captureExporter
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	store := repository.NewStore(testutil.NewTestDB(t))
	locks := NewMarketLocks()
	pub := &capturePublisher{}
	exp := &captureExporter{}
	reg := oracle.NewRegistry()

	return &testEngine{
		store:      store,
		trading:    NewTradingService(store, locks, pub, testFee, 10),
		settlement: NewSettlementService(store, locks, pub, exp, reg, testFee, time.Second),
		markets:    NewMarketService(store, pub, reg, 50, 10, 20),
		oracles:    reg,
		publisher:  pub,
		exporter:   exp,
	}
}

func (e *testEngine) createMarket(t *testing.T) *models.Market {
	t.Helper()
	m, err := e.markets.CreateMarket(context.Background(), models.CreateMarketRequest{
		Question:  "Will it rain tomorrow?",
		AnswerA:   "Yes",
		AnswerB:   "No",
		Liquidity: 50,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	return m
}

func (e *testEngine) buy(t *testing.T, marketID uint, user, side string, amount float64) *models.BetResponse {
	t.Helper()
	resp, err := e.trading.Buy(context.Background(), models.BetRequest{
		UserID: user, Username: user, PredictionID: marketID, Side: side, Amount: amount,
	})
	require.NoError(t, err)
	return resp
}

func (e *testEngine) countWagers(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.store.DB().Model(&models.Wager{}).Count(&n).Error)
	return n
}

func TestBuy_MovesPriceAboveHalf(t *testing.T) {
	e := newTestEngine(t)
	m := e.createMarket(t)

	resp := e.buy(t, m.ID, "alice", "Yes", 100)

	assert.Greater(t, resp.Market.PriceA, 50.0)
	assert.InDelta(t, 100, resp.Market.PriceA+resp.Market.PriceB, 0.011)
	assert.Greater(t, resp.Bet.Shares, 100.0)
	assert.Equal(t, "100", resp.Bet.Amount.String())
	assert.Equal(t, models.WagerTypeBuy, resp.Bet.Type)
	require.NotNil(t, resp.Market.MultiplierA)
	assert.Less(t, *resp.Market.MultiplierA, 2.0)
	require.Len(t, resp.Market.RecentTrades, 1)

	shares, err := e.store.Positions.GetShares(context.Background(), "alice", m.ID, "Yes")
	require.NoError(t, err)
	assert.InDelta(t, resp.Bet.Shares, shares, 1e-9)

	stored, err := e.store.Markets.GetMarket(context.Background(), m.ID)
	require.NoError(t, err)
	assert.InDelta(t, resp.Bet.Shares, stored.PoolA, 1e-9)
	assert.Zero(t, stored.PoolB)

	assert.Contains(t, e.publisher.types(), events.TypeTrade)
}

func TestBuy_Rejections(t *testing.T) {
	e := newTestEngine(t)
	m := e.createMarket(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  models.BetRequest
		want error
	}{
		{"unknown market", models.BetRequest{UserID: "u", PredictionID: 999, Side: "Yes", Amount: 10}, models.ErrNotFound},
		{"invalid side", models.BetRequest{UserID: "u", PredictionID: m.ID, Side: "yes", Amount: 10}, models.ErrInvalidSide},
		{"zero amount", models.BetRequest{UserID: "u", PredictionID: m.ID, Side: "Yes", Amount: 0}, models.ErrInvalidAmount},
		{"negative amount", models.BetRequest{UserID: "u", PredictionID: m.ID, Side: "Yes", Amount: -5}, models.ErrInvalidAmount},
		{"nan amount", models.BetRequest{UserID: "u", PredictionID: m.ID, Side: "Yes", Amount: math.NaN()}, models.ErrInvalidAmount},
		{"missing user", models.BetRequest{PredictionID: m.ID, Side: "Yes", Amount: 10}, models.ErrInvalidRequest},
		{"dust amount", models.BetRequest{UserID: "u", PredictionID: m.ID, Side: "Yes", Amount: 0.001}, models.ErrInvalidAmount},
		{"sub-cent amount", models.BetRequest{UserID: "u", PredictionID: m.ID, Side: "Yes", Amount: 0.004}, models.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.trading.Buy(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, e.countWagers(t))
}

func TestBuy_SubCentAmountLeavesNothingToSettle(t *testing.T) {
	e := newTestEngine(t)
	m := e.createMarket(t)
	ctx := context.Background()

	_, err := e.trading.Buy(ctx, models.BetRequest{UserID: "u", PredictionID: m.ID, Side: "Yes", Amount: 0.004})
	require.ErrorIs(t, err, models.ErrInvalidAmount)

	after, err := e.store.Markets.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.Zero(t, after.PoolA)
	assert.Zero(t, after.PoolB)

	shares, err := e.store.Positions.GetShares(ctx, "u", m.ID, "Yes")
	require.NoError(t, err)
	assert.Zero(t, shares)
	assert.Zero(t, e.countWagers(t))

	resp, err := e.settlement.Resolve(ctx, m.ID, "Yes", true)
	require.NoError(t, err)
	assert.Empty(t, resp.Payouts)
	assert.True(t, resp.Resolved.TotalPaid.IsZero())
}

func TestBuy_RecordsTheAmountSharesWereSolvedFor(t *testing.T) {
	e := newTestEngine(t)
	m := e.createMarket(t)

	resp := e.buy(t, m.ID, "u", "Yes", 10.004)
	assert.Equal(t, "10.00", resp.Bet.Amount.StringFixed(amm.CurrencyPlaces))

	want, err := amm.SharesForSpend(amm.SideA, 0, 0, m.LiquidityParam, 10)
	require.NoError(t, err)
	assert.InDelta(t, want, resp.Bet.Shares, 1e-6)
}

func TestSell_RoundTripPaysLessThanStake(t *testing.T) {
	e := newTestEngine(t)
	m := e.createMarket(t)
	ctx := context.Background()

	bought := e.buy(t, m.ID, "bob", "Yes", 100)

	resp, err := e.trading.Sell(ctx, models.CashoutRequest{
		UserID: "bob", PredictionID: m.ID, Side: "Yes", Shares: bought.Bet.Shares,
	})
	require.NoError(t, err)

	assert.True(t, resp.Payout.LessThan(amm.Currency(100)), "payout %s", resp.Payout)
	assert.True(t, resp.Payout.IsPositive())
	assert.Equal(t, models.WagerTypeSell, resp.Bet.Type)
	assert.InDelta(t, 50, resp.Market.PriceA, 0.01)

	shares, err := e.store.Positions.GetShares(ctx, "bob", m.ID, "Yes")
	require.NoError(t, err)
	assert.Zero(t, shares)

	stored, err := e.store.Markets.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0, stored.PoolA, 1e-9)
	assert.EqualValues(t, 2, e.countWagers(t))
}

func TestSell_InsufficientSharesLeavesStateUnchanged(t *testing.T) {
	e := newTestEngine(t)
	m := e.createMarket(t)
	ctx := context.Background()

	bought := e.buy(t, m.ID, "carol", "No", 30)
	before, err := e.store.Markets.GetMarket(ctx, m.ID)
	require.NoError(t, err)

	_, err = e.trading.Sell(ctx, models.CashoutRequest{
		UserID: "carol", PredictionID: m.ID, Side: "No", Shares: bought.Bet.Shares + 1,
	})
	assert.ErrorIs(t, err, models.ErrInsufficientShares)

	_, err = e.trading.Sell(ctx, models.CashoutRequest{
		UserID: "dave", PredictionID: m.ID, Side: "No", Shares: 1,
	})
	assert.ErrorIs(t, err, models.ErrInsufficientShares)

	after, err := e.store.Markets.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, before.PoolA, after.PoolA)
	assert.Equal(t, before.PoolB, after.PoolB)

	shares, err := e.store.Positions.GetShares(ctx, "carol", m.ID, "No")
	require.NoError(t, err)
	assert.InDelta(t, bought.Bet.Shares, shares, 1e-9)
	assert.EqualValues(t, 1, e.countWagers(t))
}

func TestSell_PartialKeepsPosition(t *testing.T) {
	e := newTestEngine(t)
	m := e.createMarket(t)
	ctx := context.Background()

	bought := e.buy(t, m.ID, "erin", "Yes", 60)
	half := bought.Bet.Shares / 2

	_, err := e.trading.Sell(ctx, models.CashoutRequest{UserID: "erin", PredictionID: m.ID, Side: "Yes", Shares: half})
	require.NoError(t, err)

	shares, err := e.store.Positions.GetShares(ctx, "erin", m.ID, "Yes")
	require.NoError(t, err)
	assert.InDelta(t, bought.Bet.Shares-half, shares, 1e-9)
}

func TestResolve_PaysWinnersAndArchives(t *testing.T) {
	e := newTestEngine(t)
	m := e.createMarket(t)
	ctx := context.Background()

	alice := e.buy(t, m.ID, "alice", "Yes", 100)
	e.buy(t, m.ID, "bob", "No", 40)

	resp, err := e.settlement.Resolve(ctx, m.ID, "Yes", true)
	require.NoError(t, err)

	expected := amm.NetOfFee(alice.Bet.Shares, testFee)
	require.Len(t, resp.Payouts, 1)
	assert.Equal(t, "alice", resp.Payouts[0].UserID)
	assert.True(t, expected.Equal(resp.Payouts[0].Amount), "want %s got %s", expected, resp.Payouts[0].Amount)
	assert.Equal(t, 2, resp.Resolved.TotalPositions)
	assert.Equal(t, 1, resp.Resolved.WinnerCount)
	assert.True(t, expected.Equal(resp.Resolved.TotalPaid))
	assert.True(t, resp.Resolved.Manual)

	stored, err := e.store.Markets.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MarketStatusResolved, stored.Status)
	require.NotNil(t, stored.Result)
	assert.Equal(t, "Yes", *stored.Result)

	positions, err := e.store.Positions.ListPositions(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, positions)

	var aliceWagers, bobWagers []models.Wager
	require.NoError(t, e.store.DB().Where("user_id = ?", "alice").Find(&aliceWagers).Error)
	require.NoError(t, e.store.DB().Where("user_id = ?", "bob").Find(&bobWagers).Error)
	require.Len(t, aliceWagers, 1)
	assert.True(t, aliceWagers[0].PaidOut)
	require.Len(t, bobWagers, 1)
	assert.False(t, bobWagers[0].PaidOut)

	archived, err := e.store.Archive.GetResolved(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Yes", archived.Result)
	require.Len(t, archived.Payouts, 1)
	assert.True(t, expected.Equal(archived.Payouts[0].Amount))

	receipts, err := e.store.Archive.PayoutsForMarket(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, receipts, 1)

	assert.Equal(t, []uint{m.ID}, e.exporter.exported)
	assert.Contains(t, e.publisher.types(), events.TypeResolved)

	predictions, err := e.markets.ListPredictions(ctx)
	require.NoError(t, err)
	assert.Empty(t, predictions.Active)
	require.Len(t, predictions.Resolved, 1)
	assert.Equal(t, m.ID, predictions.Resolved[0].MarketID)
}

func TestResolve_TwiceFailsAndPaysOnce(t *testing.T) {
	e := newTestEngine(t)
	m := e.createMarket(t)
	ctx := context.Background()

	e.buy(t, m.ID, "alice", "Yes", 25)
	_, err := e.settlement.Resolve(ctx, m.ID, "Yes", true)
	require.NoError(t, err)

	_, err = e.settlement.Resolve(ctx, m.ID, "Yes", true)
	assert.ErrorIs(t, err, models.ErrAlreadyResolved)

	_, err = e.settlement.Resolve(ctx, m.ID, "No", true)
	assert.ErrorIs(t, err, models.ErrAlreadyResolved)

	receipts, err := e.store.Archive.PayoutsForMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, receipts, 1)
	assert.Len(t, e.exporter.exported, 1)
}

func TestResolve_NoResultPaysNobody(t *testing.T) {
	e := newTestEngine(t)
	m := e.createMarket(t)
	ctx := context.Background()

	e.buy(t, m.ID, "alice", "Yes", 25)
	e.buy(t, m.ID, "bob", "No", 25)

	resp, err := e.settlement.Resolve(ctx, m.ID, models.ResultNoResult, true)
	require.NoError(t, err)
	assert.Empty(t, resp.Payouts)
	assert.Equal(t, models.ResultNoResult, resp.Resolved.Result)
	assert.True(t, resp.Resolved.TotalPaid.IsZero())
	assert.Equal(t, 2, resp.Resolved.TotalPositions)

	positions, err := e.store.Positions.ListPositions(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, positions)

	var paid int64
	require.NoError(t, e.store.DB().Model(&models.Wager{}).Where("paid_out = ?", true).Count(&paid).Error)
	assert.Zero(t, paid)

	archived, err := e.store.Archive.GetResolved(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResultNoResult, archived.Result)
	assert.Equal(t, models.MarketStatusResolved, archived.Status)
}

func TestResolve_InvalidResult(t *testing.T) {
	e := newTestEngine(t)
	m := e.createMarket(t)

	_, err := e.settlement.Resolve(context.Background(), m.ID, "Maybe", true)
	assert.ErrorIs(t, err, models.ErrInvalidSide)

	stored, err := e.store.Markets.GetMarket(context.Background(), m.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsOpen())

	_, err = e.settlement.Resolve(context.Background(), 4242, "Yes", true)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestTradeOnResolvedMarketLeavesStateUnchanged(t *testing.T) {
	e := newTestEngine(t)
	m := e.createMarket(t)
	ctx := context.Background()

	e.buy(t, m.ID, "alice", "Yes", 10)
	_, err := e.settlement.Resolve(ctx, m.ID, "No", true)
	require.NoError(t, err)
	before, err := e.store.Markets.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	wagers := e.countWagers(t)

	_, err = e.trading.Buy(ctx, models.BetRequest{UserID: "bob", PredictionID: m.ID, Side: "Yes", Amount: 10})
	assert.ErrorIs(t, err, models.ErrAlreadyResolved)

	_, err = e.trading.Sell(ctx, models.CashoutRequest{UserID: "alice", PredictionID: m.ID, Side: "Yes", Shares: 1})
	assert.ErrorIs(t, err, models.ErrAlreadyResolved)

	after, err := e.store.Markets.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, before.PoolA, after.PoolA)
	assert.Equal(t, before.PoolB, after.PoolB)
	assert.Equal(t, wagers, e.countWagers(t))
}

func registerFixed(e *testEngine, source string, out oracle.Outcome, err error) {
	e.oracles.Register(source, oracle.Func(func(context.Context, json.RawMessage) (oracle.Outcome, error) {
		return out, err
	}))
}

func (e *testEngine) createSourcedMarket(t *testing.T, source string) *models.Market {
	t.Helper()
	m, err := e.markets.CreateMarket(context.Background(), models.CreateMarketRequest{
		Question:         "Will the feed say yes?",
		AnswerA:          "Yes",
		AnswerB:          "No",
		ExpiresAt:        time.Now().Add(time.Hour),
		ResolutionSource: source,
		ResolutionMeta:   map[string]any{"k": "v"},
	})
	require.NoError(t, err)
	return m
}

func TestResolveExpired_OracleErrorLeavesMarketOpen(t *testing.T) {
	e := newTestEngine(t)
	registerFixed(e, "flaky", oracle.Outcome{}, errors.New("timeout"))
	m := e.createSourcedMarket(t, "flaky")
	e.buy(t, m.ID, "alice", "Yes", 10)

	resolved, err := e.settlement.ResolveExpired(context.Background(), *m)
	assert.False(t, resolved)
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)

	stored, err := e.store.Markets.GetMarket(context.Background(), m.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsOpen())
	positions, err := e.store.Positions.ListPositions(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Len(t, positions, 1)
}

func TestResolveExpired_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		outcome    oracle.Outcome
		resolved   bool
		wantResult string
	}{
		{"known answer", oracle.Answer("No"), true, "No"},
		{"final unknown", oracle.NoOutcome(), true, models.ResultNoResult},
		{"pending", oracle.Pending(), false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			registerFixed(e, "feed", tt.outcome, nil)
			m := e.createSourcedMarket(t, "feed")

			resolved, err := e.settlement.ResolveExpired(context.Background(), *m)
			require.NoError(t, err)
			assert.Equal(t, tt.resolved, resolved)

			stored, err := e.store.Markets.GetMarket(context.Background(), m.ID)
			require.NoError(t, err)
			if !tt.resolved {
				assert.True(t, stored.IsOpen())
				return
			}
			require.NotNil(t, stored.Result)
			assert.Equal(t, tt.wantResult, *stored.Result)

			archived, err := e.store.Archive.GetResolved(context.Background(), m.ID)
			require.NoError(t, err)
			assert.False(t, archived.Manual)
		})
	}
}

func TestResolveExpired_AlreadyResolvedIsNotAnError(t *testing.T) {
	e := newTestEngine(t)
	registerFixed(e, "feed", oracle.Answer("Yes"), nil)
	m := e.createSourcedMarket(t, "feed")

	_, err := e.settlement.Resolve(context.Background(), m.ID, "No", true)
	require.NoError(t, err)

	resolved, err := e.settlement.ResolveExpired(context.Background(), *m)
	require.NoError(t, err)
	assert.False(t, resolved)
}

func TestConcurrentBuysKeepPoolAndPositionsConsistent(t *testing.T) {
	e := newTestEngine(t)
	m := e.createMarket(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			side := "Yes"
			if i%2 == 1 {
				side = "No"
			}
			_, err := e.trading.Buy(ctx, models.BetRequest{UserID: "u", PredictionID: m.ID, Side: side, Amount: 5})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := e.store.Markets.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	yes, err := e.store.Positions.GetShares(ctx, "u", m.ID, "Yes")
	require.NoError(t, err)
	no, err := e.store.Positions.GetShares(ctx, "u", m.ID, "No")
	require.NoError(t, err)

	assert.InDelta(t, stored.PoolA, yes, 1e-6)
	assert.InDelta(t, stored.PoolB, no, 1e-6)
	assert.EqualValues(t, n, e.countWagers(t))
}

func TestQuoteDoesNotTrade(t *testing.T) {
	e := newTestEngine(t)
	m := e.createMarket(t)

	q, err := e.trading.Quote(context.Background(), m.ID, "Yes", 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, q.PriceBefore, 1e-12)
	assert.Greater(t, q.PriceAfter, 0.5)

	bought := e.buy(t, m.ID, "alice", "Yes", 100)
	assert.InDelta(t, q.Shares, bought.Bet.Shares, 1e-9)

	_, err = e.trading.Quote(context.Background(), m.ID, "Perhaps", 100)
	assert.ErrorIs(t, err, models.ErrInvalidSide)
}

func TestCreateMarket_Validation(t *testing.T) {
	e := newTestEngine(t)
	e.oracles.Register(oracle.SourceHTTPJSON, oracle.NewHTTPJSONOracle(time.Second, 100))
	e.oracles.Register(oracle.SourcePolymarket, oracle.NewPolymarketOracle(nil))
	future := time.Now().Add(time.Hour)
	httpJSON := func(meta map[string]any) models.CreateMarketRequest {
		return models.CreateMarketRequest{
			Question: "Q", AnswerA: "Yes", AnswerB: "No", ExpiresAt: future,
			ResolutionSource: oracle.SourceHTTPJSON, ResolutionMeta: meta,
		}
	}

	tests := []struct {
		name string
		req  models.CreateMarketRequest
	}{
		{"http_json without meta", httpJSON(nil)},
		{"http_json empty meta", httpJSON(map[string]any{})},
		{"http_json relative url", httpJSON(map[string]any{"url": "/score", "field": "winner", "answers": map[string]any{"1": "Yes"}})},
		{"http_json answer outside market", httpJSON(map[string]any{"url": "https://api.example.org/score", "field": "winner", "answers": map[string]any{"1": "Maybe"}})},
		{"http_json threshold label outside market", httpJSON(map[string]any{"url": "https://api.example.org/score", "field": "v", "threshold": 10, "above": "Yes", "below": "Later"})},
		{"polymarket without market id", models.CreateMarketRequest{Question: "Q", AnswerA: "Yes", AnswerB: "No", ExpiresAt: future, ResolutionSource: oracle.SourcePolymarket, ResolutionMeta: map[string]any{"slug": "x"}}},
		{"empty question", models.CreateMarketRequest{Question: " ", AnswerA: "Yes", AnswerB: "No", ExpiresAt: future}},
		{"same answers", models.CreateMarketRequest{Question: "Q", AnswerA: "Yes", AnswerB: "Yes", ExpiresAt: future}},
		{"reserved answer", models.CreateMarketRequest{Question: "Q", AnswerA: "Yes", AnswerB: models.ResultNoResult, ExpiresAt: future}},
		{"negative liquidity", models.CreateMarketRequest{Question: "Q", AnswerA: "Yes", AnswerB: "No", Liquidity: -1, ExpiresAt: future}},
		{"past expiry", models.CreateMarketRequest{Question: "Q", AnswerA: "Yes", AnswerB: "No", ExpiresAt: time.Now().Add(-time.Minute)}},
		{"unknown source", models.CreateMarketRequest{Question: "Q", AnswerA: "Yes", AnswerB: "No", ExpiresAt: future, ResolutionSource: "crystal_ball"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.markets.CreateMarket(context.Background(), tt.req)
			assert.ErrorIs(t, err, models.ErrInvalidMarket)
		})
	}
}

func TestCreateMarket_AcceptsValidOracleMeta(t *testing.T) {
	e := newTestEngine(t)
	e.oracles.Register(oracle.SourceHTTPJSON, oracle.NewHTTPJSONOracle(time.Second, 100))

	m, err := e.markets.CreateMarket(context.Background(), models.CreateMarketRequest{
		Question:         "Home win?",
		AnswerA:          "Yes",
		AnswerB:          "No",
		ExpiresAt:        time.Now().Add(time.Hour),
		ResolutionSource: oracle.SourceHTTPJSON,
		ResolutionMeta: map[string]any{
			"url":     "https://api.example.org/score",
			"field":   "data.winner",
			"answers": map[string]any{"home": "Yes", "away": "No"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, oracle.SourceHTTPJSON, m.ResolutionSource)
	assert.JSONEq(t, `{"url":"https://api.example.org/score","field":"data.winner","answers":{"home":"Yes","away":"No"}}`, m.ResolutionMeta)
}

func TestCreateMarket_DefaultsAndExternalID(t *testing.T) {
	e := newTestEngine(t)
	req := models.CreateMarketRequest{
		Question:   "Mirrored?",
		AnswerA:    "Yes",
		AnswerB:    "No",
		ExpiresAt:  time.Now().Add(time.Hour),
		ExternalID: "pm-1",
	}

	m, err := e.markets.CreateMarket(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 50.0, m.LiquidityParam)
	assert.Equal(t, oracle.SourceManual, m.ResolutionSource)
	assert.Equal(t, "{}", m.ResolutionMeta)
	assert.Equal(t, models.MarketStatusOpen, m.Status)

	_, err = e.markets.CreateMarket(context.Background(), req)
	assert.ErrorIs(t, err, models.ErrInvalidMarket)
	assert.Contains(t, e.publisher.types(), events.TypeMarketCreated)
}

func TestUserPositions(t *testing.T) {
	e := newTestEngine(t)
	m1 := e.createMarket(t)
	m2 := e.createMarket(t)

	e.buy(t, m1.ID, "alice", "Yes", 20)
	e.buy(t, m2.ID, "alice", "No", 20)
	e.buy(t, m2.ID, "bob", "No", 20)

	views, err := e.markets.UserPositions(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, v := range views {
		assert.Greater(t, v.CurrentPrice, 0.5)
		assert.InDelta(t, v.Shares*v.CurrentPrice, v.MarketValue, 1e-9)
	}

	_, err = e.markets.UserPositions(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}

func TestGetSnapshot(t *testing.T) {
	e := newTestEngine(t)
	m := e.createMarket(t)

	snap, err := e.markets.GetSnapshot(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, snap.PriceA)
	assert.Equal(t, 50.0, snap.PriceB)
	require.NotNil(t, snap.MultiplierA)
	assert.Equal(t, 2.0, *snap.MultiplierA)
	assert.Empty(t, snap.RecentTrades)

	_, err = e.markets.GetSnapshot(context.Background(), 777)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
