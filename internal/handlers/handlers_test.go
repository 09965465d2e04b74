package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"prediction-engine/internal/models"
	"prediction-engine/internal/oracle"
	"prediction-engine/internal/repository"
	"prediction-engine/internal/services"
	"prediction-engine/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cret"

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewStore(testutil.NewTestDB(t))
	locks := services.NewMarketLocks()
	reg := oracle.NewRegistry()

	return NewRouter(RouterConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		AdminSecret:    testSecret,
		Markets:        services.NewMarketService(store, nil, reg, 50, 10, 20),
		Trading:        services.NewTradingService(store, locks, nil, 0.05, 10),
		Settlement:     services.NewSettlementService(store, locks, nil, nil, reg, 0.05, time.Second),
	})
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, w)["code"]
}

func createMarket(t *testing.T, r *gin.Engine) models.MarketSnapshot {
	t.Helper()
	w := do(t, r, http.MethodPost, "/admin/markets", gin.H{
		"adminKey":  testSecret,
		"question":  "Will it rain tomorrow?",
		"answerA":   "Yes",
		"answerB":   "No",
		"expiresAt": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.MarketSnapshot](t, w)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])
}

func TestCreateMarket_RequiresAdminKey(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodPost, "/admin/markets", gin.H{
		"adminKey":  "wrong",
		"question":  "Q?",
		"answerA":   "Yes",
		"answerB":   "No",
		"expiresAt": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))

	m := createMarket(t, r)
	assert.Equal(t, 50.0, m.PriceA)
	assert.Equal(t, models.MarketStatusOpen, m.Status)
}

func TestBetAndCashoutFlow(t *testing.T) {
	r := newTestRouter(t)
	m := createMarket(t, r)

	w := do(t, r, http.MethodPost, "/bet", gin.H{
		"userId": "alice", "username": "alice", "predictionId": m.ID, "side": "Yes", "amount": 10,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	bet := decode[models.BetResponse](t, w)
	assert.Greater(t, bet.Market.PriceA, 50.0)
	assert.Len(t, bet.Market.RecentTrades, 1)

	w = do(t, r, http.MethodGet, "/predictions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[models.PredictionsResponse](t, w)
	require.Len(t, list.Active, 1)
	assert.Empty(t, list.Resolved)

	w = do(t, r, http.MethodGet, "/users/alice/positions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["count"])

	w = do(t, r, http.MethodPost, "/cashout", gin.H{
		"userId": "alice", "predictionId": m.ID, "side": "Yes", "shares": bet.Bet.Shares * 2,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INSUFFICIENT_SHARES", errorCode(t, w))

	w = do(t, r, http.MethodPost, "/cashout", gin.H{
		"userId": "alice", "predictionId": m.ID, "side": "Yes", "shares": bet.Bet.Shares,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cashout := decode[models.CashoutResponse](t, w)
	assert.True(t, cashout.Payout.IsPositive())
	assert.True(t, cashout.Payout.LessThan(bet.Bet.Amount))
}

func TestBetErrors(t *testing.T) {
	r := newTestRouter(t)
	m := createMarket(t, r)

	tests := []struct {
		name   string
		body   gin.H
		status int
		code   string
	}{
		{"missing user", gin.H{"predictionId": m.ID, "side": "Yes", "amount": 10}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown side", gin.H{"userId": "a", "predictionId": m.ID, "side": "Maybe", "amount": 10}, http.StatusBadRequest, "INVALID_SIDE"},
		{"zero amount", gin.H{"userId": "a", "predictionId": m.ID, "side": "Yes", "amount": 0}, http.StatusBadRequest, "INVALID_AMOUNT"},
		{"unknown market", gin.H{"userId": "a", "predictionId": 999, "side": "Yes", "amount": 10}, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/bet", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestGetPredictionAndQuote(t *testing.T) {
	r := newTestRouter(t)
	m := createMarket(t, r)

	w := do(t, r, http.MethodGet, fmt.Sprintf("/predictions/%d", m.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, m.ID, decode[models.MarketSnapshot](t, w).ID)

	w = do(t, r, http.MethodGet, "/predictions/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/predictions/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, fmt.Sprintf("/predictions/%d/quote?side=No&amount=5", m.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	quote := decode[models.QuoteResponse](t, w)
	assert.Greater(t, quote.Shares, 0.0)
	assert.Equal(t, "No", quote.Side)

	w = do(t, r, http.MethodGet, fmt.Sprintf("/predictions/%d/quote?side=No&amount=lots", m.ID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_AMOUNT", errorCode(t, w))
}

func TestAdminResolve(t *testing.T) {
	r := newTestRouter(t)
	m := createMarket(t, r)

	w := do(t, r, http.MethodPost, "/bet", gin.H{"userId": "alice", "predictionId": m.ID, "side": "Yes", "amount": 10})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/admin/resolve", gin.H{"adminKey": "nope", "predictionId": m.ID, "result": "Yes"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, http.MethodPost, "/admin/resolve", gin.H{"adminKey": testSecret, "predictionId": m.ID, "result": "Yes"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[models.ResolveResponse](t, w)
	require.Len(t, resp.Payouts, 1)
	assert.Equal(t, "alice", resp.Payouts[0].UserID)
	assert.True(t, resp.Resolved.Manual)

	w = do(t, r, http.MethodPost, "/admin/resolve", gin.H{"adminKey": testSecret, "predictionId": m.ID, "result": "Yes"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_RESOLVED", errorCode(t, w))

	w = do(t, r, http.MethodPost, "/bet", gin.H{"userId": "bob", "predictionId": m.ID, "side": "No", "amount": 10})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodGet, "/predictions", nil)
	list := decode[models.PredictionsResponse](t, w)
	assert.Empty(t, list.Active)
	require.Len(t, list.Resolved, 1)
	assert.Equal(t, "Yes", list.Resolved[0].Result)
}
