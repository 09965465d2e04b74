package models

import (
	"time"

	"prediction-engine/internal/amm"
)

// Market status constants
type MarketStatus string

const (
	MarketStatusOpen     MarketStatus = "OPEN"
	MarketStatusResolved MarketStatus = "RESOLVED"
)

// ResultNoResult marks a market that closed without a definitive outcome.
// Nobody is paid.
const ResultNoResult = "NoResult"

// Market represents a binary prediction market and its LMSR pool state
type Market struct {
	ID               uint         `gorm:"primaryKey" json:"id"`
	Question         string       `gorm:"size:500;not null" json:"question"`
	AnswerA          string       `gorm:"size:200;not null" json:"answerA"`
	AnswerB          string       `gorm:"size:200;not null" json:"answerB"`
	PoolA            float64      `gorm:"not null;default:0" json:"poolA"`
	PoolB            float64      `gorm:"not null;default:0" json:"poolB"`
	LiquidityParam   float64      `gorm:"not null" json:"liquidityParam"`
	Status           MarketStatus `gorm:"size:20;not null;default:OPEN;index" json:"status"`
	Result           *string      `gorm:"size:200" json:"result"`
	ResolutionSource string       `gorm:"size:50;not null;default:manual" json:"resolutionSource"`
	ResolutionMeta   string       `gorm:"type:text" json:"-"`
	ExternalID       *string      `gorm:"size:255;uniqueIndex" json:"externalId,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	ExpiresAt        time.Time    `gorm:"not null;index" json:"expiresAt"`
	ResolvedAt       *time.Time   `json:"resolvedAt,omitempty"`
}

// TableName specifies the table name for Market model
func (Market) TableName() string {
	return "markets"
}

// IsOpen reports whether the market still accepts trades.
func (m *Market) IsOpen() bool {
	return m.Status == MarketStatusOpen
}

// SideOf maps an answer label to its AMM side. The match is exact.
func (m *Market) SideOf(label string) (amm.Side, bool) {
	switch label {
	case m.AnswerA:
		return amm.SideA, true
	case m.AnswerB:
		return amm.SideB, true
	}
	return 0, false
}

// Label returns the answer label for side.
func (m *Market) Label(side amm.Side) string {
	if side == amm.SideA {
		return m.AnswerA
	}
	return m.AnswerB
}

// Price returns the current price of side in [0, 1].
func (m *Market) Price(side amm.Side) float64 {
	return amm.Price(side, m.PoolA, m.PoolB, m.LiquidityParam)
}

// ---- Request/Response DTOs ----

// CreateMarketRequest is the request body for opening a new market
type CreateMarketRequest struct {
	AdminKey         string         `json:"adminKey"`
	Question         string         `json:"question" binding:"required"`
	AnswerA          string         `json:"answerA" binding:"required"`
	AnswerB          string         `json:"answerB" binding:"required"`
	Liquidity        float64        `json:"liquidity"`
	ExpiresAt        time.Time      `json:"expiresAt" binding:"required"`
	ResolutionSource string         `json:"resolutionSource"`
	ResolutionMeta   map[string]any `json:"resolutionMeta"`
	ExternalID       string         `json:"externalId"`
}

// MarketSnapshot is the public view of a market after any read or trade
type MarketSnapshot struct {
	ID           uint         `json:"id"`
	Question     string       `json:"question"`
	AnswerA      string       `json:"answerA"`
	AnswerB      string       `json:"answerB"`
	PoolA        float64      `json:"poolA"`
	PoolB        float64      `json:"poolB"`
	PriceA       float64      `json:"priceA"`
	PriceB       float64      `json:"priceB"`
	MultiplierA  *float64     `json:"multiplierA"`
	MultiplierB  *float64     `json:"multiplierB"`
	Status       MarketStatus `json:"status"`
	ExpiresAt    time.Time    `json:"expiresAt"`
	RecentTrades []Wager      `json:"recentTrades"`
}

// PredictionsResponse is the body of GET /predictions
type PredictionsResponse struct {
	Active   []MarketSnapshot `json:"active"`
	Resolved []ResolvedMarket `json:"resolved"`
}

// QuoteResponse previews a buy without executing it
type QuoteResponse struct {
	MarketID uint    `json:"predictionId"`
	Side     string  `json:"side"`
	Amount   float64 `json:"amount"`
	amm.Quote
}
