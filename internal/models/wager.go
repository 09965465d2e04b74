package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Wager type constants
type WagerType string

const (
	WagerTypeBuy  WagerType = "buy"
	WagerTypeSell WagerType = "sell"
)

// Wager is an append-only trade log entry. Only PaidOut ever changes after
// insert, and only from false to true.
type Wager struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string          `gorm:"size:100;not null;index" json:"userId"`
	Username   string          `gorm:"size:100" json:"username"`
	MarketID   uint            `gorm:"not null;index" json:"marketId"`
	Side       string          `gorm:"size:200;not null" json:"side"`
	Type       WagerType       `gorm:"size:10;not null" json:"type"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Shares     float64         `gorm:"not null" json:"shares"`
	PriceAfter float64         `gorm:"not null;default:0" json:"priceAfter"`
	PaidOut    bool            `gorm:"not null;default:false;index" json:"paidOut"`
	CreatedAt  time.Time       `gorm:"index" json:"timestamp"`
}

// TableName specifies the table name for Wager
func (Wager) TableName() string {
	return "wagers"
}

// BeforeCreate assigns a random id when none was set.
func (w *Wager) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// ---- Request/Response DTOs ----

// BetRequest is the body of POST /bet
type BetRequest struct {
	UserID       string  `json:"userId" binding:"required"`
	Username     string  `json:"username"`
	PredictionID uint    `json:"predictionId" binding:"required"`
	Side         string  `json:"side" binding:"required"`
	Amount       float64 `json:"amount"`
}

// CashoutRequest is the body of POST /cashout
type CashoutRequest struct {
	UserID       string  `json:"userId" binding:"required"`
	Username     string  `json:"username"`
	PredictionID uint    `json:"predictionId" binding:"required"`
	Side         string  `json:"side" binding:"required"`
	Shares       float64 `json:"shares"`
}

// BetResponse is returned after a successful buy
type BetResponse struct {
	Bet    Wager          `json:"bet"`
	Market MarketSnapshot `json:"market"`
}

// CashoutResponse is returned after a successful sell
type CashoutResponse struct {
	Payout decimal.Decimal `json:"payout"`
	Bet    Wager           `json:"bet"`
	Market MarketSnapshot  `json:"market"`
}
