package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payout is the durable receipt of one winning position paid at settlement
type Payout struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	MarketID  uint            `gorm:"not null;uniqueIndex:idx_payout_key" json:"marketId"`
	UserID    string          `gorm:"size:100;not null;uniqueIndex:idx_payout_key;index" json:"userId"`
	Side      string          `gorm:"size:200;not null;uniqueIndex:idx_payout_key" json:"side"`
	Shares    float64         `gorm:"not null" json:"shares"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	CreatedAt time.Time       `json:"createdAt"`
}

// TableName specifies the table name for Payout
func (Payout) TableName() string {
	return "payouts"
}

// BeforeCreate assigns a random id when none was set.
func (p *Payout) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PayoutEntry is one line of a resolved market's payout summary
type PayoutEntry struct {
	UserID string          `json:"userId"`
	Shares float64         `json:"shares"`
	Amount decimal.Decimal `json:"amount"`
}

// PayoutList is stored as a JSON text column
type PayoutList []PayoutEntry

// Value implements driver.Valuer
func (l PayoutList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (l *PayoutList) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = PayoutList{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("payout list: unsupported type %T", src)
	}
	return json.Unmarshal(data, l)
}

// ResolvedMarket is the archive row appended when a market settles
type ResolvedMarket struct {
	ID             uint            `gorm:"primaryKey" json:"-"`
	MarketID       uint            `gorm:"not null;uniqueIndex" json:"id"`
	Question       string          `gorm:"size:500;not null" json:"question"`
	AnswerA        string          `gorm:"size:200;not null" json:"answerA"`
	AnswerB        string          `gorm:"size:200;not null" json:"answerB"`
	Status         MarketStatus    `gorm:"size:20;not null" json:"status"`
	Result         string          `gorm:"size:200;not null" json:"result"`
	PoolA          float64         `gorm:"not null" json:"poolA"`
	PoolB          float64         `gorm:"not null" json:"poolB"`
	TotalPositions int             `gorm:"not null" json:"totalPositions"`
	WinnerCount    int             `gorm:"not null" json:"winnerCount"`
	TotalPaid      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"totalPaid"`
	Payouts        PayoutList      `gorm:"type:text" json:"payouts"`
	Manual         bool            `gorm:"not null;default:false" json:"manual"`
	ResolvedAt     time.Time       `gorm:"not null;index" json:"resolvedAt"`
}

// TableName specifies the table name for ResolvedMarket
func (ResolvedMarket) TableName() string {
	return "resolved_markets"
}

// ---- Request/Response DTOs ----

// ResolveRequest is the body of POST /admin/resolve
type ResolveRequest struct {
	AdminKey     string `json:"adminKey"`
	PredictionID uint   `json:"predictionId" binding:"required"`
	Result       string `json:"result" binding:"required"`
}

// ResolveResponse is returned after a successful settlement
type ResolveResponse struct {
	Resolved ResolvedMarket `json:"resolved"`
	Payouts  []PayoutEntry  `json:"payouts"`
}
