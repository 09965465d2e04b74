package models

import (
	"time"
)

// Position is a user's share holding on one side of one market.
// Rows exist only while Shares > 0.
type Position struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    string    `gorm:"size:100;not null;uniqueIndex:idx_position_key" json:"userId"`
	MarketID  uint      `gorm:"not null;uniqueIndex:idx_position_key;index" json:"marketId"`
	Side      string    `gorm:"size:200;not null;uniqueIndex:idx_position_key" json:"side"`
	Shares    float64   `gorm:"not null" json:"shares"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Position
func (Position) TableName() string {
	return "positions"
}

// PositionView is a position enriched with its current mark-to-market value
type PositionView struct {
	Position
	Question     string  `json:"question"`
	CurrentPrice float64 `json:"currentPrice"`
	MarketValue  float64 `json:"marketValue"`
}
