package repository

import (
	"context"
	"errors"
	"fmt"

	"prediction-engine/internal/models"

	"gorm.io/gorm"
)

// dustShares is the residue below which a position counts as empty.
const dustShares = 1e-9

// PositionLedger owns (user, market, side) -> shares rows
type PositionLedger struct {
	db *gorm.DB
}

func (l *PositionLedger) find(ctx context.Context, userID string, marketID uint, side string) (*models.Position, error) {
	var position models.Position
	err := l.db.WithContext(ctx).
		Where("user_id = ? AND market_id = ? AND side = ?", userID, marketID, side).
		First(&position).Error
	if err != nil {
		return nil, err
	}
	return &position, nil
}

// AddShares creates the position on first buy, else increments it
func (l *PositionLedger) AddShares(ctx context.Context, userID string, marketID uint, side string, delta float64) error {
	if delta <= 0 {
		return fmt.Errorf("add %.6f shares: %w", delta, models.ErrInvalidAmount)
	}

	position, err := l.find(ctx, userID, marketID, side)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		position = &models.Position{
			UserID:   userID,
			MarketID: marketID,
			Side:     side,
			Shares:   delta,
		}
		if err := l.db.WithContext(ctx).Create(position).Error; err != nil {
			return fmt.Errorf("failed to create position: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load position: %w", err)
	}

	if err := l.db.WithContext(ctx).
		Model(position).
		Update("shares", position.Shares+delta).Error; err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	return nil
}

// GetShares returns the shares held, or 0 when there is no position
func (l *PositionLedger) GetShares(ctx context.Context, userID string, marketID uint, side string) (float64, error) {
	position, err := l.find(ctx, userID, marketID, side)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load position: %w", err)
	}
	return position.Shares, nil
}

// RemoveShares decrements a position and deletes it once it reaches zero
func (l *PositionLedger) RemoveShares(ctx context.Context, userID string, marketID uint, side string, delta float64) error {
	if delta <= 0 {
		return fmt.Errorf("remove %.6f shares: %w", delta, models.ErrInvalidAmount)
	}

	position, err := l.find(ctx, userID, marketID, side)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("user %s holds no %q shares: %w", userID, side, models.ErrInsufficientShares)
	}
	if err != nil {
		return fmt.Errorf("failed to load position: %w", err)
	}
	if delta > position.Shares+dustShares {
		return fmt.Errorf("user %s holds %.6f %q shares, requested %.6f: %w",
			userID, position.Shares, side, delta, models.ErrInsufficientShares)
	}

	remaining := position.Shares - delta
	if remaining <= dustShares {
		if err := l.db.WithContext(ctx).Delete(position).Error; err != nil {
			return fmt.Errorf("failed to delete position: %w", err)
		}
		return nil
	}

	if err := l.db.WithContext(ctx).
		Model(position).
		Update("shares", remaining).Error; err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	return nil
}

// ListPositions returns every position in a market
func (l *PositionLedger) ListPositions(ctx context.Context, marketID uint) ([]models.Position, error) {
	var positions []models.Position
	if err := l.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Order("id ASC").
		Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	return positions, nil
}

// ListUserPositions returns every position a user holds across markets
func (l *PositionLedger) ListUserPositions(ctx context.Context, userID string) ([]models.Position, error) {
	var positions []models.Position
	if err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to list user positions: %w", err)
	}
	return positions, nil
}

// ClearMarket deletes every position in a market and returns how many rows
// were removed
func (l *PositionLedger) ClearMarket(ctx context.Context, marketID uint) (int64, error) {
	result := l.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Delete(&models.Position{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to clear positions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
