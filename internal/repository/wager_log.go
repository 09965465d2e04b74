package repository

import (
	"context"
	"fmt"

	"prediction-engine/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WagerLog is the append-only trade log
type WagerLog struct {
	db *gorm.DB
}

// Append writes a new wager record
func (w *WagerLog) Append(ctx context.Context, wager *models.Wager) error {
	if err := w.db.WithContext(ctx).Create(wager).Error; err != nil {
		return fmt.Errorf("failed to record wager: %w", err)
	}
	return nil
}

// Recent returns the latest wagers in a market, newest first
func (w *WagerLog) Recent(ctx context.Context, marketID uint, limit int) ([]models.Wager, error) {
	var wagers []models.Wager
	if err := w.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Order("created_at DESC").
		Limit(limit).
		Find(&wagers).Error; err != nil {
		return nil, fmt.Errorf("failed to get wagers: %w", err)
	}
	return wagers, nil
}

// ListByUser returns a user's wagers, newest first
func (w *WagerLog) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Wager, error) {
	var wagers []models.Wager
	if err := w.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&wagers).Error; err != nil {
		return nil, fmt.Errorf("failed to get user wagers: %w", err)
	}
	return wagers, nil
}

// UnpaidBuys returns the buy wagers behind a position that have not been paid
func (w *WagerLog) UnpaidBuys(ctx context.Context, marketID uint, userID, side string) ([]models.Wager, error) {
	var wagers []models.Wager
	if err := w.db.WithContext(ctx).
		Where("market_id = ? AND user_id = ? AND side = ? AND type = ? AND paid_out = ?",
			marketID, userID, side, models.WagerTypeBuy, false).
		Order("created_at ASC").
		Find(&wagers).Error; err != nil {
		return nil, fmt.Errorf("failed to get unpaid wagers: %w", err)
	}
	return wagers, nil
}

// MarkPaid flips paid_out on the given wagers. Rows that are already paid are
// left alone, so the returned count only covers fresh transitions.
func (w *WagerLog) MarkPaid(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := w.db.WithContext(ctx).
		Model(&models.Wager{}).
		Where("id IN ? AND paid_out = ?", ids, false).
		Update("paid_out", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark wagers paid: %w", result.Error)
	}
	return result.RowsAffected, nil
}
