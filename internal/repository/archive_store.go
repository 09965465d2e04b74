package repository

import (
	"context"
	"fmt"

	"prediction-engine/internal/models"

	"gorm.io/gorm"
)

// ArchiveStore holds settlement output: payout receipts and the resolved
// market archive
type ArchiveStore struct {
	db *gorm.DB
}

// RecordPayout writes a payout receipt. The (market, user, side) unique index
// rejects a second payout for the same position.
func (a *ArchiveStore) RecordPayout(ctx context.Context, payout *models.Payout) error {
	if err := a.db.WithContext(ctx).Create(payout).Error; err != nil {
		return fmt.Errorf("failed to record payout: %w", err)
	}
	return nil
}

// PayoutsForMarket returns every payout receipt of a market
func (a *ArchiveStore) PayoutsForMarket(ctx context.Context, marketID uint) ([]models.Payout, error) {
	var payouts []models.Payout
	if err := a.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Order("created_at ASC").
		Find(&payouts).Error; err != nil {
		return nil, fmt.Errorf("failed to get payouts: %w", err)
	}
	return payouts, nil
}

// AppendResolved adds a market to the resolved archive
func (a *ArchiveStore) AppendResolved(ctx context.Context, resolved *models.ResolvedMarket) error {
	if err := a.db.WithContext(ctx).Create(resolved).Error; err != nil {
		return fmt.Errorf("failed to archive market: %w", err)
	}
	return nil
}

// GetResolved returns the archive row of a market
func (a *ArchiveStore) GetResolved(ctx context.Context, marketID uint) (*models.ResolvedMarket, error) {
	var resolved models.ResolvedMarket
	if err := a.db.WithContext(ctx).First(&resolved, "market_id = ?", marketID).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("resolved market %d", marketID))
	}
	return &resolved, nil
}

// ListResolved returns the most recent archive rows
func (a *ArchiveStore) ListResolved(ctx context.Context, limit int) ([]models.ResolvedMarket, error) {
	var resolved []models.ResolvedMarket
	if err := a.db.WithContext(ctx).
		Order("resolved_at DESC, id DESC").
		Limit(limit).
		Find(&resolved).Error; err != nil {
		return nil, fmt.Errorf("failed to list resolved markets: %w", err)
	}
	return resolved, nil
}
