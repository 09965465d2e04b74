package repository

import (
	"context"
	"fmt"
	"time"

	"prediction-engine/internal/models"

	"gorm.io/gorm"
)

// MarketStore owns market rows
type MarketStore struct {
	db *gorm.DB
}

// CreateMarket inserts a new open market with empty pools
func (s *MarketStore) CreateMarket(ctx context.Context, market *models.Market) error {
	market.ID = 0
	market.PoolA = 0
	market.PoolB = 0
	market.Status = models.MarketStatusOpen
	market.Result = nil
	market.ResolvedAt = nil

	if err := s.db.WithContext(ctx).Create(market).Error; err != nil {
		return fmt.Errorf("failed to create market: %w", err)
	}
	return nil
}

// GetMarket retrieves a market by ID regardless of status
func (s *MarketStore) GetMarket(ctx context.Context, id uint) (*models.Market, error) {
	var market models.Market
	if err := s.db.WithContext(ctx).First(&market, "id = ?", id).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("market %d", id))
	}
	return &market, nil
}

// GetOpenMarket retrieves a market that still accepts trades
func (s *MarketStore) GetOpenMarket(ctx context.Context, id uint) (*models.Market, error) {
	market, err := s.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}
	if !market.IsOpen() {
		return nil, fmt.Errorf("market %d: %w", id, models.ErrAlreadyResolved)
	}
	return market, nil
}

// FindByExternalID looks up a market mirrored from an upstream source
func (s *MarketStore) FindByExternalID(ctx context.Context, externalID string) (*models.Market, error) {
	var market models.Market
	if err := s.db.WithContext(ctx).First(&market, "external_id = ?", externalID).Error; err != nil {
		return nil, notFound(err, "market "+externalID)
	}
	return &market, nil
}

// UpdatePools writes new pool quantities for an open market
func (s *MarketStore) UpdatePools(ctx context.Context, id uint, poolA, poolB float64) error {
	if poolA < 0 || poolB < 0 {
		return fmt.Errorf("market %d pools %.6f/%.6f: %w", id, poolA, poolB, models.ErrInvariant)
	}

	result := s.db.WithContext(ctx).
		Model(&models.Market{}).
		Where("id = ? AND status = ?", id, models.MarketStatusOpen).
		Updates(map[string]interface{}{
			"pool_a": poolA,
			"pool_b": poolB,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update pools: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		_, err := s.GetOpenMarket(ctx, id)
		if err != nil {
			return err
		}
	}
	return nil
}

// Resolve moves an open market to resolved with the given result. The status
// check and the write are a single conditional UPDATE.
func (s *MarketStore) Resolve(ctx context.Context, id uint, result string, at time.Time) (*models.Market, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Market{}).
		Where("id = ? AND status = ?", id, models.MarketStatusOpen).
		Updates(map[string]interface{}{
			"status":      models.MarketStatusResolved,
			"result":      result,
			"resolved_at": at,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to resolve market: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetOpenMarket(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("market %d changed during resolution: %w", id, models.ErrInvariant)
	}
	return s.GetMarket(ctx, id)
}

// ListOpen returns every open market, oldest first
func (s *MarketStore) ListOpen(ctx context.Context) ([]models.Market, error) {
	var markets []models.Market
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.MarketStatusOpen).
		Order("created_at ASC, id ASC").
		Find(&markets).Error; err != nil {
		return nil, fmt.Errorf("failed to list open markets: %w", err)
	}
	return markets, nil
}

// ListExpired returns open markets whose expiry is at or before now
func (s *MarketStore) ListExpired(ctx context.Context, now time.Time) ([]models.Market, error) {
	var markets []models.Market
	if err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", models.MarketStatusOpen, now.UTC()).
		Order("expires_at ASC, id ASC").
		Find(&markets).Error; err != nil {
		return nil, fmt.Errorf("failed to list expired markets: %w", err)
	}
	return markets, nil
}

// ListResolved returns the most recently resolved markets
func (s *MarketStore) ListResolved(ctx context.Context, limit int) ([]models.Market, error) {
	var markets []models.Market
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.MarketStatusResolved).
		Order("resolved_at DESC, id DESC").
		Limit(limit).
		Find(&markets).Error; err != nil {
		return nil, fmt.Errorf("failed to list resolved markets: %w", err)
	}
	return markets, nil
}
