package repository

import (
	"context"
	"errors"
	"fmt"

	"prediction-engine/internal/models"

	"gorm.io/gorm"
)

// Store groups the durable stores that share one database handle. Every
// method writes straight through to the database; nothing is cached.
type Store struct {
	db        *gorm.DB
	Markets   *MarketStore
	Positions *PositionLedger
	Wagers    *WagerLog
	Archive   *ArchiveStore
}

// NewStore builds a Store over db. db may be a transaction handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		Markets:   &MarketStore{db: db},
		Positions: &PositionLedger{db: db},
		Wagers:    &WagerLog{db: db},
		Archive:   &ArchiveStore{db: db},
	}
}

// Transaction runs fn against a Store bound to a single database transaction.
// Returning an error from fn rolls back every write made through tx.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// DB returns the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}
