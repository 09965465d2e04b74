// Package events fans market activity out to observers. Publishing is
// best-effort: callers log failures and carry on.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	TypeMarketCreated = "market_created"
	TypeTrade         = "trade"
	TypeResolved      = "resolved"
)

// Event is one market notification
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	MarketID  uint      `json:"marketId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent stamps an event with a fresh id and the current time
func NewEvent(eventType string, marketID uint, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		MarketID:  marketID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Publisher delivers events to some sink
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// MultiPublisher publishes to every sink and joins their errors
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
