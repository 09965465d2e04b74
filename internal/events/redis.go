package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultStream is the stream name used when none is configured
const DefaultStream = "market_events"

// streamMaxLen caps the stream so it cannot grow without bound
const streamMaxLen = 100000

// RedisStreamPublisher appends events to a Redis stream with XADD
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
}

// RedisOptions holds connection parameters for the stream publisher
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

// NewRedisStreamPublisher connects to Redis and verifies it with a ping
func NewRedisStreamPublisher(ctx context.Context, opts RedisOptions) (*RedisStreamPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
	return NewRedisStreamPublisherFromClient(client, opts.Stream), nil
}

// NewRedisStreamPublisherFromClient wraps an existing client
func NewRedisStreamPublisherFromClient(client *redis.Client, stream string) *RedisStreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamPublisher{client: client, stream: stream}
}

// Publish XADDs the event to the stream
func (p *RedisStreamPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	values := map[string]interface{}{
		"id":        event.ID,
		"type":      event.Type,
		"market_id": strconv.FormatUint(uint64(event.MarketID), 10),
		"timestamp": event.Timestamp.Format(time.RFC3339Nano),
		"data":      string(data),
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().
		Str("stream", p.stream).
		Str("type", event.Type).
		Uint("market_id", event.MarketID).
		Msg("Published event")
	return nil
}

// Close closes the Redis connection
func (p *RedisStreamPublisher) Close() error {
	return p.client.Close()
}
