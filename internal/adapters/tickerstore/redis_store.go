// Package tickerstore is a reference implementation of ports.TickerStore
// backed by Redis, storing only the latest value per (exchange, symbol):
// no history list, no time-series retention, matching the ephemeral
// latest-value-only scope of the orchestrator it serves.
package tickerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ingmarAvocado/fullon-ticker-service/internal/ports"
	"github.com/ingmarAvocado/fullon-ticker-service/internal/ticker"
)

// DefaultTTL bounds how long a latest-value key survives without a fresh
// write before Redis expires it, so a dead (exchange, symbol) pair doesn't
// linger forever as a stale read.
const DefaultTTL = 24 * time.Hour

// Store wraps an existing *redis.Client. Opening a session is cheap: the
// client is already connection-pooled, so Open only allocates a thin
// wrapper value rather than establishing new I/O.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New wraps client. ttl of zero uses DefaultTTL.
func New(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

// Open returns a session backed by the shared pooled client.
func (s *Store) Open(ctx context.Context) (ports.TickerSession, error) {
	return &session{store: s}, nil
}

type session struct {
	store *Store
}

// SetTicker writes the latest value for record.exchange/record.symbol,
// overwriting whatever was previously stored for that key.
func (s *session) SetTicker(ctx context.Context, record ticker.Record) error {
	key := tickerKey(record.Exchange, record.Symbol)
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal ticker record: %w", err)
	}
	if err := s.store.client.Set(ctx, key, payload, s.store.ttl).Err(); err != nil {
		return fmt.Errorf("set ticker %s: %w", key, err)
	}
	return nil
}

// Close is a no-op: the underlying client is shared and outlives the
// session.
func (s *session) Close() error { return nil }

// GetTicker reads back the latest value for (exchange, symbol). Not part
// of ports.TickerSession — this is a convenience for callers (health
// checks, tests, downstream readers) that sit outside the core's write
// path.
func (s *Store) GetTicker(ctx context.Context, exchange, symbol string) (ticker.Record, error) {
	key := tickerKey(exchange, symbol)
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return ticker.Record{}, fmt.Errorf("get ticker %s: %w", key, err)
	}
	var rec ticker.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return ticker.Record{}, fmt.Errorf("unmarshal ticker %s: %w", key, err)
	}
	return rec, nil
}

func tickerKey(exchange, symbol string) string {
	return fmt.Sprintf("ticker:%s:%s", exchange, symbol)
}
