// Package configstore is a reference implementation of ports.ConfigStore
// backed by PostgreSQL, returning the full set of (exchange, symbol) pairs
// the daemon should subscribe to at startup.
package configstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/ingmarAvocado/fullon-ticker-service/internal/ports"
	"github.com/ingmarAvocado/fullon-ticker-service/internal/ticker"
)

// Store wraps an existing *sql.DB pointed at a table of the shape:
//
//	CREATE TABLE symbol_subscriptions (
//	    exchange_name TEXT NOT NULL,
//	    exchange_id   INTEGER NOT NULL,
//	    symbol        TEXT NOT NULL,
//	    enabled       BOOLEAN NOT NULL DEFAULT true,
//	    PRIMARY KEY (exchange_name, symbol)
//	);
type Store struct {
	db *sql.DB
}

// New wraps db. The caller owns db's lifecycle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open returns a session backed by the shared pooled *sql.DB.
func (s *Store) Open(ctx context.Context) (ports.ConfigSession, error) {
	return &session{db: s.db}, nil
}

type session struct {
	db *sql.DB
}

// ListAllSymbols returns every enabled (exchange, symbol) pair.
func (s *session) ListAllSymbols(ctx context.Context) ([]ticker.SymbolRef, error) {
	const q = `
		SELECT exchange_name, exchange_id, symbol
		FROM symbol_subscriptions
		WHERE enabled = true
		ORDER BY exchange_name, symbol
	`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list all symbols: %w", err)
	}
	defer rows.Close()

	var refs []ticker.SymbolRef
	for rows.Next() {
		var ref ticker.SymbolRef
		if err := rows.Scan(&ref.ExchangeName, &ref.ExchangeID, &ref.Symbol); err != nil {
			return nil, fmt.Errorf("scan symbol subscription row: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbol subscriptions: %w", err)
	}
	return refs, nil
}

// Close is a no-op: the underlying *sql.DB is shared and outlives the
// session.
func (s *session) Close() error { return nil }
