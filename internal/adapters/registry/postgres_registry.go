// Package registry is a reference implementation of ports.ProcessRegistry
// backed by PostgreSQL via database/sql and the lib/pq driver, following
// the teacher's sql.Open("postgres", dsn) convention for Postgres access.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/google/uuid"

	"github.com/ingmarAvocado/fullon-ticker-service/internal/ports"
)

// Registry wraps an existing *sql.DB pointed at a table of the shape:
//
//	CREATE TABLE process_registry (
//	    id          TEXT PRIMARY KEY,
//	    type        TEXT NOT NULL,
//	    component   TEXT NOT NULL,
//	    params      JSONB,
//	    message     TEXT,
//	    status      TEXT NOT NULL,
//	    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type Registry struct {
	db *sql.DB
}

// New wraps db. The caller owns db's lifecycle (pool sizing, Ping,
// eventual Close); Registry never closes it.
func New(db *sql.DB) *Registry {
	return &Registry{db: db}
}

// Open returns a session backed by the shared pooled *sql.DB. No new
// connection is established here; sql.DB itself pools and lazily opens
// connections per query.
func (r *Registry) Open(ctx context.Context) (ports.RegistrySession, error) {
	return &session{db: r.db}, nil
}

type session struct {
	db *sql.DB
}

// RegisterProcess inserts a new row and returns a fresh opaque id.
func (s *session) RegisterProcess(
	ctx context.Context,
	processType ports.ProcessType,
	component string,
	params map[string]any,
	message string,
	status ports.ProcessStatus,
) (string, error) {
	id := uuid.NewString()

	paramsJSON, err := marshalParams(params)
	if err != nil {
		return "", fmt.Errorf("marshal process params: %w", err)
	}

	const q = `
		INSERT INTO process_registry (id, type, component, params, message, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`
	if _, err := s.db.ExecContext(ctx, q, id, string(processType), component, paramsJSON, message, string(status)); err != nil {
		return "", fmt.Errorf("register process: %w", err)
	}
	return id, nil
}

// UpdateProcess updates the status and message for an existing row.
func (s *session) UpdateProcess(ctx context.Context, processID string, status ports.ProcessStatus, message string) error {
	const q = `
		UPDATE process_registry
		SET status = $1, message = $2, updated_at = now()
		WHERE id = $3
	`
	res, err := s.db.ExecContext(ctx, q, string(status), message, processID)
	if err != nil {
		return fmt.Errorf("update process %s: %w", processID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update process %s: no such process id", processID)
	}
	return nil
}

// Close is a no-op: the underlying *sql.DB is shared and outlives the
// session.
func (s *session) Close() error { return nil }

func marshalParams(params map[string]any) ([]byte, error) {
	if params == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(params)
}
