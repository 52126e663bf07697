package storage

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS predicates (
        predicate_id    TEXT PRIMARY KEY,
        chain_id        BIGINT NOT NULL,
        oracle_address  TEXT NOT NULL,
        tolerance       NUMERIC NOT NULL,
        owner_address   TEXT NOT NULL,
        token_address   TEXT NOT NULL DEFAULT '',
        price_threshold NUMERIC NOT NULL,
        current_price   NUMERIC NOT NULL,
        is_valid        BOOLEAN NOT NULL,
        status          TEXT NOT NULL,
        created_at      BIGINT NOT NULL,
        expires_at      BIGINT,
        execution_ref   TEXT
    );`,
	`CREATE INDEX IF NOT EXISTS predicates_owner_idx ON predicates (lower(owner_address), created_at DESC);`,
	`CREATE INDEX IF NOT EXISTS predicates_status_idx ON predicates (status);`,
	`CREATE TABLE IF NOT EXISTS predicate_observations (
        id            BIGSERIAL PRIMARY KEY,
        predicate_id  TEXT NOT NULL REFERENCES predicates (predicate_id) ON DELETE CASCADE,
        price         NUMERIC NOT NULL,
        threshold     NUMERIC NOT NULL,
        deviation_pct NUMERIC NOT NULL,
        is_valid      BOOLEAN NOT NULL,
        observed_at   TIMESTAMPTZ NOT NULL
    );`,
	`CREATE INDEX IF NOT EXISTS predicate_observations_lookup_idx ON predicate_observations (predicate_id, observed_at);`,
}

// EnsureSchema creates the predicate tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
