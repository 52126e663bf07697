package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"price-predicates/internal/predicate"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const predicateColumns = `predicate_id,
        chain_id,
        oracle_address,
        tolerance::text,
        owner_address,
        token_address,
        price_threshold::text,
        current_price::text,
        is_valid,
        status,
        created_at,
        expires_at,
        execution_ref`

const (
	upsertPredicateSQL = `INSERT INTO predicates (
        predicate_id,
        chain_id,
        oracle_address,
        tolerance,
        owner_address,
        token_address,
        price_threshold,
        current_price,
        is_valid,
        status,
        created_at,
        expires_at,
        execution_ref
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
    )
    ON CONFLICT (predicate_id) DO UPDATE
    SET
        current_price = EXCLUDED.current_price,
        is_valid      = EXCLUDED.is_valid,
        status        = EXCLUDED.status,
        expires_at    = EXCLUDED.expires_at,
        execution_ref = EXCLUDED.execution_ref;`

	getPredicateSQL = `SELECT ` + predicateColumns + `
    FROM predicates
    WHERE predicate_id = $1;`

	listPredicatesSQL = `SELECT ` + predicateColumns + `
    FROM predicates
    ORDER BY created_at, predicate_id;`

	listPredicatesByOwnerSQL = `SELECT ` + predicateColumns + `
    FROM predicates
    WHERE lower(owner_address) = lower($1)
    ORDER BY created_at, predicate_id;`

	deletePredicateSQL = `DELETE FROM predicates WHERE predicate_id = $1;`

	insertObservationSQL = `INSERT INTO predicate_observations (
        predicate_id,
        price,
        threshold,
        deviation_pct,
        is_valid,
        observed_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    );`

	listObservationsSQL = `SELECT predicate_id, price, threshold, deviation_pct, is_valid, observed_at
    FROM (
        SELECT
            id,
            predicate_id,
            price::text AS price,
            threshold::text AS threshold,
            deviation_pct::text AS deviation_pct,
            is_valid,
            observed_at
        FROM predicate_observations
        WHERE predicate_id = $1
        ORDER BY observed_at DESC, id DESC
        LIMIT $2
    ) recent
    ORDER BY observed_at, id;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store persists predicates and their observations in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// a failed unlock is released with the session
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Get loads one predicate.
func (s *Store) Get(ctx context.Context, id string) (predicate.Record, error) {
	pool, err := s.getPool()
	if err != nil {
		return predicate.Record{}, err
	}

	rec, err := scanPredicate(pool.QueryRow(ctx, getPredicateSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return predicate.Record{}, predicate.ErrNoRecord
	}
	if err != nil {
		return predicate.Record{}, fmt.Errorf("get predicate: %w", err)
	}
	return rec, nil
}

// Put inserts or updates a predicate. Identity and creation terms, including
// tolerance and price_threshold, are never rewritten by the update branch.
func (s *Store) Put(ctx context.Context, rec predicate.Record) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	row := rowFromRecord(rec)
	_, execErr := pool.Exec(ctx, upsertPredicateSQL,
		row.ID,
		row.ChainID,
		row.OracleAddress,
		row.Tolerance,
		row.OwnerAddress,
		row.TokenAddress,
		row.Threshold,
		row.CurrentPrice,
		row.IsValid,
		row.Status,
		row.CreatedAt,
		row.ExpiresAt,
		row.ExecutionRef,
	)
	if execErr != nil {
		return fmt.Errorf("upsert predicate: %w", execErr)
	}
	return nil
}

// Delete removes a predicate and, through the foreign key, its observations.
func (s *Store) Delete(ctx context.Context, id string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	tag, execErr := pool.Exec(ctx, deletePredicateSQL, id)
	if execErr != nil {
		return fmt.Errorf("delete predicate: %w", execErr)
	}
	if tag.RowsAffected() == 0 {
		return predicate.ErrNoRecord
	}
	return nil
}

// List returns every predicate ordered by creation time.
func (s *Store) List(ctx context.Context) ([]predicate.Record, error) {
	return s.listPredicates(ctx, listPredicatesSQL)
}

// ListByOwner returns the predicates of one owner, matched case-insensitively.
func (s *Store) ListByOwner(ctx context.Context, owner string) ([]predicate.Record, error) {
	return s.listPredicates(ctx, listPredicatesByOwnerSQL, owner)
}

func (s *Store) listPredicates(ctx context.Context, query string, args ...any) ([]predicate.Record, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list predicates: %w", queryErr)
	}
	defer rows.Close()

	records := make([]predicate.Record, 0)
	for rows.Next() {
		rec, scanErr := scanPredicate(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// RecordObservation appends one validation outcome.
func (s *Store) RecordObservation(ctx context.Context, obs predicate.Observation) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, execErr := pool.Exec(ctx, insertObservationSQL,
		obs.PredicateID,
		obs.Price.String(),
		obs.Threshold.String(),
		obs.DeviationPct.String(),
		obs.IsValid,
		obs.ObservedAt.UTC(),
	)
	if execErr != nil {
		return fmt.Errorf("insert observation: %w", execErr)
	}
	return nil
}

// ListObservations returns up to limit of the latest observations, oldest first.
// A non-positive limit returns all of them.
func (s *Store) ListObservations(ctx context.Context, id string, limit int) ([]predicate.Observation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	rows, queryErr := pool.Query(ctx, listObservationsSQL, id, limitArg)
	if queryErr != nil {
		return nil, fmt.Errorf("list observations: %w", queryErr)
	}
	defer rows.Close()

	out := make([]predicate.Observation, 0)
	for rows.Next() {
		var row observationRow
		if err := rows.Scan(
			&row.PredicateID,
			&row.Price,
			&row.Threshold,
			&row.DeviationPct,
			&row.IsValid,
			&row.ObservedAt,
		); err != nil {
			return nil, err
		}
		obs, convErr := row.observation()
		if convErr != nil {
			return nil, convErr
		}
		out = append(out, obs)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanPredicate(row pgx.Row) (predicate.Record, error) {
	var r predicateRow
	if err := row.Scan(
		&r.ID,
		&r.ChainID,
		&r.OracleAddress,
		&r.Tolerance,
		&r.OwnerAddress,
		&r.TokenAddress,
		&r.Threshold,
		&r.CurrentPrice,
		&r.IsValid,
		&r.Status,
		&r.CreatedAt,
		&r.ExpiresAt,
		&r.ExecutionRef,
	); err != nil {
		return predicate.Record{}, err
	}
	return r.record()
}

var (
	_ predicate.Store               = (*Store)(nil)
	_ predicate.OwnerLister         = (*Store)(nil)
	_ predicate.ObservationRecorder = (*Store)(nil)
	_ predicate.ObservationReader   = (*Store)(nil)
	_ AdvisoryLocker                = (*Store)(nil)
)
