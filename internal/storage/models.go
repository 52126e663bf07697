package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"price-predicates/internal/predicate"
)

// predicateRow mirrors a row of the predicates table. Numeric columns travel as text.
type predicateRow struct {
	ID            string
	ChainID       int64
	OracleAddress string
	Tolerance     string
	OwnerAddress  string
	TokenAddress  string
	Threshold     string
	CurrentPrice  string
	IsValid       bool
	Status        string
	CreatedAt     int64
	ExpiresAt     sql.NullInt64
	ExecutionRef  sql.NullString
}

func rowFromRecord(rec predicate.Record) predicateRow {
	row := predicateRow{
		ID:            rec.ID,
		ChainID:       rec.ChainID,
		OracleAddress: rec.OracleAddress,
		Tolerance:     rec.Tolerance.String(),
		OwnerAddress:  rec.OwnerAddress,
		TokenAddress:  rec.TokenAddress,
		Threshold:     rec.PriceThreshold.String(),
		CurrentPrice:  rec.CurrentPrice.String(),
		IsValid:       rec.IsValid,
		Status:        string(rec.Status),
		CreatedAt:     rec.CreatedAt,
	}
	if rec.ExpiresAt != nil {
		row.ExpiresAt = sql.NullInt64{Int64: *rec.ExpiresAt, Valid: true}
	}
	if rec.ExecutionRef != "" {
		row.ExecutionRef = sql.NullString{String: rec.ExecutionRef, Valid: true}
	}
	return row
}

func (r predicateRow) record() (predicate.Record, error) {
	tolerance, err := decimal.NewFromString(r.Tolerance)
	if err != nil {
		return predicate.Record{}, fmt.Errorf("parse tolerance: %w", err)
	}
	threshold, err := decimal.NewFromString(r.Threshold)
	if err != nil {
		return predicate.Record{}, fmt.Errorf("parse price threshold: %w", err)
	}
	current, err := decimal.NewFromString(r.CurrentPrice)
	if err != nil {
		return predicate.Record{}, fmt.Errorf("parse current price: %w", err)
	}

	rec := predicate.Record{
		ID:             r.ID,
		ChainID:        r.ChainID,
		OracleAddress:  r.OracleAddress,
		Tolerance:      tolerance,
		OwnerAddress:   r.OwnerAddress,
		TokenAddress:   r.TokenAddress,
		PriceThreshold: threshold,
		CurrentPrice:   current,
		IsValid:        r.IsValid,
		Status:         predicate.Status(r.Status),
		CreatedAt:      r.CreatedAt,
	}
	if r.ExpiresAt.Valid {
		expires := r.ExpiresAt.Int64
		rec.ExpiresAt = &expires
	}
	if r.ExecutionRef.Valid {
		rec.ExecutionRef = r.ExecutionRef.String
	}
	return rec, nil
}

// observationRow mirrors a row of predicate_observations.
type observationRow struct {
	PredicateID  string
	Price        string
	Threshold    string
	DeviationPct string
	IsValid      bool
	ObservedAt   time.Time
}

func (r observationRow) observation() (predicate.Observation, error) {
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return predicate.Observation{}, fmt.Errorf("parse observed price: %w", err)
	}
	threshold, err := decimal.NewFromString(r.Threshold)
	if err != nil {
		return predicate.Observation{}, fmt.Errorf("parse observed threshold: %w", err)
	}
	deviation, err := decimal.NewFromString(r.DeviationPct)
	if err != nil {
		return predicate.Observation{}, fmt.Errorf("parse deviation pct: %w", err)
	}
	return predicate.Observation{
		PredicateID:  r.PredicateID,
		Price:        price,
		Threshold:    threshold,
		DeviationPct: deviation,
		IsValid:      r.IsValid,
		ObservedAt:   r.ObservedAt.UTC(),
	}, nil
}
