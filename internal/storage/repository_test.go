package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"price-predicates/internal/predicate"
)

func TestStoreWithoutPool(t *testing.T) {
	var s *Store
	ctx := context.Background()

	_, err := s.Get(ctx, "pred_1")
	require.True(t, errors.Is(err, ErrNotConfigured))

	require.ErrorIs(t, s.Put(ctx, predicate.Record{ID: "pred_1"}), ErrNotConfigured)

	_, _, err = s.TryAdvisoryLock(ctx, 1)
	require.ErrorIs(t, err, ErrNotConfigured)

	require.ErrorIs(t, s.EnsureSchema(ctx), ErrNotConfigured)
	s.Close()
}

func TestPredicateRowRoundTrip(t *testing.T) {
	expires := int64(1_700_000_600_000)
	rec := predicate.Record{
		ID:             "pred_1",
		ChainID:        1,
		OracleAddress:  "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419",
		Tolerance:      decimal.RequireFromString("1.5"),
		OwnerAddress:   "0xabc",
		PriceThreshold: decimal.RequireFromString("2500"),
		CurrentPrice:   decimal.RequireFromString("2512.25"),
		IsValid:        true,
		Status:         predicate.StatusActive,
		CreatedAt:      1_700_000_000_000,
		ExpiresAt:      &expires,
	}

	row := rowFromRecord(rec)
	require.True(t, row.ExpiresAt.Valid)
	require.False(t, row.ExecutionRef.Valid)
	require.Equal(t, "2512.25", row.CurrentPrice)

	back, err := row.record()
	require.NoError(t, err)
	require.Equal(t, rec.ID, back.ID)
	require.True(t, rec.Tolerance.Equal(back.Tolerance))
	require.True(t, rec.CurrentPrice.Equal(back.CurrentPrice))
	require.Equal(t, expires, *back.ExpiresAt)
	require.Empty(t, back.ExecutionRef)
}

func TestPredicateRowRejectsBadNumeric(t *testing.T) {
	row := predicateRow{Tolerance: "1", Threshold: "abc", CurrentPrice: "1"}
	_, err := row.record()
	require.Error(t, err)
}

func TestObservationRowConversion(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	obs, err := observationRow{
		PredicateID:  "pred_1",
		Price:        "2600",
		Threshold:    "2500",
		DeviationPct: "4",
		IsValid:      false,
		ObservedAt:   at,
	}.observation()
	require.NoError(t, err)
	require.Equal(t, time.UTC, obs.ObservedAt.Location())
	require.True(t, obs.DeviationPct.Equal(decimal.NewFromInt(4)))
}

func TestUpsertLeavesCreationTermsUntouched(t *testing.T) {
	_, update, found := strings.Cut(upsertPredicateSQL, "DO UPDATE")
	require.True(t, found)
	for _, column := range []string{"tolerance", "price_threshold", "owner_address", "oracle_address", "chain_id", "created_at"} {
		require.NotContains(t, update, column+" ", column)
		require.NotContains(t, update, "EXCLUDED."+column+",", column)
		require.NotContains(t, update, "EXCLUDED."+column+";", column)
	}
	require.Contains(t, update, "status        = EXCLUDED.status")
}
