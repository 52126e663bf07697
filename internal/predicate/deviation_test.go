package predicate

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDeviation(t *testing.T) {
	cases := []struct {
		current, threshold, want string
	}{
		{"2500", "2500", "0"},
		{"2520", "2500", "0.8"},
		{"2480", "2500", "0.8"},
		{"2600", "2500", "4"},
		{"0", "2500", "100"},
		{"1.5", "1", "50"},
	}
	for _, tc := range cases {
		got, err := Deviation(d(tc.current), d(tc.threshold))
		require.NoError(t, err)
		require.Truef(t, got.Equal(d(tc.want)), "deviation(%s, %s) = %s, want %s", tc.current, tc.threshold, got, tc.want)
		require.False(t, got.IsNegative())
	}
}

func TestDeviationRejectsNonPositiveThreshold(t *testing.T) {
	for _, threshold := range []string{"0", "-1"} {
		got, err := Deviation(d("2500"), d(threshold))
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrInvalidThreshold))
		require.True(t, got.IsZero())
	}
}

func TestEvaluateBoundaryInclusive(t *testing.T) {
	v, err := Evaluate(d("2525"), d("2500"), d("1"))
	require.NoError(t, err)
	require.True(t, v.DeviationPct.Equal(d("1")))
	require.True(t, v.IsValid)

	v, err = Evaluate(d("2525.01"), d("2500"), d("1"))
	require.NoError(t, err)
	require.False(t, v.IsValid)
}

func TestEvaluateZeroThreshold(t *testing.T) {
	_, err := Evaluate(d("1"), decimal.Zero, d("1"))
	require.Equal(t, KindInvalidThreshold, KindOf(err))
}
