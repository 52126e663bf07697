package predicate

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Verdict is the evaluator output for a single price observation.
type Verdict struct {
	DeviationPct decimal.Decimal
	IsValid      bool
}

// Deviation returns |current-threshold| / threshold * 100.
// A non-positive threshold yields an invalid_threshold error.
func Deviation(current, threshold decimal.Decimal) (decimal.Decimal, error) {
	if !threshold.IsPositive() {
		return decimal.Zero, newError(KindInvalidThreshold, "threshold price must be greater than zero, got %s", threshold.String())
	}
	return current.Sub(threshold).Abs().Div(threshold).Mul(hundred), nil
}

// Evaluate compares the deviation against tolerance; the bound is inclusive.
func Evaluate(current, threshold, tolerance decimal.Decimal) (Verdict, error) {
	deviation, err := Deviation(current, threshold)
	if err != nil {
		return Verdict{}, err
	}
	return Verdict{
		DeviationPct: deviation,
		IsValid:      deviation.LessThanOrEqual(tolerance),
	}, nil
}
