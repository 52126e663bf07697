package cli

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateThreshold string
	simulatePrice     string
	simulateTolerance string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Validate a throwaway predicate against a moved price and dispatch the alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold, err := parsePositive("threshold", simulateThreshold)
		if err != nil {
			return err
		}
		price, err := parsePositive("price", simulatePrice)
		if err != nil {
			return err
		}
		tolerance, err := parsePositive("tolerance", simulateTolerance)
		if err != nil {
			return err
		}
		return getApp().SimulateAlert(cmd.Context(), threshold, price, tolerance)
	},
}

func parsePositive(name, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, fmt.Errorf("--%s must be provided", name)
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s value: %w", name, err)
	}
	if !value.IsPositive() {
		return decimal.Zero, errors.New("--" + name + " must be greater than 0")
	}
	return value, nil
}

func init() {
	simulateCmd.Flags().StringVar(&simulateThreshold, "threshold", "", "Threshold price the predicate is registered at")
	simulateCmd.Flags().StringVar(&simulatePrice, "price", "", "Oracle price observed at validation")
	simulateCmd.Flags().StringVar(&simulateTolerance, "tolerance", "1", "Tolerance in percent")
}
