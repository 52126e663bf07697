package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-predicates/internal/oracle"
	"price-predicates/internal/predicate"
)

const (
	simulatedChain  = int64(1)
	simulatedOracle = "0x0000000000000000000000000000000000005133"
	simulatedOwner  = "0x0000000000000000000000000000000000000001"
)

// SimulateAlert registers a throwaway predicate at threshold, moves the price
// and validates it so the configured channels receive a real notification.
func (a *App) SimulateAlert(ctx context.Context, threshold, price, tolerance decimal.Decimal) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	hooks := a.invalidationHooks()
	if len(hooks) == 0 {
		return errors.New("no alert channel configured")
	}

	prices := oracle.NewStatic(decimal.Zero)
	prices.SetPrice(simulatedChain, simulatedOracle, threshold)
	directory := oracle.NewDirectory([]oracle.Chain{{
		ID:    simulatedChain,
		Name:  "simulation",
		Feeds: []oracle.Feed{{Pair: "SIM/USD", Address: simulatedOracle}},
	}}, prices, zerolog.Nop())

	opts := append([]predicate.Option{
		predicate.WithToleranceBounds(
			decimal.NewFromFloat(a.Config.Predicates.MinTolerance),
			decimal.NewFromFloat(a.Config.Predicates.MaxTolerance),
		),
	}, hooks...)
	manager := predicate.NewManager(predicate.NewMemoryStore(), prices, directory, a.Logger, opts...)
	rec, err := manager.Create(ctx, predicate.CreateRequest{
		ChainID:        simulatedChain,
		OracleAddress:  simulatedOracle,
		Tolerance:      decimal.NewNullDecimal(tolerance),
		OwnerAddress:   simulatedOwner,
		PriceThreshold: decimal.NewNullDecimal(threshold),
	})
	if err != nil {
		return err
	}

	prices.SetPrice(simulatedChain, simulatedOracle, price)
	v, err := manager.Validate(ctx, rec.ID)
	if err != nil {
		return err
	}

	if v.IsValid {
		fmt.Fprintf(a.Out, "deviation %s%% is within tolerance %s%%; no alert sent\n", v.Deviation.StringFixed(3), tolerance.String())
		return nil
	}
	fmt.Fprintf(a.Out, "deviation %s%% exceeds tolerance %s%%; alert dispatched\n", v.Deviation.StringFixed(3), tolerance.String())
	return nil
}
