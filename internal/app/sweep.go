package app

import (
	"context"
	"fmt"
	"time"

	"price-predicates/internal/service"
)

// Sweep runs a single expiry pass, optionally revalidating every open predicate.
func (a *App) Sweep(ctx context.Context, opts SweepOptions) error {
	eng, err := a.build(ctx, a.invalidationHooks()...)
	if err != nil {
		return err
	}
	defer eng.close()

	if eng.pg == nil {
		a.Logger.Warn().Msg("sweeping an in-memory store only affects this process")
	}

	svc := service.New(service.Options{
		Revalidate: opts.Revalidate || a.Config.Sweeper.Revalidate,
		LockKey:    a.Config.Sweeper.AdvisoryLockKey,
	}, nil, eng.manager, eng.store, a.Logger)

	report, err := svc.Sweep(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if report.Skipped {
		fmt.Fprintln(a.Out, "sweep skipped: another instance holds the sweep lock")
		return nil
	}

	fmt.Fprintf(a.Out, "expired: %d\nvalidated: %d\nflipped: %d\nfailed: %d\n",
		report.Expired,
		report.Revalidated.Validated,
		report.Revalidated.Flipped,
		report.Revalidated.Failed,
	)
	return nil
}
