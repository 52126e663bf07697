package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"price-predicates/internal/api"
	"price-predicates/internal/scheduler"
	"price-predicates/internal/service"
	"price-predicates/internal/version"
)

// Serve runs the HTTP API and, when enabled, the background sweeper until
// interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng, err := a.build(ctx, a.invalidationHooks()...)
	if err != nil {
		return err
	}
	defer eng.close()

	var sweeper *service.Service
	if a.Config.Sweeper.Enabled {
		sched := scheduler.New(scheduler.Options{
			Interval:     a.Config.Sweeper.Interval,
			AlignToStart: a.Config.Sweeper.AlignToInterval,
			StartupDelay: a.Config.Sweeper.StartupDelay,
			RunOnStart:   true,
		}, a.Logger)
		sweeper = service.New(service.Options{
			Revalidate: a.Config.Sweeper.Revalidate,
			LockKey:    a.Config.Sweeper.AdvisoryLockKey,
		}, sched, eng.manager, eng.store, a.Logger)
	}

	srv := api.NewServer(api.Options{
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		MetricsPath:    a.Config.Server.MetricsPath,
		DefaultLimit:   a.Config.Predicates.DefaultPageSize,
		Version:        version.Version,
	}, eng.manager, eng.history, eng.directory, a.Logger)
	srv.SetHealthDetails(func() map[string]any {
		details := map[string]any{
			"store":    eng.storeKind(),
			"provider": a.Config.Oracle.Provider,
		}
		if sweeper != nil {
			if last, ok := sweeper.LastReport(); ok {
				details["lastSweep"] = last.At.UTC().Format(time.RFC3339)
			}
		}
		return details
	})

	httpServer := &http.Server{
		Addr:         a.Config.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownGrace)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if sweeper != nil {
		g.Go(func() error {
			a.Logger.Info().Dur("interval", a.Config.Sweeper.Interval).Msg("starting sweeper")
			if err := sweeper.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}
	a.Logger.Info().Msg("service stopped")
	return nil
}
