package app

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-predicates/internal/alerting"
	"price-predicates/internal/config"
	"price-predicates/internal/oracle"
	"price-predicates/internal/predicate"
	"price-predicates/internal/service"
	"price-predicates/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

// engine holds the predicate components wired for one command invocation.
type engine struct {
	store     predicate.Store
	pg        *storage.Store
	prices    oracle.PriceClient
	directory *oracle.Directory
	manager   *predicate.Manager
	history   *predicate.History
	closers   []func()
}

func (e *engine) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func (e *engine) storeKind() string {
	if e.pg != nil {
		return "postgres"
	}
	return "memory"
}

// build wires store, oracle, directory and manager from configuration.
func (a *App) build(ctx context.Context, extra ...predicate.Option) (*engine, error) {
	eng := &engine{}

	pg, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if pg != nil {
		eng.pg = pg
		eng.store = pg
		eng.closers = append(eng.closers, closeStore)
	} else {
		a.Logger.Warn().Msg("database.dsn not configured; predicates kept in memory")
		eng.store = predicate.NewMemoryStore()
	}

	prices, closePrices := a.newPriceClient()
	eng.prices = prices
	if closePrices != nil {
		eng.closers = append(eng.closers, closePrices)
	}

	eng.directory = oracle.NewDirectory(a.chains(), prices, a.Logger)

	opts := []predicate.Option{
		predicate.WithToleranceBounds(
			decimal.NewFromFloat(a.Config.Predicates.MinTolerance),
			decimal.NewFromFloat(a.Config.Predicates.MaxTolerance),
		),
		predicate.WithFetchTimeout(a.Config.Oracle.RequestTimeout),
	}
	if recorder, ok := eng.store.(predicate.ObservationRecorder); ok {
		opts = append(opts, predicate.WithRecorder(recorder))
	}
	opts = append(opts, extra...)

	eng.manager = predicate.NewManager(eng.store, prices, eng.directory, a.Logger, opts...)
	eng.history = predicate.NewHistory(eng.store, a.Config.Predicates.MaxPageSize)
	return eng, nil
}

func (a *App) chains() []oracle.Chain {
	out := make([]oracle.Chain, 0, len(a.Config.Oracle.Chains))
	for _, c := range a.Config.Oracle.Chains {
		chain := oracle.Chain{ID: c.ID, Name: c.Name, RPCURL: c.RPCURL}
		for _, f := range c.Feeds {
			chain.Feeds = append(chain.Feeds, oracle.Feed{
				Pair:    f.Pair,
				Address: f.Address,
				Price:   decimal.NewFromFloat(f.Price),
			})
		}
		out = append(out, chain)
	}
	return out
}

// newPriceClient selects the configured provider. Live providers are cached.
func (a *App) newPriceClient() (oracle.PriceClient, func()) {
	cfg := a.Config.Oracle

	switch cfg.Provider {
	case "chainlink":
		rpcs := make(map[int64]string, len(cfg.Chains))
		for _, chain := range cfg.Chains {
			rpcs[chain.ID] = chain.RPCURL
		}
		client := oracle.NewChainlink(oracle.ChainlinkOptions{
			RPCURLs: rpcs,
			Timeout: cfg.RequestTimeout,
		}, a.Logger)
		return oracle.NewCached(oracle.Instrument(client, "chainlink"), cfg.CacheSize, cfg.CacheTTL, cfg.RequestTimeout), client.Close
	case "http":
		client := oracle.NewHTTP(oracle.HTTPOptions{
			BaseURL:   cfg.HTTP.BaseURL,
			Timeout:   cfg.RequestTimeout,
			UserAgent: cfg.HTTP.UserAgent,
		}, a.Logger)
		return oracle.NewCached(oracle.Instrument(client, "http"), cfg.CacheSize, cfg.CacheTTL, cfg.RequestTimeout), nil
	default:
		static := oracle.NewStatic(decimal.NewFromFloat(cfg.FallbackPrice))
		for _, chain := range cfg.Chains {
			for _, feed := range chain.Feeds {
				if feed.Price > 0 {
					static.SetPrice(chain.ID, feed.Address, decimal.NewFromFloat(feed.Price))
				}
			}
		}
		return oracle.Instrument(static, "static"), nil
	}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

// invalidationHooks wires alerting into the manager when enabled.
func (a *App) invalidationHooks() []predicate.Option {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	notifier := a.newNotifier()
	if notifier == nil {
		a.Logger.Warn().Msg("alerting enabled but no channel configured")
		return nil
	}
	return []predicate.Option{
		predicate.WithTransitionHook(service.NewInvalidationHook(notifier, a.Config.Alerting.Channels, a.Logger)),
	}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if a.Config.Database.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
	}
	return store, store.Close, nil
}

// ExportOptions hold parameters for exporting a predicate's observations.
type ExportOptions struct {
	PredicateID string
	PNGPath     string
	CSVPath     string
	MaxPoints   int
}

// HistoryOptions configure the history command.
type HistoryOptions struct {
	Owner string
	Limit int
	Page  int
}

// SweepOptions configure a one-off sweep.
type SweepOptions struct {
	Revalidate bool
}
