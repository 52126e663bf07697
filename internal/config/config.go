package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"price-predicates/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Predicates PredicatesConfig `mapstructure:"predicates"`
	Sweeper    SweeperConfig    `mapstructure:"sweeper"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig governs the HTTP listener.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	MetricsPath    string        `mapstructure:"metrics_path"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN keeps
// predicates in memory.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// OracleConfig selects and tunes the price provider.
type OracleConfig struct {
	Provider       string         `mapstructure:"provider"`
	RequestTimeout time.Duration  `mapstructure:"request_timeout"`
	CacheTTL       time.Duration  `mapstructure:"cache_ttl"`
	CacheSize      int            `mapstructure:"cache_size"`
	FallbackPrice  float64        `mapstructure:"fallback_price"`
	HTTP           HTTPFeedConfig `mapstructure:"http"`
	Chains         []ChainConfig  `mapstructure:"chains"`
}

// HTTPFeedConfig points at a REST price gateway.
type HTTPFeedConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
}

// ChainConfig is one network's oracle address table.
type ChainConfig struct {
	ID     int64        `mapstructure:"id"`
	Name   string       `mapstructure:"name"`
	RPCURL string       `mapstructure:"rpc_url"`
	Feeds  []FeedConfig `mapstructure:"feeds"`
}

// FeedConfig maps a pair label to an oracle address. Price seeds the static provider.
type FeedConfig struct {
	Pair    string  `mapstructure:"pair"`
	Address string  `mapstructure:"address"`
	Price   float64 `mapstructure:"price"`
}

// PredicatesConfig bounds predicate parameters.
type PredicatesConfig struct {
	MinTolerance    float64 `mapstructure:"min_tolerance"`
	MaxTolerance    float64 `mapstructure:"max_tolerance"`
	DefaultPageSize int     `mapstructure:"default_page_size"`
	MaxPageSize     int     `mapstructure:"max_page_size"`
}

// SweeperConfig governs background expiry and revalidation.
type SweeperConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Interval        time.Duration `mapstructure:"interval"`
	AlignToInterval bool          `mapstructure:"align_to_interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	Revalidate      bool          `mapstructure:"revalidate"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// AlertingConfig routes ACTIVE to INVALID notifications.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram notifier parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PREDICATED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.Oracle.Chains) == 0 {
		cfg.Oracle.Chains = DefaultChains()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "predicated")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_grace", "10s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.metrics_path", "/metrics")

	v.SetDefault("oracle.provider", "static")
	v.SetDefault("oracle.request_timeout", "5s")
	v.SetDefault("oracle.cache_ttl", "15s")
	v.SetDefault("oracle.cache_size", 1024)
	v.SetDefault("oracle.fallback_price", 1000.0)
	v.SetDefault("oracle.http.user_agent", "predicated/1.0")

	v.SetDefault("predicates.min_tolerance", 0.1)
	v.SetDefault("predicates.max_tolerance", 10.0)
	v.SetDefault("predicates.default_page_size", 10)
	v.SetDefault("predicates.max_page_size", 100)

	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.interval", "1m")
	v.SetDefault("sweeper.align_to_interval", true)
	v.SetDefault("sweeper.startup_delay", "0s")
	v.SetDefault("sweeper.revalidate", false)
	v.SetDefault("sweeper.advisory_lock_key", int64(0x70726564))

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 10000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Sweeper.Enabled && c.Sweeper.Interval <= 0 {
		return fmt.Errorf("sweeper.interval must be greater than zero")
	}
	if c.Oracle.RequestTimeout <= 0 {
		return fmt.Errorf("oracle.request_timeout must be greater than zero")
	}
	switch c.Oracle.Provider {
	case "static", "chainlink":
	case "http":
		if c.Oracle.HTTP.BaseURL == "" {
			return fmt.Errorf("oracle.http.base_url is required for the http provider")
		}
	default:
		return fmt.Errorf("oracle.provider %q is not supported", c.Oracle.Provider)
	}
	if c.Oracle.FallbackPrice < 0 {
		return fmt.Errorf("oracle.fallback_price cannot be negative")
	}
	if c.Predicates.MinTolerance <= 0 || c.Predicates.MaxTolerance < c.Predicates.MinTolerance {
		return fmt.Errorf("predicates tolerance bounds are invalid: [%v, %v]", c.Predicates.MinTolerance, c.Predicates.MaxTolerance)
	}
	if c.Predicates.DefaultPageSize <= 0 || c.Predicates.MaxPageSize < c.Predicates.DefaultPageSize {
		return fmt.Errorf("predicates page sizes are invalid: default %d, max %d", c.Predicates.DefaultPageSize, c.Predicates.MaxPageSize)
	}
	seen := make(map[int64]struct{}, len(c.Oracle.Chains))
	for _, chain := range c.Oracle.Chains {
		if chain.ID <= 0 {
			return fmt.Errorf("oracle.chains: id must be positive")
		}
		if _, dup := seen[chain.ID]; dup {
			return fmt.Errorf("oracle.chains: duplicate chain id %d", chain.ID)
		}
		seen[chain.ID] = struct{}{}
		if c.Oracle.Provider == "chainlink" && chain.RPCURL == "" {
			return fmt.Errorf("oracle.chains[%d].rpc_url is required for the chainlink provider", chain.ID)
		}
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
