package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  name: test\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "static", cfg.Oracle.Provider)
	require.Equal(t, "test", cfg.App.Name)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, time.Minute, cfg.Sweeper.Interval)
	require.Equal(t, 0.1, cfg.Predicates.MinTolerance)
	require.Equal(t, 10.0, cfg.Predicates.MaxTolerance)
	require.Equal(t, DefaultChains(), cfg.Oracle.Chains)
}

func TestLoadChainTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
oracle:
  provider: chainlink
  request_timeout: 3s
  chains:
    - id: 11155111
      name: sepolia
      rpc_url: https://rpc.sepolia.example
      feeds:
        - pair: ETH/USD
          address: "0x694AA1769357215DE4FAC081bf1f309aDC325306"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, cfg.Oracle.RequestTimeout)
	require.Len(t, cfg.Oracle.Chains, 1)
	require.Equal(t, int64(11155111), cfg.Oracle.Chains[0].ID)
	require.Equal(t, "ETH/USD", cfg.Oracle.Chains[0].Feeds[0].Pair)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() Config {
		return Config{
			Export:     ExportConfig{MaxDataPoints: 10},
			Sweeper:    SweeperConfig{Enabled: true, Interval: time.Minute},
			Oracle:     OracleConfig{Provider: "static", RequestTimeout: time.Second, Chains: DefaultChains()},
			Predicates: PredicatesConfig{MinTolerance: 0.1, MaxTolerance: 10, DefaultPageSize: 10, MaxPageSize: 100},
		}
	}

	cfg := base()
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Predicates.MaxTolerance = 0.05
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Oracle.Provider = "carrier-pigeon"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Oracle.Provider = "chainlink"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Oracle.Chains = append(cfg.Oracle.Chains, ChainConfig{ID: 1})
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Predicates.DefaultPageSize = 500
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Alerting.Telegram.Enabled = true
	require.Error(t, cfg.Validate())
}
