package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"lpBacktest/internal/model"
)

func fetchFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("fetch", pflag.ContinueOnError)
	fs.String("pg-dsn", "", "")
	fs.StringSlice("pool", nil, "")
	fs.String("protocol", "uniswapv3", "")
	fs.String("from", "", "")
	fs.String("to", "", "")
	fs.Int("batch-size", 1000, "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadFetchFromFlagsAndEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LPBT_SUBGRAPH_UNISWAPV3", "https://example.org/subgraph")
	t.Setenv("LPBT_MAX_RETRIES", "2")

	cfg, err := LoadFetch("", fetchFlags(t,
		"--pg-dsn", "postgres://u:p@localhost/db",
		"--pool", "0xabc,0xdef",
		"--from", "2024-01-01",
		"--to", "2024-01-02T12:00:00Z",
	))
	require.NoError(t, err)
	require.Equal(t, []string{"0xabc", "0xdef"}, cfg.Pools)
	require.Equal(t, model.ProtocolUniswapV3, cfg.Protocol)
	require.Equal(t, 2, cfg.MaxRetries)
	require.Equal(t, 1000, cfg.BatchSize)
	require.Equal(t, 24*time.Hour, cfg.Window)
	require.Equal(t, time.Second, cfg.RequestDelay)
	require.Equal(t, time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC), cfg.To)

	ep, err := cfg.Endpoint(model.ProtocolUniswapV3)
	require.NoError(t, err)
	require.Equal(t, "https://example.org/subgraph", ep)
	_, err = cfg.Endpoint(model.ProtocolThena)
	require.Error(t, err)
}

func TestLoadFetchRequiresDSNAndEndpoint(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := LoadFetch("", fetchFlags(t, "--pool", "0xabc"))
	require.EqualError(t, err, "pg dsn is required")

	_, err = LoadFetch("", fetchFlags(t, "--pool", "0xabc", "--pg-dsn", "postgres://x"))
	require.Error(t, err)
}

func TestLoadFetchConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "backtest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pg-dsn: postgres://file\nsubgraph-thena: https://thena\nwindow: 6h\n"), 0o644))

	cfg, err := LoadFetch(path, fetchFlags(t, "--pool", "0xabc", "--protocol", "thena"))
	require.NoError(t, err)
	require.Equal(t, "postgres://file", cfg.PGDSN)
	require.Equal(t, 6*time.Hour, cfg.Window)
	require.Equal(t, model.ProtocolThena, cfg.Protocol)

	_, err = LoadFetch(filepath.Join(dir, "missing.yaml"), fetchFlags(t))
	require.Error(t, err)
}

func TestLoadSimulateBuildsPosition(t *testing.T) {
	chdir(t, t.TempDir())
	fs := pflag.NewFlagSet("simulate", pflag.ContinueOnError)
	fs.String("pg-dsn", "postgres://x", "")
	fs.String("pool", "", "")
	fs.String("open", "", "")
	fs.String("close", "", "")
	fs.Float64("uptick", 0, "")
	fs.Float64("downtick", 0, "")
	fs.Float64("rebalance-uptick", 0, "")
	fs.Float64("rebalance-downtick", 0, "")
	require.NoError(t, fs.Parse([]string{
		"--pool", "0xabc", "--open", "2024-01-01", "--close", "2024-01-03",
		"--uptick", "5", "--downtick", "4", "--rebalance-uptick", "10", "--rebalance-downtick", "8",
	}))

	cfg, err := LoadSimulate("", fs)
	require.NoError(t, err)
	require.Equal(t, 1, cfg.Position.LPPositionID)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), cfg.Position.OpenTime)
	require.Equal(t, 5.0, cfg.Position.Range.UptickPercent)
	require.NotNil(t, cfg.Position.Rebalance)
	require.Equal(t, 8.0, cfg.Position.Rebalance.DowntickPercent)
	require.Equal(t, 1000.0, cfg.DefaultPositionUSD)
	require.Equal(t, "-", cfg.Out)
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("1704067200000")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseTime("")
	require.NoError(t, err)
	require.True(t, got.IsZero())

	_, err = ParseTime("yesterday")
	require.Error(t, err)
}

func TestRedactDSN(t *testing.T) {
	require.Equal(t, "postgres://user:xxxxx@db:5432/lp", RedactDSN("postgres://user:secret@db:5432/lp"))
	require.Equal(t, "postgres://db/lp", RedactDSN("postgres://db/lp"))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LPBT_TEST_DOTENV=loaded\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("LPBT_TEST_DOTENV") })
	require.NoError(t, LoadDotEnv(path))
	require.Equal(t, "loaded", os.Getenv("LPBT_TEST_DOTENV"))
}

func TestLoadImport(t *testing.T) {
	chdir(t, t.TempDir())
	flags := func(args ...string) *pflag.FlagSet {
		fs := pflag.NewFlagSet("import", pflag.ContinueOnError)
		fs.String("pg-dsn", "", "")
		fs.String("series", "implied", "")
		fs.String("symbol", "", "")
		fs.String("file", "", "")
		require.NoError(t, fs.Parse(args))
		return fs
	}

	cfg, err := LoadImport("", flags("--pg-dsn", "postgres://db/lp", "--file", "iv.csv", "--symbol", "EVIV"))
	require.NoError(t, err)
	require.Equal(t, string(model.VolatilityImplied), cfg.Series)
	require.Equal(t, "EVIV", cfg.Symbol)

	cfg, err = LoadImport("", flags("--pg-dsn", "postgres://db/lp", "--file", "eth.csv", "--series", "SPOT"))
	require.NoError(t, err)
	require.Equal(t, SeriesSpot, cfg.Series)

	_, err = LoadImport("", flags("--pg-dsn", "postgres://db/lp", "--file", "x.csv", "--series", "funding"))
	require.Error(t, err)
	_, err = LoadImport("", flags("--file", "x.csv"))
	require.Error(t, err)
	_, err = LoadImport("", flags("--pg-dsn", "postgres://db/lp"))
	require.Error(t, err)
}

// chdir mirrors testing.T.Chdir (Go 1.24+): it changes the working directory
// for the duration of the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
