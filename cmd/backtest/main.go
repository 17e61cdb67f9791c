package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lpBacktest/internal/config"
	"lpBacktest/internal/indexer"
	"lpBacktest/internal/metrics"
	"lpBacktest/internal/model"
	"lpBacktest/internal/subgraph"
)

func main() {
	root := &cobra.Command{
		Use:          "backtest",
		Short:        "Concentrated liquidity LP backtester",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return config.LoadDotEnv(envFile)
		},
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before configuration")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN")
	root.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9100)")

	root.AddCommand(
		newMigrateCmd(),
		newFetchCmd(),
		newPoolsCmd(),
		newSimulateCmd(),
		newStrategyCmd(),
		newVolatilityCmd(),
		newImportCmd(),
		newHedgeCmd(),
		newStatsCmd(),
		newAuditCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func configFile(cmd *cobra.Command) string {
	cfgFile, _ := cmd.Flags().GetString("config")
	return cfgFile
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// startMetrics returns a recorder served on addr, or nil when addr is empty.
func startMetrics(ctx context.Context, addr string, logger *zap.Logger) *metrics.Recorder {
	if addr == "" {
		return nil
	}
	rec := metrics.New(prometheus.DefaultRegisterer)
	metrics.Serve(ctx, addr, logger)
	return rec
}

// newSources builds one subgraph source per protocol with an endpoint.
func newSources(cfg config.Fetch, logger *zap.Logger) ([]indexer.Source, error) {
	var sources []indexer.Source
	for _, p := range model.Protocols() {
		endpoint := cfg.Endpoints[p]
		if endpoint == "" {
			continue
		}
		adapter, err := subgraph.AdapterFor(p)
		if err != nil {
			return nil, err
		}
		client := subgraph.NewClient(endpoint, cfg.RequestDelay, nil, logger.With(zap.String("protocol", string(p))))
		sources = append(sources, subgraph.NewSource(client, adapter, cfg.BatchSize))
	}
	return sources, nil
}

func runConfig(cfg config.Fetch) indexer.RunConfig {
	return indexer.RunConfig{
		Window:            cfg.Window,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		Incremental:       cfg.Incremental,
	}
}
