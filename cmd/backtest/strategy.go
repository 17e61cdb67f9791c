package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpBacktest/internal/config"
	"lpBacktest/internal/indexer"
	"lpBacktest/internal/model"
	"lpBacktest/internal/report"
	"lpBacktest/internal/simulate"
	"lpBacktest/internal/storage"
	"lpBacktest/internal/storage/postgres"
	"lpBacktest/internal/strategy"
)

func newStrategyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "Run strategy descriptors over a pools CSV and write LP and trade reports",
		RunE:  runStrategy,
	}
	addFetchFlags(cmd)
	cmd.Flags().String("input", "", "pools CSV (poolType,poolAddress,startDate,endDate)")
	cmd.Flags().String("strategies", "", "strategy descriptors (YAML or JSON)")
	cmd.Flags().String("output", "output/", "report directory")
	cmd.Flags().Bool("checks", true, "fetch missing pool data before simulating")
	cmd.Flags().Float64("default-position-usd", 1000, "deposit used when a strategy has no amountUSD")
	cmd.Flags().Float64("min-trade-usd", 0, "ignore trades below this USD amount")
	cmd.Flags().Float64("price-point-min-usd", 0, "minimum trade size for open/close prices")
	return cmd
}

func runStrategy(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadStrategy(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	strategies, err := strategy.LoadFile(cfg.Strategies)
	if err != nil {
		return err
	}
	rows, err := readPoolsFile(cfg.Input)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	sources, err := newSources(cfg.Fetch, logger)
	if err != nil {
		return err
	}
	rec := startMetrics(ctx, cfg.MetricsAddr, logger)
	fetcher := indexer.NewRunner(runConfig(cfg.Fetch), sources, store, rec, logger)
	sim := simulate.NewSimulator(store, simulateConfig(cfg.Simulation), rec, logger)
	runner := strategy.NewRunner(sim, store, cfg.DefaultPositionUSD, logger)

	logger.Info("strategy start",
		zap.String("pg_dsn", config.RedactDSN(cfg.PGDSN)),
		zap.String("input", cfg.Input),
		zap.String("strategies", cfg.Strategies),
		zap.Int("strategy_count", len(strategies)),
		zap.Int("pools", len(rows)),
		zap.String("output", cfg.Output),
		zap.Bool("checks", cfg.Checks),
	)

	for _, row := range rows {
		pool, err := resolvePool(ctx, store, fetcher, row.Protocol, row.Address)
		if err != nil {
			return err
		}

		start := row.StartDate
		if start.IsZero() {
			start = time.Unix(pool.CreatedAt, 0).UTC()
		}
		end := row.EndDate
		if end.IsZero() {
			end = time.Now().UTC().Truncate(time.Hour)
		}

		if err := fetcher.EnsureData(ctx, pool, start.UnixMilli(), end.UnixMilli(), cfg.Checks); err != nil {
			return fmt.Errorf("pool %s: %w", pool.Address, err)
		}

		for _, s := range strategies {
			res, err := runner.Execute(ctx, pool, start, end, s)
			if err != nil {
				return err
			}
			paths, err := report.WriteStrategyFiles(cfg.Output, s.StrategyName, pool, res.LPPositions, res.TradingPositions)
			if err != nil {
				return err
			}

			fields := []zap.Field{
				zap.String("run_id", res.RunID),
				zap.String("strategy", s.StrategyName),
				zap.String("pool", pool.Address),
				zap.String("pair", pool.Pair()),
				zap.Int("windows", len(res.Windows)),
				zap.Int("skipped", res.Skipped),
				zap.Strings("files", paths),
			}
			logger.Info("strategy done", append(fields, res.Summary.Fields()...)...)
		}
	}
	return nil
}

// resolvePool returns the stored pool, fetching its metadata when missing.
func resolvePool(ctx context.Context, store *postgres.Store, fetcher *indexer.Runner, protocol model.Protocol, address string) (model.Pool, error) {
	address, err := indexer.ParsePoolAddress(address)
	if err != nil {
		return model.Pool{}, err
	}
	pool, err := store.PoolByAddress(ctx, protocol, address)
	if err == nil {
		return pool, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return model.Pool{}, err
	}
	return fetcher.FetchPool(ctx, protocol, address)
}

func readPoolsFile(path string) ([]report.PoolRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pools file: %w", err)
	}
	defer f.Close()
	rows, err := report.ReadPoolRows(f)
	if err != nil {
		return nil, fmt.Errorf("parse pools file: %w", err)
	}
	return rows, nil
}
