package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"lpBacktest/internal/config"
	"lpBacktest/internal/model"
	"lpBacktest/internal/report"
	"lpBacktest/internal/simulate"
	"lpBacktest/internal/storage/postgres"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate one LP position against stored trades",
		RunE:  runSimulate,
	}
	cmd.Flags().Int("position-id", 1, "LP position id")
	cmd.Flags().String("protocol", "uniswapv3", "pool protocol (uniswapv3, thena)")
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().String("open", "", "open time (RFC3339, YYYY-MM-DD or unix ms)")
	cmd.Flags().String("close", "", "close time (RFC3339, YYYY-MM-DD or unix ms)")
	cmd.Flags().Float64("amount-usd", 0, "deposit in USD, default --default-position-usd")
	cmd.Flags().Bool("full-range", false, "provide liquidity over the whole tick domain")
	cmd.Flags().Float64("uptick", 0, "upper bound as percent above the open price")
	cmd.Flags().Float64("downtick", 0, "lower bound as percent below the open price")
	cmd.Flags().Float64("price-low", 0, "fixed lower price bound")
	cmd.Flags().Float64("price-high", 0, "fixed upper price bound")
	cmd.Flags().Float64("rebalance-uptick", 0, "rebalance range percent above the exit price")
	cmd.Flags().Float64("rebalance-downtick", 0, "rebalance range percent below the exit price")
	cmd.Flags().String("trading", "", "YAML/JSON list of trading strategies run alongside the position")
	cmd.Flags().Float64("default-position-usd", 1000, "deposit used when --amount-usd is not set")
	cmd.Flags().Float64("min-trade-usd", 0, "ignore trades below this USD amount")
	cmd.Flags().Float64("price-point-min-usd", 0, "minimum trade size for open/close prices")
	cmd.Flags().String("out", "-", "output JSONL path, - for stdout")
	return cmd
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadSimulate(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.TradingFile != "" {
		if cfg.Position.Trading, err = loadTrading(cfg.TradingFile); err != nil {
			return err
		}
	}

	ctx, stop := signalContext()
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	rec := startMetrics(ctx, cfg.MetricsAddr, logger)
	sim := simulate.NewSimulator(store, simulateConfig(cfg.Simulation), rec, logger)

	logger.Info("simulate start",
		zap.String("pg_dsn", config.RedactDSN(cfg.PGDSN)),
		zap.String("protocol", string(cfg.Position.Protocol)),
		zap.String("pool", cfg.Position.PoolAddress),
		zap.Int64("open", cfg.Position.OpenTime),
		zap.Int64("close", cfg.Position.CloseTime),
		zap.Float64("amount_usd", cfg.Position.AmountUSD),
		zap.Bool("full_range", cfg.Position.Range.FullRange),
		zap.Bool("rebalance", cfg.Position.Rebalance != nil),
		zap.Int("trading_strategies", len(cfg.Position.Trading)),
		zap.String("out", cfg.Out),
	)

	res, err := sim.Simulate(ctx, cfg.Position)
	if err != nil {
		return err
	}

	out := report.NewJsonlWriter(cfg.Out)
	if err := report.Write(out, res.LPPositions); err != nil {
		return err
	}
	if err := report.Write(out, res.TradingPositions); err != nil {
		return err
	}

	logger.Info("simulate done",
		zap.String("run_id", res.RunID),
		zap.Int("lp_positions", len(res.LPPositions)),
		zap.Int("trading_positions", len(res.TradingPositions)),
		zap.Int("rebalances", res.Stats.Rebalances),
	)
	return nil
}

func simulateConfig(cfg config.Simulation) simulate.Config {
	return simulate.Config{
		DefaultPositionUSD: cfg.DefaultPositionUSD,
		MinTradeUSD:        cfg.MinTradeUSD,
		PricePointMinUSD:   cfg.PricePointMinUSD,
	}
}

// loadTrading reads a list of trading strategies. JSON parses as YAML.
func loadTrading(path string) ([]model.TradingStrategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trading file: %w", err)
	}
	var out []model.TradingStrategy
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse trading file: %w", err)
	}
	return out, nil
}
