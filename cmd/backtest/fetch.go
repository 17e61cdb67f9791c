package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpBacktest/internal/config"
	"lpBacktest/internal/indexer"
	"lpBacktest/internal/report"
	"lpBacktest/internal/storage/postgres"
	"lpBacktest/internal/subgraph"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadMigrate(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	logger.Info("migrate start", zap.String("pg_dsn", config.RedactDSN(cfg.PGDSN)))
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("migrate done")
	return nil
}

func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().String("subgraph-uniswapv3", "", "Uniswap v3 subgraph URL")
	cmd.Flags().String("subgraph-thena", "", "Thena fusion subgraph URL")
	cmd.Flags().Int("batch-size", subgraph.DefaultPageSize, "rows per subgraph page")
	cmd.Flags().Duration("request-delay", time.Second, "minimum delay between subgraph requests")
	cmd.Flags().Duration("window", 24*time.Hour, "fetch window size")
	cmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path (used without a state table)")
	cmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().Bool("incremental", false, "without a checkpoint, start at the newest stored trade")
}

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch pool trades, liquidity and fee tiers into Postgres",
		RunE:  runFetch,
	}
	addFetchFlags(cmd)
	cmd.Flags().String("protocol", "uniswapv3", "pool protocol (uniswapv3, thena)")
	cmd.Flags().StringSlice("pool", nil, "pool addresses (comma-separated)")
	cmd.Flags().String("from", "", "start time (RFC3339, YYYY-MM-DD or unix ms), default pool creation")
	cmd.Flags().String("to", "", "end time (exclusive), default now")
	return cmd
}

func runFetch(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFetch(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	addresses, err := indexer.ParsePoolAddresses(cfg.Pools)
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
	runner := indexer.NewRunner(runConfig(cfg.Fetch), sources, store, rec, logger)

	logger.Info("fetch start",
		zap.String("pg_dsn", config.RedactDSN(cfg.PGDSN)),
		zap.String("protocol", string(cfg.Protocol)),
		zap.Strings("pools", addresses),
		zap.Time("from", cfg.From),
		zap.Time("to", cfg.To),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Duration("window", cfg.Window),
		zap.Duration("request_delay", cfg.RequestDelay),
		zap.Bool("incremental", cfg.Incremental),
	)

	for _, address := range addresses {
		pool, err := runner.FetchPool(ctx, cfg.Protocol, address)
		if err != nil {
			return err
		}

		from := cfg.From
		if from.IsZero() {
			from = time.Unix(pool.CreatedAt, 0)
		}
		to := cfg.To
		if to.IsZero() {
			to = time.Now()
		}

		summary, err := runner.Run(ctx, pool, from.UnixMilli(), to.UnixMilli())
		if err != nil {
			return fmt.Errorf("pool %s: %w", address, err)
		}
		logger.Info("pool fetched",
			zap.String("pool", address),
			zap.Int("windows", summary.Windows),
			zap.Int("trades", summary.Trades),
			zap.Int("liquidity", summary.Liquidity),
			zap.Int("fee_tiers", summary.FeeTiers),
			zap.Int("candles", summary.Candles),
		)
	}
	return nil
}

func newPoolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pools",
		Short: "List stored pools, or search the subgraph with --search TOKEN0/TOKEN1",
		RunE:  runPools,
	}
	addFetchFlags(cmd)
	cmd.Flags().String("protocol", "uniswapv3", "subgraph protocol for --search")
	cmd.Flags().String("search", "", "symbol pair to search, e.g. WETH/USDC (_ matches any token)")
	cmd.Flags().Int("limit", 20, "maximum search results")
	return cmd
}

func runPools(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadPools(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

	out := report.NewJsonlStream(cmd.OutOrStdout())

	if cfg.Search != "" {
		symbol0, symbol1, _ := strings.Cut(cfg.Search, "/")
		endpoint, err := cfg.Endpoint(cfg.Protocol)
		if err != nil {
			return err
		}
		adapter, err := subgraph.AdapterFor(cfg.Protocol)
		if err != nil {
			return err
		}
		source := subgraph.NewSource(subgraph.NewClient(endpoint, cfg.RequestDelay, nil, logger), adapter, cfg.BatchSize)

		logger.Info("pool search start",
			zap.String("protocol", string(cfg.Protocol)),
			zap.String("symbol0", symbol0),
			zap.String("symbol1", symbol1),
			zap.Int("limit", cfg.Limit),
		)
		candidates, err := source.FindPools(ctx, symbol0, symbol1, cfg.Limit)
		if err != nil {
			return err
		}
		return report.Write(out, candidates)
	}

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	logger.Info("pools start", zap.String("pg_dsn", config.RedactDSN(cfg.PGDSN)))
	pools, err := store.ListPools(ctx)
	if err != nil {
		return err
	}
	return report.Write(out, pools)
}
