package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpBacktest/internal/config"
	"lpBacktest/internal/indexer"
	"lpBacktest/internal/model"
	"lpBacktest/internal/options"
	"lpBacktest/internal/report"
	"lpBacktest/internal/stats"
	"lpBacktest/internal/storage/postgres"
	"lpBacktest/internal/strategy"
	"lpBacktest/internal/v3math"
)

func newVolatilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "volatility",
		Short: "Compute rolling realized volatility of a pool and store it",
		RunE:  runVolatility,
	}
	cmd.Flags().String("protocol", "uniswapv3", "pool protocol (uniswapv3, thena)")
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().String("symbol", "", "series symbol, default the pool pair")
	cmd.Flags().String("from", "", "start time (RFC3339, YYYY-MM-DD or unix ms)")
	cmd.Flags().String("to", "", "end time")
	cmd.Flags().Duration("vol-window", stats.DefaultWindow, "trailing window of each sample")
	cmd.Flags().Duration("vol-step", stats.DefaultStep, "distance between samples")
	cmd.Flags().String("out", "", "also write the series as JSONL (- for stdout)")
	return cmd
}

func runVolatility(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadVolatility(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	address, err := indexer.ParsePoolAddress(cfg.Pool)
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

	pool, err := store.PoolByAddress(ctx, cfg.Protocol, address)
	if err != nil {
		return fmt.Errorf("load pool %s: %w", address, err)
	}
	symbol := cfg.Symbol
	if symbol == "" {
		symbol = pool.Pair()
	}

	logger.Info("volatility start",
		zap.String("pg_dsn", config.RedactDSN(cfg.PGDSN)),
		zap.String("pool", pool.Address),
		zap.String("symbol", symbol),
		zap.Time("from", cfg.From),
		zap.Time("to", cfg.To),
		zap.Duration("window", cfg.Window),
		zap.Duration("step", cfg.Step),
	)

	from, to := cfg.From.UnixMilli(), cfg.To.UnixMilli()
	trades, err := store.TradesBetween(ctx, pool.ID, from, to)
	if err != nil {
		return fmt.Errorf("load trades: %w", err)
	}
	points := make([]model.PricePoint, 0, len(trades))
	for _, tr := range trades {
		price := v3math.DecodePrice(tr.SqrtPriceX96, pool.Token0Decimals, pool.Token1Decimals)
		if price > 0 {
			points = append(points, model.PricePoint{Timestamp: tr.Timestamp, Price: price})
		}
	}

	series := stats.RollingVolatility(symbol, points, from, to, cfg.Window, cfg.Step)
	n, err := store.InsertVolatility(ctx, model.VolatilityRealized, series)
	if err != nil {
		return err
	}
	if cfg.Out != "" {
		if err := report.Write(report.NewJsonlWriter(cfg.Out), series); err != nil {
			return err
		}
	}

	logger.Info("volatility done",
		zap.Int("trades", len(trades)),
		zap.Int("samples", len(series)),
		zap.Int("inserted", n),
	)
	return nil
}

func newHedgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hedge",
		Short: "Price straddle hedges for LP report files",
		RunE:  runHedge,
	}
	cmd.Flags().String("directory", "", "directory of LP report CSVs")
	cmd.Flags().String("strategies", "", "strategy descriptors holding the options parameters")
	cmd.Flags().Float64("volatility", 0, "annualized volatility in percent, overrides the stored series")
	cmd.Flags().String("volatility-symbol", "EVIV", "stored volatility series symbol")
	cmd.Flags().String("volatility-kind", string(model.VolatilityImplied), "stored volatility kind (implied, realized)")
	cmd.Flags().String("out", "-", "output JSONL path, - for stdout")
	return cmd
}

func runHedge(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadHedge(configFile(cmd), cmd.Flags())
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
	files, err := report.ReadLPDir(cfg.Directory)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	vol := volatilityLookup(func(context.Context, int64) (float64, bool, error) {
		return cfg.Volatility, cfg.Volatility > 0, nil
	})
	if !(cfg.Volatility > 0) {
		if cfg.PGDSN == "" {
			logger.Warn("no volatility source, hedges carry DTE and max theta only")
		} else {
			store, err := postgres.NewStore(ctx, cfg.PGDSN)
			if err != nil {
				return err
			}
			defer store.Close()
			vol = func(ctx context.Context, ts int64) (float64, bool, error) {
				return store.LatestVolatility(ctx, cfg.VolatilityKind, cfg.VolatilitySymbol, ts)
			}
		}
	}

	logger.Info("hedge start",
		zap.String("pg_dsn", config.RedactDSN(cfg.PGDSN)),
		zap.String("directory", cfg.Directory),
		zap.Int("files", len(files)),
		zap.Int("strategies", len(strategies)),
		zap.Float64("volatility", cfg.Volatility),
		zap.String("volatility_symbol", cfg.VolatilitySymbol),
		zap.String("volatility_kind", string(cfg.VolatilityKind)),
		zap.String("out", cfg.Out),
	)

	out := report.NewJsonlWriter(cfg.Out)
	for _, file := range files {
		s, ok := strategyForFile(strategies, file.Name)
		if !ok {
			logger.Warn("no strategy for file", zap.String("file", file.Name))
			continue
		}

		rows := make([]options.HedgeRow, 0, len(file.Records))
		var lpTotal, netTotal float64
		for _, rec := range file.Records {
			v, _, err := vol(ctx, rec.OpenTimestamp.UnixMilli())
			if err != nil {
				return fmt.Errorf("volatility at %s: %w", rec.OpenTimestamp.Format(time.RFC3339), err)
			}
			row := options.Evaluate(rec, v, s.Options)
			lpTotal += row.LPPnLUSD
			netTotal += row.NetPnLUSD
			rows = append(rows, row)
		}
		if err := report.Write(out, rows); err != nil {
			return err
		}
		logger.Info("hedge file done",
			zap.String("file", file.Name),
			zap.String("strategy", s.StrategyName),
			zap.Int("positions", len(rows)),
			zap.Float64("lp_pnl_usd", lpTotal),
			zap.Float64("net_pnl_usd", netTotal),
		)
	}
	return nil
}

type volatilityLookup func(ctx context.Context, ts int64) (float64, bool, error)

// strategyForFile matches a report file to the strategy whose name is the
// longest "<name>_" prefix of the file name.
func strategyForFile(strategies []strategy.Strategy, name string) (strategy.Strategy, bool) {
	var (
		best  strategy.Strategy
		found bool
	)
	for _, s := range strategies {
		if !strings.HasPrefix(name, s.StrategyName+"_") {
			continue
		}
		if !found || len(s.StrategyName) > len(best.StrategyName) {
			best, found = s, true
		}
	}
	return best, found
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Compare an LP report against a reference report",
		RunE:  runStats,
	}
	cmd.Flags().String("input", "", "LP report CSV to evaluate")
	cmd.Flags().String("reference", "", "reference LP report CSV")
	cmd.Flags().String("start-date", "", "ignore positions opened before this date")
	cmd.Flags().String("end-date", "", "ignore positions closed after this date")
	return cmd
}

func runStats(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadStats(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	input, err := report.ReadLPFile(cfg.Input)
	if err != nil {
		return err
	}
	reference, err := report.ReadLPFile(cfg.Reference)
	if err != nil {
		return err
	}
	input = filterRecords(input, cfg.Start, cfg.End)
	reference = filterRecords(reference, cfg.Start, cfg.End)

	logger.Info("stats start",
		zap.String("input", cfg.Input),
		zap.String("reference", cfg.Reference),
		zap.Time("start", cfg.Start),
		zap.Time("end", cfg.End),
		zap.Int("input_positions", len(input)),
		zap.Int("reference_positions", len(reference)),
	)

	in, ref, dated := alignReturns(input, reference)
	if len(in) < len(input) {
		logger.Warn("positions without a reference dropped", zap.Int("dropped", len(input)-len(in)))
	}
	cmp, err := stats.Compare(in, ref)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "positions\t%d\n", len(in))
	fmt.Fprintf(w, "alpha\t%.4f\n", cmp.Alpha)
	fmt.Fprintf(w, "beta\t%.4f\n", cmp.Beta)
	fmt.Fprintf(w, "r_squared\t%.4f\n", cmp.RSquared)
	fmt.Fprintf(w, "sharpe\t%.4f\n", cmp.Sharpe)
	fmt.Fprintf(w, "max_drawdown\t%.4f\n", cmp.MaxDrawdown)
	fmt.Fprintf(w, "total_return\t%.4f\n", cmp.TotalReturn)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "month\tpnl_percent")
	monthly := stats.MonthlyPnL(dated)
	for _, m := range stats.SortedMonths(monthly) {
		fmt.Fprintf(w, "%s\t%.4f\n", m, monthly[m])
	}
	return w.Flush()
}

// filterRecords keeps positions opened at or after start and closed at or
// before end. Zero bounds are open.
func filterRecords(recs []options.LPRecord, start, end time.Time) []options.LPRecord {
	out := make([]options.LPRecord, 0, len(recs))
	for _, r := range recs {
		if !start.IsZero() && r.OpenTimestamp.Before(start) {
			continue
		}
		if !end.IsZero() && r.CloseTimestamp.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// alignReturns pairs input and reference positions opened at the same time,
// in input order.
func alignReturns(input, reference []options.LPRecord) ([]float64, []float64, []stats.Dated) {
	byOpen := make(map[int64]float64, len(reference))
	for _, r := range reference {
		byOpen[r.OpenTimestamp.UnixMilli()] = r.PnLPercent
	}

	sorted := append([]options.LPRecord(nil), input...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OpenTimestamp.Before(sorted[j].OpenTimestamp) })

	var (
		in, ref []float64
		dated   []stats.Dated
	)
	for _, r := range sorted {
		pnl, ok := byOpen[r.OpenTimestamp.UnixMilli()]
		if !ok {
			continue
		}
		in = append(in, r.PnLPercent)
		ref = append(ref, pnl)
		dated = append(dated, stats.Dated{Close: r.CloseTimestamp, Return: r.PnLPercent})
	}
	return in, ref, dated
}
