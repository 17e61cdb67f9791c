package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lpBacktest/internal/metrics"
	"lpBacktest/internal/model"
	"lpBacktest/internal/storage"
	"lpBacktest/internal/subgraph"
)

// RunConfig holds runtime settings for the fetch runner.
type RunConfig struct {
	Window            time.Duration
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	// Incremental starts a run without a checkpoint at the newest stored
	// trade instead of the requested start.
	Incremental bool
}

// Source fetches one protocol's pool rows page by page.
type Source interface {
	Protocol() model.Protocol
	PageSize() int
	Pool(ctx context.Context, address string) (model.Pool, error)
	TradesPage(ctx context.Context, pool model.Pool, from, to int64, skip int) ([]model.Trade, error)
	LiquidityPage(ctx context.Context, pool model.Pool, from, to int64, skip int) ([]model.LiquiditySnapshot, error)
	FeeTierPage(ctx context.Context, pool model.Pool, from, to int64, skip int) ([]model.FeeTierSnapshot, error)
}

// Store is the sink the runner writes to plus the coverage check EnsureData
// needs.
type Store interface {
	storage.Sink
	CheckCoverage(ctx context.Context, poolID int64, from, to int64) (bool, error)
}

// Summary counts what a run wrote.
type Summary struct {
	Windows   int
	Trades    int
	Liquidity int
	FeeTiers  int
	Candles   int
}

// Runner pulls pool windows from subgraph sources into the store.
type Runner struct {
	cfg        RunConfig
	sources    map[model.Protocol]Source
	store      Store
	checkpoint Checkpointer
	metrics    *metrics.Recorder
	logger     *zap.Logger
}

// NewRunner builds a Runner. With checkpoints enabled they go to the store
// when it implements storage.StateStore, otherwise to cfg.CheckpointPath.
func NewRunner(cfg RunConfig, sources []Source, store Store, rec *metrics.Recorder, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}

	bySource := make(map[model.Protocol]Source, len(sources))
	for _, src := range sources {
		bySource[src.Protocol()] = src
	}

	var cp Checkpointer = NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled)
	if state, ok := store.(storage.StateStore); ok && cfg.CheckpointEnabled {
		cp = stateCheckpointer{state: state}
	}

	return &Runner{
		cfg:        cfg,
		sources:    bySource,
		store:      store,
		checkpoint: cp,
		metrics:    rec,
		logger:     logger,
	}
}

func (r *Runner) source(p model.Protocol) (Source, error) {
	src, ok := r.sources[p]
	if !ok {
		return nil, fmt.Errorf("%w: no source configured for %q", subgraph.ErrUnknownProtocol, p)
	}
	return src, nil
}

// FetchPool fetches pool metadata and upserts it. Calling it again for a
// stored pool returns the stored row.
func (r *Runner) FetchPool(ctx context.Context, protocol model.Protocol, address string) (model.Pool, error) {
	if r.store == nil {
		return model.Pool{}, fmt.Errorf("store is nil")
	}
	src, err := r.source(protocol)
	if err != nil {
		return model.Pool{}, err
	}

	var pool model.Pool
	err = r.retry(ctx, "pool_metadata", func(ctx context.Context) error {
		var err error
		pool, err = src.Pool(ctx, address)
		if err != nil {
			r.metrics.RecordRequestError(string(protocol), "pool")
		}
		return err
	})
	if err != nil {
		return model.Pool{}, fmt.Errorf("fetch pool %s: %w", address, err)
	}

	stored, err := r.store.UpsertPool(ctx, pool)
	if err != nil {
		return model.Pool{}, fmt.Errorf("upsert pool: %w", err)
	}
	r.logger.Info("pool ready",
		zap.Int64("pool_id", stored.ID),
		zap.String("protocol", string(stored.Protocol)),
		zap.String("address", stored.Address),
		zap.String("pair", stored.Pair()),
		zap.Bool("dynamic_fee", stored.Dynamic()),
	)
	return stored, nil
}

// Run fetches trades, liquidity and fee tiers for [from, to) window by
// window. Checkpoints are kept per pool and start time, so a rerun from the
// same start resumes and any other range is fetched in full.
func (r *Runner) Run(ctx context.Context, pool model.Pool, from, to int64) (Summary, error) {
	return r.run(ctx, pool, from, to, true)
}

func (r *Runner) run(ctx context.Context, pool model.Pool, from, to int64, resume bool) (Summary, error) {
	var sum Summary
	if r.store == nil {
		return sum, fmt.Errorf("store is nil")
	}
	src, err := r.source(pool.Protocol)
	if err != nil {
		return sum, err
	}

	name := checkpointName(string(pool.Protocol), pool.Address, from)
	var (
		last int64
		ok   bool
	)
	if resume {
		last, ok, err = r.checkpoint.Load(ctx, name)
		if err != nil {
			return sum, fmt.Errorf("load checkpoint: %w", err)
		}
	}
	if ok && last > from && last < to {
		from = last
		r.logger.Info("resume from checkpoint", zap.String("name", name), zap.Int64("from", from))
	} else if !ok && resume && r.cfg.Incremental {
		latest, found, err := r.store.LatestTimestamp(ctx, storage.TableTrades, pool.ID)
		if err != nil {
			return sum, fmt.Errorf("latest stored trade: %w", err)
		}
		if found && latest > from {
			from = latest
			r.logger.Info("resume from stored trades", zap.Int64("from", from))
		}
	}

	if from >= to || (ok && last >= to) {
		r.logger.Info("nothing to fetch", zap.Int64("from", from), zap.Int64("to", to))
		return sum, nil
	}

	windows, err := SplitRange(from, to, r.cfg.Window.Milliseconds())
	if err != nil {
		return sum, err
	}

	dedup := newTradeDedup()
	for _, w := range windows {
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		default:
		}

		r.logger.Info("fetch window", zap.String("pool", pool.Address), zap.Int64("from", w.From), zap.Int64("to", w.To))

		trades, err := r.fetchTrades(ctx, src, pool, w, dedup)
		if err != nil {
			return sum, err
		}
		liquidity, err := r.fetchLiquidity(ctx, src, pool, w)
		if err != nil {
			return sum, err
		}
		feeTiers := 0
		if pool.Dynamic() {
			if feeTiers, err = r.fetchFeeTiers(ctx, src, pool, w); err != nil {
				return sum, err
			}
		}

		candles, err := r.rebuildCandles(ctx, pool, w)
		if err != nil {
			return sum, err
		}

		if err := r.checkpoint.Save(ctx, name, w.To); err != nil {
			return sum, fmt.Errorf("save checkpoint: %w", err)
		}

		sum.Windows++
		sum.Trades += trades
		sum.Liquidity += liquidity
		sum.FeeTiers += feeTiers
		sum.Candles += candles
		r.logger.Info("window complete",
			zap.Int("trades", trades),
			zap.Int("liquidity", liquidity),
			zap.Int("fee_tiers", feeTiers),
			zap.Int("candles", candles),
			zap.Int64("from", w.From),
			zap.Int64("to", w.To),
		)
	}

	return sum, nil
}

// rebuildCandles recomputes every hour the window touches, so an hour split
// across windows or runs ends up whole.
func (r *Runner) rebuildCandles(ctx context.Context, pool model.Pool, w TimeWindow) (int, error) {
	from, to := candleHours(w)
	n, err := r.store.RebuildCandles(ctx, pool, CandleSymbol(pool), from, to)
	if err != nil {
		return 0, fmt.Errorf("rebuild candles: %w", err)
	}
	r.metrics.RecordRows(string(storage.TableSpotPrices), n)
	return n, nil
}

// EnsureData fetches [from, to) when checks is set and the stored liquidity
// snapshots do not cover it. Checkpoints are ignored, since an incomplete
// range must be fetched whatever an earlier run recorded.
func (r *Runner) EnsureData(ctx context.Context, pool model.Pool, from, to int64, checks bool) error {
	if !checks {
		return nil
	}
	covered, err := r.store.CheckCoverage(ctx, pool.ID, from, to)
	if err != nil {
		return fmt.Errorf("check coverage: %w", err)
	}
	if covered {
		return nil
	}
	r.logger.Info("data incomplete, fetching", zap.String("pool", pool.Address), zap.Int64("from", from), zap.Int64("to", to))
	_, err = r.run(ctx, pool, from, to, false)
	return err
}

func (r *Runner) fetchTrades(ctx context.Context, src Source, pool model.Pool, w TimeWindow, dedup *tradeDedup) (int, error) {
	inserted := 0
	_, err := subgraph.Paginate(ctx, src.PageSize(), func(ctx context.Context, skip int) (int, error) {
		var page []model.Trade
		err := r.retry(ctx, "trades", func(ctx context.Context) error {
			var err error
			page, err = src.TradesPage(ctx, pool, w.From, w.To, skip)
			if err != nil {
				r.metrics.RecordRequestError(string(pool.Protocol), "swaps")
			}
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("fetch trades: %w", err)
		}
		received := len(page)

		fresh := dedup.filter(page)
		if len(fresh) > 0 {
			n, err := r.store.InsertTrades(ctx, fresh)
			if err != nil {
				return 0, fmt.Errorf("store trades: %w", err)
			}
			inserted += n
			r.metrics.RecordRows(string(storage.TableTrades), n)
		}
		return received, nil
	})
	return inserted, err
}

func (r *Runner) fetchLiquidity(ctx context.Context, src Source, pool model.Pool, w TimeWindow) (int, error) {
	inserted := 0
	_, err := subgraph.Paginate(ctx, src.PageSize(), func(ctx context.Context, skip int) (int, error) {
		var page []model.LiquiditySnapshot
		err := r.retry(ctx, "liquidity", func(ctx context.Context) error {
			var err error
			page, err = src.LiquidityPage(ctx, pool, w.From, w.To, skip)
			if err != nil {
				r.metrics.RecordRequestError(string(pool.Protocol), "poolHourDatas")
			}
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("fetch liquidity: %w", err)
		}
		if len(page) > 0 {
			n, err := r.store.InsertLiquidity(ctx, page)
			if err != nil {
				return 0, fmt.Errorf("store liquidity: %w", err)
			}
			inserted += n
			r.metrics.RecordRows(string(storage.TableLiquidity), n)
		}
		return len(page), nil
	})
	return inserted, err
}

func (r *Runner) fetchFeeTiers(ctx context.Context, src Source, pool model.Pool, w TimeWindow) (int, error) {
	inserted := 0
	_, err := subgraph.Paginate(ctx, src.PageSize(), func(ctx context.Context, skip int) (int, error) {
		var page []model.FeeTierSnapshot
		err := r.retry(ctx, "fee_tiers", func(ctx context.Context) error {
			var err error
			page, err = src.FeeTierPage(ctx, pool, w.From, w.To, skip)
			if err != nil {
				r.metrics.RecordRequestError(string(pool.Protocol), "feeHourDatas")
			}
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("fetch fee tiers: %w", err)
		}
		if len(page) > 0 {
			n, err := r.store.InsertFeeTiers(ctx, page)
			if err != nil {
				return 0, fmt.Errorf("store fee tiers: %w", err)
			}
			inserted += n
			r.metrics.RecordRows(string(storage.TableFeeTiers), n)
		}
		return len(page), nil
	})
	return inserted, err
}

func (r *Runner) retry(ctx context.Context, operation string, fn func(context.Context) error) error {
	return withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(attempt int, err error) {
		r.metrics.RecordRetry(operation)
		r.logger.Warn("request failed, retrying", zap.String("operation", operation), zap.Int("attempt", attempt), zap.Error(err))
	}, fn)
}
