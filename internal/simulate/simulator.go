package simulate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lpBacktest/internal/metrics"
	"lpBacktest/internal/model"
	"lpBacktest/internal/storage"
)

// Config holds simulation settings resolved once by the caller.
type Config struct {
	DefaultPositionUSD float64
	MinTradeUSD        float64
	PricePointMinUSD   float64
}

// Result is the output of one Simulate call.
type Result struct {
	RunID            string
	Pool             model.Pool
	LPPositions      []model.LPPosition
	TradingPositions []model.TradingPosition
	Stats            ReplayStats
}

// Simulator loads a position's data from the store and replays it.
type Simulator struct {
	store   storage.TapeSource
	cfg     Config
	metrics *metrics.Recorder
	logger  *zap.Logger
}

// NewSimulator builds a Simulator with its dependencies.
func NewSimulator(store storage.TapeSource, cfg Config, rec *metrics.Recorder, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{store: store, cfg: cfg, metrics: rec, logger: logger}
}

// Simulate runs one position. It returns ErrInsufficientData when the store
// has no trades in the window or no price at either boundary.
func (s *Simulator) Simulate(ctx context.Context, spec model.PositionSpec) (Result, error) {
	if s.store == nil {
		return Result{}, fmt.Errorf("store is nil")
	}
	if spec.CloseTime <= spec.OpenTime {
		return Result{}, fmt.Errorf("close time must be after open time")
	}
	if !(spec.AmountUSD > 0) {
		spec.AmountUSD = s.cfg.DefaultPositionUSD
	}
	spec.PoolAddress = strings.ToLower(spec.PoolAddress)

	pool, err := s.store.PoolByAddress(ctx, spec.Protocol, spec.PoolAddress)
	if err != nil {
		return Result{}, fmt.Errorf("load pool %s: %w", spec.PoolAddress, err)
	}

	open, err := s.pricePoint(ctx, pool, spec.OpenTime)
	if err != nil {
		s.metrics.RecordPosition("insufficient_data")
		return Result{}, fmt.Errorf("open price: %w", err)
	}
	closePoint, err := s.pricePoint(ctx, pool, spec.CloseTime)
	if err != nil {
		s.metrics.RecordPosition("insufficient_data")
		return Result{}, fmt.Errorf("close price: %w", err)
	}

	tape, err := s.store.TradeTape(ctx, pool.ID, spec.OpenTime, spec.CloseTime)
	if err != nil {
		return Result{}, fmt.Errorf("load trades: %w", err)
	}
	if len(tape) == 0 {
		s.metrics.RecordPosition("insufficient_data")
		return Result{}, fmt.Errorf("no trades between %d and %d: %w", spec.OpenTime, spec.CloseTime, ErrInsufficientData)
	}

	start := time.Now()
	replay, err := Replay(ReplayInput{
		Pool:        pool,
		Spec:        spec,
		Open:        open,
		Close:       closePoint,
		Tape:        tape,
		MinTradeUSD: s.cfg.MinTradeUSD,
	})
	if err != nil {
		return Result{}, err
	}
	s.metrics.ObserveReplay(time.Since(start))

	for i := range replay.LPPositions {
		replay.LPPositions[i].LPPositionID = spec.LPPositionID
		replay.LPPositions[i].Protocol = pool.Protocol
		replay.LPPositions[i].PoolAddress = pool.Address
		s.metrics.RecordPosition("ok")
	}

	res := Result{
		RunID:            uuid.NewString(),
		Pool:             pool,
		LPPositions:      replay.LPPositions,
		TradingPositions: replay.TradingPositions,
		Stats:            replay.Stats,
	}

	s.logger.Debug("position simulated",
		zap.String("run_id", res.RunID),
		zap.String("pool", pool.Address),
		zap.Int("lp_position_id", spec.LPPositionID),
		zap.Int("trades", len(tape)),
		zap.Int("in_range", replay.Stats.InRangeTrades),
		zap.Int("out_of_range", replay.Stats.OutOfRangeTrades),
		zap.Int("rebalances", replay.Stats.Rebalances),
		zap.Int("trading_positions", len(replay.TradingPositions)),
		zap.Stringer("final_state", replay.FinalState),
	)
	return res, nil
}

func (s *Simulator) pricePoint(ctx context.Context, pool model.Pool, ts int64) (model.PricePoint, error) {
	tr, err := s.store.NearestTrade(ctx, pool.ID, ts, decimal.NewFromFloat(s.cfg.PricePointMinUSD))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.PricePoint{}, fmt.Errorf("no trade near %d: %w", ts, ErrInsufficientData)
		}
		return model.PricePoint{}, err
	}
	pp, ok := PricePointFromTrade(tr, pool)
	if !ok {
		return model.PricePoint{}, fmt.Errorf("trade %s has no usable price: %w", tr.TxID, ErrInsufficientData)
	}
	return pp, nil
}
