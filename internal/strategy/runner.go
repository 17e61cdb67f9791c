package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lpBacktest/internal/model"
	"lpBacktest/internal/simulate"
)

// Simulator runs one position. *simulate.Simulator satisfies it.
type Simulator interface {
	Simulate(ctx context.Context, spec model.PositionSpec) (simulate.Result, error)
}

// Result is a strategy executed on one pool.
type Result struct {
	RunID            string                  `json:"runId"`
	Strategy         string                  `json:"strategy"`
	Pool             model.Pool              `json:"pool"`
	Windows          []Window                `json:"windows"`
	Skipped          int                     `json:"skipped"`
	LPPositions      []model.LPPosition      `json:"lpPositions"`
	TradingPositions []model.TradingPosition `json:"tradingPositions"`
	Summary          Summary                 `json:"summary"`
}

// Runner schedules and simulates strategies.
type Runner struct {
	sim        Simulator
	market     Market
	defaultUSD float64
	logger     *zap.Logger
}

// NewRunner builds a Runner. defaultUSD sizes strategies without amountUSD
// in the trading summary.
func NewRunner(sim Simulator, market Market, defaultUSD float64, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{sim: sim, market: market, defaultUSD: defaultUSD, logger: logger}
}

// Execute schedules s on pool over [start, end] and simulates each window.
// Windows without enough data are skipped and counted.
func (r *Runner) Execute(ctx context.Context, pool model.Pool, start, end time.Time, s Strategy) (Result, error) {
	res := Result{RunID: uuid.NewString(), Strategy: s.StrategyName, Pool: pool}

	windows, err := Schedule(ctx, r.market, pool, start, end, s)
	if err != nil {
		return res, fmt.Errorf("schedule %s: %w", s.StrategyName, err)
	}
	res.Windows = windows
	r.logger.Info("strategy scheduled",
		zap.String("run_id", res.RunID),
		zap.String("strategy", s.StrategyName),
		zap.String("pool", pool.Address),
		zap.Int("windows", len(windows)),
	)

	for i, w := range windows {
		spec := s.PositionSpec(pool, i+1, w)
		sim, err := r.sim.Simulate(ctx, spec)
		if err != nil {
			if errors.Is(err, simulate.ErrInsufficientData) {
				res.Skipped++
				r.logger.Warn("window skipped",
					zap.Int("lp_position_id", spec.LPPositionID),
					zap.Int64("open", w.Open),
					zap.Int64("close", w.Close),
					zap.Error(err),
				)
				continue
			}
			return res, fmt.Errorf("simulate window %d: %w", spec.LPPositionID, err)
		}
		res.LPPositions = append(res.LPPositions, sim.LPPositions...)
		res.TradingPositions = append(res.TradingPositions, sim.TradingPositions...)
	}

	amount := s.AmountUSD
	if !(amount > 0) {
		amount = r.defaultUSD
	}
	res.Summary = Summarize(res.LPPositions, res.TradingPositions, amount)
	return res, nil
}
