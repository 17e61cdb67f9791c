package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lpBacktest/internal/model"
	"lpBacktest/internal/storage"
	"lpBacktest/internal/v3math"
)

// Market answers the open-condition queries of the scheduler.
type Market interface {
	LatestVolatility(ctx context.Context, kind model.VolatilityKind, symbol string, ts int64) (float64, bool, error)
	// LatestTradeAt returns storage.ErrNotFound when no trade precedes ts.
	LatestTradeAt(ctx context.Context, poolID int64, ts int64) (model.Trade, error)
}

// Window is one scheduled LP position. Times are unix milliseconds.
type Window struct {
	Open       int64   `json:"open"`
	Close      int64   `json:"close"`
	OpenPrice  float64 `json:"openPrice"`
	Volatility float64 `json:"volatility"`
}

// Schedule walks UTC days from start to end. Each day it first closes
// positions that reached PositionOpenDays at every close-check hour, then
// tries an open at every open-check hour. Positions still open at end close
// there.
func Schedule(ctx context.Context, market Market, pool model.Pool, start, end time.Time, s Strategy) ([]Window, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("end %s must be after start %s", end, start)
	}
	startMs, endMs := start.UnixMilli(), end.UnixMilli()
	maxAge := s.PositionOpen().Milliseconds()

	var (
		done []Window
		open []Window
	)
	for day := start.UTC().Truncate(24 * time.Hour); !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, hour := range s.HoursCheckClose {
			at := day.Add(time.Duration(hour) * time.Hour).UnixMilli()
			if at > endMs {
				break
			}
			kept := open[:0]
			for _, w := range open {
				if at-w.Open >= maxAge {
					w.Close = at
					done = append(done, w)
					continue
				}
				kept = append(kept, w)
			}
			open = kept
		}

		for _, hour := range s.HoursCheckOpen {
			at := day.Add(time.Duration(hour) * time.Hour).UnixMilli()
			if at > endMs {
				break
			}
			if at < startMs {
				continue
			}
			if s.OnePosPerPool && len(open) > 0 && at-open[len(open)-1].Open < maxAge {
				continue
			}

			vol, ok, err := market.LatestVolatility(ctx, s.VolatilityKind, s.VolatilitySymbol, at)
			if err != nil {
				return nil, fmt.Errorf("volatility at %d: %w", at, err)
			}
			if !ok || !(vol > s.VolatilityThreshold) {
				continue
			}

			tr, err := market.LatestTradeAt(ctx, pool.ID, at)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("trade at %d: %w", at, err)
			}
			price := v3math.DecodePrice(tr.SqrtPriceX96, pool.Token0Decimals, pool.Token1Decimals)
			if !(price > 0) {
				continue
			}
			open = append(open, Window{Open: at, OpenPrice: price, Volatility: vol})
		}
	}

	for _, w := range open {
		w.Close = endMs
		done = append(done, w)
	}

	// A position opened at end has no life left.
	out := done[:0]
	for _, w := range done {
		if w.Close > w.Open {
			out = append(out, w)
		}
	}
	return out, nil
}
