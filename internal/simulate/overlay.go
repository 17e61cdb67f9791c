package simulate

import (
	"lpBacktest/internal/model"
	"lpBacktest/internal/v3math"
)

type overlayInput struct {
	Spec        model.PositionSpec
	Reference   float64
	Tape        []model.TapeTrade
	Decimals0   int32
	Decimals1   int32
	MinTradeUSD float64
}

type tick struct {
	ts    int64
	price float64
}

type strategyKey struct {
	direction model.Direction
	entry     float64
}

type overlayStrategy struct {
	cfg    model.TradingStrategy
	target float64
	// upward is true when the entry triggers at price >= target.
	upward bool
	amount float64

	open       bool
	done       bool
	entryTs    int64
	entryPrice float64
}

// runOverlay simulates each trading strategy once over the tape. Opens and
// closes never share a timestamp, and no strategy opens on the final trade.
// Strategies still open at the final trade close there.
func runOverlay(in overlayInput) []model.TradingPosition {
	ticks := overlayTicks(in)
	if len(ticks) == 0 {
		return nil
	}

	strategies := buildStrategies(in.Spec, in.Reference)
	used := make(map[int64]struct{})
	last := len(ticks) - 1

	var out []model.TradingPosition
	for i, tk := range ticks {
		_, taken := used[tk.ts]
		for _, s := range strategies {
			if s.done {
				continue
			}

			if !s.open {
				if i == last || taken || !s.crossed(tk.price) {
					continue
				}
				s.open = true
				s.entryTs, s.entryPrice = tk.ts, tk.price
				used[tk.ts] = struct{}{}
				taken = true
				continue
			}

			var reason model.CloseReason
			switch {
			case i == last:
				// the final trade closes everything, by its own exit when it hits one
				if reason = s.exitReason(tk.price); reason == "" {
					reason = model.ClosedByEndOfPeriod
				}
			case taken:
				continue
			default:
				reason = s.exitReason(tk.price)
				if reason == "" {
					continue
				}
				used[tk.ts] = struct{}{}
				taken = true
			}
			out = append(out, s.close(in.Spec.LPPositionID, tk, reason))
		}
	}
	return out
}

func overlayTicks(in overlayInput) []tick {
	ticks := make([]tick, 0, len(in.Tape))
	for _, tr := range in.Tape {
		if tr.Timestamp >= in.Spec.CloseTime {
			break
		}
		if tr.Amount0.IsZero() || tr.Amount1.IsZero() {
			continue
		}
		if tr.AmountUSD.Abs().InexactFloat64() < in.MinTradeUSD {
			continue
		}
		price := v3math.DecodePrice(tr.SqrtPriceX96, in.Decimals0, in.Decimals1)
		if !(price > 0) {
			continue
		}
		ticks = append(ticks, tick{ts: tr.Timestamp, price: price})
	}
	return ticks
}

func buildStrategies(spec model.PositionSpec, reference float64) []*overlayStrategy {
	seen := make(map[strategyKey]struct{}, len(spec.Trading))
	out := make([]*overlayStrategy, 0, len(spec.Trading))
	for _, cfg := range spec.Trading {
		key := strategyKey{direction: cfg.PositionType, entry: cfg.EntryPricePercent}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		target := reference * (1 + cfg.EntryPricePercent/100)
		upward := reference < target
		if reference == target {
			upward = cfg.PositionType == model.DirectionLong
		}

		amount := cfg.EntryAmount
		if !(amount > 0) {
			amount = spec.AmountUSD
		}
		out = append(out, &overlayStrategy{cfg: cfg, target: target, upward: upward, amount: amount})
	}
	return out
}

func (s *overlayStrategy) crossed(price float64) bool {
	if s.upward {
		return price >= s.target
	}
	return price <= s.target
}

func (s *overlayStrategy) exitReason(price float64) model.CloseReason {
	tp := s.cfg.TakeProfitPercent / 100
	if s.cfg.PositionType == model.DirectionLong {
		if price >= s.entryPrice*(1+tp) {
			return model.ClosedByTakeProfit
		}
		if s.cfg.StopLossPercent != nil && price <= s.entryPrice*(1-*s.cfg.StopLossPercent/100) {
			return model.ClosedByStopLoss
		}
		return ""
	}

	if price <= s.entryPrice*(1-tp) {
		return model.ClosedByTakeProfit
	}
	if s.cfg.StopLossPercent != nil && price >= s.entryPrice*(1+*s.cfg.StopLossPercent/100) {
		return model.ClosedByStopLoss
	}
	return ""
}

func (s *overlayStrategy) close(lpPositionID int, tk tick, reason model.CloseReason) model.TradingPosition {
	s.open, s.done = false, true
	pnl := DirectionalPnL(s.cfg.PositionType, s.entryPrice, tk.price)
	return model.TradingPosition{
		LPPositionID:   lpPositionID,
		Type:           s.cfg.PositionType,
		OpenTimestamp:  s.entryTs,
		CloseTimestamp: tk.ts,
		OpenPrice:      s.entryPrice,
		ClosePrice:     tk.price,
		EntryAmount:    s.amount,
		PnLPercent:     pnl,
		PnLUSD:         s.amount * pnl / 100,
		ClosedBy:       reason,
		Strategy:       s.cfg,
	}
}

// DirectionalPnL returns the percent return of a position from entry to
// close for the given direction.
func DirectionalPnL(direction model.Direction, entry, close float64) float64 {
	if !(entry > 0) || !(close > 0) {
		return 0
	}
	if direction == model.DirectionShort {
		return (entry/close - 1) * 100
	}
	return (close/entry - 1) * 100
}
