package simulate

import (
	"errors"
	"fmt"

	"lpBacktest/internal/model"
	"lpBacktest/internal/v3math"
)

// ErrInsufficientData marks a position that cannot be simulated because the
// store has no trades or no boundary price for it. Callers fetch and retry.
var ErrInsufficientData = errors.New("insufficient data")

// State is the lifecycle state of a simulated LP position.
type State int

const (
	StateInRange State = iota
	StateOutOfRange
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInRange:
		return "in_range"
	case StateOutOfRange:
		return "out_of_range"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ReplayInput is everything a replay needs. Tape must be ordered by
// timestamp ascending.
type ReplayInput struct {
	Pool  model.Pool
	Spec  model.PositionSpec
	Open  model.PricePoint
	Close model.PricePoint
	Tape  []model.TapeTrade
	// MinTradeUSD filters noise trades out of the trading overlay.
	MinTradeUSD float64
}

// ReplayStats counts how the tape was consumed.
type ReplayStats struct {
	InRangeTrades    int `json:"in_range_trades"`
	OutOfRangeTrades int `json:"out_of_range_trades"`
	SkippedTrades    int `json:"skipped_trades"`
	Rebalances       int `json:"rebalances"`
}

// ReplayResult holds the positions produced by one replay.
type ReplayResult struct {
	LPPositions      []model.LPPosition
	TradingPositions []model.TradingPosition
	Stats            ReplayStats
	// FinalState is the state of the last position just before it closed.
	FinalState State
}

type lpState struct {
	openTs    int64
	openPrice float64
	rng       PriceRange
	band      PriceRange
	hasBand   bool
	split     v3math.DepositSplit
	splitOK   bool
	amountUSD float64
	fees      float64
	state     State
}

// Replay runs the position state machine over the trade tape. It performs
// no I/O and never fails on a single bad trade.
func Replay(in ReplayInput) (ReplayResult, error) {
	if !(in.Open.Price > 0) || !(in.Close.Price > 0) {
		return ReplayResult{}, fmt.Errorf("boundary prices: %w", ErrInsufficientData)
	}
	if in.Spec.CloseTime <= in.Spec.OpenTime {
		return ReplayResult{}, fmt.Errorf("close time %d must be after open time %d", in.Spec.CloseTime, in.Spec.OpenTime)
	}

	d0, d1 := in.Pool.Token0Decimals, in.Pool.Token1Decimals
	rule, err := newRangeRule(in.Spec.Range, in.Open.Price, d0, d1)
	if err != nil {
		return ReplayResult{}, err
	}
	rng, err := DeriveRange(in.Spec.Range, in.Open.Price, d0, d1)
	if err != nil {
		return ReplayResult{}, err
	}

	var res ReplayResult
	pos := openLP(in.Spec, in.Spec.OpenTime, in.Open.Price, in.Open.USD0, in.Open.USD1, rng)

	var lastTs int64
	seen := false
	for _, tr := range in.Tape {
		if tr.Timestamp >= in.Spec.CloseTime {
			break
		}
		if tr.Amount0.IsZero() || tr.Amount1.IsZero() {
			res.Stats.SkippedTrades++
			continue
		}
		price := v3math.DecodePrice(tr.SqrtPriceX96, d0, d1)
		if !(price > 0) {
			res.Stats.SkippedTrades++
			continue
		}
		if seen && tr.Timestamp <= lastTs {
			res.Stats.SkippedTrades++
			continue
		}
		lastTs, seen = tr.Timestamp, true

		if pos.hasBand && !pos.band.Contains(price) {
			if usd0, usd1, ok := tradeUSDPrices(tr); ok {
				next, err := rule.around(price)
				if err == nil {
					res.LPPositions = append(res.LPPositions, pos.close(tr.Timestamp, price, usd0, usd1))
					pos = openLP(in.Spec, tr.Timestamp, price, usd0, usd1, next)
					res.Stats.Rebalances++
				}
			}
		}

		if !pos.rng.Contains(price) {
			pos.state = StateOutOfRange
			res.Stats.OutOfRangeTrades++
			continue
		}
		pos.state = StateInRange
		res.Stats.InRangeTrades++

		if fee, ok := tradeFee(in.Pool, pos, tr, price); ok {
			pos.fees += fee
		}
	}

	res.FinalState = pos.state
	res.LPPositions = append(res.LPPositions, pos.close(in.Spec.CloseTime, in.Close.Price, in.Close.USD0, in.Close.USD1))

	if len(in.Spec.Trading) > 0 {
		res.TradingPositions = runOverlay(overlayInput{
			Spec:        in.Spec,
			Reference:   in.Open.Price,
			Tape:        in.Tape,
			Decimals0:   d0,
			Decimals1:   d1,
			MinTradeUSD: in.MinTradeUSD,
		})
	}

	return res, nil
}

func openLP(spec model.PositionSpec, ts int64, price, usd0, usd1 float64, rng PriceRange) *lpState {
	pos := &lpState{
		openTs:    ts,
		openPrice: price,
		rng:       rng,
		amountUSD: spec.AmountUSD,
		state:     StateOutOfRange,
	}
	if rng.Contains(price) {
		pos.state = StateInRange
	}
	pos.band, pos.hasBand = rebalanceBand(spec.Rebalance, price)
	pos.split, pos.splitOK = v3math.TokensFromDepositUSD(price, rng.Low, rng.High, usd0, usd1, spec.AmountUSD)
	return pos
}

// close values the position at price and returns its record. IL and PnL
// stay zero when the position cannot be valued.
func (p *lpState) close(ts int64, price, usd0, usd1 float64) model.LPPosition {
	p.state = StateClosed
	out := model.LPPosition{
		OpenTimestamp:  p.openTs,
		CloseTimestamp: ts,
		OpenPrice:      p.openPrice,
		ClosePrice:     price,
		PriceLow:       p.rng.Low,
		PriceHigh:      p.rng.High,
		AmountUSD:      p.amountUSD,
		FeesCollected:  p.fees,
	}
	if !p.splitOK || !(p.amountUSD > 0) {
		return out
	}

	il, ok := v3math.ImpermanentLoss(v3math.ILInput{
		Amount0:        p.split.Amount0,
		Amount1:        p.split.Amount1,
		LiquidityDelta: p.split.LiquidityDelta,
		Low:            p.rng.Low,
		High:           p.rng.High,
		ClosePrice:     price,
		USD0:           usd0,
		USD1:           usd1,
	})
	if !ok {
		return out
	}
	out.ILPercentage = il.ILPercent
	out.PnLPercent = (il.ValueAtClose/p.amountUSD - 1) * 100
	return out
}

func tradeFee(pool model.Pool, pos *lpState, tr model.TapeTrade, price float64) (float64, bool) {
	if !pos.splitOK {
		return 0, false
	}
	tier, ok := feeTierAt(pool, tr)
	if !ok {
		return 0, false
	}
	liquidity := v3math.LiquidityDelta(price, pos.rng.Low, pos.rng.High,
		pos.split.Amount0, pos.split.Amount1, pool.Token0Decimals, pool.Token1Decimals)
	return v3math.EstimateFee(liquidity, tr.Liquidity, tr.AmountUSD.Abs().InexactFloat64(), v3math.FeeTierPercentage(tier))
}

// feeTierAt is the trade's snapshot tier for dynamic pools, otherwise the
// pool's fixed tier.
func feeTierAt(pool model.Pool, tr model.TapeTrade) (float64, bool) {
	if tr.FeeTier != nil {
		return *tr.FeeTier, true
	}
	if pool.FeeTier != nil {
		return float64(*pool.FeeTier), true
	}
	return 0, false
}

// tradeUSDPrices derives both token USD prices from a trade's notional.
func tradeUSDPrices(tr model.TapeTrade) (float64, float64, bool) {
	return usdPrices(tr.Trade)
}

func usdPrices(tr model.Trade) (float64, float64, bool) {
	if tr.Amount0.IsZero() || tr.Amount1.IsZero() || !tr.AmountUSD.IsPositive() {
		return 0, 0, false
	}
	usd0 := tr.AmountUSD.Div(tr.Amount0).Abs().InexactFloat64()
	usd1 := tr.AmountUSD.Div(tr.Amount1).Abs().InexactFloat64()
	if !(usd0 > 0) || !(usd1 > 0) {
		return 0, 0, false
	}
	return usd0, usd1, true
}

// PricePointFromTrade builds a boundary price from one trade.
func PricePointFromTrade(tr model.Trade, pool model.Pool) (model.PricePoint, bool) {
	price := v3math.DecodePrice(tr.SqrtPriceX96, pool.Token0Decimals, pool.Token1Decimals)
	if !(price > 0) {
		return model.PricePoint{}, false
	}
	usd0, usd1, ok := usdPrices(tr)
	if !ok {
		return model.PricePoint{}, false
	}
	return model.PricePoint{Timestamp: tr.Timestamp, Price: price, USD0: usd0, USD1: usd1}, true
}
