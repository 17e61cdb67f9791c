package simulate

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"lpBacktest/internal/model"
	"lpBacktest/internal/v3math"
)

func TestReplayEmptyTape(t *testing.T) {
	open := pointOf(t, swapAt(t, 1, 0, 2000, 1000, nil))
	closePoint := pointOf(t, swapAt(t, 2, 10_000, 2010, 1000, nil))

	res, err := Replay(ReplayInput{Pool: testPool(), Spec: bandSpec(1, 1), Open: open, Close: closePoint})
	require.NoError(t, err)
	require.Len(t, res.LPPositions, 1)

	lp := res.LPPositions[0]
	require.Zero(t, lp.FeesCollected)
	require.Equal(t, int64(0), lp.OpenTimestamp)
	require.Equal(t, int64(10_000), lp.CloseTimestamp)
	require.Equal(t, open.Price, lp.OpenPrice)
	require.Equal(t, closePoint.Price, lp.ClosePrice)
	require.Greater(t, lp.ILPercentage, 0.0)
	require.Less(t, lp.PnLPercent, 0.5)
	require.Zero(t, res.Stats.Rebalances)
	require.Empty(t, res.TradingPositions)
}

func TestReplayFlatPriceHasNoLoss(t *testing.T) {
	open := pointOf(t, swapAt(t, 1, 0, 2000, 1000, nil))

	res, err := Replay(ReplayInput{Pool: testPool(), Spec: bandSpec(1, 1), Open: open, Close: open})
	require.NoError(t, err)
	require.Len(t, res.LPPositions, 1)
	require.InDelta(t, 0, res.LPPositions[0].ILPercentage, 1e-6)
	require.InDelta(t, 0, res.LPPositions[0].PnLPercent, 1e-6)
}

// feeFixture returns the open point and the pool liquidity at which the
// position's share of an at-open-price trade is exactly 1%.
func feeFixture(t *testing.T, spec model.PositionSpec) (model.PricePoint, *big.Int) {
	t.Helper()
	open := pointOf(t, swapAt(t, 1, 0, 2000, 1000, nil))
	rng, err := DeriveRange(spec.Range, open.Price, 18, 6)
	require.NoError(t, err)
	split, ok := v3math.TokensFromDepositUSD(open.Price, rng.Low, rng.High, open.USD0, open.USD1, spec.AmountUSD)
	require.True(t, ok)
	l := v3math.LiquidityDelta(open.Price, rng.Low, rng.High, split.Amount0, split.Amount1, 18, 6)
	require.Equal(t, 1, l.Sign())
	return open, new(big.Int).Mul(l, big.NewInt(99))
}

func TestReplayFeeShare(t *testing.T) {
	spec := bandSpec(1, 1)
	open, poolL := feeFixture(t, spec)

	tape := []model.TapeTrade{swapAt(t, 10, 5_000, 2000, 10_000, poolL)}
	res, err := Replay(ReplayInput{Pool: testPool(), Spec: spec, Open: open, Close: open, Tape: tape})
	require.NoError(t, err)
	require.Len(t, res.LPPositions, 1)
	require.InDelta(t, 0.30, res.LPPositions[0].FeesCollected, 1e-9)
	require.Equal(t, 1, res.Stats.InRangeTrades)
	require.Equal(t, StateInRange, res.FinalState)

	// pnl is the position value only, fees are reported apart
	require.InDelta(t, 0, res.LPPositions[0].PnLPercent, 1e-6)
}

func TestReplayDuplicateTimestamp(t *testing.T) {
	spec := bandSpec(1, 1)
	open, poolL := feeFixture(t, spec)

	tape := []model.TapeTrade{
		swapAt(t, 10, 5_000, 2000, 10_000, poolL),
		swapAt(t, 11, 5_000, 2000, 10_000, poolL),
	}
	res, err := Replay(ReplayInput{Pool: testPool(), Spec: spec, Open: open, Close: open, Tape: tape})
	require.NoError(t, err)
	require.InDelta(t, 0.30, res.LPPositions[0].FeesCollected, 1e-9)
	require.Equal(t, 1, res.Stats.SkippedTrades)
}

func TestReplaySkipsDegenerateTrades(t *testing.T) {
	spec := bandSpec(1, 1)
	open, poolL := feeFixture(t, spec)

	zero := swapAt(t, 10, 4_000, 2000, 10_000, poolL)
	zero.Amount1 = decimal.Zero
	emptyPool := swapAt(t, 11, 4_500, 2000, 10_000, nil)
	emptyPool.Liquidity = big.NewInt(0)
	late := swapAt(t, 12, 10_000, 2000, 10_000, poolL)

	tape := []model.TapeTrade{zero, emptyPool, late}
	res, err := Replay(ReplayInput{Pool: testPool(), Spec: spec, Open: open, Close: open, Tape: tape})
	require.NoError(t, err)

	// the empty pool trade is in range but earns nothing
	require.Zero(t, res.LPPositions[0].FeesCollected)
	require.Equal(t, 1, res.Stats.SkippedTrades)
	require.Equal(t, 1, res.Stats.InRangeTrades)
}

func TestReplayTradeWithoutLiquiditySnapshotEarnsNothing(t *testing.T) {
	spec := bandSpec(1, 1)
	open, poolL := feeFixture(t, spec)

	tape := []model.TapeTrade{
		swapAt(t, 10, 4_000, 2000, 10_000, nil),
		swapAt(t, 11, 5_000, 2000, 10_000, poolL),
	}
	res, err := Replay(ReplayInput{Pool: testPool(), Spec: spec, Open: open, Close: open, Tape: tape})
	require.NoError(t, err)
	require.InDelta(t, 0.30, res.LPPositions[0].FeesCollected, 1e-9)
	require.Equal(t, 2, res.Stats.InRangeTrades)
}

func TestReplayOutOfRange(t *testing.T) {
	spec := bandSpec(1, 1)
	open, poolL := feeFixture(t, spec)

	tape := []model.TapeTrade{swapAt(t, 10, 5_000, 2100, 10_000, poolL)}
	res, err := Replay(ReplayInput{Pool: testPool(), Spec: spec, Open: open, Close: open, Tape: tape})
	require.NoError(t, err)
	require.Zero(t, res.LPPositions[0].FeesCollected)
	require.Equal(t, 1, res.Stats.OutOfRangeTrades)
	require.Equal(t, StateOutOfRange, res.FinalState)
}

func TestReplayDynamicFeeTier(t *testing.T) {
	spec := bandSpec(1, 1)
	open, poolL := feeFixture(t, spec)
	pool := testPool()
	pool.Protocol = model.ProtocolThena
	pool.FeeTier = nil

	tier := 500.0
	withTier := swapAt(t, 10, 5_000, 2000, 10_000, poolL)
	withTier.FeeTier = &tier
	withoutTier := swapAt(t, 11, 6_000, 2000, 10_000, poolL)

	tape := []model.TapeTrade{withTier, withoutTier}
	res, err := Replay(ReplayInput{Pool: pool, Spec: spec, Open: open, Close: open, Tape: tape})
	require.NoError(t, err)
	require.InDelta(t, 0.05, res.LPPositions[0].FeesCollected, 1e-9)
}

func TestReplayRebalance(t *testing.T) {
	spec := bandSpec(1, 1)
	spec.Rebalance = &model.RebalanceSpec{UptickPercent: 5, DowntickPercent: 5}

	tape := []model.TapeTrade{
		swapAt(t, 10, 1_000, 2000, 1_000, nil),
		swapAt(t, 11, 2_000, 2010, 1_000, nil),
		swapAt(t, 12, 3_000, 2150, 1_000, nil),
		swapAt(t, 13, 4_000, 2160, 1_000, nil),
	}
	open := pointOf(t, tape[0])
	closePoint := pointOf(t, tape[3])

	res, err := Replay(ReplayInput{Pool: testPool(), Spec: spec, Open: open, Close: closePoint, Tape: tape})
	require.NoError(t, err)
	require.Len(t, res.LPPositions, 2)
	require.Equal(t, 1, res.Stats.Rebalances)

	first, second := res.LPPositions[0], res.LPPositions[1]
	crossing := v3math.DecodePrice(tape[2].SqrtPriceX96, 18, 6)
	require.Equal(t, int64(3_000), first.CloseTimestamp)
	require.Equal(t, crossing, first.ClosePrice)
	require.Equal(t, int64(3_000), second.OpenTimestamp)
	require.Equal(t, crossing, second.OpenPrice)
	require.InDelta(t, crossing*0.99, second.PriceLow, 1e-9)
	require.InDelta(t, crossing*1.01, second.PriceHigh, 1e-9)
	require.Equal(t, int64(10_000), second.CloseTimestamp)
}

func TestReplayRebalanceFixedRangeKeepsShape(t *testing.T) {
	spec := bandSpec(0, 0)
	spec.Range = model.RangeSpec{Low: 1900, High: 2200}
	spec.Rebalance = &model.RebalanceSpec{UptickPercent: 10, DowntickPercent: 10}

	tape := []model.TapeTrade{
		swapAt(t, 10, 1_000, 2000, 1_000, nil),
		swapAt(t, 11, 2_000, 2500, 1_000, nil),
	}
	open := pointOf(t, tape[0])

	res, err := Replay(ReplayInput{Pool: testPool(), Spec: spec, Open: open, Close: pointOf(t, tape[1]), Tape: tape})
	require.NoError(t, err)
	require.Len(t, res.LPPositions, 2)
	require.Equal(t, 1900.0, res.LPPositions[0].PriceLow)
	require.Equal(t, 2200.0, res.LPPositions[0].PriceHigh)

	pivot := res.LPPositions[1].OpenPrice
	require.InDelta(t, pivot*1900/open.Price, res.LPPositions[1].PriceLow, 1e-6)
	require.InDelta(t, pivot*2200/open.Price, res.LPPositions[1].PriceHigh, 1e-6)
}

func TestReplayRejectsBadInput(t *testing.T) {
	open := pointOf(t, swapAt(t, 1, 0, 2000, 1000, nil))

	_, err := Replay(ReplayInput{Pool: testPool(), Spec: bandSpec(1, 1), Open: open})
	require.ErrorIs(t, err, ErrInsufficientData)

	spec := bandSpec(1, 1)
	spec.CloseTime = spec.OpenTime
	_, err = Replay(ReplayInput{Pool: testPool(), Spec: spec, Open: open, Close: open})
	require.Error(t, err)

	_, err = Replay(ReplayInput{Pool: testPool(), Spec: bandSpec(0, 0), Open: open, Close: open})
	require.Error(t, err)
}

func TestDeriveRange(t *testing.T) {
	full, err := DeriveRange(model.RangeSpec{FullRange: true}, 2000, 18, 6)
	require.NoError(t, err)
	require.Equal(t, v3math.PriceMin(18, 6).InexactFloat64(), full.Low)
	require.Equal(t, v3math.PriceMax(18, 6).InexactFloat64(), full.High)
	require.True(t, full.Contains(2000))

	band, err := DeriveRange(model.RangeSpec{UptickPercent: 10, DowntickPercent: 5}, 2000, 18, 6)
	require.NoError(t, err)
	require.InDelta(t, 1900, band.Low, 1e-9)
	require.InDelta(t, 2200, band.High, 1e-9)

	fixed, err := DeriveRange(model.RangeSpec{Low: 1500, High: 2500}, 2000, 18, 6)
	require.NoError(t, err)
	require.Equal(t, PriceRange{Low: 1500, High: 2500}, fixed)

	_, err = DeriveRange(model.RangeSpec{Low: 2500, High: 1500}, 2000, 18, 6)
	require.Error(t, err)
	_, err = DeriveRange(model.RangeSpec{DowntickPercent: 100}, 2000, 18, 6)
	require.Error(t, err)
}
