package simulate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"lpBacktest/internal/model"
	"lpBacktest/internal/v3math"
)

func risingTape(t *testing.T) []model.TapeTrade {
	prices := []float64{2000, 2040, 2080, 2120, 2150, 2200}
	tape := make([]model.TapeTrade, 0, len(prices))
	for i, p := range prices {
		tape = append(tape, swapAt(t, int64(10+i), int64(1_000*(i+1)), p, 1_000, nil))
	}
	return tape
}

func replayOverlay(t *testing.T, tape []model.TapeTrade, strategies ...model.TradingStrategy) []model.TradingPosition {
	t.Helper()
	spec := bandSpec(50, 50)
	spec.Trading = strategies
	res, err := Replay(ReplayInput{
		Pool:  testPool(),
		Spec:  spec,
		Open:  pointOf(t, tape[0]),
		Close: pointOf(t, tape[len(tape)-1]),
		Tape:  tape,
	})
	require.NoError(t, err)
	return res.TradingPositions
}

func TestOverlayTakeProfit(t *testing.T) {
	tape := risingTape(t)
	got := replayOverlay(t, tape, model.TradingStrategy{
		PositionType:      model.DirectionLong,
		EntryPricePercent: 0,
		TakeProfitPercent: 5,
	})
	require.Len(t, got, 1)

	pos := got[0]
	entry := v3math.DecodePrice(tape[0].SqrtPriceX96, 18, 6)
	exit := v3math.DecodePrice(tape[3].SqrtPriceX96, 18, 6)
	require.Equal(t, model.ClosedByTakeProfit, pos.ClosedBy)
	require.Equal(t, int64(1_000), pos.OpenTimestamp)
	require.Equal(t, int64(4_000), pos.CloseTimestamp)
	require.Equal(t, entry, pos.OpenPrice)
	require.Equal(t, exit, pos.ClosePrice)
	require.InDelta(t, 6, pos.PnLPercent, 1e-6)
	require.Equal(t, 100.0, pos.EntryAmount)
	require.InDelta(t, 6, pos.PnLUSD, 1e-6)
	require.Equal(t, 1, pos.LPPositionID)
}

func TestOverlayStopLossShort(t *testing.T) {
	sl := 3.0
	got := replayOverlay(t, risingTape(t), model.TradingStrategy{
		PositionType:      model.DirectionShort,
		TakeProfitPercent: 5,
		StopLossPercent:   &sl,
		EntryAmount:       250,
	})
	require.Len(t, got, 1)
	require.Equal(t, model.ClosedByStopLoss, got[0].ClosedBy)
	require.Equal(t, int64(3_000), got[0].CloseTimestamp)
	require.Less(t, got[0].PnLPercent, 0.0)
	require.Equal(t, 250.0, got[0].EntryAmount)
	require.InDelta(t, 250*got[0].PnLPercent/100, got[0].PnLUSD, 1e-9)
}

func TestOverlayEndOfPeriod(t *testing.T) {
	got := replayOverlay(t, risingTape(t), model.TradingStrategy{
		PositionType:      model.DirectionLong,
		TakeProfitPercent: 50,
	})
	require.Len(t, got, 1)
	require.Equal(t, model.ClosedByEndOfPeriod, got[0].ClosedBy)
	require.Equal(t, int64(6_000), got[0].CloseTimestamp)
}

func TestOverlayTakeProfitOnFinalTrade(t *testing.T) {
	got := replayOverlay(t, risingTape(t), model.TradingStrategy{
		PositionType:      model.DirectionLong,
		EntryPricePercent: 3,
		TakeProfitPercent: 5.5,
	})
	require.Len(t, got, 1)
	// opened at 2080, the 2194.4 target is first met by the final 2200
	require.Equal(t, int64(6_000), got[0].CloseTimestamp)
	require.Equal(t, model.ClosedByTakeProfit, got[0].ClosedBy)
}

func TestOverlayEntryOffset(t *testing.T) {
	got := replayOverlay(t, risingTape(t), model.TradingStrategy{
		PositionType:      model.DirectionLong,
		EntryPricePercent: 3,
		TakeProfitPercent: 3,
	})
	require.Len(t, got, 1)
	// target 2060 is first reached at 2080, take profit at 2142.4 first met by 2150
	require.Equal(t, int64(3_000), got[0].OpenTimestamp)
	require.Equal(t, int64(5_000), got[0].CloseTimestamp)
	require.Equal(t, model.ClosedByTakeProfit, got[0].ClosedBy)
}

func TestOverlayTimestampGuard(t *testing.T) {
	got := replayOverlay(t, risingTape(t),
		model.TradingStrategy{PositionType: model.DirectionLong, TakeProfitPercent: 5},
		model.TradingStrategy{PositionType: model.DirectionShort, TakeProfitPercent: 5},
		// same key as the first one
		model.TradingStrategy{PositionType: model.DirectionLong, TakeProfitPercent: 1},
	)
	// the short could only open on the first trade, which the long took
	require.Len(t, got, 1)
	require.Equal(t, model.DirectionLong, got[0].Type)
	require.Equal(t, 5.0, got[0].Strategy.TakeProfitPercent)
}

func TestOverlayNeverOpensOnFinalTrade(t *testing.T) {
	tape := risingTape(t)
	got := replayOverlay(t, tape, model.TradingStrategy{
		PositionType:      model.DirectionLong,
		EntryPricePercent: 9,
		TakeProfitPercent: 1,
	})
	// only the final trade (2200) reaches the 2180 target
	require.Empty(t, got)
}

func TestOverlayMinTradeFilter(t *testing.T) {
	tape := risingTape(t)
	tape[3].AmountUSD = decimal.NewFromInt(1)

	spec := bandSpec(50, 50)
	spec.Trading = []model.TradingStrategy{{PositionType: model.DirectionLong, TakeProfitPercent: 5}}
	res, err := Replay(ReplayInput{
		Pool:        testPool(),
		Spec:        spec,
		Open:        pointOf(t, tape[0]),
		Close:       pointOf(t, tape[5]),
		Tape:        tape,
		MinTradeUSD: 10,
	})
	require.NoError(t, err)
	require.Len(t, res.TradingPositions, 1)
	// the $1 trade at 2120 is noise, so take profit lands on 2150
	require.Equal(t, int64(5_000), res.TradingPositions[0].CloseTimestamp)
}

func TestDirectionalPnL(t *testing.T) {
	require.InDelta(t, 10, DirectionalPnL(model.DirectionLong, 100, 110), 1e-12)
	require.InDelta(t, 10, DirectionalPnL(model.DirectionShort, 110, 100), 1e-12)
	require.Zero(t, DirectionalPnL(model.DirectionLong, 0, 110))
}
