package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lpBacktest/internal/options"
	"lpBacktest/internal/strategy"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestStrategyForFilePrefersLongestName(t *testing.T) {
	strategies := []strategy.Strategy{{StrategyName: "wide"}, {StrategyName: "wide_hedged"}}

	s, ok := strategyForFile(strategies, "wide_hedged_WETHUSDC_1_uniswapv3_1.csv")
	require.True(t, ok)
	require.Equal(t, "wide_hedged", s.StrategyName)

	s, ok = strategyForFile(strategies, "wide_WETHUSDC_1_uniswapv3_1.csv")
	require.True(t, ok)
	require.Equal(t, "wide", s.StrategyName)

	_, ok = strategyForFile(strategies, "narrow_WETHUSDC_1_uniswapv3_1.csv")
	require.False(t, ok)
}

func TestAlignReturnsByOpenTime(t *testing.T) {
	input := []options.LPRecord{
		{OpenTimestamp: day(3), CloseTimestamp: day(4), PnLPercent: 3},
		{OpenTimestamp: day(1), CloseTimestamp: day(2), PnLPercent: 1},
		{OpenTimestamp: day(5), CloseTimestamp: day(6), PnLPercent: 5},
	}
	reference := []options.LPRecord{
		{OpenTimestamp: day(1), PnLPercent: 10},
		{OpenTimestamp: day(3), PnLPercent: 30},
	}

	in, ref, dated := alignReturns(input, reference)
	require.Equal(t, []float64{1, 3}, in)
	require.Equal(t, []float64{10, 30}, ref)
	require.Len(t, dated, 2)
	require.Equal(t, day(2), dated[0].Close)
}

func TestFilterRecords(t *testing.T) {
	recs := []options.LPRecord{
		{OpenTimestamp: day(1), CloseTimestamp: day(2)},
		{OpenTimestamp: day(3), CloseTimestamp: day(4)},
		{OpenTimestamp: day(5), CloseTimestamp: day(9)},
	}
	require.Len(t, filterRecords(recs, time.Time{}, time.Time{}), 3)
	require.Len(t, filterRecords(recs, day(3), day(8)), 1)
	require.Len(t, filterRecords(recs, day(2), time.Time{}), 2)
}
