package stats

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lpBacktest/internal/model"
)

func TestRealizedVolatilityConstantPrice(t *testing.T) {
	var points []model.PricePoint
	for i := int64(0); i < 12; i++ {
		points = append(points, model.PricePoint{Timestamp: i * 300_000, Price: 2000})
	}
	vol, ok := RealizedVolatility(points, 0, 3_600_000, DefaultSampleInterval)
	require.True(t, ok)
	require.Equal(t, 0.0, vol)
}

func TestRealizedVolatilityAlternatingReturns(t *testing.T) {
	// Alternating +/-r log returns have population std r.
	r := 0.01
	var points []model.PricePoint
	price := 100.0
	for i := int64(0); i < 11; i++ {
		points = append(points, model.PricePoint{Timestamp: i * 300_000, Price: price})
		if i%2 == 0 {
			price *= math.Exp(r)
		} else {
			price *= math.Exp(-r)
		}
	}
	from, to := int64(0), int64(3_600_000)
	vol, ok := RealizedVolatility(points, from, to, DefaultSampleInterval)
	require.True(t, ok)

	years := float64(to-from) / msPerYear
	require.InDelta(t, r*math.Sqrt(1/years)*100, vol, 1e-6)
}

func TestRealizedVolatilitySamplesOncePerBoundary(t *testing.T) {
	points := []model.PricePoint{
		{Timestamp: 0, Price: 100},
		{Timestamp: 1_000, Price: 1_000_000}, // same bucket, ignored
		{Timestamp: 300_000, Price: 100},
	}
	vol, ok := RealizedVolatility(points, 0, 600_000, DefaultSampleInterval)
	require.True(t, ok)
	require.Equal(t, 0.0, vol)
}

func TestRealizedVolatilityInsufficient(t *testing.T) {
	_, ok := RealizedVolatility([]model.PricePoint{{Timestamp: 0, Price: 1}}, 0, 1000, DefaultSampleInterval)
	require.False(t, ok)
	_, ok = RealizedVolatility(nil, 10, 10, DefaultSampleInterval)
	require.False(t, ok)
}

func TestRollingVolatility(t *testing.T) {
	var points []model.PricePoint
	for i := int64(0); i <= 24; i++ {
		points = append(points, model.PricePoint{Timestamp: i * 300_000, Price: 100 + float64(i%2)})
	}
	out := RollingVolatility("ETH", points, 0, 2*3_600_000, time.Hour, 30*time.Minute)
	require.Len(t, out, 3)
	require.Equal(t, int64(3_600_000), out[0].Timestamp)
	require.Equal(t, int64(7_200_000), out[2].Timestamp)
	for _, p := range out {
		require.Equal(t, "ETH", p.Symbol)
		require.Greater(t, p.Value, 0.0)
	}
}

func TestCompareIdenticalSeries(t *testing.T) {
	in := []float64{1, -2, 3, 0.5}
	c, err := Compare(in, in)
	require.NoError(t, err)
	require.InDelta(t, 1, c.Beta, 1e-12)
	require.InDelta(t, 0, c.Alpha, 1e-12)
	require.InDelta(t, 1, c.RSquared, 1e-12)
}

func TestCompareScaledSeries(t *testing.T) {
	ref := []float64{1, 2, 3, 4}
	in := []float64{3, 5, 7, 9} // 2*ref + 1
	c, err := Compare(in, ref)
	require.NoError(t, err)
	require.InDelta(t, 2, c.Beta, 1e-12)
	require.InDelta(t, 1, c.Alpha, 1e-12)
}

func TestCompareErrors(t *testing.T) {
	_, err := Compare(nil, nil)
	require.Error(t, err)
	_, err = Compare([]float64{1}, []float64{1, 2})
	require.Error(t, err)
}

func TestDrawdown(t *testing.T) {
	dd, total := Drawdown([]float64{10, -50, 100})
	// 1.1 -> 0.55 -> 1.1
	require.InDelta(t, 0.5, dd, 1e-12)
	require.InDelta(t, 10, total, 1e-9)
}

func TestSharpe(t *testing.T) {
	require.Equal(t, 0.0, Sharpe(nil))
	require.Equal(t, 0.0, Sharpe([]float64{2, 2, 2}))
	// mean 1, population std 1
	require.InDelta(t, 1, Sharpe([]float64{0, 2, math.NaN()}), 1e-12)
	require.InDelta(t, 1, Mean([]float64{0, 2, math.Inf(1)}), 1e-12)
	require.InDelta(t, 1, StdDev([]float64{0, 2}), 1e-12)
}

func TestMonthlyPnL(t *testing.T) {
	pnl := MonthlyPnL([]Dated{
		{Close: time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC), Return: 1},
		{Close: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Return: 2},
		{Close: time.Date(2023, 12, 5, 0, 0, 0, 0, time.UTC), Return: -1},
	})
	require.Equal(t, map[string]float64{"2024-01": 3, "2023-12": -1}, pnl)
	require.Equal(t, []string{"2023-12", "2024-01"}, SortedMonths(pnl))
}
