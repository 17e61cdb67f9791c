package stats

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"lpBacktest/internal/model"
)

const msPerYear = 365 * 24 * 60 * 60 * 1000

// Default sampling for realized volatility.
const (
	DefaultSampleInterval = 5 * time.Minute
	DefaultWindow         = time.Hour
	DefaultStep           = 10 * time.Minute
)

// RealizedVolatility annualizes the population standard deviation of log
// returns between sampled prices in [from, to]. A sample is the first price
// at or after each boundary; boundaries start at from and advance one
// interval per sample. points must be sorted by timestamp. The result is in
// percent; ok is false with fewer than two usable samples.
func RealizedVolatility(points []model.PricePoint, from, to int64, interval time.Duration) (float64, bool) {
	if to <= from || interval <= 0 {
		return 0, false
	}
	step := interval.Milliseconds()

	sampled := make([]float64, 0, len(points))
	boundary := from
	for _, p := range points {
		if p.Timestamp < from || p.Timestamp > to {
			continue
		}
		if !(p.Price > 0) || math.IsInf(p.Price, 0) {
			continue
		}
		if p.Timestamp >= boundary {
			sampled = append(sampled, p.Price)
			boundary += step
		}
	}
	if len(sampled) < 2 {
		return 0, false
	}

	returns := make([]float64, 0, len(sampled)-1)
	for i := 1; i < len(sampled); i++ {
		returns = append(returns, math.Log(sampled[i]/sampled[i-1]))
	}

	years := float64(to-from) / msPerYear
	vol := stat.PopStdDev(returns, nil) * math.Sqrt(1/years) * 100
	if math.IsNaN(vol) || math.IsInf(vol, 0) {
		return 0, false
	}
	return vol, true
}

// RollingVolatility evaluates RealizedVolatility over trailing windows ending
// every step from to back to from+window. Windows without enough samples
// report zero. The result is ordered by timestamp.
func RollingVolatility(symbol string, points []model.PricePoint, from, to int64, window, step time.Duration) []model.VolatilityPoint {
	if window <= 0 {
		window = DefaultWindow
	}
	if step <= 0 {
		step = DefaultStep
	}
	windowMs, stepMs := window.Milliseconds(), step.Milliseconds()

	var out []model.VolatilityPoint
	for end := to; end >= from+windowMs; end -= stepMs {
		start := end - windowMs
		lo := sort.Search(len(points), func(i int) bool { return points[i].Timestamp >= start })
		hi := sort.Search(len(points), func(i int) bool { return points[i].Timestamp > end })

		vol, ok := RealizedVolatility(points[lo:hi], start, end, DefaultSampleInterval)
		if !ok {
			vol = 0
		}
		out = append(out, model.VolatilityPoint{Symbol: symbol, Timestamp: end, Value: vol})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}
