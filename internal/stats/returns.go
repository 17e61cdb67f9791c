package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Comparison relates a series of percent returns to a reference series.
type Comparison struct {
	Alpha       float64 `json:"alpha"`
	Beta        float64 `json:"beta"`
	RSquared    float64 `json:"rSquared"`
	Sharpe      float64 `json:"sharpeRatio"`
	MaxDrawdown float64 `json:"maxDrawdown"`
	TotalReturn float64 `json:"totalReturn"`
}

// Compare regresses input on reference. Both are per-position returns in
// percent, aligned by index.
func Compare(input, reference []float64) (Comparison, error) {
	if len(input) == 0 {
		return Comparison{}, errors.New("no returns to compare")
	}
	if len(input) != len(reference) {
		return Comparison{}, fmt.Errorf("input and reference lengths differ: %d != %d", len(input), len(reference))
	}

	var c Comparison
	if stat.PopVariance(reference, nil) > 0 {
		c.Alpha, c.Beta = stat.LinearRegression(reference, input, nil, false)
		if stat.PopVariance(input, nil) > 0 {
			c.RSquared = stat.RSquared(reference, input, nil, c.Alpha, c.Beta)
		}
	} else {
		c.Alpha = stat.Mean(input, nil)
	}
	c.Sharpe = Sharpe(input)
	c.MaxDrawdown, c.TotalReturn = Drawdown(input)
	return c, nil
}

// Sharpe is mean over population standard deviation, zero for a flat or
// empty series.
func Sharpe(values []float64) float64 {
	clean := finiteOnly(values)
	if len(clean) == 0 {
		return 0
	}
	mean, std := stat.PopMeanStdDev(clean, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std
}

// Mean ignores NaN and infinite values; it is zero for an empty series.
func Mean(values []float64) float64 {
	clean := finiteOnly(values)
	if len(clean) == 0 {
		return 0
	}
	return floats.Sum(clean) / float64(len(clean))
}

// StdDev is the population standard deviation of the finite values.
func StdDev(values []float64) float64 {
	clean := finiteOnly(values)
	if len(clean) == 0 {
		return 0
	}
	return stat.PopStdDev(clean, nil)
}

// Drawdown compounds percent returns in order and returns the largest
// peak-to-trough fall (a fraction) and the total return in percent.
func Drawdown(returns []float64) (maxDrawdown, totalReturn float64) {
	peak := math.Inf(-1)
	cumulative := 1.0
	for _, r := range returns {
		cumulative *= 1 + r/100
		if cumulative > peak {
			peak = cumulative
		}
		if dd := (peak - cumulative) / peak; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown, (cumulative - 1) * 100
}

// Dated is a percent return closed at a point in time.
type Dated struct {
	Close  time.Time
	Return float64
}

// MonthlyPnL sums returns by UTC close month, keyed YYYY-MM.
func MonthlyPnL(records []Dated) map[string]float64 {
	out := make(map[string]float64)
	for _, r := range records {
		if math.IsNaN(r.Return) {
			continue
		}
		out[r.Close.UTC().Format("2006-01")] += r.Return
	}
	return out
}

// SortedMonths returns the keys of a MonthlyPnL table in order.
func SortedMonths(pnl map[string]float64) []string {
	months := make([]string, 0, len(pnl))
	for m := range pnl {
		months = append(months, m)
	}
	sort.Strings(months)
	return months
}

func finiteOnly(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}
