package options

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// Kind is an option right.
type Kind string

const (
	Call Kind = "call"
	Put  Kind = "put"
)

// ParseKind accepts "call" or "put" in any case.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Call:
		return Call, nil
	case Put:
		return Put, nil
	default:
		return "", fmt.Errorf("unknown option kind %q", s)
	}
}

// Greeks are first-order sensitivities. Vega and Rho are per 1% move,
// Theta is per calendar day.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	Rho   float64 `json:"rho"`
}

// d1d2 returns the Black-Scholes d1 and d2. sigmaPct is annualized volatility
// in percent, t is in years.
func d1d2(s, k, t, r, sigmaPct float64) (float64, float64, bool) {
	sigma := sigmaPct / 100
	if !(s > 0) || !(k > 0) || !(t > 0) || !(sigma > 0) {
		return 0, 0, false
	}
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (r+sigma*sigma/2)*t) / (sigma * sqrtT)
	return d1, d1 - sigma*sqrtT, true
}

// BlackScholes prices a European option. Degenerate inputs (non-positive
// spot, strike, time or volatility) price at intrinsic value.
func BlackScholes(s, k, t, r, sigmaPct float64, kind Kind) float64 {
	d1, d2, ok := d1d2(s, k, t, r, sigmaPct)
	if !ok {
		return intrinsic(s, k, kind)
	}
	n := distuv.UnitNormal
	disc := math.Exp(-r * t)
	if kind == Call {
		return s*n.CDF(d1) - k*disc*n.CDF(d2)
	}
	return k*disc*n.CDF(-d2) - s*n.CDF(-d1)
}

func intrinsic(s, k float64, kind Kind) float64 {
	if kind == Call {
		return math.Max(s-k, 0)
	}
	return math.Max(k-s, 0)
}

// Straddle is the cost of one call plus one put at the same strike.
func Straddle(s, k, t, r, sigmaPct float64) float64 {
	return BlackScholes(s, k, t, r, sigmaPct, Call) + BlackScholes(s, k, t, r, sigmaPct, Put)
}

// ComputeGreeks returns the greeks of a European option. The second return
// is false for degenerate inputs.
func ComputeGreeks(s, k, t, r, sigmaPct float64, kind Kind) (Greeks, bool) {
	d1, d2, ok := d1d2(s, k, t, r, sigmaPct)
	if !ok {
		return Greeks{}, false
	}
	n := distuv.UnitNormal
	sigma := sigmaPct / 100
	sqrtT := math.Sqrt(t)
	pdf := n.Prob(d1)
	disc := math.Exp(-r * t)

	g := Greeks{
		Gamma: pdf / (s * sigma * sqrtT),
		Vega:  s * pdf * sqrtT / 100,
	}
	decay := -(s * sigma * pdf) / (2 * sqrtT)
	if kind == Call {
		g.Delta = n.CDF(d1)
		g.Theta = (decay - r*k*disc*n.CDF(d2)) / 365
		g.Rho = k * t * disc * n.CDF(d2) / 100
	} else {
		g.Delta = n.CDF(d1) - 1
		g.Theta = (decay + r*k*disc*n.CDF(-d2)) / 365
		g.Rho = -k * t * disc * n.CDF(-d2) / 100
	}
	return g, true
}

// AdjustStrike rounds spot*multiplier to the nearest step and returns it as
// a multiplier of spot again.
func AdjustStrike(spot, multiplier, step float64) float64 {
	if !(spot > 0) || !(step > 0) {
		return multiplier
	}
	strike := math.Round(spot*multiplier/step) * step
	return strike / spot
}
