package options

import (
	"math"
	"time"
)

const daysPerYear = 365

// Params are the hedge knobs of a strategy descriptor.
type Params struct {
	NVega        float64 `json:"nVega" yaml:"nVega"`
	NDelta       float64 `json:"nDelta" yaml:"nDelta"`
	RiskFreeRate float64 `json:"riskFreeRate" yaml:"riskFreeRate" validate:"gte=0"`
	// StrikeStep rounds the straddle strike. Zero keeps the exact open price.
	StrikeStep float64 `json:"strikeStep" yaml:"strikeStep" validate:"gte=0"`
}

// LPRecord is the subset of an LP report row hedging needs.
type LPRecord struct {
	LPPositionID   int       `json:"lpPositionId"`
	PoolAddress    string    `json:"poolAddress"`
	OpenTimestamp  time.Time `json:"openTimestamp"`
	CloseTimestamp time.Time `json:"closeTimestamp"`
	OpenPrice      float64   `json:"openPrice"`
	ClosePrice     float64   `json:"closePrice"`
	AmountUSD      float64   `json:"amountUSD"`
	FeesCollected  float64   `json:"feesCollected"`
	PnLPercent     float64   `json:"pnlPercent"`
}

// HedgeRow is one LP record evaluated against a straddle hedge.
type HedgeRow struct {
	LPRecord
	DTE            float64 `json:"dte"`
	MaxTheta       float64 `json:"maxTheta"`
	Volatility     float64 `json:"volatility,omitempty"`
	Strike         float64 `json:"strike,omitempty"`
	StraddleCost   float64 `json:"straddleCost,omitempty"`
	StraddlePayoff float64 `json:"straddlePayoff,omitempty"`
	LPPnLUSD       float64 `json:"lpPnlUSD"`
	NetPnLUSD      float64 `json:"netPnlUSD"`
}

// DTE is the position life in days rounded up to one decimal.
func DTE(open, close time.Time) float64 {
	days := close.Sub(open).Hours() / 24
	return math.Ceil(days*10) / 10
}

// MaxTheta is the largest per-day decay of a two-leg straddle that the LP
// move still pays for.
func MaxTheta(pnlPercent, dte float64) float64 {
	if dte == 0 {
		return 0
	}
	return math.Abs(pnlPercent) / (dte * 2)
}

// Evaluate prices an at-the-money straddle sized to the LP deposit for the
// life of the position. vol is annualized volatility in percent; when it is
// not positive only DTE and MaxTheta are filled.
func Evaluate(rec LPRecord, vol float64, p Params) HedgeRow {
	row := HedgeRow{
		LPRecord: rec,
		DTE:      DTE(rec.OpenTimestamp, rec.CloseTimestamp),
		LPPnLUSD: rec.AmountUSD * rec.PnLPercent / 100,
	}
	row.MaxTheta = MaxTheta(rec.PnLPercent, row.DTE)
	row.NetPnLUSD = row.LPPnLUSD

	if !(vol > 0) || !(rec.OpenPrice > 0) || row.DTE <= 0 {
		return row
	}

	strike := rec.OpenPrice
	if p.StrikeStep > 0 {
		strike = rec.OpenPrice * AdjustStrike(rec.OpenPrice, 1, p.StrikeStep)
	}
	units := rec.AmountUSD / rec.OpenPrice
	t := row.DTE / daysPerYear

	row.Volatility = vol
	row.Strike = strike
	row.StraddleCost = Straddle(rec.OpenPrice, strike, t, p.RiskFreeRate, vol) * units
	if rec.ClosePrice > 0 {
		row.StraddlePayoff = math.Abs(rec.ClosePrice-strike) * units
	}
	row.NetPnLUSD = row.LPPnLUSD - row.StraddleCost + row.StraddlePayoff
	return row
}
