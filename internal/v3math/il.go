package v3math

import "math"

// ILInput describes an LP position re-priced at close.
type ILInput struct {
	// Amount0 and Amount1 are the tokens deposited at open.
	Amount0 float64
	Amount1 float64
	// LiquidityDelta is the human-unit liquidity from TokensFromDepositUSD.
	LiquidityDelta float64
	Low            float64
	High           float64
	ClosePrice     float64
	// USD0 and USD1 are token USD prices at close.
	USD0 float64
	USD1 float64
}

// ILResult compares holding the deposit against the LP position.
type ILResult struct {
	HoldValue    float64
	ValueAtClose float64
	ILPercent    float64
}

// ImpermanentLoss values the deposited tokens held passively and the
// position's composition at ClosePrice clamped to [Low, High], both at the
// close USD prices.
func ImpermanentLoss(in ILInput) (ILResult, bool) {
	if !(in.Low > 0) || !(in.High > in.Low) || !(in.ClosePrice > 0) || in.USD0 < 0 || in.USD1 < 0 {
		return ILResult{}, false
	}

	hold := in.Amount0*in.USD0 + in.Amount1*in.USD1
	if !(hold > 0) {
		return ILResult{}, false
	}

	p := clamp(in.ClosePrice, in.Low, in.High)
	sp, sl, sh := math.Sqrt(p), math.Sqrt(in.Low), math.Sqrt(in.High)
	amount0 := in.LiquidityDelta * (1/sp - 1/sh)
	amount1 := in.LiquidityDelta * (sp - sl)
	value := amount0*in.USD0 + amount1*in.USD1

	res := ILResult{
		HoldValue:    hold,
		ValueAtClose: value,
		ILPercent:    math.Abs(hold-value) / hold * 100,
	}
	if !finite(res.ValueAtClose) || !finite(res.ILPercent) {
		return ILResult{}, false
	}
	return res, true
}
