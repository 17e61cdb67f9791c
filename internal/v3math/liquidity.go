package v3math

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// DepositSplit is the token composition of a USD deposit into a range.
// LiquidityDelta is in human units (sqrt of token1*token0 amounts).
type DepositSplit struct {
	Amount0        float64
	Amount1        float64
	LiquidityDelta float64
}

// TokensFromDepositUSD splits depositUSD into token amounts for the range
// [low, high] at price, where price is token1 per token0. Below the range the
// deposit is all token0, above it all token1. ok is false for degenerate
// inputs.
func TokensFromDepositUSD(price, low, high, priceUSD0, priceUSD1, depositUSD float64) (DepositSplit, bool) {
	if !(price > 0) || !(low > 0) || !(high > low) || !(priceUSD0 > 0) || !(priceUSD1 > 0) || depositUSD < 0 {
		return DepositSplit{}, false
	}

	sp, sl, sh := math.Sqrt(price), math.Sqrt(low), math.Sqrt(high)

	var split DepositSplit
	switch {
	case price <= low:
		split.Amount0 = depositUSD / priceUSD0
		split.LiquidityDelta = split.Amount0 / (1/sl - 1/sh)
	case price >= high:
		split.Amount1 = depositUSD / priceUSD1
		split.LiquidityDelta = split.Amount1 / (sh - sl)
	default:
		l := depositUSD / ((sp-sl)*priceUSD1 + (1/sp-1/sh)*priceUSD0)
		split.LiquidityDelta = l
		split.Amount0 = l * (1/sp - 1/sh)
		split.Amount1 = l * (sp - sl)
	}

	split.Amount0 = clamp(split.Amount0, 0, depositUSD/priceUSD0)
	split.Amount1 = clamp(split.Amount1, 0, depositUSD/priceUSD1)
	if !finite(split.Amount0) || !finite(split.Amount1) || !finite(split.LiquidityDelta) {
		return DepositSplit{}, false
	}
	return split, true
}

// LiquidityDelta returns the on-chain liquidity minted by depositing amount0
// and amount1 (human units) into [low, high] at price. Degenerate inputs
// yield zero.
func LiquidityDelta(price, low, high, amount0, amount1 float64, decimals0, decimals1 int32) *big.Int {
	sqrtP, err := EncodeSqrtPriceX96(decimal.NewFromFloat(price), decimals0, decimals1)
	if err != nil {
		return new(big.Int)
	}
	sqrtA, err := EncodeSqrtPriceX96(decimal.NewFromFloat(low), decimals0, decimals1)
	if err != nil {
		return new(big.Int)
	}
	sqrtB, err := EncodeSqrtPriceX96(decimal.NewFromFloat(high), decimals0, decimals1)
	if err != nil {
		return new(big.Int)
	}
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}

	raw0 := toRaw(amount0, decimals0)
	raw1 := toRaw(amount1, decimals1)

	switch {
	case sqrtP.Cmp(sqrtA) <= 0:
		return liquidityForAmount0(sqrtA, sqrtB, raw0)
	case sqrtP.Cmp(sqrtB) < 0:
		l0 := liquidityForAmount0(sqrtP, sqrtB, raw0)
		l1 := liquidityForAmount1(sqrtA, sqrtP, raw1)
		if l0.Cmp(l1) < 0 {
			return l0
		}
		return l1
	default:
		return liquidityForAmount1(sqrtA, sqrtB, raw1)
	}
}

func liquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) *big.Int {
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	if diff.Sign() <= 0 {
		return new(big.Int)
	}
	intermediate := new(big.Int).Mul(sqrtA, sqrtB)
	intermediate.Quo(intermediate, Q96)
	out := new(big.Int).Mul(amount0, intermediate)
	return out.Quo(out, diff)
}

func liquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) *big.Int {
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	if diff.Sign() <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount1, Q96)
	return out.Quo(out, diff)
}

func toRaw(amount float64, decimals int32) *big.Int {
	if !(amount > 0) || !finite(amount) {
		return new(big.Int)
	}
	return decimal.NewFromFloat(amount).Shift(decimals).BigInt()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
