package v3math

import (
	"math/big"
)

// FeeTierPercentage maps a fee tier code in hundredths of a basis point
// (3000 = 0.3%) to a fraction.
func FeeTierPercentage(tier float64) float64 {
	return tier / 1e6
}

// EstimateFee returns the pro-rata fee earned by liquidityDelta on a trade of
// volumeUSD against poolLiquidity. ok is false when the result is not a real
// contribution: unknown or zero pool liquidity, or a non-finite result.
func EstimateFee(liquidityDelta, poolLiquidity *big.Int, volumeUSD, feeFraction float64) (float64, bool) {
	if liquidityDelta == nil || liquidityDelta.Sign() <= 0 {
		return 0, false
	}
	if poolLiquidity == nil || poolLiquidity.Sign() <= 0 {
		return 0, false
	}

	denom := new(big.Int).Add(liquidityDelta, poolLiquidity)

	share, _ := new(big.Float).Quo(new(big.Float).SetInt(liquidityDelta), new(big.Float).SetInt(denom)).Float64()
	fee := volumeUSD * feeFraction * share
	if !finite(fee) {
		return 0, false
	}
	return fee, true
}
