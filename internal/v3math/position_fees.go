package v3math

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// PositionFeesInput is the on-chain state needed to compute the uncollected
// fees of a position. Fee growth values are Q128.128 accumulators.
type PositionFeesInput struct {
	Liquidity   *big.Int
	TickLower   int32
	TickUpper   int32
	TickCurrent int32

	FeeGrowthGlobal0       *big.Int
	FeeGrowthGlobal1       *big.Int
	LowerFeeGrowthOutside0 *big.Int
	LowerFeeGrowthOutside1 *big.Int
	UpperFeeGrowthOutside0 *big.Int
	UpperFeeGrowthOutside1 *big.Int
	FeeGrowthInside0Last   *big.Int
	FeeGrowthInside1Last   *big.Int

	Decimals0 int32
	Decimals1 int32
}

// PositionFees returns the fees accrued since the position's last fee
// checkpoint, in human units. Accumulators wrap modulo 2^256 as they do on
// chain, so subtraction underflow is expected and intended.
func PositionFees(in PositionFeesInput) (decimal.Decimal, decimal.Decimal) {
	liquidity := toU256(in.Liquidity)

	fees0 := tokenFees(liquidity, in.TickLower, in.TickUpper, in.TickCurrent,
		toU256(in.FeeGrowthGlobal0), toU256(in.LowerFeeGrowthOutside0),
		toU256(in.UpperFeeGrowthOutside0), toU256(in.FeeGrowthInside0Last))
	fees1 := tokenFees(liquidity, in.TickLower, in.TickUpper, in.TickCurrent,
		toU256(in.FeeGrowthGlobal1), toU256(in.LowerFeeGrowthOutside1),
		toU256(in.UpperFeeGrowthOutside1), toU256(in.FeeGrowthInside1Last))

	return decimal.NewFromBigInt(fees0.ToBig(), -in.Decimals0),
		decimal.NewFromBigInt(fees1.ToBig(), -in.Decimals1)
}

func tokenFees(liquidity *uint256.Int, tickLower, tickUpper, tickCurrent int32, global, outsideLower, outsideUpper, insideLast *uint256.Int) *uint256.Int {
	below := new(uint256.Int)
	if tickCurrent >= tickLower {
		below.Set(outsideLower)
	} else {
		below.Sub(global, outsideLower)
	}

	above := new(uint256.Int)
	if tickCurrent < tickUpper {
		above.Set(outsideUpper)
	} else {
		above.Sub(global, outsideUpper)
	}

	inside := new(uint256.Int).Sub(global, below)
	inside.Sub(inside, above)
	delta := new(uint256.Int).Sub(inside, insideLast)

	q128 := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	out, _ := new(uint256.Int).MulDivOverflow(liquidity, delta, q128)
	return out
}

func toU256(v *big.Int) *uint256.Int {
	if v == nil || v.Sign() < 0 {
		return new(uint256.Int)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return new(uint256.Int)
	}
	return out
}
