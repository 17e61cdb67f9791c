package v3math

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// priceScale is the number of fractional digits kept when decoding a
// sqrt price. It keeps boundary-tick prices exact to many significant digits.
const priceScale = 80

const floatPrec = 256

// DecodeSqrtPriceX96 converts a Q64.96 sqrt price to a human price of token0
// in units of token1, truncating at priceScale fractional digits.
func DecodeSqrtPriceX96(sqrtPriceX96 *big.Int, decimals0, decimals1 int32) decimal.Decimal {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero
	}

	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	den := new(big.Int).Set(Q192)

	exp := int64(priceScale) + int64(decimals0) - int64(decimals1)
	if exp >= 0 {
		num.Mul(num, pow10(exp))
	} else {
		den.Mul(den, pow10(-exp))
	}

	return decimal.NewFromBigInt(num.Quo(num, den), -priceScale)
}

// DecodePrice is DecodeSqrtPriceX96 as a float64, for replay arithmetic.
func DecodePrice(sqrtPriceX96 *big.Int, decimals0, decimals1 int32) float64 {
	return DecodeSqrtPriceX96(sqrtPriceX96, decimals0, decimals1).InexactFloat64()
}

// EncodeSqrtPriceX96 converts a human price to a Q64.96 sqrt price, floored.
func EncodeSqrtPriceX96(price decimal.Decimal, decimals0, decimals1 int32) (*big.Int, error) {
	if price.Sign() <= 0 {
		return nil, fmt.Errorf("price must be positive: %s", price)
	}

	raw, ok := new(big.Float).SetPrec(floatPrec).SetString(price.String())
	if !ok {
		return nil, fmt.Errorf("parse price %s", price)
	}

	exp := int64(decimals1) - int64(decimals0)
	scale := new(big.Float).SetPrec(floatPrec).SetInt(pow10(absInt64(exp)))
	if exp >= 0 {
		raw.Mul(raw, scale)
	} else {
		raw.Quo(raw, scale)
	}

	root := new(big.Float).SetPrec(floatPrec).Sqrt(raw)
	root.Mul(root, new(big.Float).SetPrec(floatPrec).SetInt(Q96))

	out, _ := root.Int(nil)
	return out, nil
}

// TickToPrice returns the human price at a tick.
func TickToPrice(tick int, decimals0, decimals1 int32) (decimal.Decimal, error) {
	sqrtRatio, err := SqrtRatioAtTick(tick)
	if err != nil {
		return decimal.Zero, err
	}
	return DecodeSqrtPriceX96(sqrtRatio, decimals0, decimals1), nil
}

// PriceToTick returns the tick whose price is the greatest one <= price.
// Prices outside the tick domain clamp to MinTick or MaxTick.
func PriceToTick(price decimal.Decimal, decimals0, decimals1 int32) (int, error) {
	sqrtPrice, err := EncodeSqrtPriceX96(price, decimals0, decimals1)
	if err != nil {
		return 0, err
	}
	if sqrtPrice.Cmp(MinSqrtRatio) < 0 {
		return MinTick, nil
	}
	if sqrtPrice.Cmp(MaxSqrtRatio) >= 0 {
		return MaxTick, nil
	}
	return TickAtSqrtRatio(sqrtPrice)
}

// PriceMin is the price at MinTick.
func PriceMin(decimals0, decimals1 int32) decimal.Decimal {
	p, _ := TickToPrice(MinTick, decimals0, decimals1)
	return p
}

// PriceMax is the price at MaxTick.
func PriceMax(decimals0, decimals1 int32) decimal.Decimal {
	p, _ := TickToPrice(MaxTick, decimals0, decimals1)
	return p
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
