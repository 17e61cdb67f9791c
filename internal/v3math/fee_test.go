package v3math

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFeeTierPercentage(t *testing.T) {
	require.InDelta(t, 0.003, FeeTierPercentage(3000), 1e-15)
	require.InDelta(t, 0.0005, FeeTierPercentage(500), 1e-15)
}

func TestEstimateFee(t *testing.T) {
	fee, ok := EstimateFee(big.NewInt(1), big.NewInt(99), 10000, 0.003)
	require.True(t, ok)
	require.InDelta(t, 0.30, fee, 1e-12)

	fee, ok = EstimateFee(big.NewInt(0), big.NewInt(0), 10000, 0.003)
	require.False(t, ok)
	require.Zero(t, fee)

	fee, ok = EstimateFee(big.NewInt(5), big.NewInt(-5), 10000, 0.003)
	require.False(t, ok)
	require.Zero(t, fee)

	fee, ok = EstimateFee(big.NewInt(5), nil, 10000, 0.003)
	require.False(t, ok, "no liquidity snapshot")
	require.Zero(t, fee)

	fee, ok = EstimateFee(big.NewInt(5), big.NewInt(0), 10000, 0.003)
	require.False(t, ok, "empty pool")
	require.Zero(t, fee)
}

func TestImpermanentLoss(t *testing.T) {
	split, ok := TokensFromDepositUSD(2000, 1980, 2020, 2000, 1, 100)
	require.True(t, ok)

	flat, ok := ImpermanentLoss(ILInput{
		Amount0: split.Amount0, Amount1: split.Amount1, LiquidityDelta: split.LiquidityDelta,
		Low: 1980, High: 2020, ClosePrice: 2000, USD0: 2000, USD1: 1,
	})
	require.True(t, ok)
	require.InDelta(t, 100, flat.HoldValue, 1e-9)
	require.InDelta(t, 100, flat.ValueAtClose, 1e-9)
	require.InDelta(t, 0, flat.ILPercent, 1e-9)

	up, ok := ImpermanentLoss(ILInput{
		Amount0: split.Amount0, Amount1: split.Amount1, LiquidityDelta: split.LiquidityDelta,
		Low: 1980, High: 2020, ClosePrice: 2200, USD0: 2200, USD1: 1,
	})
	require.True(t, ok)
	require.Greater(t, up.HoldValue, up.ValueAtClose)
	require.Greater(t, up.ILPercent, 0.0)

	_, ok = ImpermanentLoss(ILInput{Low: 1980, High: 2020, ClosePrice: 2000, USD0: 2000, USD1: 1})
	require.False(t, ok)
}

func TestPositionFees(t *testing.T) {
	base := PositionFeesInput{
		Liquidity:              new(big.Int).Set(Q128),
		TickLower:              -100,
		TickUpper:              100,
		TickCurrent:            0,
		FeeGrowthGlobal0:       big.NewInt(1000),
		FeeGrowthGlobal1:       big.NewInt(10),
		LowerFeeGrowthOutside0: big.NewInt(100),
		LowerFeeGrowthOutside1: big.NewInt(20),
		UpperFeeGrowthOutside0: big.NewInt(50),
		UpperFeeGrowthOutside1: big.NewInt(0),
		FeeGrowthInside0Last:   big.NewInt(0),
		// inside1 wraps: 10 - 20 - 0 = 2^256 - 10
		FeeGrowthInside1Last: new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(20)),
	}

	fees0, fees1 := PositionFees(base)
	require.True(t, fees0.Equal(decimal.NewFromInt(850)), fees0.String())
	require.True(t, fees1.Equal(decimal.NewFromInt(10)), fees1.String())

	below := base
	below.TickCurrent = -200
	below.LowerFeeGrowthOutside0 = big.NewInt(400)
	below.UpperFeeGrowthOutside0 = big.NewInt(300)
	fees0, _ = PositionFees(below)
	require.True(t, fees0.Equal(decimal.NewFromInt(100)), fees0.String())

	scaled := base
	scaled.Decimals0 = 2
	fees0, _ = PositionFees(scaled)
	require.True(t, fees0.Equal(decimal.RequireFromString("8.5")), fees0.String())
}
