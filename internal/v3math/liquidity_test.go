package v3math

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokensFromDepositUSDInRange(t *testing.T) {
	split, ok := TokensFromDepositUSD(2000, 1980, 2020, 2000, 1, 100)
	require.True(t, ok)
	require.Greater(t, split.Amount0, 0.0)
	require.Greater(t, split.Amount1, 0.0)
	require.InDelta(t, 100, split.Amount0*2000+split.Amount1, 1e-9)
}

func TestTokensFromDepositUSDClamp(t *testing.T) {
	for _, price := range []float64{1000, 1980, 1990, 2000, 2019.99, 2020, 5000} {
		split, ok := TokensFromDepositUSD(price, 1980, 2020, price, 1, 100)
		require.True(t, ok, "price %v", price)
		require.GreaterOrEqual(t, split.Amount0, 0.0)
		require.GreaterOrEqual(t, split.Amount1, 0.0)
		value := split.Amount0*price + split.Amount1
		require.LessOrEqual(t, value, 100*(1+1e-12), "price %v", price)
	}

	below, ok := TokensFromDepositUSD(1000, 1980, 2020, 1000, 1, 100)
	require.True(t, ok)
	require.Zero(t, below.Amount1)
	require.InDelta(t, 0.1, below.Amount0, 1e-12)

	above, ok := TokensFromDepositUSD(5000, 1980, 2020, 5000, 1, 100)
	require.True(t, ok)
	require.Zero(t, above.Amount0)
	require.InDelta(t, 100, above.Amount1, 1e-12)
}

func TestTokensFromDepositUSDDegenerate(t *testing.T) {
	_, ok := TokensFromDepositUSD(2000, 2020, 1980, 2000, 1, 100)
	require.False(t, ok)
	_, ok = TokensFromDepositUSD(2000, 1980, 2020, 0, 1, 100)
	require.False(t, ok)
	_, ok = TokensFromDepositUSD(math.NaN(), 1980, 2020, 2000, 1, 100)
	require.False(t, ok)
}

func TestLiquidityDeltaMatchesDepositSplit(t *testing.T) {
	split, ok := TokensFromDepositUSD(2000, 1980, 2020, 2000, 1, 100)
	require.True(t, ok)

	l := LiquidityDelta(2000, 1980, 2020, split.Amount0, split.Amount1, 18, 6)
	require.Equal(t, 1, l.Sign())

	// raw liquidity is human liquidity scaled by 10^((d0+d1)/2)
	got, _ := new(big.Float).SetInt(l).Float64()
	require.InDelta(t, 1.0, got/(split.LiquidityDelta*1e12), 1e-6)
}

func TestLiquidityDeltaRegions(t *testing.T) {
	below := LiquidityDelta(1900, 1980, 2020, 0.05, 0, 18, 6)
	require.Equal(t, 1, below.Sign())
	require.Zero(t, LiquidityDelta(1900, 1980, 2020, 0, 100, 18, 6).Sign())

	above := LiquidityDelta(2100, 1980, 2020, 0, 100, 18, 6)
	require.Equal(t, 1, above.Sign())
	require.Zero(t, LiquidityDelta(2100, 1980, 2020, 0.05, 0, 18, 6).Sign())

	// one-sided amounts inside the range mint nothing
	require.Zero(t, LiquidityDelta(2000, 1980, 2020, 0.05, 0, 18, 6).Sign())

	require.Zero(t, LiquidityDelta(0, 1980, 2020, 1, 1, 18, 6).Sign())
}
