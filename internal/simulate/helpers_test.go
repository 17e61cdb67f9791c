package simulate

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"lpBacktest/internal/model"
	"lpBacktest/internal/v3math"
)

func testPool() model.Pool {
	tier := int64(3000)
	return model.Pool{
		ID:             1,
		Protocol:       model.ProtocolUniswapV3,
		Address:        "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640",
		Token0Symbol:   "WETH",
		Token1Symbol:   "USDC",
		Token0Decimals: 18,
		Token1Decimals: 6,
		FeeTier:        &tier,
	}
}

func sqrtFor(t *testing.T, price float64) *big.Int {
	t.Helper()
	sqrt, err := v3math.EncodeSqrtPriceX96(decimal.NewFromFloat(price), 18, 6)
	require.NoError(t, err)
	return sqrt
}

// swapAt builds a trade selling token0 for token1 at price, token1 worth $1.
func swapAt(t *testing.T, id, ts int64, price, usd float64, liquidity *big.Int) model.TapeTrade {
	t.Helper()
	return model.TapeTrade{
		Trade: model.Trade{
			ID:           id,
			TxID:         fmt.Sprintf("0x%04d", id),
			PoolID:       1,
			Timestamp:    ts,
			Amount0:      decimal.NewFromFloat(usd / price),
			Amount1:      decimal.NewFromFloat(-usd),
			AmountUSD:    decimal.NewFromFloat(usd),
			SqrtPriceX96: sqrtFor(t, price),
		},
		Liquidity: liquidity,
	}
}

func pointOf(t *testing.T, tr model.TapeTrade) model.PricePoint {
	t.Helper()
	pp, ok := PricePointFromTrade(tr.Trade, testPool())
	require.True(t, ok)
	return pp
}

func bandSpec(up, down float64) model.PositionSpec {
	return model.PositionSpec{
		LPPositionID: 1,
		Protocol:     model.ProtocolUniswapV3,
		PoolAddress:  testPool().Address,
		OpenTime:     0,
		CloseTime:    10_000,
		Range:        model.RangeSpec{UptickPercent: up, DowntickPercent: down},
		AmountUSD:    100,
	}
}
