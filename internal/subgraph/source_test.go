package subgraph

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"lpBacktest/internal/model"
)

func TestSourcePoolUniswap(t *testing.T) {
	srv := newGraphQLServer(t, func(graphqlRequest) string {
		return `{"data":{"pool":{"id":"0x88E6A0c2dDD26FEEb64F039a2c41296FcB3f5640","createdAtTimestamp":"1620250931","feeTier":"500",
"token0":{"symbol":"USDC","decimals":"6"},"token1":{"symbol":"WETH","decimals":"18"}}}}`
	})

	src := NewSource(NewClient(srv.URL, 0, nil, nil), uniswapV3{}, 0)
	pool, err := src.Pool(context.Background(), "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640")
	require.NoError(t, err)

	require.Equal(t, model.ProtocolUniswapV3, pool.Protocol)
	require.Equal(t, "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640", pool.Address)
	require.Equal(t, int32(6), pool.Token0Decimals)
	require.Equal(t, int32(18), pool.Token1Decimals)
	require.Equal(t, int64(1620250931), pool.CreatedAt)
	require.NotNil(t, pool.FeeTier)
	require.Equal(t, int64(500), *pool.FeeTier)
	require.False(t, pool.Dynamic())
	require.Equal(t, DefaultPageSize, src.PageSize())
}

func TestSourcePoolThenaIsDynamic(t *testing.T) {
	srv := newGraphQLServer(t, func(graphqlRequest) string {
		return `{"data":{"pool":{"id":"0xabc","createdAtTimestamp":"1","feeTier":"100",
"token0":{"symbol":"WBNB","decimals":"18"},"token1":{"symbol":"USDT","decimals":"18"}}}}`
	})

	src := NewSource(NewClient(srv.URL, 0, nil, nil), thena{}, 10)
	pool, err := src.Pool(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Nil(t, pool.FeeTier)
	require.True(t, pool.Dynamic())
}

func TestSourcePoolMissing(t *testing.T) {
	srv := newGraphQLServer(t, func(graphqlRequest) string { return `{"data":{"pool":null}}` })
	src := NewSource(NewClient(srv.URL, 0, nil, nil), uniswapV3{}, 10)
	_, err := src.Pool(context.Background(), "0xdead")
	require.Error(t, err)
}

func TestSourceTradesPage(t *testing.T) {
	srv := newGraphQLServer(t, func(req graphqlRequest) string {
		require.EqualValues(t, 1700000000, req.Variables["from"])
		require.EqualValues(t, 1700003601, req.Variables["to"])
		require.EqualValues(t, 2, req.Variables["first"])
		require.EqualValues(t, 4, req.Variables["skip"])
		return `{"data":{"swaps":[
{"id":"0x1#1","timestamp":"1700000100","amount0":"-1.5","amount1":"3000.25","amountUSD":"3000.25","sqrtPriceX96":"1771595571142957166518320255467520","tick":"200000"},
{"id":"0x2#7","timestamp":"1700000200","amount0":"2","amount1":"-4000","amountUSD":"4000","sqrtPriceX96":"1771595571142957166518320255467520","tick":null}]}}`
	})

	src := NewSource(NewClient(srv.URL, 0, nil, nil), uniswapV3{}, 2)
	pool := model.Pool{ID: 9, Address: "0xabc"}
	trades, err := src.TradesPage(context.Background(), pool, 1_700_000_000_000, 1_700_003_600_500, 4)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	require.Equal(t, "0x1#1", trades[0].TxID)
	require.Equal(t, int64(9), trades[0].PoolID)
	require.Equal(t, int64(1_700_000_100_000), trades[0].Timestamp)
	require.Equal(t, "-1.5", trades[0].Amount0.String())
	require.Equal(t, int32(200000), trades[0].Tick)
	require.Equal(t, "1771595571142957166518320255467520", trades[0].SqrtPriceX96.String())
	require.Equal(t, int32(0), trades[1].Tick)
}

func TestSourceTradesPageBadAmount(t *testing.T) {
	srv := newGraphQLServer(t, func(graphqlRequest) string {
		return `{"data":{"swaps":[{"id":"x","timestamp":"1","amount0":"abc","amount1":"1","amountUSD":"1","sqrtPriceX96":"1"}]}}`
	})
	src := NewSource(NewClient(srv.URL, 0, nil, nil), uniswapV3{}, 2)
	_, err := src.TradesPage(context.Background(), model.Pool{Address: "0x"}, 0, 1000, 0)
	require.Error(t, err)
}

func TestSourceLiquidityPage(t *testing.T) {
	srv := newGraphQLServer(t, func(graphqlRequest) string {
		return `{"data":{"poolHourDatas":[{"periodStartUnix":1700000000,"liquidity":"123456789012345678901234"}]}}`
	})
	src := NewSource(NewClient(srv.URL, 0, nil, nil), uniswapV3{}, 100)
	rows, err := src.LiquidityPage(context.Background(), model.Pool{ID: 3, Address: "0x"}, 0, 1, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(1_700_000_000_000), rows[0].Timestamp)
	require.Equal(t, "123456789012345678901234", rows[0].Liquidity.String())
}

func TestSourceFeeTierPage(t *testing.T) {
	srv := newGraphQLServer(t, func(graphqlRequest) string {
		return `{"data":{"feeHourDatas":[{"timestamp":"1700000000","minFee":"100","maxFee":"500"}]}}`
	})
	src := NewSource(NewClient(srv.URL, 0, nil, nil), thena{}, 100)
	require.True(t, src.SupportsDynamicFee())

	rows, err := src.FeeTierPage(context.Background(), model.Pool{ID: 3, Address: "0x"}, 0, 1, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 300.0, rows[0].FeeTier)
}

func TestSourceFeeTierPageFixedFee(t *testing.T) {
	src := NewSource(NewClient("http://unused.invalid", 0, nil, nil), uniswapV3{}, 100)
	require.False(t, src.SupportsDynamicFee())
	rows, err := src.FeeTierPage(context.Background(), model.Pool{}, 0, 1, 0)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestSourceFindPools(t *testing.T) {
	srv := newGraphQLServer(t, func(req graphqlRequest) string {
		where, ok := req.Variables["where"].(map[string]any)
		require.True(t, ok)
		require.Contains(t, where, "token0_")
		require.NotContains(t, where, "token1_")
		return `{"data":{"pools":[{"id":"0xAA","totalValueLockedUSD":"1000.5","volumeUSD":"20","feeTier":"3000","token0":{"symbol":"WETH"},"token1":{"symbol":"USDC"}}]}}`
	})
	src := NewSource(NewClient(srv.URL, 0, nil, nil), uniswapV3{}, 100)
	pools, err := src.FindPools(context.Background(), "WETH", "_", 5)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	require.Equal(t, "0xaa", pools[0].Address)
	require.Equal(t, "1000.5", pools[0].TVLUSD.String())
}

func TestPaginateStopsOnShortPage(t *testing.T) {
	var skips []int
	total, err := Paginate(context.Background(), 3, func(_ context.Context, skip int) (int, error) {
		skips = append(skips, skip)
		if skip < 6 {
			return 3, nil
		}
		return 1, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, total)
	require.Equal(t, []int{0, 3, 6}, skips)
}

func TestPaginatePropagatesError(t *testing.T) {
	_, err := Paginate(context.Background(), 3, func(context.Context, int) (int, error) {
		return 0, fmt.Errorf("boom")
	})
	require.EqualError(t, err, "boom")

	_, err = Paginate(context.Background(), 0, nil)
	require.Error(t, err)
}

func TestAdapterFor(t *testing.T) {
	a, err := AdapterFor(model.ProtocolThena)
	require.NoError(t, err)
	require.Equal(t, model.ProtocolThena, a.Protocol())

	_, err = AdapterFor(model.Protocol("sushi"))
	require.ErrorIs(t, err, ErrUnknownProtocol)
}
