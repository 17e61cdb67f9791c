package subgraph

import (
	"errors"
	"fmt"
	"strings"

	"lpBacktest/internal/model"
)

// ErrUnknownProtocol is returned for a protocol with no adapter.
var ErrUnknownProtocol = errors.New("unknown protocol")

// Adapter builds the queries of one subgraph schema. Responses are shaped
// identically across adapters through field aliases, so decoding is shared.
type Adapter interface {
	Protocol() model.Protocol
	MetadataQuery(address string) Query
	TradesQuery(address string, from, to int64, first, skip int) Query
	LiquidityQuery(address string, from, to int64, first, skip int) Query
	// FeeTierQuery reports false for protocols with a fixed fee tier.
	FeeTierQuery(address string, from, to int64, first, skip int) (Query, bool)
	PoolSearchQuery(symbol0, symbol1 string, first int) Query
}

// AdapterFor returns the adapter of a protocol.
func AdapterFor(p model.Protocol) (Adapter, error) {
	switch p {
	case model.ProtocolUniswapV3:
		return uniswapV3{}, nil
	case model.ProtocolThena:
		return thena{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, p)
	}
}

func windowVars(address string, from, to int64, first, skip int) map[string]any {
	return map[string]any{
		"pool":  strings.ToLower(address),
		"from":  from,
		"to":    to,
		"first": first,
		"skip":  skip,
	}
}

func searchVars(symbol0, symbol1 string, first int) map[string]any {
	where := map[string]any{}
	if symbol0 != "" && symbol0 != "_" {
		where["token0_"] = map[string]any{"symbol": symbol0}
	}
	if symbol1 != "" && symbol1 != "_" {
		where["token1_"] = map[string]any{"symbol": symbol1}
	}
	return map[string]any{"where": where, "first": first}
}

type uniswapV3 struct{}

func (uniswapV3) Protocol() model.Protocol { return model.ProtocolUniswapV3 }

func (uniswapV3) MetadataQuery(address string) Query {
	return Query{
		Name: "pool",
		Text: `query Pool($id: ID!) {
  pool(id: $id) {
    id
    createdAtTimestamp
    feeTier
    token0 { symbol decimals }
    token1 { symbol decimals }
  }
}`,
		Variables: map[string]any{"id": strings.ToLower(address)},
	}
}

func (uniswapV3) TradesQuery(address string, from, to int64, first, skip int) Query {
	return Query{
		Name: "swaps",
		Text: `query Swaps($pool: String!, $from: BigInt!, $to: BigInt!, $first: Int!, $skip: Int!) {
  swaps(
    where: { pool: $pool, timestamp_gte: $from, timestamp_lt: $to }
    orderBy: timestamp
    orderDirection: asc
    first: $first
    skip: $skip
  ) {
    id
    timestamp
    amount0
    amount1
    amountUSD
    sqrtPriceX96
    tick
  }
}`,
		Variables: windowVars(address, from, to, first, skip),
	}
}

func (uniswapV3) LiquidityQuery(address string, from, to int64, first, skip int) Query {
	return Query{
		Name: "poolHourDatas",
		Text: `query PoolHourDatas($pool: String!, $from: Int!, $to: Int!, $first: Int!, $skip: Int!) {
  poolHourDatas(
    where: { pool: $pool, periodStartUnix_gte: $from, periodStartUnix_lt: $to }
    orderBy: periodStartUnix
    orderDirection: asc
    first: $first
    skip: $skip
  ) {
    periodStartUnix
    liquidity
  }
}`,
		Variables: windowVars(address, from, to, first, skip),
	}
}

func (uniswapV3) FeeTierQuery(string, int64, int64, int, int) (Query, bool) {
	return Query{}, false
}

func (uniswapV3) PoolSearchQuery(symbol0, symbol1 string, first int) Query {
	return Query{
		Name: "pools",
		Text: `query Pools($where: Pool_filter, $first: Int!) {
  pools(where: $where, orderBy: totalValueLockedUSD, orderDirection: desc, first: $first) {
    id
    totalValueLockedUSD
    volumeUSD
    feeTier
    token0 { symbol }
    token1 { symbol }
  }
}`,
		Variables: searchVars(symbol0, symbol1, first),
	}
}

// thena is the Algebra-based Thena fusion schema on BSC. Fees are dynamic
// and reported per hour as a min/max band.
type thena struct{}

func (thena) Protocol() model.Protocol { return model.ProtocolThena }

func (thena) MetadataQuery(address string) Query {
	return Query{
		Name: "pool",
		Text: `query Pool($id: ID!) {
  pool(id: $id) {
    id
    createdAtTimestamp
    feeTier: fee
    token0 { symbol decimals }
    token1 { symbol decimals }
  }
}`,
		Variables: map[string]any{"id": strings.ToLower(address)},
	}
}

func (thena) TradesQuery(address string, from, to int64, first, skip int) Query {
	return Query{
		Name: "swaps",
		Text: `query Swaps($pool: String!, $from: BigInt!, $to: BigInt!, $first: Int!, $skip: Int!) {
  swaps(
    where: { pool: $pool, timestamp_gte: $from, timestamp_lt: $to }
    orderBy: timestamp
    orderDirection: asc
    first: $first
    skip: $skip
  ) {
    id
    timestamp
    amount0
    amount1
    amountUSD
    sqrtPriceX96: price
    tick
  }
}`,
		Variables: windowVars(address, from, to, first, skip),
	}
}

func (thena) LiquidityQuery(address string, from, to int64, first, skip int) Query {
	return uniswapV3{}.LiquidityQuery(address, from, to, first, skip)
}

func (thena) FeeTierQuery(address string, from, to int64, first, skip int) (Query, bool) {
	return Query{
		Name: "feeHourDatas",
		Text: `query FeeHourDatas($pool: String!, $from: BigInt!, $to: BigInt!, $first: Int!, $skip: Int!) {
  feeHourDatas(
    where: { pool: $pool, timestamp_gte: $from, timestamp_lt: $to }
    orderBy: timestamp
    orderDirection: asc
    first: $first
    skip: $skip
  ) {
    timestamp
    minFee
    maxFee
  }
}`,
		Variables: windowVars(address, from, to, first, skip),
	}, true
}

func (thena) PoolSearchQuery(symbol0, symbol1 string, first int) Query {
	return Query{
		Name: "pools",
		Text: `query Pools($where: Pool_filter, $first: Int!) {
  pools(where: $where, orderBy: totalValueLockedUSD, orderDirection: desc, first: $first) {
    id
    totalValueLockedUSD
    volumeUSD
    feeTier: fee
    token0 { symbol }
    token1 { symbol }
  }
}`,
		Variables: searchVars(symbol0, symbol1, first),
	}
}
