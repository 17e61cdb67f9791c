package model

import "math/big"

// TokenMeta captures ERC20 metadata.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
}

// OnchainPosition is a NonfungiblePositionManager position as returned by
// positions(tokenId).
type OnchainPosition struct {
	TokenID                  *big.Int
	Token0                   string
	Token1                   string
	Fee                      uint32
	TickLower                int32
	TickUpper                int32
	Liquidity                *big.Int
	FeeGrowthInside0LastX128 *big.Int
	FeeGrowthInside1LastX128 *big.Int
	TokensOwed0              *big.Int
	TokensOwed1              *big.Int
}

// TickState holds the fee growth recorded outside an initialized tick.
type TickState struct {
	FeeGrowthOutside0X128 *big.Int
	FeeGrowthOutside1X128 *big.Int
}

// PoolState is the subset of live pool storage needed to compute
// uncollected fees.
type PoolState struct {
	Address              string
	SqrtPriceX96         *big.Int
	Tick                 int32
	FeeGrowthGlobal0X128 *big.Int
	FeeGrowthGlobal1X128 *big.Int
}

// FeeAudit is the uncollected fee report for one position.
type FeeAudit struct {
	TokenID      string `json:"token_id"`
	Pool         string `json:"pool"`
	Token0Symbol string `json:"token0_symbol"`
	Token1Symbol string `json:"token1_symbol"`
	TickLower    int32  `json:"tick_lower"`
	TickUpper    int32  `json:"tick_upper"`
	TickCurrent  int32  `json:"tick_current"`
	InRange      bool   `json:"in_range"`
	Fees0        string `json:"fees0"`
	Fees1        string `json:"fees1"`
}
