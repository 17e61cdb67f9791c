package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Trade is a single swap. Timestamps are unix milliseconds.
type Trade struct {
	ID           int64           `json:"id"`
	TxID         string          `json:"txid"`
	PoolID       int64           `json:"pool_id"`
	Timestamp    int64           `json:"timestamp"`
	Amount0      decimal.Decimal `json:"amount0"`
	Amount1      decimal.Decimal `json:"amount1"`
	AmountUSD    decimal.Decimal `json:"amount_usd"`
	SqrtPriceX96 *big.Int        `json:"sqrt_price_x96"`
	Tick         int32           `json:"tick"`
}

// TapeTrade is a Trade joined with the latest liquidity and fee tier
// snapshots at or before its timestamp.
type TapeTrade struct {
	Trade
	Liquidity *big.Int `json:"current_liquidity,omitempty"`
	FeeTier   *float64 `json:"current_fee_tier,omitempty"`
}

// LiquiditySnapshot is the hourly in-range liquidity of a pool.
type LiquiditySnapshot struct {
	PoolID    int64    `json:"pool_id"`
	Timestamp int64    `json:"timestamp"`
	Liquidity *big.Int `json:"liquidity"`
}

// FeeTierSnapshot is the effective hourly fee tier of a dynamic-fee pool.
type FeeTierSnapshot struct {
	PoolID    int64   `json:"pool_id"`
	Timestamp int64   `json:"timestamp"`
	FeeTier   float64 `json:"fee_tier"`
}

// SpotPrice is an external OHLCV candle.
type SpotPrice struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// VolatilityKind selects the implied or realized volatility series.
type VolatilityKind string

const (
	VolatilityImplied  VolatilityKind = "implied"
	VolatilityRealized VolatilityKind = "realized"
)

// VolatilityPoint is one sample of a volatility series, in percent.
type VolatilityPoint struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// PricePoint is a pool price at a position boundary together with the USD
// prices of both tokens, all derived from one trade.
type PricePoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
	USD0      float64 `json:"usd0"`
	USD1      float64 `json:"usd1"`
}
