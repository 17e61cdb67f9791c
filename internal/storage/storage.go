package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"lpBacktest/internal/model"
)

// ErrNotFound is returned when a pool or point lookup has no row.
var ErrNotFound = errors.New("not found")

// Table names a time-series table for coverage and latest-timestamp queries.
type Table string

const (
	TableTrades    Table = "trades"
	TableLiquidity Table = "liquidity"
	TableFeeTiers  Table = "fee_tiers"
)

// TableSpotPrices is keyed by symbol, not pool.
const TableSpotPrices Table = "spot_prices"

// Sink receives fetched rows. Inserts are idempotent on natural keys.
type Sink interface {
	UpsertPool(ctx context.Context, pool model.Pool) (model.Pool, error)
	InsertTrades(ctx context.Context, trades []model.Trade) (int, error)
	InsertLiquidity(ctx context.Context, rows []model.LiquiditySnapshot) (int, error)
	InsertFeeTiers(ctx context.Context, rows []model.FeeTierSnapshot) (int, error)
	// RebuildCandles overwrites the hourly candles starting in [from, to)
	// with ones computed from the stored trades.
	RebuildCandles(ctx context.Context, pool model.Pool, symbol string, from, to int64) (int, error)
	LatestTimestamp(ctx context.Context, table Table, poolID int64) (int64, bool, error)
}

// TapeSource serves the reads a simulation needs.
type TapeSource interface {
	PoolByAddress(ctx context.Context, protocol model.Protocol, address string) (model.Pool, error)
	TradeTape(ctx context.Context, poolID int64, from, to int64) ([]model.TapeTrade, error)
	NearestTrade(ctx context.Context, poolID int64, ts int64, minUSD decimal.Decimal) (model.Trade, error)
}

// StateStore persists named progress markers.
type StateStore interface {
	LoadState(ctx context.Context, name string) (int64, bool, error)
	SaveState(ctx context.Context, name string, ts int64) error
}

// ExpectedHourlySnapshots is the minimum number of hourly snapshots that
// covers [from, to] in milliseconds. One boundary hour may be missing.
func ExpectedHourlySnapshots(from, to int64) int64 {
	n := (to-from)/3_600_000 - 1
	if n < 0 {
		return 0
	}
	return n
}
