package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"lpBacktest/internal/model"
	"lpBacktest/internal/storage"
)

const tradeColumns = `t.id, t.txid, t.pool_id, t.ts, t.amount0::text, t.amount1::text, t.amount_usd::text, t.sqrt_price_x96::text, t.tick`

// TradeTape returns the trades of a pool in [from, to) ordered by time, each
// joined with the latest liquidity and fee tier snapshot at or before it.
func (s *Store) TradeTape(ctx context.Context, poolID int64, from, to int64) ([]model.TapeTrade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tradeColumns+`, l.liquidity::text, f.fee_tier
		FROM trades t
		LEFT JOIN LATERAL (
			SELECT liquidity FROM liquidity
			WHERE pool_id = t.pool_id AND ts <= t.ts
			ORDER BY ts DESC LIMIT 1
		) l ON true
		LEFT JOIN LATERAL (
			SELECT fee_tier FROM fee_tiers
			WHERE pool_id = t.pool_id AND ts <= t.ts
			ORDER BY ts DESC LIMIT 1
		) f ON true
		WHERE t.pool_id = $1 AND t.ts >= $2 AND t.ts < $3
		ORDER BY t.ts, t.id
	`, poolID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TapeTrade
	for rows.Next() {
		var (
			raw       tradeRow
			liquidity *string
			feeTier   *float64
		)
		if err := rows.Scan(raw.dest(&liquidity, &feeTier)...); err != nil {
			return nil, err
		}
		trade, err := raw.trade()
		if err != nil {
			return nil, err
		}
		tt := model.TapeTrade{Trade: trade, FeeTier: feeTier}
		if liquidity != nil {
			if tt.Liquidity, err = parseBig(*liquidity); err != nil {
				return nil, err
			}
		}
		out = append(out, tt)
	}
	return out, rows.Err()
}

// TradesBetween returns plain trades of a pool in [from, to) ordered by time.
func (s *Store) TradesBetween(ctx context.Context, poolID int64, from, to int64) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tradeColumns+` FROM trades t
		WHERE t.pool_id = $1 AND t.ts >= $2 AND t.ts < $3
		ORDER BY t.ts, t.id
	`, poolID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Trade
	for rows.Next() {
		var raw tradeRow
		if err := rows.Scan(raw.dest()...); err != nil {
			return nil, err
		}
		trade, err := raw.trade()
		if err != nil {
			return nil, err
		}
		out = append(out, trade)
	}
	return out, rows.Err()
}

// NearestTrade returns the trade closest in time to ts whose notional is at
// least minUSD.
func (s *Store) NearestTrade(ctx context.Context, poolID int64, ts int64, minUSD decimal.Decimal) (model.Trade, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+tradeColumns+` FROM trades t
		WHERE t.pool_id = $1 AND t.amount_usd >= $3::numeric
		ORDER BY abs(t.ts - $2), t.id
		LIMIT 1
	`, poolID, ts, minUSD.String())

	var raw tradeRow
	if err := row.Scan(raw.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Trade{}, storage.ErrNotFound
		}
		return model.Trade{}, err
	}
	return raw.trade()
}

// LatestTradeAt returns the last trade at or before ts.
func (s *Store) LatestTradeAt(ctx context.Context, poolID int64, ts int64) (model.Trade, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+tradeColumns+` FROM trades t
		WHERE t.pool_id = $1 AND t.ts <= $2
		ORDER BY t.ts DESC, t.id DESC
		LIMIT 1
	`, poolID, ts)

	var raw tradeRow
	if err := row.Scan(raw.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Trade{}, storage.ErrNotFound
		}
		return model.Trade{}, err
	}
	return raw.trade()
}

// LiquidityBetween returns the liquidity snapshots of a pool in [from, to].
func (s *Store) LiquidityBetween(ctx context.Context, poolID int64, from, to int64) ([]model.LiquiditySnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ts, liquidity::text FROM liquidity
		WHERE pool_id = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts
	`, poolID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LiquiditySnapshot
	for rows.Next() {
		var (
			ts  int64
			raw string
		)
		if err := rows.Scan(&ts, &raw); err != nil {
			return nil, err
		}
		l, err := parseBig(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, model.LiquiditySnapshot{PoolID: poolID, Timestamp: ts, Liquidity: l})
	}
	return out, rows.Err()
}

// FeeTiersBetween returns the fee tier snapshots of a pool in [from, to].
func (s *Store) FeeTiersBetween(ctx context.Context, poolID int64, from, to int64) ([]model.FeeTierSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ts, fee_tier FROM fee_tiers
		WHERE pool_id = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts
	`, poolID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FeeTierSnapshot
	for rows.Next() {
		snap := model.FeeTierSnapshot{PoolID: poolID}
		if err := rows.Scan(&snap.Timestamp, &snap.FeeTier); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// tradeRow holds the text-encoded numeric columns of a trade row.
type tradeRow struct {
	id        int64
	txid      string
	poolID    int64
	ts        int64
	amount0   string
	amount1   string
	amountUSD string
	sqrtPrice string
	tick      int32
}

func (r *tradeRow) dest(extra ...any) []any {
	out := []any{&r.id, &r.txid, &r.poolID, &r.ts, &r.amount0, &r.amount1, &r.amountUSD, &r.sqrtPrice, &r.tick}
	return append(out, extra...)
}

func (r *tradeRow) trade() (model.Trade, error) {
	t := model.Trade{ID: r.id, TxID: r.txid, PoolID: r.poolID, Timestamp: r.ts, Tick: r.tick}
	var err error
	if t.Amount0, err = parseDecimal(r.amount0); err != nil {
		return model.Trade{}, fmt.Errorf("trade %s amount0: %w", r.txid, err)
	}
	if t.Amount1, err = parseDecimal(r.amount1); err != nil {
		return model.Trade{}, fmt.Errorf("trade %s amount1: %w", r.txid, err)
	}
	if t.AmountUSD, err = parseDecimal(r.amountUSD); err != nil {
		return model.Trade{}, fmt.Errorf("trade %s amount usd: %w", r.txid, err)
	}
	if t.SqrtPriceX96, err = parseBig(r.sqrtPrice); err != nil {
		return model.Trade{}, fmt.Errorf("trade %s sqrt price: %w", r.txid, err)
	}
	return t, nil
}
