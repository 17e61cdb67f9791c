package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"lpBacktest/internal/model"
	"lpBacktest/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres persistence for pools and their time series.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

const poolColumns = `id, protocol, address, token0_symbol, token1_symbol, token0_decimals, token1_decimals, fee_tier, created_at`

// UpsertPool inserts pool metadata once and returns the stored row. Existing
// pools are never modified.
func (s *Store) UpsertPool(ctx context.Context, pool model.Pool) (model.Pool, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pools (
			protocol, address, token0_symbol, token1_symbol, token0_decimals, token1_decimals, fee_tier, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (address) DO NOTHING
	`,
		string(pool.Protocol),
		strings.ToLower(pool.Address),
		pool.Token0Symbol,
		pool.Token1Symbol,
		pool.Token0Decimals,
		pool.Token1Decimals,
		pool.FeeTier,
		pool.CreatedAt,
	)
	if err != nil {
		return model.Pool{}, err
	}
	return s.PoolByAddress(ctx, pool.Protocol, pool.Address)
}

// PoolByAddress returns the pool with the given protocol and address.
func (s *Store) PoolByAddress(ctx context.Context, protocol model.Protocol, address string) (model.Pool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+poolColumns+` FROM pools WHERE address=$1 AND protocol=$2`,
		strings.ToLower(address), string(protocol))
	return scanPool(row)
}

// PoolByID returns the pool with the given id.
func (s *Store) PoolByID(ctx context.Context, id int64) (model.Pool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+poolColumns+` FROM pools WHERE id=$1`, id)
	return scanPool(row)
}

// ListPools returns all stored pools ordered by id.
func (s *Store) ListPools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+poolColumns+` FROM pools ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPool(row pgx.Row) (model.Pool, error) {
	var (
		p        model.Pool
		protocol string
	)
	err := row.Scan(&p.ID, &protocol, &p.Address, &p.Token0Symbol, &p.Token1Symbol,
		&p.Token0Decimals, &p.Token1Decimals, &p.FeeTier, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Pool{}, storage.ErrNotFound
		}
		return model.Pool{}, err
	}
	p.Protocol = model.Protocol(protocol)
	return p, nil
}

// InsertTrades inserts trades, skipping known transaction ids. It returns
// the number of new rows.
func (s *Store) InsertTrades(ctx context.Context, trades []model.Trade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(`
			INSERT INTO trades (txid, pool_id, ts, amount0, amount1, amount_usd, sqrt_price_x96, tick)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8)
			ON CONFLICT (txid) DO NOTHING
		`,
			t.TxID,
			t.PoolID,
			t.Timestamp,
			t.Amount0.String(),
			t.Amount1.String(),
			t.AmountUSD.String(),
			bigString(t.SqrtPriceX96),
			t.Tick,
		)
	}
	return s.sendCounted(ctx, batch, len(trades))
}

// InsertLiquidity inserts hourly liquidity snapshots.
func (s *Store) InsertLiquidity(ctx context.Context, rows []model.LiquiditySnapshot) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO liquidity (pool_id, ts, liquidity) VALUES ($1, $2, $3::numeric)
			ON CONFLICT (pool_id, ts) DO NOTHING
		`, r.PoolID, r.Timestamp, bigString(r.Liquidity))
	}
	return s.sendCounted(ctx, batch, len(rows))
}

// InsertFeeTiers inserts hourly fee tier snapshots.
func (s *Store) InsertFeeTiers(ctx context.Context, rows []model.FeeTierSnapshot) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO fee_tiers (pool_id, ts, fee_tier) VALUES ($1, $2, $3)
			ON CONFLICT (pool_id, ts) DO NOTHING
		`, r.PoolID, r.Timestamp, r.FeeTier)
	}
	return s.sendCounted(ctx, batch, len(rows))
}

// InsertSpotPrices inserts OHLCV candles, keeping stored ones.
func (s *Store) InsertSpotPrices(ctx context.Context, rows []model.SpotPrice) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO spot_prices (symbol, ts, open, high, low, close, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (symbol, ts) DO NOTHING
		`, r.Symbol, r.Timestamp, r.Open, r.High, r.Low, r.Close, r.Volume)
	}
	return s.sendCounted(ctx, batch, len(rows))
}

// RebuildCandles recomputes the hourly candles of pool for the hours starting
// in [from, to) from the stored trades and overwrites them under symbol.
// Rebuilding the same hours again gives the same rows.
func (s *Store) RebuildCandles(ctx context.Context, pool model.Pool, symbol string, from, to int64) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO spot_prices (symbol, ts, open, high, low, close, volume)
		SELECT $1, hour,
			(array_agg(price ORDER BY ts, id))[1],
			max(price),
			min(price),
			(array_agg(price ORDER BY ts DESC, id DESC))[1],
			sum(volume)
		FROM (
			SELECT id, ts, ts - ts % 3600000 AS hour,
				(sqrt_price_x96 * sqrt_price_x96 * power(10::numeric, $5::integer) / power(2::numeric, 192))::double precision AS price,
				abs(amount_usd)::double precision AS volume
			FROM trades
			WHERE pool_id = $2 AND ts >= $3 AND ts < $4 AND sqrt_price_x96 > 0
		) t
		GROUP BY hour
		ON CONFLICT (symbol, ts) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`, symbol, pool.ID, from, to, int(pool.Token0Decimals-pool.Token1Decimals))
	if err != nil {
		return 0, fmt.Errorf("rebuild candles: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// InsertVolatility inserts points into the implied or realized series.
func (s *Store) InsertVolatility(ctx context.Context, kind model.VolatilityKind, points []model.VolatilityPoint) (int, error) {
	table, err := volatilityTable(kind)
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(`
			INSERT INTO `+table+` (symbol, ts, value) VALUES ($1, $2, $3)
			ON CONFLICT (symbol, ts) DO NOTHING
		`, p.Symbol, p.Timestamp, p.Value)
	}
	return s.sendCounted(ctx, batch, len(points))
}

// LatestVolatility returns the last value at or before ts.
func (s *Store) LatestVolatility(ctx context.Context, kind model.VolatilityKind, symbol string, ts int64) (float64, bool, error) {
	table, err := volatilityTable(kind)
	if err != nil {
		return 0, false, err
	}
	var v float64
	row := s.pool.QueryRow(ctx, `SELECT value FROM `+table+` WHERE symbol=$1 AND ts<=$2 ORDER BY ts DESC LIMIT 1`, symbol, ts)
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return v, true, nil
}

func volatilityTable(kind model.VolatilityKind) (string, error) {
	switch kind {
	case model.VolatilityImplied:
		return "implied_volatility", nil
	case model.VolatilityRealized:
		return "realized_volatility", nil
	default:
		return "", fmt.Errorf("unknown volatility kind %q", kind)
	}
}

// LatestTimestamp returns the newest timestamp stored for a pool in table.
func (s *Store) LatestTimestamp(ctx context.Context, table storage.Table, poolID int64) (int64, bool, error) {
	switch table {
	case storage.TableTrades, storage.TableLiquidity, storage.TableFeeTiers:
	default:
		return 0, false, fmt.Errorf("unknown table %q", table)
	}
	var ts *int64
	row := s.pool.QueryRow(ctx, `SELECT max(ts) FROM `+string(table)+` WHERE pool_id=$1`, poolID)
	if err := row.Scan(&ts); err != nil {
		return 0, false, err
	}
	if ts == nil {
		return 0, false, nil
	}
	return *ts, true, nil
}

// CheckCoverage reports whether liquidity snapshots cover [from, to] hour
// by hour.
func (s *Store) CheckCoverage(ctx context.Context, poolID int64, from, to int64) (bool, error) {
	var n int64
	row := s.pool.QueryRow(ctx, `SELECT count(*) FROM liquidity WHERE pool_id=$1 AND ts>=$2 AND ts<=$3`, poolID, from, to)
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n >= storage.ExpectedHourlySnapshots(from, to), nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (int64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM fetch_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ts, true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts int64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fetch_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, ts)
	return err
}

func (s *Store) sendCounted(ctx context.Context, batch *pgx.Batch, n int) (int, error) {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for i := 0; i < n; i++ {
		tag, err := br.Exec()
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("parse integer %q", s)
	}
	return v, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
