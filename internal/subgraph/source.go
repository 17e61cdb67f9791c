package subgraph

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"lpBacktest/internal/model"
)

// DefaultPageSize is the GraphQL page size used when none is configured.
const DefaultPageSize = 1000

// Source fetches normalized rows for one protocol. Window bounds are unix
// milliseconds; the subgraphs work in seconds.
type Source struct {
	client   *Client
	adapter  Adapter
	pageSize int
}

func NewSource(client *Client, adapter Adapter, pageSize int) *Source {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Source{client: client, adapter: adapter, pageSize: pageSize}
}

func (s *Source) Protocol() model.Protocol { return s.adapter.Protocol() }

func (s *Source) PageSize() int { return s.pageSize }

// SupportsDynamicFee reports whether the protocol publishes hourly fee tiers.
func (s *Source) SupportsDynamicFee() bool {
	_, ok := s.adapter.FeeTierQuery("", 0, 0, 0, 0)
	return ok
}

type tokenJSON struct {
	Symbol   string `json:"symbol"`
	Decimals string `json:"decimals"`
}

type poolJSON struct {
	ID                  string    `json:"id"`
	CreatedAtTimestamp  string    `json:"createdAtTimestamp"`
	FeeTier             string    `json:"feeTier"`
	TotalValueLockedUSD string    `json:"totalValueLockedUSD"`
	VolumeUSD           string    `json:"volumeUSD"`
	Token0              tokenJSON `json:"token0"`
	Token1              tokenJSON `json:"token1"`
}

type swapJSON struct {
	ID           string  `json:"id"`
	Timestamp    string  `json:"timestamp"`
	Amount0      string  `json:"amount0"`
	Amount1      string  `json:"amount1"`
	AmountUSD    string  `json:"amountUSD"`
	SqrtPriceX96 string  `json:"sqrtPriceX96"`
	Tick         *string `json:"tick"`
}

type hourJSON struct {
	PeriodStartUnix int64  `json:"periodStartUnix"`
	Liquidity       string `json:"liquidity"`
}

type feeHourJSON struct {
	Timestamp string `json:"timestamp"`
	MinFee    string `json:"minFee"`
	MaxFee    string `json:"maxFee"`
}

// Pool fetches pool metadata. The returned pool has no store id yet.
func (s *Source) Pool(ctx context.Context, address string) (model.Pool, error) {
	var resp struct {
		Pool *poolJSON `json:"pool"`
	}
	if err := s.client.Do(ctx, s.adapter.MetadataQuery(address), &resp); err != nil {
		return model.Pool{}, err
	}
	if resp.Pool == nil {
		return model.Pool{}, fmt.Errorf("pool %s not found on %s subgraph", address, s.adapter.Protocol())
	}
	return parsePool(s.adapter.Protocol(), s.SupportsDynamicFee(), *resp.Pool)
}

func parsePool(protocol model.Protocol, dynamic bool, raw poolJSON) (model.Pool, error) {
	d0, err := strconv.ParseInt(raw.Token0.Decimals, 10, 32)
	if err != nil {
		return model.Pool{}, fmt.Errorf("token0 decimals %q: %w", raw.Token0.Decimals, err)
	}
	d1, err := strconv.ParseInt(raw.Token1.Decimals, 10, 32)
	if err != nil {
		return model.Pool{}, fmt.Errorf("token1 decimals %q: %w", raw.Token1.Decimals, err)
	}

	pool := model.Pool{
		Protocol:       protocol,
		Address:        strings.ToLower(raw.ID),
		Token0Symbol:   raw.Token0.Symbol,
		Token1Symbol:   raw.Token1.Symbol,
		Token0Decimals: int32(d0),
		Token1Decimals: int32(d1),
	}
	if raw.CreatedAtTimestamp != "" {
		if pool.CreatedAt, err = strconv.ParseInt(raw.CreatedAtTimestamp, 10, 64); err != nil {
			return model.Pool{}, fmt.Errorf("created timestamp %q: %w", raw.CreatedAtTimestamp, err)
		}
	}
	if !dynamic && raw.FeeTier != "" {
		tier, err := strconv.ParseInt(raw.FeeTier, 10, 64)
		if err != nil {
			return model.Pool{}, fmt.Errorf("fee tier %q: %w", raw.FeeTier, err)
		}
		pool.FeeTier = &tier
	}
	return pool, nil
}

// TradesPage fetches one page of swaps in [from, to).
func (s *Source) TradesPage(ctx context.Context, pool model.Pool, from, to int64, skip int) ([]model.Trade, error) {
	var resp struct {
		Swaps []swapJSON `json:"swaps"`
	}
	q := s.adapter.TradesQuery(pool.Address, from/1000, ceilSeconds(to), s.pageSize, skip)
	if err := s.client.Do(ctx, q, &resp); err != nil {
		return nil, err
	}

	out := make([]model.Trade, 0, len(resp.Swaps))
	for _, raw := range resp.Swaps {
		t, err := parseSwap(pool.ID, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func parseSwap(poolID int64, raw swapJSON) (model.Trade, error) {
	ts, err := strconv.ParseInt(raw.Timestamp, 10, 64)
	if err != nil {
		return model.Trade{}, fmt.Errorf("swap %s timestamp: %w", raw.ID, err)
	}
	t := model.Trade{TxID: raw.ID, PoolID: poolID, Timestamp: ts * 1000}
	if t.Amount0, err = decimal.NewFromString(raw.Amount0); err != nil {
		return model.Trade{}, fmt.Errorf("swap %s amount0: %w", raw.ID, err)
	}
	if t.Amount1, err = decimal.NewFromString(raw.Amount1); err != nil {
		return model.Trade{}, fmt.Errorf("swap %s amount1: %w", raw.ID, err)
	}
	if t.AmountUSD, err = decimal.NewFromString(raw.AmountUSD); err != nil {
		return model.Trade{}, fmt.Errorf("swap %s amountUSD: %w", raw.ID, err)
	}
	sqrt, ok := new(big.Int).SetString(raw.SqrtPriceX96, 10)
	if !ok {
		return model.Trade{}, fmt.Errorf("swap %s sqrt price %q", raw.ID, raw.SqrtPriceX96)
	}
	t.SqrtPriceX96 = sqrt
	if raw.Tick != nil {
		tick, err := strconv.ParseInt(*raw.Tick, 10, 32)
		if err != nil {
			return model.Trade{}, fmt.Errorf("swap %s tick: %w", raw.ID, err)
		}
		t.Tick = int32(tick)
	}
	return t, nil
}

// LiquidityPage fetches one page of hourly liquidity in [from, to).
func (s *Source) LiquidityPage(ctx context.Context, pool model.Pool, from, to int64, skip int) ([]model.LiquiditySnapshot, error) {
	var resp struct {
		PoolHourDatas []hourJSON `json:"poolHourDatas"`
	}
	q := s.adapter.LiquidityQuery(pool.Address, from/1000, ceilSeconds(to), s.pageSize, skip)
	if err := s.client.Do(ctx, q, &resp); err != nil {
		return nil, err
	}

	out := make([]model.LiquiditySnapshot, 0, len(resp.PoolHourDatas))
	for _, raw := range resp.PoolHourDatas {
		l, ok := new(big.Int).SetString(raw.Liquidity, 10)
		if !ok {
			return nil, fmt.Errorf("liquidity %q at %d", raw.Liquidity, raw.PeriodStartUnix)
		}
		out = append(out, model.LiquiditySnapshot{PoolID: pool.ID, Timestamp: raw.PeriodStartUnix * 1000, Liquidity: l})
	}
	return out, nil
}

// FeeTierPage fetches one page of hourly fee tiers in [from, to). Fixed-fee
// protocols return no rows.
func (s *Source) FeeTierPage(ctx context.Context, pool model.Pool, from, to int64, skip int) ([]model.FeeTierSnapshot, error) {
	q, ok := s.adapter.FeeTierQuery(pool.Address, from/1000, ceilSeconds(to), s.pageSize, skip)
	if !ok {
		return nil, nil
	}
	var resp struct {
		FeeHourDatas []feeHourJSON `json:"feeHourDatas"`
	}
	if err := s.client.Do(ctx, q, &resp); err != nil {
		return nil, err
	}

	out := make([]model.FeeTierSnapshot, 0, len(resp.FeeHourDatas))
	for _, raw := range resp.FeeHourDatas {
		snap, err := parseFeeHour(pool.ID, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func parseFeeHour(poolID int64, raw feeHourJSON) (model.FeeTierSnapshot, error) {
	ts, err := strconv.ParseInt(raw.Timestamp, 10, 64)
	if err != nil {
		return model.FeeTierSnapshot{}, fmt.Errorf("fee hour timestamp %q: %w", raw.Timestamp, err)
	}
	minFee, err := strconv.ParseFloat(raw.MinFee, 64)
	if err != nil {
		return model.FeeTierSnapshot{}, fmt.Errorf("fee hour min fee %q: %w", raw.MinFee, err)
	}
	maxFee, err := strconv.ParseFloat(raw.MaxFee, 64)
	if err != nil {
		return model.FeeTierSnapshot{}, fmt.Errorf("fee hour max fee %q: %w", raw.MaxFee, err)
	}
	return model.FeeTierSnapshot{PoolID: poolID, Timestamp: ts * 1000, FeeTier: (minFee + maxFee) / 2}, nil
}

// PoolCandidate is a pool search result.
type PoolCandidate struct {
	Address      string          `json:"address"`
	Token0Symbol string          `json:"token0_symbol"`
	Token1Symbol string          `json:"token1_symbol"`
	FeeTier      string          `json:"fee_tier"`
	TVLUSD       decimal.Decimal `json:"tvl_usd"`
	VolumeUSD    decimal.Decimal `json:"volume_usd"`
}

// FindPools lists pools by token symbols, largest TVL first. "_" or an
// empty symbol matches any token.
func (s *Source) FindPools(ctx context.Context, symbol0, symbol1 string, limit int) ([]PoolCandidate, error) {
	if limit <= 0 {
		limit = 20
	}
	var resp struct {
		Pools []poolJSON `json:"pools"`
	}
	if err := s.client.Do(ctx, s.adapter.PoolSearchQuery(symbol0, symbol1, limit), &resp); err != nil {
		return nil, err
	}

	out := make([]PoolCandidate, 0, len(resp.Pools))
	for _, raw := range resp.Pools {
		c := PoolCandidate{
			Address:      strings.ToLower(raw.ID),
			Token0Symbol: raw.Token0.Symbol,
			Token1Symbol: raw.Token1.Symbol,
			FeeTier:      raw.FeeTier,
		}
		c.TVLUSD, _ = decimal.NewFromString(raw.TotalValueLockedUSD)
		c.VolumeUSD, _ = decimal.NewFromString(raw.VolumeUSD)
		out = append(out, c)
	}
	return out, nil
}

func ceilSeconds(ms int64) int64 {
	return (ms + 999) / 1000
}
