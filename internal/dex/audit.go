package dex

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"lpBacktest/internal/model"
	"lpBacktest/internal/v3math"
)

// Audit values the uncollected fees of one position: tokens already owed
// plus fees accrued inside the range since the last checkpoint.
func (r *PositionReader) Audit(ctx context.Context, tokenID *big.Int, block *big.Int) (model.FeeAudit, error) {
	pos, err := r.Position(ctx, tokenID, block)
	if err != nil {
		return model.FeeAudit{}, err
	}
	token0 := common.HexToAddress(pos.Token0)
	token1 := common.HexToAddress(pos.Token1)

	pool, err := r.PoolAddress(ctx, token0, token1, pos.Fee, block)
	if err != nil {
		return model.FeeAudit{}, err
	}
	state, err := r.PoolState(ctx, pool, block)
	if err != nil {
		return model.FeeAudit{}, fmt.Errorf("pool state: %w", err)
	}
	lower, err := r.Tick(ctx, pool, pos.TickLower, block)
	if err != nil {
		return model.FeeAudit{}, fmt.Errorf("lower tick: %w", err)
	}
	upper, err := r.Tick(ctx, pool, pos.TickUpper, block)
	if err != nil {
		return model.FeeAudit{}, fmt.Errorf("upper tick: %w", err)
	}
	meta0, err := r.Token(ctx, token0)
	if err != nil {
		return model.FeeAudit{}, fmt.Errorf("token0: %w", err)
	}
	meta1, err := r.Token(ctx, token1)
	if err != nil {
		return model.FeeAudit{}, fmt.Errorf("token1: %w", err)
	}

	fees0, fees1 := v3math.PositionFees(v3math.PositionFeesInput{
		Liquidity:              pos.Liquidity,
		TickLower:              pos.TickLower,
		TickUpper:              pos.TickUpper,
		TickCurrent:            state.Tick,
		FeeGrowthGlobal0:       state.FeeGrowthGlobal0X128,
		FeeGrowthGlobal1:       state.FeeGrowthGlobal1X128,
		LowerFeeGrowthOutside0: lower.FeeGrowthOutside0X128,
		LowerFeeGrowthOutside1: lower.FeeGrowthOutside1X128,
		UpperFeeGrowthOutside0: upper.FeeGrowthOutside0X128,
		UpperFeeGrowthOutside1: upper.FeeGrowthOutside1X128,
		FeeGrowthInside0Last:   pos.FeeGrowthInside0LastX128,
		FeeGrowthInside1Last:   pos.FeeGrowthInside1LastX128,
		Decimals0:              int32(meta0.Decimals),
		Decimals1:              int32(meta1.Decimals),
	})
	owed0 := decimal.NewFromBigInt(pos.TokensOwed0, -int32(meta0.Decimals))
	owed1 := decimal.NewFromBigInt(pos.TokensOwed1, -int32(meta1.Decimals))

	return model.FeeAudit{
		TokenID:      tokenID.String(),
		Pool:         strings.ToLower(pool.Hex()),
		Token0Symbol: meta0.Symbol,
		Token1Symbol: meta1.Symbol,
		TickLower:    pos.TickLower,
		TickUpper:    pos.TickUpper,
		TickCurrent:  state.Tick,
		InRange:      pos.TickLower <= state.Tick && state.Tick < pos.TickUpper,
		Fees0:        owed0.Add(fees0).String(),
		Fees1:        owed1.Add(fees1).String(),
	}, nil
}
