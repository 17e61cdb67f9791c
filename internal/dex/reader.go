package dex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lpBacktest/internal/model"
)

// ErrPositionNotFound is returned when the position manager has no position
// for a token id, or the factory has no pool for its token pair.
var ErrPositionNotFound = errors.New("position not found")

// Caller performs eth_call. chain.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TokenCache caches token metadata by address.
type TokenCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenCache() *TokenCache {
	return &TokenCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// PositionReader reads NonfungiblePositionManager positions together with
// the pool state needed to value their uncollected fees.
type PositionReader struct {
	caller  Caller
	manager common.Address
	factory common.Address
	tokens  *TokenCache
	logger  *zap.Logger
}

func NewPositionReader(caller Caller, manager, factory common.Address, logger *zap.Logger) *PositionReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PositionReader{
		caller:  caller,
		manager: manager,
		factory: factory,
		tokens:  NewTokenCache(),
		logger:  logger,
	}
}

// Position reads positions(tokenId).
func (r *PositionReader) Position(ctx context.Context, tokenID *big.Int, block *big.Int) (model.OnchainPosition, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return model.OnchainPosition{}, fmt.Errorf("parse position manager abi: %w", err)
	}
	values, err := r.call(ctx, r.manager, parsed, "positions", block, tokenID)
	if err != nil {
		return model.OnchainPosition{}, err
	}
	if len(values) < 12 {
		return model.OnchainPosition{}, fmt.Errorf("positions: unexpected output length %d", len(values))
	}

	token0, err := asAddress(values[2])
	if err != nil {
		return model.OnchainPosition{}, fmt.Errorf("token0: %w", err)
	}
	token1, err := asAddress(values[3])
	if err != nil {
		return model.OnchainPosition{}, fmt.Errorf("token1: %w", err)
	}
	if token0 == (common.Address{}) {
		return model.OnchainPosition{}, fmt.Errorf("token %s: %w", tokenID, ErrPositionNotFound)
	}

	ints := make([]*big.Int, 0, 8)
	for _, idx := range []int{4, 5, 6, 7, 8, 9, 10, 11} {
		v, err := asBigInt(values[idx])
		if err != nil {
			return model.OnchainPosition{}, fmt.Errorf("positions field %d: %w", idx, err)
		}
		ints = append(ints, v)
	}
	tickLower, err := int24FromBig(ints[1])
	if err != nil {
		return model.OnchainPosition{}, fmt.Errorf("tick lower: %w", err)
	}
	tickUpper, err := int24FromBig(ints[2])
	if err != nil {
		return model.OnchainPosition{}, fmt.Errorf("tick upper: %w", err)
	}

	return model.OnchainPosition{
		TokenID:                  new(big.Int).Set(tokenID),
		Token0:                   token0.Hex(),
		Token1:                   token1.Hex(),
		Fee:                      uint32(ints[0].Uint64()),
		TickLower:                tickLower,
		TickUpper:                tickUpper,
		Liquidity:                ints[3],
		FeeGrowthInside0LastX128: ints[4],
		FeeGrowthInside1LastX128: ints[5],
		TokensOwed0:              ints[6],
		TokensOwed1:              ints[7],
	}, nil
}

// PoolAddress resolves factory.getPool(token0, token1, fee).
func (r *PositionReader) PoolAddress(ctx context.Context, token0, token1 common.Address, fee uint32, block *big.Int) (common.Address, error) {
	parsed, err := FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse factory abi: %w", err)
	}
	values, err := r.call(ctx, r.factory, parsed, "getPool", block, token0, token1, new(big.Int).SetUint64(uint64(fee)))
	if err != nil {
		return common.Address{}, err
	}
	pool, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, fmt.Errorf("getPool: %w", err)
	}
	if pool == (common.Address{}) {
		return common.Address{}, fmt.Errorf("pool %s/%s/%d: %w", token0.Hex(), token1.Hex(), fee, ErrPositionNotFound)
	}
	return pool, nil
}

// PoolState reads slot0 and both global fee growth accumulators.
func (r *PositionReader) PoolState(ctx context.Context, pool common.Address, block *big.Int) (model.PoolState, error) {
	parsed, err := V3PoolABI()
	if err != nil {
		return model.PoolState{}, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := r.call(ctx, pool, parsed, "slot0", block)
	if err != nil {
		return model.PoolState{}, err
	}
	if len(values) < 2 {
		return model.PoolState{}, fmt.Errorf("slot0: unexpected output length %d", len(values))
	}
	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("sqrt price: %w", err)
	}
	tickBig, err := asBigInt(values[1])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("tick: %w", err)
	}
	tick, err := int24FromBig(tickBig)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("tick: %w", err)
	}

	state := model.PoolState{
		Address:      strings.ToLower(pool.Hex()),
		SqrtPriceX96: sqrtPrice,
		Tick:         tick,
	}
	for _, m := range []struct {
		method string
		dst    **big.Int
	}{
		{"feeGrowthGlobal0X128", &state.FeeGrowthGlobal0X128},
		{"feeGrowthGlobal1X128", &state.FeeGrowthGlobal1X128},
	} {
		values, err := r.call(ctx, pool, parsed, m.method, block)
		if err != nil {
			return model.PoolState{}, err
		}
		v, err := asBigInt(values[0])
		if err != nil {
			return model.PoolState{}, fmt.Errorf("%s: %w", m.method, err)
		}
		*m.dst = v
	}
	return state, nil
}

// Tick reads the fee growth outside an initialized tick.
func (r *PositionReader) Tick(ctx context.Context, pool common.Address, tick int32, block *big.Int) (model.TickState, error) {
	parsed, err := V3PoolABI()
	if err != nil {
		return model.TickState{}, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := r.call(ctx, pool, parsed, "ticks", block, big.NewInt(int64(tick)))
	if err != nil {
		return model.TickState{}, err
	}
	if len(values) < 4 {
		return model.TickState{}, fmt.Errorf("ticks: unexpected output length %d", len(values))
	}
	outside0, err := asBigInt(values[2])
	if err != nil {
		return model.TickState{}, fmt.Errorf("fee growth outside0: %w", err)
	}
	outside1, err := asBigInt(values[3])
	if err != nil {
		return model.TickState{}, fmt.Errorf("fee growth outside1: %w", err)
	}
	return model.TickState{FeeGrowthOutside0X128: outside0, FeeGrowthOutside1X128: outside1}, nil
}

// Token loads ERC-20 decimals and symbol, consulting the cache first.
// A token whose symbol cannot be read keeps an empty symbol.
func (r *PositionReader) Token(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	if meta, ok := r.tokens.Get(token); ok {
		return meta, nil
	}

	stringABI, err := erc20StringABI.get()
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("parse erc20 abi: %w", err)
	}
	bytes32ABI, err := erc20Bytes32ABI.get()
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	meta := model.TokenMeta{Address: token.Hex()}
	values, err := r.call(ctx, token, stringABI, "decimals", nil)
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, fmt.Errorf("decimals: %w", err)
	}
	meta.Decimals = decimals

	if values, err := r.call(ctx, token, stringABI, "symbol", nil); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := r.call(ctx, token, bytes32ABI, "symbol", nil); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else {
		r.logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	r.tokens.Set(token, meta)
	return meta, nil
}

func (r *PositionReader) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty output", method)
	}
	return values, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
