package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const v3PoolABIJSON = `[
  {"inputs": [], "name": "token0", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "token1", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "fee", "outputs": [{"type": "uint24"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "tickSpacing", "outputs": [{"type": "int24"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "liquidity", "outputs": [{"type": "uint128"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "feeGrowthGlobal0X128", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "feeGrowthGlobal1X128", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {
    "inputs": [],
    "name": "slot0",
    "outputs": [
      {"name": "sqrtPriceX96", "type": "uint160"},
      {"name": "tick", "type": "int24"},
      {"name": "observationIndex", "type": "uint16"},
      {"name": "observationCardinality", "type": "uint16"},
      {"name": "observationCardinalityNext", "type": "uint16"},
      {"name": "feeProtocol", "type": "uint8"},
      {"name": "unlocked", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"name": "tick", "type": "int24"}],
    "name": "ticks",
    "outputs": [
      {"name": "liquidityGross", "type": "uint128"},
      {"name": "liquidityNet", "type": "int128"},
      {"name": "feeGrowthOutside0X128", "type": "uint256"},
      {"name": "feeGrowthOutside1X128", "type": "uint256"},
      {"name": "tickCumulativeOutside", "type": "int56"},
      {"name": "secondsPerLiquidityOutsideX128", "type": "uint160"},
      {"name": "secondsOutside", "type": "uint32"},
      {"name": "initialized", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const positionManagerABIJSON = `[
  {
    "inputs": [{"name": "tokenId", "type": "uint256"}],
    "name": "positions",
    "outputs": [
      {"name": "nonce", "type": "uint96"},
      {"name": "operator", "type": "address"},
      {"name": "token0", "type": "address"},
      {"name": "token1", "type": "address"},
      {"name": "fee", "type": "uint24"},
      {"name": "tickLower", "type": "int24"},
      {"name": "tickUpper", "type": "int24"},
      {"name": "liquidity", "type": "uint128"},
      {"name": "feeGrowthInside0LastX128", "type": "uint256"},
      {"name": "feeGrowthInside1LastX128", "type": "uint256"},
      {"name": "tokensOwed0", "type": "uint128"},
      {"name": "tokensOwed1", "type": "uint128"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const factoryABIJSON = `[
  {
    "inputs": [
      {"name": "tokenA", "type": "address"},
      {"name": "tokenB", "type": "address"},
      {"name": "fee", "type": "uint24"}
    ],
    "name": "getPool",
    "outputs": [{"name": "pool", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const erc20ABIStringJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

// Some older tokens (MKR among them) return symbol as bytes32.
const erc20ABIBytes32JSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

type lazyABI struct {
	src  string
	once sync.Once
	abi  abi.ABI
	err  error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.abi, l.err = abi.JSON(strings.NewReader(l.src))
	})
	return l.abi, l.err
}

var (
	v3PoolABI          = &lazyABI{src: v3PoolABIJSON}
	positionManagerABI = &lazyABI{src: positionManagerABIJSON}
	factoryABI         = &lazyABI{src: factoryABIJSON}
	erc20StringABI     = &lazyABI{src: erc20ABIStringJSON}
	erc20Bytes32ABI    = &lazyABI{src: erc20ABIBytes32JSON}
)

// V3PoolABI returns the parsed v3 pool ABI (read methods only).
func V3PoolABI() (abi.ABI, error) { return v3PoolABI.get() }

// PositionManagerABI returns the parsed NonfungiblePositionManager ABI.
func PositionManagerABI() (abi.ABI, error) { return positionManagerABI.get() }

// FactoryABI returns the parsed v3 factory ABI.
func FactoryABI() (abi.ABI, error) { return factoryABI.get() }
