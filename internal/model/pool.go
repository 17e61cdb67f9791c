package model

import (
	"fmt"
	"strings"
)

// Protocol selects the subgraph schema a pool is fetched with.
type Protocol string

const (
	ProtocolUniswapV3 Protocol = "uniswapv3"
	ProtocolThena     Protocol = "thena"
)

// Protocols lists every supported protocol.
func Protocols() []Protocol {
	return []Protocol{ProtocolUniswapV3, ProtocolThena}
}

// ParseProtocol maps a pool type tag to a Protocol.
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(strings.ToLower(strings.TrimSpace(s))) {
	case ProtocolUniswapV3:
		return ProtocolUniswapV3, nil
	case ProtocolThena:
		return ProtocolThena, nil
	default:
		return "", fmt.Errorf("unknown protocol %q", s)
	}
}

// Pool represents stored pool metadata. It is immutable once fetched.
type Pool struct {
	ID             int64    `json:"id"`
	Protocol       Protocol `json:"protocol"`
	Address        string   `json:"address"`
	Token0Symbol   string   `json:"token0_symbol"`
	Token1Symbol   string   `json:"token1_symbol"`
	Token0Decimals int32    `json:"token0_decimals"`
	Token1Decimals int32    `json:"token1_decimals"`
	// FeeTier is nil for dynamic-fee protocols.
	FeeTier   *int64 `json:"fee_tier,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Dynamic reports whether the pool's fee tier varies hourly.
func (p Pool) Dynamic() bool {
	return p.FeeTier == nil
}

// Pair returns the symbol pair used in report file names.
func (p Pool) Pair() string {
	return p.Token0Symbol + p.Token1Symbol
}
