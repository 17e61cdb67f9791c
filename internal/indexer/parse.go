package indexer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParsePoolAddress validates a hex pool address and returns it lower-cased,
// which is how subgraphs key pools.
func ParsePoolAddress(input string) (string, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return "", fmt.Errorf("invalid pool address: %q", input)
	}
	return strings.ToLower(common.HexToAddress(input).Hex()), nil
}

// ParsePoolAddresses converts a list of addresses, skipping blanks.
func ParsePoolAddresses(inputs []string) ([]string, error) {
	addresses := make([]string, 0, len(inputs))
	for _, input := range inputs {
		if strings.TrimSpace(input) == "" {
			continue
		}
		addr, err := ParsePoolAddress(input)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}
