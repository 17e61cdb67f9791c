package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// Client wraps go-ethereum RPC for read-only contract calls.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// Options tunes retry behavior of a Client.
type Options struct {
	MaxRetries int
	Backoff    time.Duration
	Logger     *zap.Logger
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string, opts Options) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	return &Client{
		rpcClient:  rpcClient,
		ethClient:  ethclient.NewClient(rpcClient),
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		logger:     opts.Logger,
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var out uint64
	err := c.retry(ctx, "eth_blockNumber", func() error {
		n, err := c.ethClient.BlockNumber(ctx)
		out = n
		return err
	})
	return out, err
}

// CallContract performs an eth_call. A nil block means latest.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := c.retry(ctx, "eth_call", func() error {
		resp, err := c.ethClient.CallContract(ctx, msg, blockNumber)
		out = resp
		return err
	})
	return out, err
}

func (c *Client) retry(ctx context.Context, method string, fn func() error) error {
	delay := c.backoff
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == c.maxRetries {
			break
		}
		c.logger.Warn("rpc call failed, retrying",
			zap.String("method", method),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay > 0 {
			delay *= 2
		}
	}
	return fmt.Errorf("%s: %w", method, err)
}
