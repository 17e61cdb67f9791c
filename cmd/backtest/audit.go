package main

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpBacktest/internal/chain"
	"lpBacktest/internal/config"
	"lpBacktest/internal/dex"
	"lpBacktest/internal/model"
	"lpBacktest/internal/report"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report uncollected fees of live NonfungiblePositionManager positions",
		RunE:  runAudit,
	}
	cmd.Flags().String("rpc", "", "Ethereum RPC URL")
	cmd.Flags().String("position-manager", config.DefaultPositionManager, "NonfungiblePositionManager address")
	cmd.Flags().String("factory", config.DefaultFactory, "v3 factory address")
	cmd.Flags().StringSlice("token-id", nil, "position token ids (comma-separated)")
	cmd.Flags().Uint64("block", 0, "block number, 0 means latest")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts per RPC call")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("out", "-", "output JSONL path, - for stdout")
	return cmd
}

func runAudit(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadAudit(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	for _, addr := range []string{cfg.PositionManager, cfg.Factory} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid address: %s", addr)
		}
	}
	tokenIDs := make([]*big.Int, 0, len(cfg.TokenIDs))
	for _, raw := range cfg.TokenIDs {
		id, ok := new(big.Int).SetString(raw, 10)
		if !ok || id.Sign() < 0 {
			return fmt.Errorf("invalid token id: %s", raw)
		}
		tokenIDs = append(tokenIDs, id)
	}

	ctx, stop := signalContext()
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL, chain.Options{
		MaxRetries: cfg.MaxRetries,
		Backoff:    cfg.RetryBackoff,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	block := cfg.Block
	if block == 0 {
		if block, err = client.LatestBlockNumber(ctx); err != nil {
			return err
		}
	}
	blockNumber := new(big.Int).SetUint64(block)

	logger.Info("audit start",
		zap.String("position_manager", cfg.PositionManager),
		zap.String("factory", cfg.Factory),
		zap.Int("positions", len(tokenIDs)),
		zap.Uint64("block", block),
		zap.String("out", cfg.Out),
	)

	reader := dex.NewPositionReader(client, common.HexToAddress(cfg.PositionManager), common.HexToAddress(cfg.Factory), logger)
	audits := make([]model.FeeAudit, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		audit, err := reader.Audit(ctx, id, blockNumber)
		if err != nil {
			return fmt.Errorf("audit token %s: %w", id, err)
		}
		logger.Debug("position audited",
			zap.String("token_id", audit.TokenID),
			zap.String("pool", audit.Pool),
			zap.Bool("in_range", audit.InRange),
		)
		audits = append(audits, audit)
	}
	return report.Write(report.NewJsonlWriter(cfg.Out), audits)
}
