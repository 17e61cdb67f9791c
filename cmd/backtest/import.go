package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lpBacktest/internal/config"
	"lpBacktest/internal/model"
	"lpBacktest/internal/report"
	"lpBacktest/internal/storage/postgres"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load an implied volatility, realized volatility or spot price series from CSV",
		RunE:  runImport,
	}
	cmd.Flags().String("series", string(model.VolatilityImplied), "target series (implied, realized, spot)")
	cmd.Flags().String("symbol", "", "series symbol, unless the file has a symbol column")
	cmd.Flags().String("file", "", "CSV file: timestamp,value or timestamp,open,high,low,close,volume")
	return cmd
}

func runImport(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadImport(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	f, err := os.Open(cfg.File)
	if err != nil {
		return err
	}
	defer f.Close()

	var (
		volatility []model.VolatilityPoint
		spot       []model.SpotPrice
	)
	if cfg.Series == config.SeriesSpot {
		spot, err = report.ReadSpotRows(f, cfg.Symbol)
	} else {
		volatility, err = report.ReadVolatilityRows(f, cfg.Symbol)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", cfg.File, err)
	}

	ctx, stop := signalContext()
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	logger.Info("import start",
		zap.String("pg_dsn", config.RedactDSN(cfg.PGDSN)),
		zap.String("series", cfg.Series),
		zap.String("symbol", cfg.Symbol),
		zap.String("file", cfg.File),
		zap.Int("rows", len(volatility)+len(spot)),
	)

	var n int
	if cfg.Series == config.SeriesSpot {
		n, err = store.InsertSpotPrices(ctx, spot)
	} else {
		n, err = store.InsertVolatility(ctx, model.VolatilityKind(cfg.Series), volatility)
	}
	if err != nil {
		return err
	}
	logger.Info("import done", zap.Int("inserted", n))
	return nil
}
