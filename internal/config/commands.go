package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"lpBacktest/internal/model"
)

// MigrateConfig holds configuration for the migrate command.
type MigrateConfig struct {
	Common
}

func LoadMigrate(cfgFile string, flags *pflag.FlagSet) (MigrateConfig, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return MigrateConfig{}, err
	}
	cfg := MigrateConfig{Common: readCommon(v)}
	if cfg.PGDSN == "" {
		return cfg, fmt.Errorf("pg dsn is required")
	}
	return cfg, nil
}

// FetchConfig holds configuration for the fetch command.
type FetchConfig struct {
	Common
	Fetch
	Protocol model.Protocol
	Pools    []string
	From     time.Time
	To       time.Time
}

func LoadFetch(cfgFile string, flags *pflag.FlagSet) (FetchConfig, error) {
	v, err := newViper(cfgFile, flags, mergeDefaults(fetchDefaults, map[string]any{"protocol": string(model.ProtocolUniswapV3)}))
	if err != nil {
		return FetchConfig{}, err
	}

	cfg := FetchConfig{
		Common: readCommon(v),
		Fetch:  readFetch(v),
		Pools:  getStringSlice(v, "pool"),
	}
	if cfg.Protocol, err = model.ParseProtocol(v.GetString("protocol")); err != nil {
		return cfg, err
	}
	if cfg.From, err = getTime(v, "from"); err != nil {
		return cfg, err
	}
	if cfg.To, err = getTime(v, "to"); err != nil {
		return cfg, err
	}

	if cfg.PGDSN == "" {
		return cfg, fmt.Errorf("pg dsn is required")
	}
	if len(cfg.Pools) == 0 {
		return cfg, fmt.Errorf("at least one pool is required")
	}
	if _, err := cfg.Endpoint(cfg.Protocol); err != nil {
		return cfg, err
	}
	if !cfg.To.IsZero() && !cfg.From.IsZero() && !cfg.To.After(cfg.From) {
		return cfg, fmt.Errorf("to must be after from")
	}
	return cfg, cfg.Fetch.Validate()
}

// PoolsConfig holds configuration for the pools command.
type PoolsConfig struct {
	Common
	Fetch
	// Search lists subgraph pools by "TOKEN0/TOKEN1" instead of stored pools.
	Search   string
	Protocol model.Protocol
	Limit    int
}

func LoadPools(cfgFile string, flags *pflag.FlagSet) (PoolsConfig, error) {
	v, err := newViper(cfgFile, flags, mergeDefaults(fetchDefaults, map[string]any{
		"protocol": string(model.ProtocolUniswapV3),
		"limit":    20,
	}))
	if err != nil {
		return PoolsConfig{}, err
	}

	cfg := PoolsConfig{
		Common: readCommon(v),
		Fetch:  readFetch(v),
		Search: v.GetString("search"),
		Limit:  v.GetInt("limit"),
	}
	if cfg.Protocol, err = model.ParseProtocol(v.GetString("protocol")); err != nil {
		return cfg, err
	}
	if cfg.Search != "" {
		_, err := cfg.Endpoint(cfg.Protocol)
		return cfg, err
	}
	if cfg.PGDSN == "" {
		return cfg, fmt.Errorf("pg dsn is required")
	}
	return cfg, nil
}

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	Common
	Simulation
	Position model.PositionSpec
	// TradingFile is a YAML/JSON list of overlay strategies.
	TradingFile string
	Out         string
}

func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags, mergeDefaults(simulationDefaults, map[string]any{
		"protocol": string(model.ProtocolUniswapV3),
		"out":      "-",
	}))
	if err != nil {
		return SimulateConfig{}, err
	}

	cfg := SimulateConfig{
		Common:      readCommon(v),
		Simulation:  readSimulation(v),
		TradingFile: v.GetString("trading"),
		Out:         v.GetString("out"),
	}

	protocol, err := model.ParseProtocol(v.GetString("protocol"))
	if err != nil {
		return cfg, err
	}
	open, err := getTime(v, "open")
	if err != nil {
		return cfg, err
	}
	closeAt, err := getTime(v, "close")
	if err != nil {
		return cfg, err
	}

	cfg.Position = model.PositionSpec{
		LPPositionID: v.GetInt("position-id"),
		Protocol:     protocol,
		PoolAddress:  v.GetString("pool"),
		OpenTime:     open.UnixMilli(),
		CloseTime:    closeAt.UnixMilli(),
		AmountUSD:    v.GetFloat64("amount-usd"),
		Range: model.RangeSpec{
			FullRange:       v.GetBool("full-range"),
			UptickPercent:   v.GetFloat64("uptick"),
			DowntickPercent: v.GetFloat64("downtick"),
			Low:             v.GetFloat64("price-low"),
			High:            v.GetFloat64("price-high"),
		},
	}
	if up, down := v.GetFloat64("rebalance-uptick"), v.GetFloat64("rebalance-downtick"); up > 0 || down > 0 {
		cfg.Position.Rebalance = &model.RebalanceSpec{UptickPercent: up, DowntickPercent: down}
	}
	if cfg.Position.LPPositionID == 0 {
		cfg.Position.LPPositionID = 1
	}

	if cfg.PGDSN == "" {
		return cfg, fmt.Errorf("pg dsn is required")
	}
	if cfg.Position.PoolAddress == "" {
		return cfg, fmt.Errorf("pool is required")
	}
	if open.IsZero() || closeAt.IsZero() {
		return cfg, fmt.Errorf("open and close are required")
	}
	if !closeAt.After(open) {
		return cfg, fmt.Errorf("close must be after open")
	}
	return cfg, nil
}

// StrategyConfig holds configuration for the strategy command.
type StrategyConfig struct {
	Common
	Fetch
	Simulation
	Input      string
	Strategies string
	Output     string
	Checks     bool
}

func LoadStrategy(cfgFile string, flags *pflag.FlagSet) (StrategyConfig, error) {
	v, err := newViper(cfgFile, flags, mergeDefaults(fetchDefaults, simulationDefaults, map[string]any{
		"output": "output/",
		"checks": true,
	}))
	if err != nil {
		return StrategyConfig{}, err
	}

	cfg := StrategyConfig{
		Common:     readCommon(v),
		Fetch:      readFetch(v),
		Simulation: readSimulation(v),
		Input:      v.GetString("input"),
		Strategies: v.GetString("strategies"),
		Output:     v.GetString("output"),
		Checks:     v.GetBool("checks"),
	}
	if cfg.PGDSN == "" {
		return cfg, fmt.Errorf("pg dsn is required")
	}
	if cfg.Input == "" {
		return cfg, fmt.Errorf("input pools csv is required")
	}
	if cfg.Strategies == "" {
		return cfg, fmt.Errorf("strategies file is required")
	}
	return cfg, cfg.Fetch.Validate()
}

// VolatilityConfig holds configuration for the volatility command.
type VolatilityConfig struct {
	Common
	Protocol model.Protocol
	Pool     string
	Symbol   string
	From     time.Time
	To       time.Time
	Window   time.Duration
	Step     time.Duration
	Out      string
}

func LoadVolatility(cfgFile string, flags *pflag.FlagSet) (VolatilityConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"protocol":   string(model.ProtocolUniswapV3),
		"vol-window": time.Hour,
		"vol-step":   10 * time.Minute,
	})
	if err != nil {
		return VolatilityConfig{}, err
	}

	cfg := VolatilityConfig{
		Common: readCommon(v),
		Pool:   v.GetString("pool"),
		Symbol: v.GetString("symbol"),
		Window: v.GetDuration("vol-window"),
		Step:   v.GetDuration("vol-step"),
		Out:    v.GetString("out"),
	}
	if cfg.Protocol, err = model.ParseProtocol(v.GetString("protocol")); err != nil {
		return cfg, err
	}
	if cfg.From, err = getTime(v, "from"); err != nil {
		return cfg, err
	}
	if cfg.To, err = getTime(v, "to"); err != nil {
		return cfg, err
	}

	if cfg.PGDSN == "" {
		return cfg, fmt.Errorf("pg dsn is required")
	}
	if cfg.Pool == "" {
		return cfg, fmt.Errorf("pool is required")
	}
	if cfg.From.IsZero() || !cfg.To.After(cfg.From) {
		return cfg, fmt.Errorf("from and to are required and to must be after from")
	}
	if cfg.Window <= 0 || cfg.Step <= 0 {
		return cfg, fmt.Errorf("volatility window and step must be greater than zero")
	}
	return cfg, nil
}

// HedgeConfig holds configuration for the hedge command.
type HedgeConfig struct {
	Common
	Directory  string
	Strategies string
	// Volatility, when positive, replaces the stored series.
	Volatility       float64
	VolatilitySymbol string
	VolatilityKind   model.VolatilityKind
	Out              string
}

func LoadHedge(cfgFile string, flags *pflag.FlagSet) (HedgeConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"out":               "-",
		"volatility-symbol": "EVIV",
		"volatility-kind":   string(model.VolatilityImplied),
	})
	if err != nil {
		return HedgeConfig{}, err
	}

	cfg := HedgeConfig{
		Common:           readCommon(v),
		Directory:        v.GetString("directory"),
		Strategies:       v.GetString("strategies"),
		Volatility:       v.GetFloat64("volatility"),
		VolatilitySymbol: v.GetString("volatility-symbol"),
		VolatilityKind:   model.VolatilityKind(v.GetString("volatility-kind")),
		Out:              v.GetString("out"),
	}
	if cfg.Directory == "" {
		return cfg, fmt.Errorf("directory is required")
	}
	if cfg.Strategies == "" {
		return cfg, fmt.Errorf("strategies file is required")
	}
	switch cfg.VolatilityKind {
	case model.VolatilityImplied, model.VolatilityRealized:
	default:
		return cfg, fmt.Errorf("unknown volatility kind %q", cfg.VolatilityKind)
	}
	return cfg, nil
}

// StatsConfig holds configuration for the stats command.
type StatsConfig struct {
	Common
	Input     string
	Reference string
	Start     time.Time
	End       time.Time
}

func LoadStats(cfgFile string, flags *pflag.FlagSet) (StatsConfig, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return StatsConfig{}, err
	}

	cfg := StatsConfig{
		Common:    readCommon(v),
		Input:     v.GetString("input"),
		Reference: v.GetString("reference"),
	}
	if cfg.Start, err = getTime(v, "start-date"); err != nil {
		return cfg, err
	}
	if cfg.End, err = getTime(v, "end-date"); err != nil {
		return cfg, err
	}
	if cfg.Input == "" || cfg.Reference == "" {
		return cfg, fmt.Errorf("input and reference csv are required")
	}
	return cfg, nil
}

// AuditConfig holds configuration for the audit command.
type AuditConfig struct {
	Common
	RPCURL          string
	PositionManager string
	Factory         string
	TokenIDs        []string
	Block           uint64
	MaxRetries      int
	RetryBackoff    time.Duration
	Out             string
}

// Ethereum mainnet deployments of the Uniswap v3 periphery and factory.
const (
	DefaultPositionManager = "0xC36442b4a4522E871399CD717aBDD847Ab11FE88"
	DefaultFactory         = "0x1F98431c8aD98523631AE4a59f267346ea31F984"
)

func LoadAudit(cfgFile string, flags *pflag.FlagSet) (AuditConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"position-manager": DefaultPositionManager,
		"factory":          DefaultFactory,
		"max-retries":      5,
		"retry-backoff":    500 * time.Millisecond,
		"out":              "-",
	})
	if err != nil {
		return AuditConfig{}, err
	}

	cfg := AuditConfig{
		Common:          readCommon(v),
		RPCURL:          v.GetString("rpc"),
		PositionManager: v.GetString("position-manager"),
		Factory:         v.GetString("factory"),
		TokenIDs:        getStringSlice(v, "token-id"),
		Block:           v.GetUint64("block"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		Out:             v.GetString("out"),
	}
	if cfg.RPCURL == "" {
		return cfg, fmt.Errorf("rpc url is required")
	}
	if len(cfg.TokenIDs) == 0 {
		return cfg, fmt.Errorf("at least one token id is required")
	}
	return cfg, nil
}

// ImportConfig holds configuration for the import command.
type ImportConfig struct {
	Common
	// Series is implied, realized or spot.
	Series string
	Symbol string
	File   string
}

// SeriesSpot selects the spot_prices table in the import command.
const SeriesSpot = "spot"

func LoadImport(cfgFile string, flags *pflag.FlagSet) (ImportConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"series": string(model.VolatilityImplied),
	})
	if err != nil {
		return ImportConfig{}, err
	}

	cfg := ImportConfig{
		Common: readCommon(v),
		Series: strings.ToLower(strings.TrimSpace(v.GetString("series"))),
		Symbol: strings.TrimSpace(v.GetString("symbol")),
		File:   v.GetString("file"),
	}
	if cfg.PGDSN == "" {
		return cfg, fmt.Errorf("pg dsn is required")
	}
	if cfg.File == "" {
		return cfg, fmt.Errorf("file is required")
	}
	switch cfg.Series {
	case string(model.VolatilityImplied), string(model.VolatilityRealized), SeriesSpot:
	default:
		return cfg, fmt.Errorf("unknown series %q", cfg.Series)
	}
	return cfg, nil
}
