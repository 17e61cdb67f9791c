package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"lpBacktest/internal/model"
)

const envPrefix = "LPBT"

// Common holds settings shared by every command.
type Common struct {
	PGDSN       string
	LogLevel    string
	MetricsAddr string
}

// Fetch holds subgraph and fetch-runner settings.
type Fetch struct {
	Endpoints         map[model.Protocol]string
	BatchSize         int
	RequestDelay      time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	Window            time.Duration
	Checkpoint        string
	CheckpointEnabled bool
	Incremental       bool
}

// Simulation holds simulator settings.
type Simulation struct {
	DefaultPositionUSD float64
	MinTradeUSD        float64
	PricePointMinUSD   float64
}

// LoadDotEnv loads a .env file into the process environment. A missing file
// is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// newViper merges defaults, the config file, environment variables and
// flags, in increasing priority.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

var fetchDefaults = map[string]any{
	"batch-size":         1000,
	"request-delay":      time.Second,
	"max-retries":        5,
	"retry-backoff":      500 * time.Millisecond,
	"window":             24 * time.Hour,
	"checkpoint":         "./data/checkpoint.json",
	"checkpoint-enabled": true,
}

var simulationDefaults = map[string]any{
	"default-position-usd": 1000.0,
	"min-trade-usd":        0.0,
	"price-point-min-usd":  0.0,
}

func mergeDefaults(sets ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}

func readCommon(v *viper.Viper) Common {
	return Common{
		PGDSN:       v.GetString("pg-dsn"),
		LogLevel:    v.GetString("log-level"),
		MetricsAddr: v.GetString("metrics-addr"),
	}
}

func readFetch(v *viper.Viper) Fetch {
	return Fetch{
		Endpoints: map[model.Protocol]string{
			model.ProtocolUniswapV3: v.GetString("subgraph-uniswapv3"),
			model.ProtocolThena:     v.GetString("subgraph-thena"),
		},
		BatchSize:         v.GetInt("batch-size"),
		RequestDelay:      v.GetDuration("request-delay"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Window:            v.GetDuration("window"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		Incremental:       v.GetBool("incremental"),
	}
}

func readSimulation(v *viper.Viper) Simulation {
	return Simulation{
		DefaultPositionUSD: v.GetFloat64("default-position-usd"),
		MinTradeUSD:        v.GetFloat64("min-trade-usd"),
		PricePointMinUSD:   v.GetFloat64("price-point-min-usd"),
	}
}

// Validate checks the fetch knobs.
func (f Fetch) Validate() error {
	if f.BatchSize <= 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if f.Window <= 0 {
		return fmt.Errorf("window must be greater than zero")
	}
	return nil
}

// Endpoint returns the subgraph URL of a protocol.
func (f Fetch) Endpoint(p model.Protocol) (string, error) {
	ep := f.Endpoints[p]
	if ep == "" {
		return "", fmt.Errorf("subgraph endpoint for %s is required (subgraph-%s)", p, p)
	}
	return ep, nil
}

// RedactDSN hides the password of a Postgres DSN for logging.
func RedactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// ParseTime accepts RFC3339, YYYY-MM-DD (UTC) or unix milliseconds. An empty
// string is the zero time.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}

func getTime(v *viper.Viper, key string) (time.Time, error) {
	t, err := ParseTime(v.GetString(key))
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
