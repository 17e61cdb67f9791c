package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"lpBacktest/internal/model"
)

// ParseTimestamp accepts unix milliseconds or anything ParseDate accepts and
// returns unix milliseconds.
func ParseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return 0, err
	}
	if t.IsZero() {
		return 0, fmt.Errorf("empty timestamp")
	}
	return t.UnixMilli(), nil
}

// ReadVolatilityRows reads timestamp,value rows. A symbol column overrides
// symbol per row.
func ReadVolatilityRows(r io.Reader, symbol string) ([]model.VolatilityPoint, error) {
	rows, err := readRows(r, []string{"timestamp", "value"})
	if err != nil {
		return nil, err
	}
	out := make([]model.VolatilityPoint, 0, len(rows))
	for i, row := range rows {
		p := model.VolatilityPoint{Symbol: rowSymbol(row, symbol)}
		if p.Symbol == "" {
			return nil, fmt.Errorf("row %d: symbol is required", i+2)
		}
		if p.Timestamp, err = ParseTimestamp(row["timestamp"]); err != nil {
			return nil, fmt.Errorf("row %d timestamp: %w", i+2, err)
		}
		if p.Value, err = strconv.ParseFloat(row["value"], 64); err != nil {
			return nil, fmt.Errorf("row %d value: %w", i+2, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ReadSpotRows reads timestamp,open,high,low,close[,volume] candles. A symbol
// column overrides symbol per row.
func ReadSpotRows(r io.Reader, symbol string) ([]model.SpotPrice, error) {
	rows, err := readRows(r, []string{"timestamp", "open", "high", "low", "close"})
	if err != nil {
		return nil, err
	}
	out := make([]model.SpotPrice, 0, len(rows))
	for i, row := range rows {
		c := model.SpotPrice{Symbol: rowSymbol(row, symbol)}
		if c.Symbol == "" {
			return nil, fmt.Errorf("row %d: symbol is required", i+2)
		}
		if c.Timestamp, err = ParseTimestamp(row["timestamp"]); err != nil {
			return nil, fmt.Errorf("row %d timestamp: %w", i+2, err)
		}
		for col, dst := range map[string]*float64{
			"open": &c.Open, "high": &c.High, "low": &c.Low, "close": &c.Close, "volume": &c.Volume,
		} {
			if col == "volume" && row[col] == "" {
				continue
			}
			if *dst, err = strconv.ParseFloat(row[col], 64); err != nil {
				return nil, fmt.Errorf("row %d %s: %w", i+2, col, err)
			}
		}
		if c.Low > c.High {
			return nil, fmt.Errorf("row %d: low above high", i+2)
		}
		out = append(out, c)
	}
	return out, nil
}

func rowSymbol(row map[string]string, fallback string) string {
	if s := row["symbol"]; s != "" {
		return s
	}
	return fallback
}
