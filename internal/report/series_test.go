package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	ms, err := ParseTimestamp("1704067200000")
	require.NoError(t, err)
	require.Equal(t, int64(1704067200000), ms)

	ms, err = ParseTimestamp("2024-01-01")
	require.NoError(t, err)
	require.Equal(t, int64(1704067200000), ms)

	_, err = ParseTimestamp("")
	require.Error(t, err)
	_, err = ParseTimestamp("yesterday")
	require.Error(t, err)
}

func TestReadVolatilityRows(t *testing.T) {
	in := "timestamp,value\n" +
		"2024-01-01T00:00:00Z,55.5\n" +
		"1704070800000,56\n"
	points, err := ReadVolatilityRows(strings.NewReader(in), "EVIV")
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.Equal(t, "EVIV", points[0].Symbol)
	require.Equal(t, int64(1704067200000), points[0].Timestamp)
	require.Equal(t, 55.5, points[0].Value)
	require.Equal(t, int64(1704070800000), points[1].Timestamp)

	points, err = ReadVolatilityRows(strings.NewReader("symbol,timestamp,value\nBTCIV,2024-01-01,40\n"), "")
	require.NoError(t, err)
	require.Equal(t, "BTCIV", points[0].Symbol)

	_, err = ReadVolatilityRows(strings.NewReader("timestamp,value\n2024-01-01,40\n"), "")
	require.Error(t, err, "no symbol")
	_, err = ReadVolatilityRows(strings.NewReader("timestamp,value\n2024-01-01,high\n"), "EVIV")
	require.Error(t, err)
}

func TestReadSpotRows(t *testing.T) {
	in := "timestamp,open,high,low,close,volume\n" +
		"2024-01-01,2000,2050,1990,2040,12.5\n"
	candles, err := ReadSpotRows(strings.NewReader(in), "ETHUSD")
	require.NoError(t, err)
	require.Len(t, candles, 1)
	c := candles[0]
	require.Equal(t, "ETHUSD", c.Symbol)
	require.Equal(t, 2000.0, c.Open)
	require.Equal(t, 2050.0, c.High)
	require.Equal(t, 1990.0, c.Low)
	require.Equal(t, 2040.0, c.Close)
	require.Equal(t, 12.5, c.Volume)

	candles, err = ReadSpotRows(strings.NewReader("timestamp,open,high,low,close\n2024-01-01,1,2,1,2\n"), "ETHUSD")
	require.NoError(t, err)
	require.Zero(t, candles[0].Volume)

	_, err = ReadSpotRows(strings.NewReader("timestamp,open,high,low,close\n2024-01-01,1,1,2,1\n"), "ETHUSD")
	require.Error(t, err)
	_, err = ReadSpotRows(strings.NewReader("timestamp,open,close\n2024-01-01,1,1\n"), "ETHUSD")
	require.Error(t, err)
}
