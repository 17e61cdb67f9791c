package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lpBacktest/internal/model"
)

func testPool() model.Pool {
	tier := int64(3000)
	return model.Pool{ID: 4, Protocol: model.ProtocolUniswapV3, Address: "0xpool", Token0Symbol: "WETH", Token1Symbol: "USDC", FeeTier: &tier}
}

func TestFormatTime(t *testing.T) {
	require.Equal(t, "2024-01-02T03:04:05.678Z", FormatTime(time.Date(2024, 1, 2, 3, 4, 5, 678e6, time.UTC).UnixMilli()))
}

func TestWriteLPPositionsThenRead(t *testing.T) {
	open := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	err := WriteLPPositions(&buf, []model.LPPosition{{
		LPPositionID:   2,
		Protocol:       model.ProtocolUniswapV3,
		PoolAddress:    "0xpool",
		OpenTimestamp:  open.UnixMilli(),
		CloseTimestamp: open.Add(36 * time.Hour).UnixMilli(),
		OpenPrice:      2000.5,
		ClosePrice:     2100,
		AmountUSD:      1000,
		FeesCollected:  1.25,
		ILPercentage:   -0.3,
		PnLPercent:     4.2,
	}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, strings.Join(LPColumns, ","), lines[0])
	require.Equal(t, "2,uniswapv3,0xpool,2024-01-01T00:00:00.000Z,2024-01-02T12:00:00.000Z,2000.5,2100,1000,1.25,-0.3,4.2", lines[1])

	recs, err := ReadLPRecords(&buf)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, 2, recs[0].LPPositionID)
	require.True(t, recs[0].OpenTimestamp.Equal(open))
	require.Equal(t, 4.2, recs[0].PnLPercent)
	require.Equal(t, 2000.5, recs[0].OpenPrice)
}

func TestWriteTradingPositions(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTradingPositions(&buf, []model.TradingPosition{{
		LPPositionID: 1,
		Type:         model.DirectionShort,
		EntryAmount:  500,
		PnLPercent:   2,
		PnLUSD:       10,
		ClosedBy:     model.ClosedByTakeProfit,
		Strategy:     model.TradingStrategy{PositionType: model.DirectionShort, EntryPricePercent: 1, TakeProfitPercent: 2},
	}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	fields := strings.Split(lines[1], ",")
	require.Len(t, fields, len(TradeColumns))
	require.Equal(t, "short", fields[1])
	require.Equal(t, "", fields[9], "missing stop loss is blank")
	require.Equal(t, "takeProfit", fields[12])
}

func TestReadPoolRows(t *testing.T) {
	in := "poolType,poolAddress,startDate,endDate\n" +
		"uniswapv3,0xABC,2024-01-01,2024-02-01T00:00:00Z\n" +
		",,,\n" +
		"thena,0xdef,,\n"
	rows, err := ReadPoolRows(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "0xabc", rows[0].Address)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), rows[0].StartDate)
	require.Equal(t, model.ProtocolThena, rows[1].Protocol)
	require.True(t, rows[1].StartDate.IsZero())

	_, err = ReadPoolRows(strings.NewReader("poolType,poolAddress\nsushi,0x1\n"))
	require.Error(t, err)
	_, err = ReadPoolRows(strings.NewReader("address\n0x1\n"))
	require.Error(t, err)
}

func TestWriteStrategyFilesIncrements(t *testing.T) {
	dir := t.TempDir()
	pool := testPool()

	first, err := WriteStrategyFiles(dir, "wide", pool, nil, nil)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "lp", "wide_WETHUSDC_4_uniswapv3_1.csv")}, first)

	trades := []model.TradingPosition{{LPPositionID: 1, Type: model.DirectionLong}}
	second, err := WriteStrategyFiles(dir, "wide", pool, nil, trades)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "lp", "wide_WETHUSDC_4_uniswapv3_2.csv"),
		filepath.Join(dir, "trades", "wide_WETHUSDC_4_trades_1.csv"),
	}, second)

	files, err := ReadLPDir(filepath.Join(dir, "lp"))
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Empty(t, files[0].Records)
}

func TestJsonlWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "rows.jsonl")
	w := NewJsonlWriter(path)
	require.NoError(t, Write(w, []model.VolatilityPoint{{Symbol: "ETH", Timestamp: 1, Value: 50}}))
	require.NoError(t, Write(w, []model.VolatilityPoint{{Symbol: "ETH", Timestamp: 2, Value: 60}}))
	require.NoError(t, Write[model.VolatilityPoint](w, nil))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var got []model.VolatilityPoint
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var p model.VolatilityPoint
		require.NoError(t, json.Unmarshal(sc.Bytes(), &p))
		got = append(got, p)
	}
	require.Len(t, got, 2)
	require.Equal(t, int64(2), got[1].Timestamp)
}

func TestJsonlStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(NewJsonlStream(&buf), []map[string]int{{"a": 1}}))
	require.Equal(t, "{\"a\":1}\n", buf.String())
}
