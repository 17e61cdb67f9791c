package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"lpBacktest/internal/model"
	"lpBacktest/internal/options"
)

// TimeLayout is how report timestamps are written: RFC3339, milliseconds, UTC.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	LPColumns = []string{
		"lpPositionId", "poolType", "poolAddress", "openTimestamp", "closeTimestamp",
		"openPrice", "closePrice", "amountUSD", "feesCollected", "ILPercentage", "pnlPercent",
	}
	TradeColumns = []string{
		"lpPositionId", "type", "openTimestamp", "closeTimestamp", "openPrice", "closePrice",
		"entryAmount", "entryPricePercent", "takeProfitPercent", "stopLossPercent",
		"pnlPercent", "pnlUSD", "closedBy",
	}
	PoolColumns = []string{"poolType", "poolAddress", "startDate", "endDate"}
)

// FormatTime renders unix milliseconds in TimeLayout.
func FormatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(TimeLayout)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteLPPositions writes LP positions with a header row.
func WriteLPPositions(w io.Writer, positions []model.LPPosition) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LPColumns); err != nil {
		return err
	}
	for _, p := range positions {
		row := []string{
			strconv.Itoa(p.LPPositionID),
			string(p.Protocol),
			p.PoolAddress,
			FormatTime(p.OpenTimestamp),
			FormatTime(p.CloseTimestamp),
			formatFloat(p.OpenPrice),
			formatFloat(p.ClosePrice),
			formatFloat(p.AmountUSD),
			formatFloat(p.FeesCollected),
			formatFloat(p.ILPercentage),
			formatFloat(p.PnLPercent),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTradingPositions writes overlay positions with a header row.
func WriteTradingPositions(w io.Writer, positions []model.TradingPosition) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TradeColumns); err != nil {
		return err
	}
	for _, p := range positions {
		stopLoss := ""
		if p.Strategy.StopLossPercent != nil {
			stopLoss = formatFloat(*p.Strategy.StopLossPercent)
		}
		row := []string{
			strconv.Itoa(p.LPPositionID),
			string(p.Type),
			FormatTime(p.OpenTimestamp),
			FormatTime(p.CloseTimestamp),
			formatFloat(p.OpenPrice),
			formatFloat(p.ClosePrice),
			formatFloat(p.EntryAmount),
			formatFloat(p.Strategy.EntryPricePercent),
			formatFloat(p.Strategy.TakeProfitPercent),
			stopLoss,
			formatFloat(p.PnLPercent),
			formatFloat(p.PnLUSD),
			string(p.ClosedBy),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// NextFreePath returns dir/<prefix>_<n>.csv for the smallest n >= 1 that
// does not exist yet.
func NextFreePath(dir, prefix string) (string, error) {
	for n := 1; ; n++ {
		path := filepath.Join(dir, fmt.Sprintf("%s_%d.csv", prefix, n))
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return path, nil
			}
			return "", err
		}
	}
}

// LPFilePrefix names an LP report: <strategy>_<t0><t1>_<poolID>_<protocol>.
func LPFilePrefix(strategy string, pool model.Pool) string {
	return fmt.Sprintf("%s_%s_%d_%s", strategy, pool.Pair(), pool.ID, pool.Protocol)
}

// TradesFilePrefix names a trades report: <strategy>_<t0><t1>_<poolID>_trades.
func TradesFilePrefix(strategy string, pool model.Pool) string {
	return fmt.Sprintf("%s_%s_%d_trades", strategy, pool.Pair(), pool.ID)
}

// WriteStrategyFiles writes lp/ and trades/ reports under dir and returns
// the paths written. The trades file is skipped when there are no trades.
func WriteStrategyFiles(dir, strategy string, pool model.Pool, lp []model.LPPosition, trades []model.TradingPosition) ([]string, error) {
	lpDir := filepath.Join(dir, "lp")
	tradesDir := filepath.Join(dir, "trades")
	for _, d := range []string{lpDir, tradesDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create report dir: %w", err)
		}
	}

	var written []string
	lpPath, err := NextFreePath(lpDir, LPFilePrefix(strategy, pool))
	if err != nil {
		return nil, err
	}
	if err := writeFile(lpPath, func(w io.Writer) error { return WriteLPPositions(w, lp) }); err != nil {
		return nil, err
	}
	written = append(written, lpPath)

	if len(trades) > 0 {
		tradesPath, err := NextFreePath(tradesDir, TradesFilePrefix(strategy, pool))
		if err != nil {
			return written, err
		}
		if err := writeFile(tradesPath, func(w io.Writer) error { return WriteTradingPositions(w, trades) }); err != nil {
			return written, err
		}
		written = append(written, tradesPath)
	}
	return written, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// readRows reads a CSV with a header into maps keyed by column name, skipping
// blank lines.
func readRows(r io.Reader, required []string) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var rows []map[string]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}
		row := make(map[string]string, len(index))
		for col, i := range index {
			if i < len(rec) {
				row[col] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// PoolRow is one line of a pools input file. Zero times mean "pool creation"
// and "now".
type PoolRow struct {
	Protocol  model.Protocol
	Address   string
	StartDate time.Time
	EndDate   time.Time
}

// ReadPoolRows reads poolType,poolAddress,startDate,endDate rows. Rows with
// an empty poolType are skipped.
func ReadPoolRows(r io.Reader) ([]PoolRow, error) {
	rows, err := readRows(r, PoolColumns[:2])
	if err != nil {
		return nil, err
	}
	out := make([]PoolRow, 0, len(rows))
	for i, row := range rows {
		if row["poolType"] == "" {
			continue
		}
		protocol, err := model.ParseProtocol(row["poolType"])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		pr := PoolRow{Protocol: protocol, Address: strings.ToLower(row["poolAddress"])}
		if pr.StartDate, err = ParseDate(row["startDate"]); err != nil {
			return nil, fmt.Errorf("row %d start date: %w", i+2, err)
		}
		if pr.EndDate, err = ParseDate(row["endDate"]); err != nil {
			return nil, fmt.Errorf("row %d end date: %w", i+2, err)
		}
		out = append(out, pr)
	}
	return out, nil
}

// ParseDate accepts RFC3339 (with or without fractional seconds) or a bare
// YYYY-MM-DD date in UTC. An empty string is the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ReadLPRecords reads an LP report.
func ReadLPRecords(r io.Reader) ([]options.LPRecord, error) {
	rows, err := readRows(r, []string{"openTimestamp", "closeTimestamp", "pnlPercent"})
	if err != nil {
		return nil, err
	}

	out := make([]options.LPRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := lpRecordFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func lpRecordFromRow(row map[string]string) (options.LPRecord, error) {
	var rec options.LPRecord
	var err error
	if v := row["lpPositionId"]; v != "" {
		if rec.LPPositionID, err = strconv.Atoi(v); err != nil {
			return rec, fmt.Errorf("lpPositionId: %w", err)
		}
	}
	rec.PoolAddress = row["poolAddress"]
	if rec.OpenTimestamp, err = ParseDate(row["openTimestamp"]); err != nil {
		return rec, err
	}
	if rec.CloseTimestamp, err = ParseDate(row["closeTimestamp"]); err != nil {
		return rec, err
	}
	for col, dst := range map[string]*float64{
		"openPrice":     &rec.OpenPrice,
		"closePrice":    &rec.ClosePrice,
		"amountUSD":     &rec.AmountUSD,
		"feesCollected": &rec.FeesCollected,
		"pnlPercent":    &rec.PnLPercent,
	} {
		if row[col] == "" {
			continue
		}
		if *dst, err = strconv.ParseFloat(row[col], 64); err != nil {
			return rec, fmt.Errorf("%s: %w", col, err)
		}
	}
	return rec, nil
}

// LPFile is the records of one LP report file.
type LPFile struct {
	Name    string
	Records []options.LPRecord
}

// ReadLPDir reads every .csv file in dir in name order.
func ReadLPDir(dir string) ([]LPFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".csv") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	files := make([]LPFile, 0, len(names))
	for _, name := range names {
		recs, err := ReadLPFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		files = append(files, LPFile{Name: name, Records: recs})
	}
	return files, nil
}

// ReadLPFile reads one LP report from disk.
func ReadLPFile(path string) ([]options.LPRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	recs, err := ReadLPRecords(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return recs, nil
}
