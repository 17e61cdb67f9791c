package indexer

import (
	"strconv"

	"lpBacktest/internal/model"
)

const hourMillis = int64(60 * 60 * 1000)

// CandleSymbol names the hourly price series derived from a pool's trades.
func CandleSymbol(pool model.Pool) string {
	return pool.Pair() + "_" + strconv.FormatInt(pool.ID, 10)
}

// candleHours widens a window to whole hours: the start of the hour holding
// w.From up to the end of the hour holding the last millisecond of w.
func candleHours(w TimeWindow) (int64, int64) {
	from := w.From - w.From%hourMillis
	to := w.To
	if rem := to % hourMillis; rem != 0 {
		to += hourMillis - rem
	}
	return from, to
}
