package indexer

import "fmt"

// TimeWindow is a half-open window [From, To) in unix milliseconds.
type TimeWindow struct {
	From int64
	To   int64
}

// SplitRange splits [from, to) into consecutive windows of at most size
// milliseconds.
func SplitRange(from, to, size int64) ([]TimeWindow, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be greater than zero")
	}
	if to <= from {
		return nil, fmt.Errorf("to must be > from")
	}

	windows := make([]TimeWindow, 0, (to-from+size-1)/size)
	for start := from; start < to; start += size {
		end := start + size
		if end > to {
			end = to
		}
		windows = append(windows, TimeWindow{From: start, To: end})
	}

	return windows, nil
}
