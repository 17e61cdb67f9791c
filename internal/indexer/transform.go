package indexer

import "lpBacktest/internal/model"

// tradeDedup drops trades already seen during a run. Subgraph pagination
// with skip can repeat rows when new swaps land mid-query.
type tradeDedup struct {
	seen map[string]struct{}
}

func newTradeDedup() *tradeDedup {
	return &tradeDedup{seen: make(map[string]struct{})}
}

func (d *tradeDedup) filter(trades []model.Trade) []model.Trade {
	out := trades[:0]
	for _, t := range trades {
		if _, ok := d.seen[t.TxID]; ok {
			continue
		}
		d.seen[t.TxID] = struct{}{}
		out = append(out, t)
	}
	return out
}
