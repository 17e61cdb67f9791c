package strategy

import (
	"go.uber.org/zap"

	"lpBacktest/internal/model"
	"lpBacktest/internal/stats"
)

// LPStats summarizes LP position returns.
type LPStats struct {
	Count  int     `json:"count"`
	AvgPnL float64 `json:"avgPnl"`
	StdPnL float64 `json:"stdPnl"`
	Sharpe float64 `json:"sharpe"`
}

// TradeStats summarizes one direction of overlay positions.
type TradeStats struct {
	Count       int     `json:"count"`
	AvgPnL      float64 `json:"avgPnl"`
	TotalPnLUSD float64 `json:"totalPnlUSD"`
	Sharpe      float64 `json:"sharpe"`
}

// Summary is the per-pool outcome of a strategy.
type Summary struct {
	LP              LPStats    `json:"lp"`
	Long            TradeStats `json:"long"`
	Short           TradeStats `json:"short"`
	TotalPnLUSD     float64    `json:"totalPnlUSD"`
	TotalPnLPercent float64    `json:"totalPnlPercent"`
}

// Summarize computes LP and overlay statistics. amountUSD is the deposit the
// combined trading return is measured against.
func Summarize(lp []model.LPPosition, trades []model.TradingPosition, amountUSD float64) Summary {
	pnl := make([]float64, 0, len(lp))
	for _, p := range lp {
		pnl = append(pnl, p.PnLPercent)
	}

	s := Summary{
		LP: LPStats{
			Count:  len(lp),
			AvgPnL: stats.Mean(pnl),
			StdPnL: stats.StdDev(pnl),
			Sharpe: stats.Sharpe(pnl),
		},
		Long:  directionStats(trades, model.DirectionLong),
		Short: directionStats(trades, model.DirectionShort),
	}
	s.TotalPnLUSD = s.Long.TotalPnLUSD + s.Short.TotalPnLUSD
	if len(trades) > 0 && amountUSD > 0 {
		s.TotalPnLPercent = s.TotalPnLUSD / amountUSD * 100
	}
	return s
}

func directionStats(trades []model.TradingPosition, dir model.Direction) TradeStats {
	var (
		ts  TradeStats
		pnl []float64
	)
	for _, t := range trades {
		if t.Type != dir {
			continue
		}
		ts.Count++
		ts.TotalPnLUSD += t.PnLUSD
		pnl = append(pnl, t.PnLPercent)
	}
	ts.AvgPnL = stats.Mean(pnl)
	ts.Sharpe = stats.Sharpe(pnl)
	return ts
}

// Fields renders the summary as log fields.
func (s Summary) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("lp_positions", s.LP.Count),
		zap.Float64("lp_avg_pnl_pct", s.LP.AvgPnL),
		zap.Float64("lp_std_pnl_pct", s.LP.StdPnL),
		zap.Float64("lp_sharpe", s.LP.Sharpe),
		zap.Int("long_positions", s.Long.Count),
		zap.Float64("long_avg_pnl_pct", s.Long.AvgPnL),
		zap.Float64("long_total_pnl_usd", s.Long.TotalPnLUSD),
		zap.Float64("long_sharpe", s.Long.Sharpe),
		zap.Int("short_positions", s.Short.Count),
		zap.Float64("short_avg_pnl_pct", s.Short.AvgPnL),
		zap.Float64("short_total_pnl_usd", s.Short.TotalPnLUSD),
		zap.Float64("short_sharpe", s.Short.Sharpe),
		zap.Float64("trading_total_pnl_usd", s.TotalPnLUSD),
		zap.Float64("trading_total_pnl_pct", s.TotalPnLPercent),
	}
}
