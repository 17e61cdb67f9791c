package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Recorder exposes fetch and simulation counters. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	rowsFetched    *prometheus.CounterVec
	requestErrors  *prometheus.CounterVec
	retries        *prometheus.CounterVec
	positions      *prometheus.CounterVec
	replayDuration prometheus.Histogram
}

// New registers the backtest metrics with reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		rowsFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lpbacktest_rows_fetched_total",
				Help: "Rows fetched from subgraphs and written to the store",
			},
			[]string{"kind"},
		),
		requestErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lpbacktest_subgraph_errors_total",
				Help: "Failed subgraph requests",
			},
			[]string{"protocol", "query"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lpbacktest_retries_total",
				Help: "Retry attempts by operation",
			},
			[]string{"operation"},
		),
		positions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lpbacktest_simulated_positions_total",
				Help: "Simulated LP positions by outcome",
			},
			[]string{"outcome"},
		),
		replayDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lpbacktest_replay_duration_seconds",
				Help:    "Duration of a single position replay",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// RecordRows counts fetched rows of a kind (trades, liquidity, fee_tiers).
func (r *Recorder) RecordRows(kind string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.rowsFetched.WithLabelValues(kind).Add(float64(n))
}

// RecordRequestError counts a failed subgraph request.
func (r *Recorder) RecordRequestError(protocol, query string) {
	if r == nil {
		return
	}
	r.requestErrors.WithLabelValues(protocol, query).Inc()
}

// RecordRetry counts one retry of an operation.
func (r *Recorder) RecordRetry(operation string) {
	if r == nil {
		return
	}
	r.retries.WithLabelValues(operation).Inc()
}

// RecordPosition counts a simulated position outcome.
func (r *Recorder) RecordPosition(outcome string) {
	if r == nil {
		return
	}
	r.positions.WithLabelValues(outcome).Inc()
}

// ObserveReplay records the duration of one replay.
func (r *Recorder) ObserveReplay(d time.Duration) {
	if r == nil {
		return
	}
	r.replayDuration.Observe(d.Seconds())
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}
