package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the backtest pipeline.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec   // labels: result=success|failed|rejected
	RunInProgress prometheus.Gauge         // 1 while a run holds the lock
	StageDuration *prometheus.HistogramVec // labels: stage

	// Fetch stage
	InstrumentsTotal *prometheus.CounterVec // labels: result=ok|empty|error
	CandlesFetched   prometheus.Counter

	// Signal + simulation stages
	SignalsTotal prometheus.Counter
	TradesTotal  *prometheus.CounterVec // labels: outcome
	LastRunPnL   prometheus.Gauge

	// Broker circuit breaker
	UpstoxBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	UpstoxBreakerTrips prometheus.Counter

	// Live event delivery
	FanoutDropsTotal *prometheus.CounterVec // labels: subscriber
	WSClients        prometheus.Gauge
}

// NewMetrics creates and registers all metrics on reg
// (prometheus.DefaultRegisterer when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_runs_total",
			Help: "Pipeline runs by result",
		}, []string{"result"}),
		RunInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_run_in_progress",
			Help: "1 while a pipeline run is executing",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backtest_stage_duration_seconds",
			Help:    "Wall time per pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),

		InstrumentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_instruments_fetched_total",
			Help: "Instruments processed by the fetch stage, by result",
		}, []string{"result"}),
		CandlesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_candles_fetched_total",
			Help: "Candles fetched from the broker",
		}),

		SignalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_signals_total",
			Help: "Signals generated",
		}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_trades_total",
			Help: "Simulated trades by outcome",
		}, []string{"outcome"}),
		LastRunPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_last_run_pnl",
			Help: "Total profit/loss per share of the last completed run",
		}),

		UpstoxBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_upstox_circuit_breaker_state",
			Help: "Upstox circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		UpstoxBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_upstox_circuit_breaker_trips_total",
			Help: "Times the Upstox circuit breaker tripped open",
		}),

		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_fanout_drops_total",
			Help: "Run events dropped by the FanOut bus per subscriber",
		}, []string{"subscriber"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_ws_clients",
			Help: "Connected WebSocket clients",
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunInProgress,
		m.StageDuration,
		m.InstrumentsTotal,
		m.CandlesFetched,
		m.SignalsTotal,
		m.TradesTotal,
		m.LastRunPnL,
		m.UpstoxBreakerState,
		m.UpstoxBreakerTrips,
		m.FanoutDropsTotal,
		m.WSClients,
	)

	return m
}
