package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksIngested *prometheus.CounterVec
	barsClosed    *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
	alertsFired   *prometheus.CounterVec
	zscore        prometheus.Gauge
}

// New creates a recorder registered with the default registry.
func New() *Recorder { return NewWithRegisterer(prometheus.DefaultRegisterer) }

// NewWithRegisterer creates a recorder registered with reg. A nil reg leaves
// the collectors unregistered.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		ticksIngested: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairflow_ticks_ingested_total",
				Help: "Total number of ticks accepted by the store",
			},
			[]string{"symbol"},
		),
		barsClosed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairflow_bars_closed_total",
				Help: "Total number of OHLC bars closed",
			},
			[]string{"symbol", "timeframe"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairflow_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pairflow_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pairflow_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		alertsFired: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairflow_alerts_fired_total",
				Help: "Total number of alert notifications emitted",
			},
			[]string{"type"},
		),
		zscore: f.NewGauge(prometheus.GaugeOpts{
			Name: "pairflow_spread_zscore",
			Help: "Current z-score of the pair spread",
		}),
	}
}

// RecordTick counts an ingested tick.
func (r *Recorder) RecordTick(symbol string) {
	r.ticksIngested.WithLabelValues(symbol).Inc()
}

// RecordBarClosed counts a closed bar.
func (r *Recorder) RecordBarClosed(symbol, timeframe string) {
	r.barsClosed.WithLabelValues(symbol, timeframe).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordAlertFired(alertType string) {
	r.alertsFired.WithLabelValues(alertType).Inc()
}

func (r *Recorder) RecordZScore(z float64) { r.zscore.Set(z) }

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordTick(string)               {}
func (Nop) RecordBarClosed(string, string)  {}
func (Nop) RecordError(string)              {}
func (Nop) RecordLastPrice(string, float64) {}
func (Nop) RecordLatency(string, float64)   {}
func (Nop) RecordAlertFired(string)         {}
func (Nop) RecordZScore(float64)            {}
