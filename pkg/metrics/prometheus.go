package metrics

import (
	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ domrepo.Metrics = (*Recorder)(nil)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	forecasts *prometheus.CounterVec
	errors    *prometheus.CounterVec
	quality   *prometheus.GaugeVec
	latency   *prometheus.HistogramVec
	cache     *prometheus.CounterVec
}

// New registers the forecast metrics on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_forecasts_total",
				Help: "Completed forecasts",
			},
			[]string{"ticker", "model"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_errors_total",
				Help: "Forecast failures by pipeline stage",
			},
			[]string{"stage"},
		),
		quality: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockcast_forecast_quality",
				Help: "Evaluation scores of the latest forecast per ticker",
			},
			[]string{"ticker", "metric"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockcast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
		cache: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_cache_requests_total",
				Help: "Forecast cache lookups",
			},
			[]string{"result"},
		),
	}
}

func (r *Recorder) RecordForecast(ticker, model string) {
	r.forecasts.WithLabelValues(ticker, model).Inc()
}

// RecordError counts a failure in the named stage (fetch, windows, model, ...).
func (r *Recorder) RecordError(stage string) {
	r.errors.WithLabelValues(stage).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordQuality(ticker string, m models.Metrics) {
	r.quality.WithLabelValues(ticker, "mse").Set(m.MSE)
	r.quality.WithLabelValues(ticker, "rmse").Set(m.RMSE)
	r.quality.WithLabelValues(ticker, "mae").Set(m.MAE)
	r.quality.WithLabelValues(ticker, "mape").Set(m.MAPE)
	r.quality.WithLabelValues(ticker, "r2").Set(m.R2)
}

func (r *Recorder) RecordCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cache.WithLabelValues(result).Inc()
}

// Nop discards every measurement.
type Nop struct{}

var _ domrepo.Metrics = Nop{}

func (Nop) RecordForecast(string, string)        {}
func (Nop) RecordError(string)                   {}
func (Nop) RecordLatency(string, float64)        {}
func (Nop) RecordQuality(string, models.Metrics) {}
func (Nop) RecordCache(bool)                     {}
