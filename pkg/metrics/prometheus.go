package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	trainings      *prometheus.CounterVec
	predictions    *prometheus.CounterVec
	pagesFetched   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	trainedSamples prometheus.Gauge
	lastTrained    prometheus.Gauge
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		trainings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salespulse_trainings_total",
				Help: "Training runs by result",
			},
			[]string{"result"},
		),
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salespulse_predictions_total",
				Help: "Forecast requests by result and cache outcome",
			},
			[]string{"result", "cache"},
		),
		pagesFetched: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salespulse_source_pages_total",
				Help: "Pages read from the sales source",
			},
			[]string{"source"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salespulse_errors_total",
				Help: "Errors by kind",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "salespulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		trainedSamples: f.NewGauge(prometheus.GaugeOpts{
			Name: "salespulse_model_training_samples",
			Help: "Rows used to fit the live model",
		}),
		lastTrained: f.NewGauge(prometheus.GaugeOpts{
			Name: "salespulse_model_last_trained_timestamp_seconds",
			Help: "Unix time the live model was trained",
		}),
	}
}

// RecordTraining counts a training run.
func (r *Recorder) RecordTraining(result string) {
	r.trainings.WithLabelValues(result).Inc()
}

// RecordPrediction counts a forecast request.
func (r *Recorder) RecordPrediction(result string, cached bool) {
	cache := "miss"
	if cached {
		cache = "hit"
	}
	r.predictions.WithLabelValues(result, cache).Inc()
}

// RecordPage counts one page read from a sales source.
func (r *Recorder) RecordPage(source string) {
	r.pagesFetched.WithLabelValues(source).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency.
func (r *Recorder) RecordLatency(op string, d time.Duration) {
	r.latency.WithLabelValues(op).Observe(d.Seconds())
}

// SetModel publishes the size and age of the live model.
func (r *Recorder) SetModel(samples int, trainedAt time.Time) {
	r.trainedSamples.Set(float64(samples))
	r.lastTrained.Set(float64(trainedAt.Unix()))
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordTraining(string)               {}
func (Nop) RecordPrediction(string, bool)       {}
func (Nop) RecordPage(string)                   {}
func (Nop) RecordError(string)                  {}
func (Nop) RecordLatency(string, time.Duration) {}
func (Nop) SetModel(int, time.Time)             {}
