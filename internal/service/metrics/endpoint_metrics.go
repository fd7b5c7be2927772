package metrics

import (
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    EndpointLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "salespulse",
            Subsystem: "forecast",
            Name:      "endpoint_latency_seconds",
            Help:      "Latency of forecast endpoints",
            Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
        },
        []string{"endpoint"},
    )

    EndpointErrors = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "salespulse",
            Subsystem: "forecast",
            Name:      "endpoint_errors_total",
            Help:      "Errors by forecast endpoint and error code",
        },
        []string{"endpoint", "code"},
    )
)

// Register adds the collectors to reg once per process.
func Register(reg prometheus.Registerer) {
    once.Do(func() {
        reg.MustRegister(EndpointLatency, EndpointErrors)
    })
}

// ObserveSince records the latency of endpoint measured from start.
func ObserveSince(endpoint string, start time.Time) {
    EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// CountError increments the error counter for endpoint and code.
func CountError(endpoint, code string) {
    EndpointErrors.WithLabelValues(endpoint, code).Inc()
}
