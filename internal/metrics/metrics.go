// Package metrics defines the Prometheus collectors of the prediction
// service. Collectors are registered on a caller-supplied registry so the
// server exposes only its own metrics and tests can use a fresh one.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PredictionMetrics holds all Prometheus metrics for the prediction service.
type PredictionMetrics struct {
	PredictionsTotal *prometheus.CounterVec
	RejectedTotal    *prometheus.CounterVec
	ModelLoaded      prometheus.Gauge
}

// NewPredictionMetrics creates the metrics and registers them with reg.
// Pass a fresh prometheus.NewRegistry() in tests to avoid duplicate
// registration.
func NewPredictionMetrics(reg prometheus.Registerer) *PredictionMetrics {
	factory := promauto.With(reg)
	return &PredictionMetrics{
		PredictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "churn",
			Subsystem: "predict",
			Name:      "predictions_total",
			Help:      "Total number of predictions served, by predicted label.",
		}, []string{"label"}),
		RejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "churn",
			Subsystem: "predict",
			Name:      "rejected_total",
			Help:      "Total number of prediction requests not answered with a label, by reason.",
		}, []string{"reason"}), // reason: empty_body, too_large, bad_json, validation, model_unavailable, model_error
		ModelLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "churn",
			Subsystem: "model",
			Name:      "loaded",
			Help:      "1 when a model is loaded, 0 when the service is degraded.",
		}),
	}
}

// ObservePrediction counts one served label.
func (m *PredictionMetrics) ObservePrediction(label int) {
	m.PredictionsTotal.WithLabelValues(strconv.Itoa(label)).Inc()
}

// ObserveRejected counts one request that got no label.
func (m *PredictionMetrics) ObserveRejected(reason string) {
	m.RejectedTotal.WithLabelValues(reason).Inc()
}

// SetModelLoaded records the model state.
func (m *PredictionMetrics) SetModelLoaded(loaded bool) {
	if loaded {
		m.ModelLoaded.Set(1)
		return
	}
	m.ModelLoaded.Set(0)
}

// HTTPMetrics counts and times requests per matched route.
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics creates the request collectors and registers them with reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(reg)
	return &HTTPMetrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "churn",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests, by route pattern and status code.",
		}, []string{"route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "churn",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency, by route pattern.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"route"}),
	}
}

// ObserveRequest records one served request.
func (m *HTTPMetrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
