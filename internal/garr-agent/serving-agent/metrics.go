package serving_agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the prediction endpoint metrics.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
	predictedLabels *prometheus.CounterVec
}

// NewMetrics registers the endpoint metrics and the Go runtime collectors
// with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	registerer.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		requestsTotal: promauto.With(registerer).NewCounterVec(prometheus.CounterOpts{
			Name: "garr_predict_requests_total",
			Help: "Number of prediction requests by HTTP status code",
		}, []string{"code"}),
		requestDuration: promauto.With(registerer).NewHistogram(prometheus.HistogramOpts{
			Name:    "garr_predict_duration_seconds",
			Help:    "Latency of prediction requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // From 5ms to ~40s
		}),
		predictedLabels: promauto.With(registerer).NewCounterVec(prometheus.CounterOpts{
			Name: "garr_predicted_label_total",
			Help: "Number of predictions by label",
		}, []string{"label"}),
	}
}

func (m *Metrics) observeRequest(code string, seconds float64) {
	m.requestsTotal.WithLabelValues(code).Inc()
	m.requestDuration.Observe(seconds)
}

func (m *Metrics) observeLabel(label string) {
	m.predictedLabels.WithLabelValues(label).Inc()
}
