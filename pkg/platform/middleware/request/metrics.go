package request

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
	Responses       *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EndpointLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "consentd_endpoint_latency_seconds",
			Help:    "Latency of consentd HTTP routes in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"route"}),
		Responses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "consentd_http_responses_total",
			Help: "HTTP responses by route and status class",
		}, []string{"route", "class"}),
	}
}

func (m *Metrics) ObserveEndpointLatency(route string, seconds float64) {
	m.EndpointLatency.WithLabelValues(route).Observe(seconds)
}

func (m *Metrics) IncResponses(route string, status int) {
	m.Responses.WithLabelValues(route, strconv.Itoa(status/100)+"xx").Inc()
}
