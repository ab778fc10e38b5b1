package httpapi

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector counts request outcomes per endpoint family.
type Collector struct {
	requests *prometheus.CounterVec
}

// NewCollector registers the API metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_http_requests_total",
			Help: "API requests by endpoint family and response status.",
		}, []string{"endpoint", "status"}),
	}
	reg.MustRegister(c.requests)
	return c
}

func (c *Collector) record(endpoint string, status int) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
