package gateway

import "github.com/prometheus/client_golang/prometheus"

// Resolution outcomes recorded by the session middleware.
const (
	ResolutionAuthenticated = "authenticated"
	ResolutionAnonymous     = "anonymous"
	ResolutionError         = "error"
)

// Collector tracks gateway level counters. The resolution counter exists
// because session lookup failures are swallowed on purpose; without it a
// provider outage would be invisible to operators.
type Collector struct {
	resolutions    *prometheus.CounterVec
	providerErrors *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_session_resolution_total",
			Help: "Session resolution attempts by outcome.",
		}, []string{"outcome"}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_provider_errors_total",
			Help: "Provider domain errors translated at the handler boundary.",
		}, []string{"endpoint"}),
	}

	reg.MustRegister(
		c.resolutions,
		c.providerErrors,
	)

	return c
}

// RecordResolution counts one middleware resolution with the given outcome.
// Safe on a nil receiver so the collector stays optional.
func (c *Collector) RecordResolution(outcome string) {
	if c == nil {
		return
	}
	c.resolutions.WithLabelValues(outcome).Inc()
}

// RecordProviderError counts one normalized provider error per endpoint.
func (c *Collector) RecordProviderError(endpoint string) {
	if c == nil {
		return
	}
	c.providerErrors.WithLabelValues(endpoint).Inc()
}
