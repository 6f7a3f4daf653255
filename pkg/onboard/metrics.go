package onboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the simple business counters of the onboarding API.
type Metrics struct {
	Requests *prometheus.CounterVec
	Success  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_api_requests_total",
			Help: "Total number of onboarding API requests",
		}, []string{"endpoint"}),
		Success: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_api_success_total",
			Help: "Total number of successful onboarding operations",
		}, []string{"customer_type"}),
	}
}
