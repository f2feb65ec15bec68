package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector aggregates the gateway's prometheus metrics. A nil
// *Collector is valid and records nothing, so callers never need to
// guard their instrumentation.
type Collector struct {
	backendStatus  *prometheus.CounterVec
	sessionCleared prometheus.Counter
	loginFailures  prometheus.Counter
	pollSuccess    prometheus.Counter
	pollFailure    prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		backendStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "omega_backend_responses_total",
			Help: "Backend responses by HTTP status code.",
		}, []string{"status_code"}),
		sessionCleared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "omega_session_cleared_total",
			Help: "Sessions destroyed after a 401 from the backend.",
		}),
		loginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "omega_login_failures_total",
			Help: "Rejected login attempts.",
		}),
		pollSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "omega_notification_poll_success_total",
			Help: "Successful notification poll cycles.",
		}),
		pollFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "omega_notification_poll_failure_total",
			Help: "Failed notification poll cycles.",
		}),
	}
	reg.MustRegister(c.backendStatus, c.sessionCleared, c.loginFailures, c.pollSuccess, c.pollFailure)
	return c
}

func (c *Collector) RecordBackendStatus(code int) {
	if c == nil {
		return
	}
	c.backendStatus.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (c *Collector) RecordSessionCleared() {
	if c == nil {
		return
	}
	c.sessionCleared.Inc()
}

func (c *Collector) RecordLoginFailure() {
	if c == nil {
		return
	}
	c.loginFailures.Inc()
}

func (c *Collector) RecordPoll(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.pollSuccess.Inc()
	} else {
		c.pollFailure.Inc()
	}
}
