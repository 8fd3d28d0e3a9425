package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "repairhub",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "repairhub",
			Name:      "booking_transitions_total",
			Help:      "Successful booking status transitions by target status.",
		},
		[]string{"to_status"},
	)

	transitionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "repairhub",
			Name:      "booking_transition_failures_total",
			Help:      "Rejected booking transitions by reason.",
		},
		[]string{"reason"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "repairhub",
			Name:      "notifications_total",
			Help:      "Notification delivery attempts by channel and outcome.",
		},
		[]string{"channel", "outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, transitions, transitionFailures, notifications)
	})
}

// IncHTTP increments the request counter for an endpoint/status pair.
func IncHTTP(endpoint, code string) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
}

// IncTransition records a successful transition into toStatus.
func IncTransition(toStatus string) {
	transitions.WithLabelValues(toStatus).Inc()
}

// IncTransitionFailure records a rejected transition.
func IncTransitionFailure(reason string) {
	transitionFailures.WithLabelValues(reason).Inc()
}

// IncNotification records a delivery attempt outcome ("delivered", "retried"
// or "failed").
func IncNotification(channel, outcome string) {
	notifications.WithLabelValues(channel, outcome).Inc()
}
