package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the notification pipeline. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Notifications by final disposition: success, pending, error, duplicate, rejected
	Notifications *prometheus.CounterVec

	// Hash verification failures
	AuthFailures prometheus.Counter

	// Follow-up debits by result: accepted, rejected
	FollowUps *prometheus.CounterVec

	// End-to-end handling time of one notification
	HandleLatency prometheus.Histogram
}

// New registers the pipeline metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_notifications_total",
			Help: "Processor notifications handled, by outcome and payment method",
		}, []string{"outcome", "method"}),

		AuthFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "payment_notification_auth_failures_total",
			Help: "Notifications rejected because the security hash did not match",
		}),

		FollowUps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_followup_debits_total",
			Help: "Debits sent after a registration, by result",
		}, []string{"result"}),

		HandleLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "payment_notification_duration_seconds",
			Help:    "Duration of notification handling including the follow-up debit",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncNotification records one handled notification.
func (m *Metrics) IncNotification(outcome, method string) {
	if m != nil {
		m.Notifications.WithLabelValues(outcome, method).Inc()
	}
}

// IncAuthFailure records a hash mismatch.
func (m *Metrics) IncAuthFailure() {
	if m != nil {
		m.AuthFailures.Inc()
	}
}

// IncFollowUp records a follow-up debit result.
func (m *Metrics) IncFollowUp(result string) {
	if m != nil {
		m.FollowUps.WithLabelValues(result).Inc()
	}
}

// ObserveHandleLatency records the total handling duration.
func (m *Metrics) ObserveHandleLatency(d time.Duration) {
	if m != nil {
		m.HandleLatency.Observe(d.Seconds())
	}
}
