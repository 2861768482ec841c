// Package metrics exposes prometheus collectors for the checkout pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors the services report into.
type Metrics struct {
	CheckoutAttempts    *prometheus.CounterVec
	CheckoutDuration    prometheus.Histogram
	ReservationFailures prometheus.Counter
	OrdersExpired       prometheus.Counter
}

// New registers the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CheckoutAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_attempts_total",
			Help: "Checkout attempts by payment method and outcome.",
		}, []string{"method", "outcome"}),
		CheckoutDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkout_duration_seconds",
			Help:    "End-to-end duration of checkout requests.",
			Buckets: prometheus.DefBuckets,
		}),
		ReservationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "stock_reservation_failures_total",
			Help: "Stock reservations rejected because of insufficient stock.",
		}),
		OrdersExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "pending_orders_expired_total",
			Help: "Pending orders cancelled by the expiry reaper.",
		}),
	}
}

// NewNop returns metrics bound to a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
