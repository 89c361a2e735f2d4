package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Checkout outcomes.
const (
	outcomePlaced             = "placed"
	outcomeRejected           = "rejected"
	outcomeFailed             = "failed"
	outcomeCompensated        = "compensated"
	outcomeCompensationFailed = "compensation_failed"
)

var (
	checkoutTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_total",
			Help: "Checkouts by outcome",
		},
		[]string{"outcome"},
	)

	checkoutOrderValue = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkout_order_value_minor_units",
			Help:    "Subtotal of placed orders in minor currency units",
			Buckets: prometheus.ExponentialBuckets(500, 2, 12),
		},
	)
)
