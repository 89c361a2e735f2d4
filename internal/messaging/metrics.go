package messaging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var handoffTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "order_message_handoffs_total",
		Help: "Order message handoffs by channel and outcome",
	},
	[]string{"handoff", "outcome"},
)
