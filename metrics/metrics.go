package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_created_total",
		Help: "Payments stored by the idempotency guard (deduplicated submissions excluded).",
	})

	PaymentsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_settled_total",
		Help: "Payments moved out of PENDING by the settlement consumer, by resulting status.",
	}, []string{"status"})

	PaymentsDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_dead_lettered_total",
		Help: "Deliveries recorded in the dead-letter store.",
	})

	PaymentsReplayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_replayed_total",
		Help: "Dead-lettered payments re-submitted for processing.",
	})
)
