package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentsInitiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_payments_initiated_total",
		Help: "Payment initiations by result.",
	}, []string{"result"})

	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_reconciliations_total",
		Help: "Status reconciliations by outcome.",
	}, []string{"outcome"})

	PollAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_poll_attempts_total",
		Help: "Gateway status queries issued while reconciling.",
	})

	Fulfillments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_fulfillments_total",
		Help: "Order fulfillments by result.",
	}, []string{"result"})

	GatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_gateway_request_duration_seconds",
		Help:    "Latency of payment gateway calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)
