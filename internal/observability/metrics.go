package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_reservations_total",
			Help: "Reservation attempts by outcome (reserved, sold_out, error)",
		},
		[]string{"outcome"},
	)

	VoucherRedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_voucher_redemptions_total",
			Help: "Voucher redemption attempts by outcome",
		},
		[]string{"outcome"},
	)

	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_webhook_events_total",
			Help: "Payment gateway callbacks by result (recorded, duplicate, invalid_signature, ignored, error)",
		},
		[]string{"result"},
	)

	SideEffectFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_side_effect_failures_total",
			Help: "Best-effort side effect failures by kind (email, list_sync, publish, audit)",
		},
		[]string{"kind"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkout_db_tx_seconds",
			Help:    "Duration of row-locked store transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_rate_limit_exceeded_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)
