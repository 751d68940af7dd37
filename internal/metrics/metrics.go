package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookingsCreated counts bookings inserted as pending.
	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_created_total",
		Help: "Total bookings created",
	})

	// BookingsConfirmed counts bookings confirmed via payment callback.
	BookingsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_confirmed_total",
		Help: "Total bookings confirmed by verified payment callbacks",
	})

	// BookingsCancelled counts completed cancellation workflows.
	BookingsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_cancelled_total",
		Help: "Total bookings cancelled",
	})

	// CoinCASRetries counts lost races on the optimistic coin balance update.
	CoinCASRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coin_balance_cas_retries_total",
		Help: "Total retries of the conditional coin balance update",
	})

	// CoinCASConflicts counts balance updates that lost both attempts.
	CoinCASConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coin_balance_cas_conflicts_total",
		Help: "Total coin balance updates abandoned after the bounded retry",
	})

	// ReconcilerBackfills counts synthesized placeholder payment facts.
	ReconcilerBackfills = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_backfill_total",
		Help: "Total placeholder payment facts synthesized for legacy bookings",
	})

	// CoinLedgerDrift counts statements where the stored balance and the
	// ledger-implied balance disagreed.
	CoinLedgerDrift = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coin_ledger_drift_total",
		Help: "Total coin statements served with a balance/ledger mismatch",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})
)
