package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts counts BeginLogin calls by outcome (started, popup_blocked, storage_failed, navigate_failed).
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketfront_wallet_login_attempts_total",
			Help: "The total number of wallet login attempts.",
		},
		[]string{"outcome"},
	)

	// LoginsFinalized counts attempts that reached a terminal state in the opener.
	LoginsFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketfront_wallet_logins_finalized_total",
			Help: "The total number of wallet login attempts finalized by the opener.",
		},
		[]string{"result"},
	)

	// CallbackOutcomes counts callback page results by phase and error code.
	CallbackOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketfront_wallet_callback_outcomes_total",
			Help: "The total number of wallet callback results.",
		},
		[]string{"phase", "code"},
	)

	// ExchangeDuration is a histogram of token exchange latency.
	ExchangeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketfront_wallet_exchange_duration_seconds",
			Help:    "A histogram of the backend token exchange duration.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
		[]string{"result"},
	)

	// RelayDropped counts messages the relay ignored.
	RelayDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketfront_relay_messages_dropped_total",
			Help: "The total number of cross-window messages ignored by the relay.",
		},
		[]string{"reason"},
	)

	// PendingLogins is the number of login attempts waiting for a terminal message.
	PendingLogins = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketfront_wallet_logins_pending",
			Help: "The number of wallet login attempts waiting for the login window.",
		},
	)

	// HousekeepingRemoved counts rows removed by housekeeping jobs.
	HousekeepingRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketfront_housekeeping_removed_total",
			Help: "The total number of stale records removed by housekeeping.",
		},
		[]string{"job"},
	)

	// TasksFailed counts worker tasks moved to the dead letter list.
	TasksFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketfront_worker_tasks_failed_total",
			Help: "The total number of worker tasks that exhausted their retries.",
		},
	)
)
