package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	statusChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topup_reconcile_status_checks_total",
		Help: "Status checks issued by reconciliation sessions, labeled by outcome",
	}, []string{"result"})

	statusCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "topup_reconcile_status_check_duration_seconds",
		Help:    "Latency distribution of status checks",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	skippedTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topup_reconcile_skipped_ticks_total",
		Help: "Ticks skipped because a status check was still outstanding",
	})

	staleResponsesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topup_reconcile_stale_responses_total",
		Help: "Status responses discarded because their session moved on",
	})

	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topup_reconcile_outcomes_total",
		Help: "Sessions that reached a final state, labeled by state",
	}, []string{"state"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "topup_reconcile_active_sessions",
		Help: "Sessions currently polling",
	})

	walletSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topup_wallet_sync_total",
		Help: "Wallet refreshes after confirmed payments, labeled by source",
	}, []string{"source"})
)
