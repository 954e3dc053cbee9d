package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	settlementCounter     *prometheus.CounterVec
	balanceDriftCounter   *prometheus.CounterVec
	commissionDriftGauge  *prometheus.GaugeVec
	pendingBacklogGauge   *prometheus.GaugeVec
	pendingOldestGauge    *prometheus.GaugeVec
	adminWalletGauge      *prometheus.GaugeVec
	idempotencyCounter    *prometheus.CounterVec
	workerRunCounter      *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		settlementCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_settlement_events_total",
			Help: "Settlement operation outcomes",
		}, []string{"operation", "outcome"})

		balanceDriftCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_balance_drift_total",
			Help: "Stored balances that diverged from the transaction log",
		}, []string{"currency"})

		commissionDriftGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wallet_commission_drift_minor_units",
			Help: "Admin wallet commission counter minus the ledger commission sum",
		}, []string{"currency"})

		pendingBacklogGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wallet_pending_transactions",
			Help: "Transactions currently awaiting settlement",
		}, []string{"transaction_type"})

		pendingOldestGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wallet_pending_oldest_age_seconds",
			Help: "Age of the oldest pending transaction",
		}, []string{"transaction_type"})

		adminWalletGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wallet_admin_balance_minor_units",
			Help: "Platform wallet balance per currency",
		}, []string{"currency"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			settlementCounter,
			balanceDriftCounter,
			commissionDriftGauge,
			pendingBacklogGauge,
			pendingOldestGauge,
			adminWalletGauge,
			idempotencyCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementSettlement(operation, outcome string) {
	if settlementCounter == nil {
		return
	}
	settlementCounter.WithLabelValues(operation, outcome).Inc()
}

func IncrementBalanceDrift(currency string) {
	if balanceDriftCounter == nil {
		return
	}
	balanceDriftCounter.WithLabelValues(currency).Inc()
}

func SetCommissionDrift(currency string, minorUnits int64) {
	if commissionDriftGauge == nil {
		return
	}
	commissionDriftGauge.WithLabelValues(currency).Set(float64(minorUnits))
}

func SetPendingBacklog(transactionType string, count int64) {
	if pendingBacklogGauge == nil {
		return
	}
	pendingBacklogGauge.WithLabelValues(transactionType).Set(float64(count))
}

func SetPendingOldestAge(transactionType string, age time.Duration) {
	if pendingOldestGauge == nil {
		return
	}
	pendingOldestGauge.WithLabelValues(transactionType).Set(age.Seconds())
}

func SetAdminWalletBalance(currency string, minorUnits int64) {
	if adminWalletGauge == nil {
		return
	}
	adminWalletGauge.WithLabelValues(currency).Set(float64(minorUnits))
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
