package worker

import (
	"context"
	"sync"
	"time"

	"github.com/winmicro/wallet-engine/internal/observability"
	"github.com/winmicro/wallet-engine/internal/service"
	"go.uber.org/zap"
)

// PendingReportWorker refreshes the pending-transaction gauges and logs
// long-lived pending settlements so operators can chase stuck payments. It
// never transitions transactions; only a confirmation or resolution does.
type PendingReportWorker struct {
	svc      *service.ReconciliationService
	interval time.Duration
	ageWarn  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewPendingReportWorker(svc *service.ReconciliationService) *PendingReportWorker {
	return &PendingReportWorker{
		svc:      svc,
		interval: 5 * time.Minute,
		ageWarn:  time.Hour,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the run interval.
func (w *PendingReportWorker) WithInterval(interval time.Duration) *PendingReportWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// WithAgeWarnThreshold sets how old a pending transaction must be before
// the worker logs a warning for it.
func (w *PendingReportWorker) WithAgeWarnThreshold(age time.Duration) *PendingReportWorker {
	if age > 0 {
		w.ageWarn = age
	}
	return w
}

// Start blocks and reports at the configured interval.
func (w *PendingReportWorker) Start(ctx context.Context) {
	zap.L().Info("pending report worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("pending report worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("pending report worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *PendingReportWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *PendingReportWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *PendingReportWorker) runOnce(ctx context.Context) {
	stats, err := w.svc.PendingBacklog(ctx)
	if err != nil {
		observability.IncrementWorkerRun("pending_report", "failed")
		zap.L().Error("pending report run failed", zap.Error(err))
		return
	}
	now := time.Now().Unix()
	for _, stat := range stats {
		age := time.Duration(now-stat.OldestCreatedAt) * time.Second
		if age >= w.ageWarn {
			zap.L().Warn("stale pending transactions",
				zap.String("transaction_type", stat.TransactionType),
				zap.Int64("count", stat.Count),
				zap.Duration("oldest_age", age),
			)
		}
	}
	observability.IncrementWorkerRun("pending_report", "success")
}
