package service

import (
	"context"
	"time"

	"github.com/winmicro/wallet-engine/internal/observability"
	"github.com/winmicro/wallet-engine/internal/repository"
	"go.uber.org/zap"
)

// ReconciliationService cross-checks the stored balances and the admin
// wallet counters against the transaction log. It reports drift through
// logs and metrics and never mutates anything; corrections are a manual
// operator decision.
type ReconciliationService struct {
	store QueryStore
}

func NewReconciliationService(store QueryStore) *ReconciliationService {
	return &ReconciliationService{store: store}
}

// DriftReport is the outcome of one reconciliation sweep.
type DriftReport struct {
	BalanceDrift    []repository.BalanceDrift    `json:"balance_drift"`
	CommissionDrift []repository.CommissionDrift `json:"commission_drift"`
	CheckedAt       time.Time                    `json:"checked_at"`
}

func (r DriftReport) Clean() bool {
	return len(r.BalanceDrift) == 0 && len(r.CommissionDrift) == 0
}

// Check runs one full sweep. Every divergence is logged at error level with
// enough detail to locate the row.
func (s *ReconciliationService) Check(ctx context.Context) (DriftReport, error) {
	queries := s.store.Queries()

	report := DriftReport{CheckedAt: time.Now().UTC()}

	balanceDrift, err := queries.ListBalanceDrift(ctx)
	if err != nil {
		return DriftReport{}, err
	}
	report.BalanceDrift = balanceDrift
	for _, d := range balanceDrift {
		observability.IncrementBalanceDrift(d.Currency)
		zap.L().Error("balance drift detected",
			zap.String("user_id", d.UserID.String()),
			zap.String("currency", d.Currency),
			zap.Int64("stored", d.Stored),
			zap.Int64("ledger_net", d.LedgerNet),
		)
	}

	commissionDrift, err := queries.ListCommissionDrift(ctx)
	if err != nil {
		return DriftReport{}, err
	}
	report.CommissionDrift = commissionDrift
	for _, d := range commissionDrift {
		observability.SetCommissionDrift(d.Currency, d.Recorded-d.LedgerSum)
		zap.L().Error("commission drift detected",
			zap.String("currency", d.Currency),
			zap.Int64("recorded", d.Recorded),
			zap.Int64("ledger_sum", d.LedgerSum),
		)
	}

	if report.Clean() {
		zap.L().Debug("reconciliation sweep clean")
	}
	return report, nil
}

// PendingBacklog refreshes the pending-transaction gauges and returns the
// per-type stats.
func (s *ReconciliationService) PendingBacklog(ctx context.Context) ([]repository.PendingAgeStat, error) {
	stats, err := s.store.Queries().ListPendingAgeStats(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	for _, stat := range stats {
		observability.SetPendingBacklog(stat.TransactionType, stat.Count)
		observability.SetPendingOldestAge(stat.TransactionType, time.Duration(now-stat.OldestCreatedAt)*time.Second)
	}
	return stats, nil
}
