package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/winmicro/wallet-engine/internal/domain"
)

func TestReconciliationClean(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	// A settled deposit keeps balance, admin wallet and ledger in agreement.
	intent, err := f.svc.InitiateDeposit(ctx, InitiateDepositRequest{
		UserID:   userID,
		Currency: domain.CurrencyINR,
		Amount:   100_000,
	})
	require.NoError(t, err)
	_, err = f.svc.ConfirmDeposit(ctx, ConfirmDepositRequest{ReferenceID: intent.ReferenceID})
	require.NoError(t, err)

	recon := NewReconciliationService(f.store)
	report, err := recon.Check(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.False(t, report.CheckedAt.IsZero())
}

func TestReconciliationIgnoresPendingWithdrawal(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	intent, err := f.svc.InitiateDeposit(ctx, InitiateDepositRequest{
		UserID:   userID,
		Currency: domain.CurrencyINR,
		Amount:   100_000,
	})
	require.NoError(t, err)
	_, err = f.svc.ConfirmDeposit(ctx, ConfirmDepositRequest{ReferenceID: intent.ReferenceID})
	require.NoError(t, err)

	// The optimistic debit lands while the payout is still pending; the
	// sweep must not read that as drift.
	withdrawal, err := f.svc.InitiateWithdrawal(ctx, InitiateWithdrawalRequest{
		UserID:   userID,
		Currency: domain.CurrencyINR,
		Amount:   30_000,
		Details:  WithdrawalDetails{Method: "bank", Destination: "IN-XXXX-1234"},
	})
	require.NoError(t, err)

	report, err := NewReconciliationService(f.store).Check(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())

	// A refunded payout restores the balance and stays clean too.
	_, err = f.svc.ResolveWithdrawal(ctx, ResolveWithdrawalRequest{
		ReferenceID: withdrawal.Transaction.ReferenceID,
		Success:     false,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100_000), f.balance(t, userID, domain.CurrencyINR))

	report, err = NewReconciliationService(f.store).Check(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestReconciliationDetectsBalanceDrift(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	intent, err := f.svc.InitiateDeposit(ctx, InitiateDepositRequest{
		UserID:   userID,
		Currency: domain.CurrencyINR,
		Amount:   100_000,
	})
	require.NoError(t, err)
	_, err = f.svc.ConfirmDeposit(ctx, ConfirmDepositRequest{ReferenceID: intent.ReferenceID})
	require.NoError(t, err)

	// Corrupt the stored balance behind the ledger's back.
	_, err = f.db.Exec(ctx, `UPDATE user_balance SET amount = amount + 777 WHERE user_id = $1`, userID)
	require.NoError(t, err)

	report, err := NewReconciliationService(f.store).Check(ctx)
	require.NoError(t, err)
	require.Len(t, report.BalanceDrift, 1)
	drift := report.BalanceDrift[0]
	assert.Equal(t, userID, drift.UserID)
	assert.Equal(t, string(domain.CurrencyINR), drift.Currency)
	assert.Equal(t, int64(100_777), drift.Stored)
	assert.Equal(t, int64(100_000), drift.LedgerNet)
	assert.False(t, report.Clean())
}

func TestReconciliationDetectsCommissionDrift(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	intent, err := f.svc.InitiateDeposit(ctx, InitiateDepositRequest{
		UserID:   uuid.New(),
		Currency: domain.CurrencyUSD,
		Amount:   50_000,
	})
	require.NoError(t, err)
	_, err = f.svc.ConfirmDeposit(ctx, ConfirmDepositRequest{ReferenceID: intent.ReferenceID})
	require.NoError(t, err)

	_, err = f.db.Exec(ctx, `UPDATE admin_wallet SET total_commission_earned = total_commission_earned - 1 WHERE currency = $1`, domain.CurrencyUSD)
	require.NoError(t, err)

	report, err := NewReconciliationService(f.store).Check(ctx)
	require.NoError(t, err)
	require.Len(t, report.CommissionDrift, 1)
	drift := report.CommissionDrift[0]
	assert.Equal(t, string(domain.CurrencyUSD), drift.Currency)
	assert.Equal(t, int64(999), drift.Recorded)
	assert.Equal(t, int64(1_000), drift.LedgerSum)
}

func TestPendingBacklogStats(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	// Two pending deposits and one pending withdrawal.
	for i := 0; i < 2; i++ {
		_, err := f.svc.InitiateDeposit(ctx, InitiateDepositRequest{
			UserID:   userID,
			Currency: domain.CurrencyINR,
			Amount:   10_000,
		})
		require.NoError(t, err)
	}
	f.credit(t, userID, domain.CurrencyINR, 20_000)
	_, err := f.svc.InitiateWithdrawal(ctx, InitiateWithdrawalRequest{
		UserID:   userID,
		Currency: domain.CurrencyINR,
		Amount:   5_000,
		Details:  WithdrawalDetails{Method: "bank", Destination: "IN-XXXX-1234"},
	})
	require.NoError(t, err)

	stats, err := NewReconciliationService(f.store).PendingBacklog(ctx)
	require.NoError(t, err)

	byType := make(map[string]int64, len(stats))
	for _, stat := range stats {
		byType[stat.TransactionType] = stat.Count
	}
	assert.Equal(t, int64(2), byType[string(domain.TxTypeDeposit)])
	assert.Equal(t, int64(1), byType[string(domain.TxTypeWithdrawal)])
}
