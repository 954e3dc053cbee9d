package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/winmicro/wallet-engine/internal/domain"
	"github.com/winmicro/wallet-engine/internal/gateway"
	"github.com/winmicro/wallet-engine/internal/models"
	"github.com/winmicro/wallet-engine/internal/repository"
)

const mockProvider = "mockpay"

type settlementFixture struct {
	svc     *SettlementService
	adapter *gateway.MockAdapter
	store   *repository.Store
	db      *pgxpool.Pool
}

func newSettlementFixture(t *testing.T) settlementFixture {
	t.Helper()
	db := setupTestDB(t)
	t.Cleanup(db.Close)

	adapter := gateway.NewMockAdapter(mockProvider)
	registry := gateway.NewRegistry().
		Register(adapter).
		SetDefault(domain.CurrencyINR, mockProvider).
		SetDefault(domain.CurrencyUSD, mockProvider).
		SetDefault(domain.CurrencyUSDT, mockProvider)

	store := repository.NewStore(db)
	seedSettings(t, db, "2.00", true, true)
	return settlementFixture{
		svc:     NewSettlementService(store, registry),
		adapter: adapter,
		store:   store,
		db:      db,
	}
}

func (f settlementFixture) balance(t *testing.T, userID uuid.UUID, currency domain.Currency) int64 {
	t.Helper()
	balance, err := f.store.Queries().GetBalance(context.Background(), repository.EnsureUserBalanceParams{
		UserID:   userID,
		Currency: currency,
	})
	require.NoError(t, err)
	return balance
}

func (f settlementFixture) credit(t *testing.T, userID uuid.UUID, currency domain.Currency, amount int64) {
	t.Helper()
	rows, err := f.store.Queries().CreditUserBalance(context.Background(), repository.AdjustBalanceParams{
		UserID:   userID,
		Currency: currency,
		Amount:   amount,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)
}

func TestDepositLifecycle(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	// 1000.00 INR gross at 2% commission: user owes 1020.00, wallet gains 1000.00.
	intent, err := f.svc.InitiateDeposit(ctx, InitiateDepositRequest{
		UserID:   userID,
		Currency: domain.CurrencyINR,
		Amount:   100_000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(102_000), intent.Payable)
	assert.Equal(t, int64(2_000), intent.Commission)
	assert.Equal(t, mockProvider, intent.Charge.Provider)

	tx, err := f.store.Queries().GetTransactionByReference(ctx, intent.ReferenceID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusPending, tx.Status)
	assert.Equal(t, int64(100_000), tx.Amount)
	assert.Equal(t, domain.DirectionCredit, tx.Direction)

	// No balance until confirmation.
	assert.Zero(t, f.balance(t, userID, domain.CurrencyINR))

	result, err := f.svc.ConfirmDeposit(ctx, ConfirmDepositRequest{ReferenceID: intent.ReferenceID})
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, domain.TxStatusCompleted, result.Transaction.Status)
	assert.Equal(t, int64(100_000), result.Balance)
	assert.NotEmpty(t, result.Transaction.ProviderRef)

	wallet, err := f.store.Queries().GetAdminWallet(ctx, domain.CurrencyINR)
	require.NoError(t, err)
	assert.Equal(t, int64(2_000), wallet.Balance)
	assert.Equal(t, int64(2_000), wallet.TotalCommissionEarned)

	// Replayed confirmation reports the existing terminal state.
	replay, err := f.svc.ConfirmDeposit(ctx, ConfirmDepositRequest{ReferenceID: intent.ReferenceID})
	require.NoError(t, err)
	assert.True(t, replay.AlreadyProcessed)
	assert.Equal(t, domain.TxStatusCompleted, replay.Transaction.Status)
	assert.Equal(t, int64(100_000), replay.Balance)

	wallet, err = f.store.Queries().GetAdminWallet(ctx, domain.CurrencyINR)
	require.NoError(t, err)
	assert.Equal(t, int64(2_000), wallet.TotalCommissionEarned)
}

func TestConcurrentDepositConfirmations(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	intent, err := f.svc.InitiateDeposit(ctx, InitiateDepositRequest{
		UserID:   userID,
		Currency: domain.CurrencyUSD,
		Amount:   50_000,
	})
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ConfirmDeposit(ctx, ConfirmDepositRequest{ReferenceID: intent.ReferenceID})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// The balance credit and the commission land exactly once.
	assert.Equal(t, int64(50_000), f.balance(t, userID, domain.CurrencyUSD))

	wallet, err := f.store.Queries().GetAdminWallet(ctx, domain.CurrencyUSD)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), wallet.TotalCommissionEarned)
}

func TestConcurrentDistinctDeposits(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	const deposits = 6
	references := make([]string, deposits)
	for i := 0; i < deposits; i++ {
		intent, err := f.svc.InitiateDeposit(ctx, InitiateDepositRequest{
			UserID:   userID,
			Currency: domain.CurrencyINR,
			Amount:   int64((i + 1) * 10_000),
		})
		require.NoError(t, err)
		references[i] = intent.ReferenceID
	}

	var wg sync.WaitGroup
	for _, ref := range references {
		ref := ref
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ConfirmDeposit(ctx, ConfirmDepositRequest{ReferenceID: ref})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// 10k + 20k + ... + 60k, no lost updates.
	assert.Equal(t, int64(210_000), f.balance(t, userID, domain.CurrencyINR))
}

func TestDepositChargeCreationFails(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	f.adapter.FailNextCreate(errors.New("provider down"))
	_, err := f.svc.InitiateDeposit(ctx, InitiateDepositRequest{
		UserID:   uuid.New(),
		Currency: domain.CurrencyINR,
		Amount:   10_000,
	})
	require.ErrorIs(t, err, models.ErrGatewayFailure)

	// The pending entry was moved to failed rather than left dangling.
	var failed int
	err = f.db.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_transaction WHERE status = 'failed'`).Scan(&failed)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
}

func TestDepositVerificationFails(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	intent, err := f.svc.InitiateDeposit(ctx, InitiateDepositRequest{
		UserID:   userID,
		Currency: domain.CurrencyINR,
		Amount:   10_000,
	})
	require.NoError(t, err)

	f.adapter.SetVerifyStatus(intent.ReferenceID, gateway.StatusFailed)
	_, err = f.svc.ConfirmDeposit(ctx, ConfirmDepositRequest{ReferenceID: intent.ReferenceID})
	require.ErrorIs(t, err, models.ErrGatewayFailure)

	tx, err := f.store.Queries().GetTransactionByReference(ctx, intent.ReferenceID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusFailed, tx.Status)
	assert.Zero(t, f.balance(t, userID, domain.CurrencyINR))
}

func TestDepositStillPendingAtProvider(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	intent, err := f.svc.InitiateDeposit(ctx, InitiateDepositRequest{
		UserID:   userID,
		Currency: domain.CurrencyINR,
		Amount:   10_000,
	})
	require.NoError(t, err)

	f.adapter.SetVerifyStatus(intent.ReferenceID, gateway.StatusPending)
	result, err := f.svc.ConfirmDeposit(ctx, ConfirmDepositRequest{ReferenceID: intent.ReferenceID})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusPending, result.Transaction.Status)
	assert.Zero(t, result.Balance)

	// A later successful confirmation still settles it.
	f.adapter.SetVerifyStatus(intent.ReferenceID, gateway.StatusSuccess)
	result, err = f.svc.ConfirmDeposit(ctx, ConfirmDepositRequest{ReferenceID: intent.ReferenceID})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, result.Transaction.Status)
	assert.Equal(t, int64(10_000), result.Balance)
}

func TestDepositPolicyEnforcement(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	// Tighten the INR policy: min 100.00, max 5000.00. Disable USD entirely.
	rate, err := decimal.NewFromString("2.00")
	require.NoError(t, err)
	err = f.store.Queries().UpsertCommissionSettings(ctx, repository.UpsertCommissionSettingsParams{
		CommissionPercentage: rate,
		CommissionOnDeposits: true,
		INR:                  models.CurrencyPolicy{WalletEnabled: true, MinDeposit: 10_000, MaxDeposit: 500_000},
		USD:                  models.CurrencyPolicy{WalletEnabled: false},
		USDT:                 models.CurrencyPolicy{WalletEnabled: true},
	})
	require.NoError(t, err)

	_, err = f.svc.InitiateDeposit(ctx, InitiateDepositRequest{
		UserID: uuid.New(), Currency: domain.CurrencyINR, Amount: 5_000,
	})
	assert.ErrorIs(t, err, models.ErrPolicyViolation)

	_, err = f.svc.InitiateDeposit(ctx, InitiateDepositRequest{
		UserID: uuid.New(), Currency: domain.CurrencyINR, Amount: 600_000,
	})
	assert.ErrorIs(t, err, models.ErrPolicyViolation)

	// Disabled wallet rejects deposits outright.
	_, err = f.svc.InitiateDeposit(ctx, InitiateDepositRequest{
		UserID: uuid.New(), Currency: domain.CurrencyUSD, Amount: 50_000,
	})
	assert.ErrorIs(t, err, models.ErrPolicyViolation)

	_, err = f.svc.InitiateDeposit(ctx, InitiateDepositRequest{
		UserID: uuid.New(), Currency: domain.CurrencyINR, Amount: -5,
	})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestDepositConfirmableAfterWalletDisabled(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	intent, err := f.svc.InitiateDeposit(ctx, InitiateDepositRequest{
		UserID:   userID,
		Currency: domain.CurrencyUSD,
		Amount:   50_000,
	})
	require.NoError(t, err)

	// Disabling the wallet blocks new initiations only; money already
	// collected by the provider still settles.
	rate, err := decimal.NewFromString("2.00")
	require.NoError(t, err)
	err = f.store.Queries().UpsertCommissionSettings(ctx, repository.UpsertCommissionSettingsParams{
		CommissionPercentage: rate,
		CommissionOnDeposits: true,
		INR:                  models.CurrencyPolicy{WalletEnabled: true},
		USD:                  models.CurrencyPolicy{WalletEnabled: false},
		USDT:                 models.CurrencyPolicy{WalletEnabled: true},
	})
	require.NoError(t, err)

	_, err = f.svc.InitiateDeposit(ctx, InitiateDepositRequest{
		UserID: userID, Currency: domain.CurrencyUSD, Amount: 10_000,
	})
	require.ErrorIs(t, err, models.ErrPolicyViolation)

	result, err := f.svc.ConfirmDeposit(ctx, ConfirmDepositRequest{ReferenceID: intent.ReferenceID})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, result.Transaction.Status)
	assert.Equal(t, int64(50_000), result.Balance)
}

func TestWithdrawalLifecycle(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	f.credit(t, userID, domain.CurrencyINR, 80_000)

	result, err := f.svc.InitiateWithdrawal(ctx, InitiateWithdrawalRequest{
		UserID:   userID,
		Currency: domain.CurrencyINR,
		Amount:   30_000,
		Details:  WithdrawalDetails{Method: "bank", Destination: "IN-XXXX-1234"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusPending, result.Transaction.Status)
	assert.Equal(t, domain.DirectionDebit, result.Transaction.Direction)
	// The debit is immediate.
	assert.Equal(t, int64(50_000), result.Balance)

	resolved, err := f.svc.ResolveWithdrawal(ctx, ResolveWithdrawalRequest{
		ReferenceID: result.Transaction.ReferenceID,
		Success:     true,
		ProviderRef: "payout-789",
	})
	require.NoError(t, err)
	assert.False(t, resolved.AlreadyProcessed)
	assert.Equal(t, domain.TxStatusCompleted, resolved.Transaction.Status)
	assert.Equal(t, int64(50_000), resolved.Balance)

	replay, err := f.svc.ResolveWithdrawal(ctx, ResolveWithdrawalRequest{
		ReferenceID: result.Transaction.ReferenceID,
		Success:     true,
	})
	require.NoError(t, err)
	assert.True(t, replay.AlreadyProcessed)
	assert.Equal(t, int64(50_000), replay.Balance)
}

func TestWithdrawalInsufficientBalance(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	f.credit(t, userID, domain.CurrencyINR, 10_000)

	_, err := f.svc.InitiateWithdrawal(ctx, InitiateWithdrawalRequest{
		UserID:   userID,
		Currency: domain.CurrencyINR,
		Amount:   10_001,
		Details:  WithdrawalDetails{Method: "bank", Destination: "IN-XXXX-1234"},
	})
	require.ErrorIs(t, err, models.ErrInsufficientBalance)

	// The rejected attempt left no ledger entry and no debit.
	assert.Equal(t, int64(10_000), f.balance(t, userID, domain.CurrencyINR))

	entries, err := f.store.Queries().ListUserTransactions(ctx, repository.ListUserTransactionsParams{UserID: userID, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWithdrawalRefundOnFailure(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	f.credit(t, userID, domain.CurrencyINR, 40_000)

	result, err := f.svc.InitiateWithdrawal(ctx, InitiateWithdrawalRequest{
		UserID:   userID,
		Currency: domain.CurrencyINR,
		Amount:   40_000,
		Details:  WithdrawalDetails{Method: "upi", Destination: "user@bank"},
	})
	require.NoError(t, err)
	assert.Zero(t, result.Balance)

	failed, err := f.svc.ResolveWithdrawal(ctx, ResolveWithdrawalRequest{
		ReferenceID: result.Transaction.ReferenceID,
		Success:     false,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusFailed, failed.Transaction.Status)
	assert.Equal(t, int64(40_000), failed.Balance)

	// Resolving again must not refund twice.
	replay, err := f.svc.ResolveWithdrawal(ctx, ResolveWithdrawalRequest{
		ReferenceID: result.Transaction.ReferenceID,
		Success:     false,
	})
	require.NoError(t, err)
	assert.True(t, replay.AlreadyProcessed)
	assert.Equal(t, int64(40_000), replay.Balance)
}

func TestWithdrawalConflictingResolve(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	f.credit(t, userID, domain.CurrencyINR, 20_000)

	result, err := f.svc.InitiateWithdrawal(ctx, InitiateWithdrawalRequest{
		UserID:   userID,
		Currency: domain.CurrencyINR,
		Amount:   20_000,
		Details:  WithdrawalDetails{Method: "upi", Destination: "user@bank"},
	})
	require.NoError(t, err)

	_, err = f.svc.ResolveWithdrawal(ctx, ResolveWithdrawalRequest{
		ReferenceID: result.Transaction.ReferenceID,
		Success:     false,
	})
	require.NoError(t, err)

	// The refunded outcome stands; a later success report cannot flip it.
	_, err = f.svc.ResolveWithdrawal(ctx, ResolveWithdrawalRequest{
		ReferenceID: result.Transaction.ReferenceID,
		Success:     true,
	})
	require.ErrorIs(t, err, models.ErrAlreadyProcessed)

	tx, err := f.store.Queries().GetTransactionByReference(ctx, result.Transaction.ReferenceID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusFailed, tx.Status)
	assert.Equal(t, int64(20_000), f.balance(t, userID, domain.CurrencyINR))
}

func TestWithdrawalRequiresPayoutDetails(t *testing.T) {
	f := newSettlementFixture(t)

	_, err := f.svc.InitiateWithdrawal(context.Background(), InitiateWithdrawalRequest{
		UserID:   uuid.New(),
		Currency: domain.CurrencyINR,
		Amount:   5_000,
	})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCreditInternal(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	payer := uuid.New()
	worker := uuid.New()

	// 500.00 USD bonus at 2% transfer commission: worker receives 490.00.
	result, err := f.svc.CreditInternal(ctx, CreditInternalRequest{
		FromUserID:        payer,
		ToUserID:          worker,
		Currency:          domain.CurrencyUSD,
		Amount:            50_000,
		CommissionApplies: true,
		Note:              "task batch 42",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, result.Transaction.Status)
	assert.Equal(t, int64(49_000), result.Transaction.Amount)
	assert.Equal(t, int64(1_000), result.Transaction.CommissionAmount)
	assert.Equal(t, int64(49_000), result.Balance)

	earnings, err := f.store.Queries().GetUserEarnings(ctx, worker)
	require.NoError(t, err)
	assert.Equal(t, int64(49_000), earnings.TotalEarned)
	assert.Zero(t, earnings.TotalSpent)

	spent, err := f.store.Queries().GetUserEarnings(ctx, payer)
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), spent.TotalSpent)

	wallet, err := f.store.Queries().GetAdminWallet(ctx, domain.CurrencyUSD)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), wallet.TotalCommissionEarned)

	// Exempt credits pass through gross.
	exempt, err := f.svc.CreditInternal(ctx, CreditInternalRequest{
		FromUserID: payer,
		ToUserID:   worker,
		Currency:   domain.CurrencyUSD,
		Amount:     10_000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), exempt.Transaction.Amount)
	assert.Zero(t, exempt.Transaction.CommissionAmount)

	_, err = f.svc.CreditInternal(ctx, CreditInternalRequest{
		FromUserID: payer,
		ToUserID:   payer,
		Currency:   domain.CurrencyUSD,
		Amount:     10_000,
	})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCreditInternalRejectsFullCommission(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()
	worker := uuid.New()

	// A 100% transfer rate would net the recipient zero.
	seedSettings(t, f.db, "100.00", false, true)

	_, err := f.svc.CreditInternal(ctx, CreditInternalRequest{
		FromUserID:        uuid.New(),
		ToUserID:          worker,
		Currency:          domain.CurrencyINR,
		Amount:            5_000,
		CommissionApplies: true,
	})
	require.ErrorIs(t, err, models.ErrValidation)

	entries, err := f.store.Queries().ListUserTransactions(ctx, repository.ListUserTransactionsParams{UserID: worker, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
