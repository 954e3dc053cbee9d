package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/winmicro/wallet-engine/internal/domain"
	"github.com/winmicro/wallet-engine/internal/models"
	"github.com/winmicro/wallet-engine/internal/observability"
	"github.com/winmicro/wallet-engine/internal/repository"
)

const (
	defaultStatementLimit = 50
	maxStatementLimit     = 200
)

// WalletService serves read-only views over balances, the transaction log
// and the platform wallet. All mutation goes through SettlementService.
type WalletService struct {
	store QueryStore
}

func NewWalletService(store QueryStore) *WalletService {
	return &WalletService{store: store}
}

func (s *WalletService) Balance(ctx context.Context, userID uuid.UUID) (models.UserBalance, error) {
	if userID == uuid.Nil {
		return models.UserBalance{}, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}
	return s.store.Queries().GetUserBalance(ctx, userID)
}

type StatementRequest struct {
	UserID uuid.UUID
	Limit  int32
	Offset int32
}

// Statement returns a page of the user's ledger history, newest first.
func (s *WalletService) Statement(ctx context.Context, req StatementRequest) ([]models.WalletTransaction, error) {
	if req.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}
	if req.Limit <= 0 {
		req.Limit = defaultStatementLimit
	}
	if req.Limit > maxStatementLimit {
		req.Limit = maxStatementLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	return s.store.Queries().ListUserTransactions(ctx, repository.ListUserTransactionsParams{
		UserID: req.UserID,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
}

// Transaction looks up one ledger entry by reference id.
func (s *WalletService) Transaction(ctx context.Context, referenceID string) (models.WalletTransaction, error) {
	if referenceID == "" {
		return models.WalletTransaction{}, fmt.Errorf("%w: reference id is required", models.ErrValidation)
	}
	return s.store.Queries().GetTransactionByReference(ctx, referenceID)
}

func (s *WalletService) Earnings(ctx context.Context, userID uuid.UUID) (models.UserEarnings, error) {
	if userID == uuid.Nil {
		return models.UserEarnings{}, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}
	return s.store.Queries().GetUserEarnings(ctx, userID)
}

// AdminWalletReport lists the platform wallet per currency and refreshes the
// exported balance gauges as a side effect of the read.
func (s *WalletService) AdminWalletReport(ctx context.Context) ([]models.AdminWallet, error) {
	wallets, err := s.store.Queries().ListAdminWallets(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[domain.Currency]bool, len(wallets))
	for _, w := range wallets {
		observability.SetAdminWalletBalance(w.Currency.String(), w.Balance)
		seen[w.Currency] = true
	}
	// Currencies with no commission yet still appear in the report.
	for _, c := range domain.Currencies() {
		if !seen[c] {
			wallets = append(wallets, models.AdminWallet{Currency: c})
		}
	}
	return wallets, nil
}
