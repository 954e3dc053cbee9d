package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/winmicro/wallet-engine/internal/domain"
	"github.com/winmicro/wallet-engine/internal/gateway"
	"github.com/winmicro/wallet-engine/internal/models"
	"github.com/winmicro/wallet-engine/internal/observability"
	"github.com/winmicro/wallet-engine/internal/repository"
	"go.uber.org/zap"
)

// SettlementService owns every balance mutation in the system. It drives the
// lifecycle of deposits, withdrawals and internal credits against the ledger
// stores, keeping each settlement inside one transactional boundary keyed by
// the reference id.
type SettlementService struct {
	store    QueryStore
	gateways *gateway.Registry
}

func NewSettlementService(store QueryStore, gateways *gateway.Registry) *SettlementService {
	return &SettlementService{store: store, gateways: gateways}
}

// SettlementResult reports the state of a transaction after an operation.
// AlreadyProcessed marks retried confirmations of terminal transactions:
// those are safe no-ops that return the existing state.
type SettlementResult struct {
	Transaction      models.WalletTransaction `json:"transaction"`
	Balance          int64                    `json:"balance"`
	AlreadyProcessed bool                     `json:"already_processed,omitempty"`
}

// InitiateDepositRequest asks for a new deposit of Amount (gross minor
// units). Provider may be empty to use the currency default.
type InitiateDepositRequest struct {
	UserID      uuid.UUID
	Currency    domain.Currency
	Amount      int64
	Provider    string
	Description string
}

// DepositIntent is returned to the caller so it can complete payment
// collection with the provider.
type DepositIntent struct {
	ReferenceID string                `json:"reference_id"`
	Charge      *gateway.ChargeHandle `json:"charge"`
	Payable     int64                 `json:"payable"`
	Commission  int64                 `json:"commission"`
}

// InitiateDeposit validates the request against the commission settings,
// records a pending ledger entry and opens a charge with the gateway for
// gross + commission. No balance is touched until confirmation.
func (s *SettlementService) InitiateDeposit(ctx context.Context, req InitiateDepositRequest) (*DepositIntent, error) {
	if req.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrValidation)
	}
	if !req.Currency.Valid() {
		return nil, fmt.Errorf("%w: unsupported currency %q", models.ErrValidation, req.Currency)
	}

	settings, err := s.store.Queries().GetCommissionSettings(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkDepositPolicy(settings, req.Currency, req.Amount); err != nil {
		return nil, err
	}

	adapter, err := s.gateways.ForCurrency(req.Currency, req.Provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	breakdown := domain.DepositCommission(req.Amount, settings.CommissionPercentage, settings.CommissionOnDeposits)
	referenceID := domain.ReferencePrefix(domain.TxTypeDeposit) + uuid.NewString()

	if _, err := s.store.Queries().CreateWalletTransaction(ctx, repository.CreateWalletTransactionParams{
		ID:               uuid.New(),
		UserID:           req.UserID,
		Amount:           breakdown.Net,
		Direction:        domain.DirectionCredit,
		Currency:         req.Currency,
		TransactionType:  domain.TxTypeDeposit,
		Status:           domain.TxStatusPending,
		ReferenceID:      referenceID,
		CommissionAmount: breakdown.Commission,
		Provider:         adapter.Name(),
	}); err != nil {
		return nil, err
	}

	charge, err := adapter.CreateCharge(ctx, gateway.CreateChargeRequest{
		UserID:      req.UserID,
		Amount:      breakdown.Payable,
		Currency:    req.Currency,
		Description: req.Description,
		ReferenceID: referenceID,
	})
	if err != nil {
		if failErr := s.failTransaction(ctx, referenceID); failErr != nil {
			zap.L().Error("mark deposit failed after charge error",
				zap.Error(failErr), zap.String("reference_id", referenceID))
		}
		observability.IncrementSettlement("deposit_initiate", "gateway_error")
		return nil, fmt.Errorf("%w: create charge: %v", models.ErrGatewayFailure, err)
	}

	observability.IncrementSettlement("deposit_initiate", "pending")
	zap.L().Info("deposit initiated",
		zap.String("reference_id", referenceID),
		zap.String("user_id", req.UserID.String()),
		zap.String("amount", domain.NewMoney(req.Amount, req.Currency).String()),
		zap.Int64("commission", breakdown.Commission),
		zap.String("provider", adapter.Name()),
	)

	return &DepositIntent{
		ReferenceID: referenceID,
		Charge:      charge,
		Payable:     breakdown.Payable,
		Commission:  breakdown.Commission,
	}, nil
}

// ConfirmDepositRequest carries the provider assertion for a pending
// deposit, either client-submitted fields or a signed callback payload.
type ConfirmDepositRequest struct {
	ReferenceID string
	ChargeID    string
	Assertion   map[string]string
	Payload     []byte
	Signature   string
}

// ConfirmDeposit settles a pending deposit. Verification goes through the
// gateway adapter; on success the balance credit, the status transition and
// the admin-wallet commission land in one database transaction. Retries on a
// terminal transaction return the existing state without side effects.
func (s *SettlementService) ConfirmDeposit(ctx context.Context, req ConfirmDepositRequest) (*SettlementResult, error) {
	queries := s.store.Queries()
	tx, err := queries.GetTransactionByReference(ctx, req.ReferenceID)
	if err != nil {
		return nil, err
	}
	if tx.TransactionType != domain.TxTypeDeposit {
		return nil, fmt.Errorf("%w: reference %s is not a deposit", models.ErrValidation, req.ReferenceID)
	}
	if isTerminalStatus(tx.Status) {
		observability.IncrementSettlement("deposit_confirm", "replayed")
		result, err := s.terminalResult(ctx, tx)
		if err != nil {
			return nil, err
		}
		result.AlreadyProcessed = true
		return result, nil
	}

	adapter, err := s.gateways.Get(tx.Provider)
	if err != nil {
		return nil, err
	}
	verdict, err := adapter.VerifyCharge(ctx, gateway.VerifyRequest{
		ReferenceID: req.ReferenceID,
		ChargeID:    req.ChargeID,
		Assertion:   req.Assertion,
		Payload:     req.Payload,
		Signature:   req.Signature,
	})
	if err != nil {
		// Transport-level failure: the provider state is unknown, so the
		// transaction stays pending and the caller may retry.
		observability.IncrementSettlement("deposit_confirm", "verify_error")
		return nil, fmt.Errorf("%w: verify charge: %v", models.ErrGatewayFailure, err)
	}

	switch verdict.Status {
	case gateway.StatusSuccess:
		return s.settleDeposit(ctx, req.ReferenceID, verdict)
	case gateway.StatusPending:
		// Provider is still collecting; the transaction keeps waiting.
		observability.IncrementSettlement("deposit_confirm", "still_pending")
		balance, err := queries.GetBalance(ctx, repository.EnsureUserBalanceParams{UserID: tx.UserID, Currency: tx.Currency})
		if err != nil {
			return nil, err
		}
		return &SettlementResult{Transaction: tx, Balance: balance}, nil
	default:
		if err := s.failTransaction(ctx, req.ReferenceID); err != nil {
			return nil, err
		}
		observability.IncrementSettlement("deposit_confirm", "failed")
		zap.L().Warn("deposit verification failed",
			zap.String("reference_id", req.ReferenceID),
			zap.String("reason", verdict.Reason),
		)
		return nil, fmt.Errorf("%w: %s", models.ErrGatewayFailure, verdict.Reason)
	}
}

// settleDeposit applies the confirmed deposit atomically: balance credit,
// status transition and commission bookkeeping commit together or not at
// all, so a crash can never leave a completed transaction with an unapplied
// balance.
func (s *SettlementService) settleDeposit(ctx context.Context, referenceID string, verdict *gateway.VerifyResult) (*SettlementResult, error) {
	var (
		settled models.WalletTransaction
		replay  bool
	)
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		locked, err := qtx.GetTransactionByReferenceForUpdate(ctx, referenceID)
		if err != nil {
			return err
		}
		if isTerminalStatus(locked.Status) {
			settled = locked
			replay = true
			return nil
		}

		rows, err := qtx.CreditUserBalance(ctx, repository.AdjustBalanceParams{
			UserID:   locked.UserID,
			Currency: locked.Currency,
			Amount:   locked.Amount,
		})
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "credit deposit balance"); err != nil {
			return fmt.Errorf("%w: %v", models.ErrInternalInconsistency, err)
		}

		if err := transitionTransactionState(ctx, qtx, locked.ID, domain.TxStatusCompleted); err != nil {
			return fmt.Errorf("%w: %v", models.ErrInternalInconsistency, err)
		}
		if verdict.ProviderTxID != "" {
			if _, err := qtx.SetTransactionProviderRef(ctx, repository.SetTransactionProviderRefParams{
				ProviderRef: verdict.ProviderTxID,
				ID:          locked.ID,
			}); err != nil {
				return err
			}
		}

		if locked.CommissionAmount > 0 {
			rows, err := qtx.CreditAdminWallet(ctx, repository.CreditAdminWalletParams{
				Currency:   locked.Currency,
				Amount:     locked.CommissionAmount,
				Commission: locked.CommissionAmount,
			})
			if err != nil {
				return err
			}
			if err := requireExactlyOne(rows, "credit admin wallet"); err != nil {
				return fmt.Errorf("%w: %v", models.ErrInternalInconsistency, err)
			}
		}

		locked.Status = domain.TxStatusCompleted
		locked.ProviderRef = verdict.ProviderTxID
		settled = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	if replay {
		observability.IncrementSettlement("deposit_confirm", "replayed")
		result, err := s.terminalResult(ctx, settled)
		if err != nil {
			return nil, err
		}
		result.AlreadyProcessed = true
		return result, nil
	}

	observability.IncrementSettlement("deposit_confirm", "completed")
	zap.L().Info("deposit settled",
		zap.String("reference_id", referenceID),
		zap.String("user_id", settled.UserID.String()),
		zap.String("amount", domain.NewMoney(settled.Amount, settled.Currency).String()),
		zap.Int64("commission", settled.CommissionAmount),
	)
	return s.terminalResult(ctx, settled)
}

// WithdrawalDetails names the external payout destination. Execution of the
// payout itself is an external, often manual step.
type WithdrawalDetails struct {
	Method      string `json:"method"`
	Destination string `json:"destination"`
	AccountName string `json:"account_name,omitempty"`
}

func (d WithdrawalDetails) validate() error {
	if d.Method == "" {
		return fmt.Errorf("%w: payout method is required", models.ErrValidation)
	}
	if d.Destination == "" {
		return fmt.Errorf("%w: payout destination is required", models.ErrValidation)
	}
	return nil
}

type InitiateWithdrawalRequest struct {
	UserID   uuid.UUID
	Currency domain.Currency
	Amount   int64
	Details  WithdrawalDetails
}

// InitiateWithdrawal debits the balance immediately and records a pending
// debit transaction. The optimistic debit is reversed only if the payout is
// later reported failed.
func (s *SettlementService) InitiateWithdrawal(ctx context.Context, req InitiateWithdrawalRequest) (*SettlementResult, error) {
	if req.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrValidation)
	}
	if !req.Currency.Valid() {
		return nil, fmt.Errorf("%w: unsupported currency %q", models.ErrValidation, req.Currency)
	}
	if err := req.Details.validate(); err != nil {
		return nil, err
	}

	settings, err := s.store.Queries().GetCommissionSettings(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkWithdrawalPolicy(settings, req.Currency, req.Amount); err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(map[string]any{"payout": req.Details})
	if err != nil {
		return nil, fmt.Errorf("encode payout details: %w", err)
	}

	referenceID := domain.ReferencePrefix(domain.TxTypeWithdrawal) + uuid.NewString()
	var created models.WalletTransaction
	err = s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		rows, err := qtx.DebitUserBalance(ctx, repository.AdjustBalanceParams{
			UserID:   req.UserID,
			Currency: req.Currency,
			Amount:   req.Amount,
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return models.ErrInsufficientBalance
		}

		created, err = qtx.CreateWalletTransaction(ctx, repository.CreateWalletTransactionParams{
			ID:              uuid.New(),
			UserID:          req.UserID,
			Amount:          req.Amount,
			Direction:       domain.DirectionDebit,
			Currency:        req.Currency,
			TransactionType: domain.TxTypeWithdrawal,
			Status:          domain.TxStatusPending,
			ReferenceID:     referenceID,
			Metadata:        metadata,
		})
		return err
	})
	if err != nil {
		observability.IncrementSettlement("withdrawal_initiate", "rejected")
		return nil, err
	}

	observability.IncrementSettlement("withdrawal_initiate", "pending")
	zap.L().Info("withdrawal initiated",
		zap.String("reference_id", referenceID),
		zap.String("user_id", req.UserID.String()),
		zap.String("amount", domain.NewMoney(req.Amount, req.Currency).String()),
	)
	return s.terminalResult(ctx, created)
}

type ResolveWithdrawalRequest struct {
	ReferenceID string
	Success     bool
	ProviderRef string
}

// ResolveWithdrawal records the outcome of the external payout. Success
// completes the transaction with no balance change (the debit already
// happened); failure refunds the debit and fails the transaction, both in
// one database transaction. Resolving a terminal withdrawal with the same
// verdict is a no-op that returns the existing state; a contradicting
// verdict is rejected, the recorded outcome stands.
func (s *SettlementService) ResolveWithdrawal(ctx context.Context, req ResolveWithdrawalRequest) (*SettlementResult, error) {
	var (
		resolved models.WalletTransaction
		replay   bool
	)
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		locked, err := qtx.GetTransactionByReferenceForUpdate(ctx, req.ReferenceID)
		if err != nil {
			return err
		}
		if locked.TransactionType != domain.TxTypeWithdrawal {
			return fmt.Errorf("%w: reference %s is not a withdrawal", models.ErrValidation, req.ReferenceID)
		}
		if isTerminalStatus(locked.Status) {
			want := domain.TxStatusFailed
			if req.Success {
				want = domain.TxStatusCompleted
			}
			if locked.Status != want {
				return fmt.Errorf("%w: withdrawal %s already %s", models.ErrAlreadyProcessed, req.ReferenceID, locked.Status)
			}
			resolved = locked
			replay = true
			return nil
		}

		if req.Success {
			if err := transitionTransactionState(ctx, qtx, locked.ID, domain.TxStatusCompleted); err != nil {
				return fmt.Errorf("%w: %v", models.ErrInternalInconsistency, err)
			}
			if req.ProviderRef != "" {
				if _, err := qtx.SetTransactionProviderRef(ctx, repository.SetTransactionProviderRefParams{
					ProviderRef: req.ProviderRef,
					ID:          locked.ID,
				}); err != nil {
					return err
				}
			}
			locked.Status = domain.TxStatusCompleted
			resolved = locked
			return nil
		}

		// Failed payout: refund the optimistic debit. The pending-state
		// check above makes the refund single-shot.
		rows, err := qtx.CreditUserBalance(ctx, repository.AdjustBalanceParams{
			UserID:   locked.UserID,
			Currency: locked.Currency,
			Amount:   locked.Amount,
		})
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "refund withdrawal balance"); err != nil {
			return fmt.Errorf("%w: %v", models.ErrInternalInconsistency, err)
		}
		if err := transitionTransactionState(ctx, qtx, locked.ID, domain.TxStatusFailed); err != nil {
			return fmt.Errorf("%w: %v", models.ErrInternalInconsistency, err)
		}
		locked.Status = domain.TxStatusFailed
		resolved = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	if replay {
		observability.IncrementSettlement("withdrawal_resolve", "replayed")
	} else if req.Success {
		observability.IncrementSettlement("withdrawal_resolve", "completed")
	} else {
		observability.IncrementSettlement("withdrawal_resolve", "refunded")
		zap.L().Warn("withdrawal refunded",
			zap.String("reference_id", req.ReferenceID),
			zap.String("user_id", resolved.UserID.String()),
			zap.Int64("amount", resolved.Amount),
		)
	}
	result, err := s.terminalResult(ctx, resolved)
	if err != nil {
		return nil, err
	}
	result.AlreadyProcessed = replay
	return result, nil
}

type CreditInternalRequest struct {
	FromUserID        uuid.UUID
	ToUserID          uuid.UUID
	Currency          domain.Currency
	Amount            int64
	CommissionApplies bool
	Note              string
}

// CreditInternal pays a campaign bonus from one user to another: a directly
// completed ledger entry, a balance credit for the recipient, and updates to
// the recipient's earned and the payer's spent counters. When transfer
// commission applies, the fee is taken out of the gross before crediting.
func (s *SettlementService) CreditInternal(ctx context.Context, req CreditInternalRequest) (*SettlementResult, error) {
	if req.FromUserID == uuid.Nil || req.ToUserID == uuid.Nil {
		return nil, fmt.Errorf("%w: payer and recipient are required", models.ErrValidation)
	}
	if req.FromUserID == req.ToUserID {
		return nil, fmt.Errorf("%w: cannot credit the same user", models.ErrValidation)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrValidation)
	}
	if !req.Currency.Valid() {
		return nil, fmt.Errorf("%w: unsupported currency %q", models.ErrValidation, req.Currency)
	}

	settings, err := s.store.Queries().GetCommissionSettings(ctx)
	if err != nil {
		return nil, err
	}
	applies := req.CommissionApplies && settings.CommissionOnTransfers
	breakdown := domain.TransferCommission(req.Amount, settings.CommissionPercentage, applies)
	if breakdown.Net <= 0 {
		return nil, fmt.Errorf("%w: commission leaves no creditable amount", models.ErrValidation)
	}

	metadata, err := json.Marshal(map[string]any{
		"from_user_id": req.FromUserID,
		"note":         req.Note,
	})
	if err != nil {
		return nil, fmt.Errorf("encode bonus metadata: %w", err)
	}

	referenceID := domain.ReferencePrefix(domain.TxTypeCampaignBonus) + uuid.NewString()
	var created models.WalletTransaction
	err = s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		created, err = qtx.CreateWalletTransaction(ctx, repository.CreateWalletTransactionParams{
			ID:               uuid.New(),
			UserID:           req.ToUserID,
			Amount:           breakdown.Net,
			Direction:        domain.DirectionCredit,
			Currency:         req.Currency,
			TransactionType:  domain.TxTypeCampaignBonus,
			Status:           domain.TxStatusCompleted,
			ReferenceID:      referenceID,
			CommissionAmount: breakdown.Commission,
			Metadata:         metadata,
		})
		if err != nil {
			return err
		}

		rows, err := qtx.CreditUserBalance(ctx, repository.AdjustBalanceParams{
			UserID:   req.ToUserID,
			Currency: req.Currency,
			Amount:   breakdown.Net,
		})
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "credit bonus balance"); err != nil {
			return fmt.Errorf("%w: %v", models.ErrInternalInconsistency, err)
		}

		if rows, err = qtx.AddUserEarnings(ctx, repository.AddUserEarningsParams{
			UserID:      req.ToUserID,
			EarnedDelta: breakdown.Net,
		}); err != nil {
			return err
		} else if err := requireExactlyOne(rows, "bump recipient earnings"); err != nil {
			return err
		}
		if rows, err = qtx.AddUserEarnings(ctx, repository.AddUserEarningsParams{
			UserID:     req.FromUserID,
			SpentDelta: req.Amount,
		}); err != nil {
			return err
		} else if err := requireExactlyOne(rows, "bump payer spend"); err != nil {
			return err
		}

		if breakdown.Commission > 0 {
			rows, err := qtx.CreditAdminWallet(ctx, repository.CreditAdminWalletParams{
				Currency:   req.Currency,
				Amount:     breakdown.Commission,
				Commission: breakdown.Commission,
			})
			if err != nil {
				return err
			}
			if err := requireExactlyOne(rows, "credit admin wallet"); err != nil {
				return fmt.Errorf("%w: %v", models.ErrInternalInconsistency, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.IncrementSettlement("internal_credit", "completed")
	zap.L().Info("internal credit settled",
		zap.String("reference_id", referenceID),
		zap.String("to_user_id", req.ToUserID.String()),
		zap.String("amount", domain.NewMoney(breakdown.Net, req.Currency).String()),
		zap.Int64("commission", breakdown.Commission),
	)
	return s.terminalResult(ctx, created)
}

// failTransaction moves a still-pending transaction to failed under a row
// lock. Terminal transactions are left untouched.
func (s *SettlementService) failTransaction(ctx context.Context, referenceID string) error {
	return s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		locked, err := qtx.GetTransactionByReferenceForUpdate(ctx, referenceID)
		if err != nil {
			return err
		}
		if isTerminalStatus(locked.Status) {
			return nil
		}
		return transitionTransactionState(ctx, qtx, locked.ID, domain.TxStatusFailed)
	})
}

func (s *SettlementService) terminalResult(ctx context.Context, tx models.WalletTransaction) (*SettlementResult, error) {
	balance, err := s.store.Queries().GetBalance(ctx, repository.EnsureUserBalanceParams{
		UserID:   tx.UserID,
		Currency: tx.Currency,
	})
	if err != nil {
		return nil, err
	}
	return &SettlementResult{Transaction: tx, Balance: balance}, nil
}

func checkDepositPolicy(settings models.CommissionSettings, currency domain.Currency, amount int64) error {
	policy, ok := settings.Policy(currency)
	if !ok || !policy.WalletEnabled {
		return fmt.Errorf("%w: %s wallet is disabled", models.ErrPolicyViolation, currency)
	}
	if policy.MinDeposit > 0 && amount < policy.MinDeposit {
		return fmt.Errorf("%w: deposit below minimum of %s", models.ErrPolicyViolation, domain.NewMoney(policy.MinDeposit, currency))
	}
	if policy.MaxDeposit > 0 && amount > policy.MaxDeposit {
		return fmt.Errorf("%w: deposit above maximum of %s", models.ErrPolicyViolation, domain.NewMoney(policy.MaxDeposit, currency))
	}
	return nil
}

func checkWithdrawalPolicy(settings models.CommissionSettings, currency domain.Currency, amount int64) error {
	policy, ok := settings.Policy(currency)
	if !ok || !policy.WalletEnabled {
		return fmt.Errorf("%w: %s wallet is disabled", models.ErrPolicyViolation, currency)
	}
	if policy.MinWithdrawal > 0 && amount < policy.MinWithdrawal {
		return fmt.Errorf("%w: withdrawal below minimum of %s", models.ErrPolicyViolation, domain.NewMoney(policy.MinWithdrawal, currency))
	}
	if policy.MaxWithdrawal > 0 && amount > policy.MaxWithdrawal {
		return fmt.Errorf("%w: withdrawal above maximum of %s", models.ErrPolicyViolation, domain.NewMoney(policy.MaxWithdrawal, currency))
	}
	return nil
}

// IsRetryableConfirmError reports whether a confirmation error leaves the
// transaction pending so the caller can safely re-invoke confirmation.
func IsRetryableConfirmError(err error) bool {
	return errors.Is(err, models.ErrGatewayFailure)
}
