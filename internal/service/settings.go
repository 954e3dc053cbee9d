package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/winmicro/wallet-engine/internal/domain"
	"github.com/winmicro/wallet-engine/internal/models"
	"github.com/winmicro/wallet-engine/internal/repository"
	"go.uber.org/zap"
)

// SettingsService reads and writes the commission configuration. Updates
// replace the whole singleton row; new rates apply to settlements initiated
// after the write, never retroactively.
type SettingsService struct {
	store QueryStore
}

func NewSettingsService(store QueryStore) *SettingsService {
	return &SettingsService{store: store}
}

func (s *SettingsService) Get(ctx context.Context) (models.CommissionSettings, error) {
	return s.store.Queries().GetCommissionSettings(ctx)
}

type UpdateSettingsRequest struct {
	CommissionPercentage  decimal.Decimal                           `json:"commission_percentage"`
	CommissionOnDeposits  bool                                      `json:"commission_on_deposits"`
	CommissionOnTransfers bool                                      `json:"commission_on_transfers"`
	Policies              map[domain.Currency]models.CurrencyPolicy `json:"policies"`
}

func (s *SettingsService) Update(ctx context.Context, req UpdateSettingsRequest) (models.CommissionSettings, error) {
	if req.CommissionPercentage.IsNegative() {
		return models.CommissionSettings{}, fmt.Errorf("%w: commission percentage cannot be negative", models.ErrValidation)
	}
	if req.CommissionPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return models.CommissionSettings{}, fmt.Errorf("%w: commission percentage cannot exceed 100", models.ErrValidation)
	}
	for currency, policy := range req.Policies {
		if !currency.Valid() {
			return models.CommissionSettings{}, fmt.Errorf("%w: unsupported currency %q", models.ErrValidation, currency)
		}
		if err := validatePolicy(currency, policy); err != nil {
			return models.CommissionSettings{}, err
		}
	}

	// Unlisted currencies keep their current policy.
	current, err := s.store.Queries().GetCommissionSettings(ctx)
	if err != nil {
		return models.CommissionSettings{}, err
	}
	merged := make(map[domain.Currency]models.CurrencyPolicy, len(domain.Currencies()))
	for _, c := range domain.Currencies() {
		if policy, ok := req.Policies[c]; ok {
			merged[c] = policy
		} else if policy, ok := current.Policy(c); ok {
			merged[c] = policy
		} else {
			merged[c] = models.CurrencyPolicy{WalletEnabled: true}
		}
	}

	err = s.store.Queries().UpsertCommissionSettings(ctx, repository.UpsertCommissionSettingsParams{
		CommissionPercentage:  req.CommissionPercentage,
		CommissionOnDeposits:  req.CommissionOnDeposits,
		CommissionOnTransfers: req.CommissionOnTransfers,
		INR:                   merged[domain.CurrencyINR],
		USD:                   merged[domain.CurrencyUSD],
		USDT:                  merged[domain.CurrencyUSDT],
	})
	if err != nil {
		return models.CommissionSettings{}, err
	}

	zap.L().Info("commission settings updated",
		zap.String("commission_percentage", req.CommissionPercentage.String()),
		zap.Bool("on_deposits", req.CommissionOnDeposits),
		zap.Bool("on_transfers", req.CommissionOnTransfers),
	)
	return s.store.Queries().GetCommissionSettings(ctx)
}

func validatePolicy(currency domain.Currency, policy models.CurrencyPolicy) error {
	if policy.MinDeposit < 0 || policy.MaxDeposit < 0 || policy.MinWithdrawal < 0 || policy.MaxWithdrawal < 0 {
		return fmt.Errorf("%w: %s limits cannot be negative", models.ErrValidation, currency)
	}
	if policy.MaxDeposit > 0 && policy.MinDeposit > policy.MaxDeposit {
		return fmt.Errorf("%w: %s minimum deposit exceeds maximum", models.ErrValidation, currency)
	}
	if policy.MaxWithdrawal > 0 && policy.MinWithdrawal > policy.MaxWithdrawal {
		return fmt.Errorf("%w: %s minimum withdrawal exceeds maximum", models.ErrValidation, currency)
	}
	return nil
}
