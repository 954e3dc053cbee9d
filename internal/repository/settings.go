package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/winmicro/wallet-engine/internal/domain"
	"github.com/winmicro/wallet-engine/internal/models"
)

// GetCommissionSettings loads the singleton configuration row. If no row has
// been seeded yet, conservative defaults apply: zero commission, all wallets
// enabled, no bounds beyond a positive amount.
func (q *Queries) GetCommissionSettings(ctx context.Context) (models.CommissionSettings, error) {
	var (
		s       models.CommissionSettings
		inr     models.CurrencyPolicy
		usd     models.CurrencyPolicy
		usdt    models.CurrencyPolicy
		rateStr string
	)
	err := q.db.QueryRow(ctx, `
		SELECT commission_percentage::TEXT, commission_on_deposits, commission_on_transfers,
			inr_wallet_enabled, min_deposit_inr, max_deposit_inr, min_withdrawal_inr, max_withdrawal_inr,
			usd_wallet_enabled, min_deposit_usd, max_deposit_usd, min_withdrawal_usd, max_withdrawal_usd,
			usdt_wallet_enabled, min_deposit_usdt, max_deposit_usdt, min_withdrawal_usdt, max_withdrawal_usdt,
			updated_at
		FROM commission_settings WHERE id = 1
	`).Scan(
		&rateStr, &s.CommissionOnDeposits, &s.CommissionOnTransfers,
		&inr.WalletEnabled, &inr.MinDeposit, &inr.MaxDeposit, &inr.MinWithdrawal, &inr.MaxWithdrawal,
		&usd.WalletEnabled, &usd.MinDeposit, &usd.MaxDeposit, &usd.MinWithdrawal, &usd.MaxWithdrawal,
		&usdt.WalletEnabled, &usdt.MinDeposit, &usdt.MaxDeposit, &usdt.MinWithdrawal, &usdt.MaxWithdrawal,
		&s.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return defaultCommissionSettings(), nil
		}
		return models.CommissionSettings{}, fmt.Errorf("get commission settings: %w", err)
	}

	s.CommissionPercentage, err = decimal.NewFromString(rateStr)
	if err != nil {
		return models.CommissionSettings{}, fmt.Errorf("parse commission percentage: %w", err)
	}
	s.Policies = map[domain.Currency]models.CurrencyPolicy{
		domain.CurrencyINR:  inr,
		domain.CurrencyUSD:  usd,
		domain.CurrencyUSDT: usdt,
	}
	return s, nil
}

func defaultCommissionSettings() models.CommissionSettings {
	policies := make(map[domain.Currency]models.CurrencyPolicy, 3)
	for _, c := range domain.Currencies() {
		policies[c] = models.CurrencyPolicy{WalletEnabled: true}
	}
	return models.CommissionSettings{
		CommissionPercentage: decimal.Zero,
		Policies:             policies,
	}
}

type UpsertCommissionSettingsParams struct {
	CommissionPercentage  decimal.Decimal
	CommissionOnDeposits  bool
	CommissionOnTransfers bool
	INR                   models.CurrencyPolicy
	USD                   models.CurrencyPolicy
	USDT                  models.CurrencyPolicy
}

// UpsertCommissionSettings writes the singleton row. Only the administrative
// collaborator calls this; the settlement service is read-only on settings.
func (q *Queries) UpsertCommissionSettings(ctx context.Context, arg UpsertCommissionSettingsParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO commission_settings (
			id, commission_percentage, commission_on_deposits, commission_on_transfers,
			inr_wallet_enabled, min_deposit_inr, max_deposit_inr, min_withdrawal_inr, max_withdrawal_inr,
			usd_wallet_enabled, min_deposit_usd, max_deposit_usd, min_withdrawal_usd, max_withdrawal_usd,
			usdt_wallet_enabled, min_deposit_usdt, max_deposit_usdt, min_withdrawal_usdt, max_withdrawal_usdt,
			updated_at
		) VALUES (
			1, $1, $2, $3,
			$4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18,
			NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			commission_percentage = EXCLUDED.commission_percentage,
			commission_on_deposits = EXCLUDED.commission_on_deposits,
			commission_on_transfers = EXCLUDED.commission_on_transfers,
			inr_wallet_enabled = EXCLUDED.inr_wallet_enabled,
			min_deposit_inr = EXCLUDED.min_deposit_inr,
			max_deposit_inr = EXCLUDED.max_deposit_inr,
			min_withdrawal_inr = EXCLUDED.min_withdrawal_inr,
			max_withdrawal_inr = EXCLUDED.max_withdrawal_inr,
			usd_wallet_enabled = EXCLUDED.usd_wallet_enabled,
			min_deposit_usd = EXCLUDED.min_deposit_usd,
			max_deposit_usd = EXCLUDED.max_deposit_usd,
			min_withdrawal_usd = EXCLUDED.min_withdrawal_usd,
			max_withdrawal_usd = EXCLUDED.max_withdrawal_usd,
			usdt_wallet_enabled = EXCLUDED.usdt_wallet_enabled,
			min_deposit_usdt = EXCLUDED.min_deposit_usdt,
			max_deposit_usdt = EXCLUDED.max_deposit_usdt,
			min_withdrawal_usdt = EXCLUDED.min_withdrawal_usdt,
			max_withdrawal_usdt = EXCLUDED.max_withdrawal_usdt,
			updated_at = NOW()
	`,
		arg.CommissionPercentage.String(), arg.CommissionOnDeposits, arg.CommissionOnTransfers,
		arg.INR.WalletEnabled, arg.INR.MinDeposit, arg.INR.MaxDeposit, arg.INR.MinWithdrawal, arg.INR.MaxWithdrawal,
		arg.USD.WalletEnabled, arg.USD.MinDeposit, arg.USD.MaxDeposit, arg.USD.MinWithdrawal, arg.USD.MaxWithdrawal,
		arg.USDT.WalletEnabled, arg.USDT.MinDeposit, arg.USDT.MaxDeposit, arg.USDT.MinWithdrawal, arg.USDT.MaxWithdrawal,
	)
	if err != nil {
		return fmt.Errorf("upsert commission settings: %w", err)
	}
	return nil
}
