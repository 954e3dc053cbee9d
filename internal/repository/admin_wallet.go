package repository

import (
	"context"
	"fmt"

	"github.com/winmicro/wallet-engine/internal/domain"
	"github.com/winmicro/wallet-engine/internal/models"
)

type CreditAdminWalletParams struct {
	Currency   domain.Currency
	Amount     int64
	Commission int64
}

// CreditAdminWallet atomically adds to the platform balance and the running
// commission counter for one currency.
func (q *Queries) CreditAdminWallet(ctx context.Context, arg CreditAdminWalletParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		INSERT INTO admin_wallet (currency, balance, total_commission_earned, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (currency) DO UPDATE
		SET balance = admin_wallet.balance + EXCLUDED.balance,
		    total_commission_earned = admin_wallet.total_commission_earned + EXCLUDED.total_commission_earned,
		    updated_at = NOW()
	`, arg.Currency.String(), arg.Amount, arg.Commission)
	if err != nil {
		return 0, fmt.Errorf("credit admin wallet: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetAdminWallet returns the platform wallet row for one currency. A missing
// row reads as zeros.
func (q *Queries) GetAdminWallet(ctx context.Context, currency domain.Currency) (models.AdminWallet, error) {
	wallet := models.AdminWallet{Currency: currency}
	err := q.db.QueryRow(ctx, `
		SELECT balance, total_commission_earned, updated_at
		FROM admin_wallet WHERE currency = $1
	`, currency.String()).Scan(&wallet.Balance, &wallet.TotalCommissionEarned, &wallet.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return models.AdminWallet{Currency: currency}, nil
		}
		return models.AdminWallet{}, fmt.Errorf("get admin wallet: %w", err)
	}
	return wallet, nil
}

// ListAdminWallets returns every per-currency platform wallet.
func (q *Queries) ListAdminWallets(ctx context.Context) ([]models.AdminWallet, error) {
	rows, err := q.db.Query(ctx, `
		SELECT currency, balance, total_commission_earned, updated_at
		FROM admin_wallet ORDER BY currency
	`)
	if err != nil {
		return nil, fmt.Errorf("list admin wallets: %w", err)
	}
	defer rows.Close()

	var out []models.AdminWallet
	for rows.Next() {
		var wallet models.AdminWallet
		var currency string
		if err := rows.Scan(&currency, &wallet.Balance, &wallet.TotalCommissionEarned, &wallet.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan admin wallet: %w", err)
		}
		wallet.Currency = domain.Currency(currency)
		out = append(out, wallet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admin wallets: %w", err)
	}
	return out, nil
}
