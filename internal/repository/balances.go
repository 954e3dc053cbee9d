package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/winmicro/wallet-engine/internal/domain"
	"github.com/winmicro/wallet-engine/internal/models"
)

// EnsureUserBalanceParams identifies one user+currency balance row.
type EnsureUserBalanceParams struct {
	UserID   uuid.UUID
	Currency domain.Currency
}

// EnsureUserBalance creates the balance row at zero if it does not exist.
func (q *Queries) EnsureUserBalance(ctx context.Context, arg EnsureUserBalanceParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO user_balance (user_id, currency, amount, updated_at)
		VALUES ($1, $2, 0, NOW())
		ON CONFLICT (user_id, currency) DO NOTHING
	`, arg.UserID, arg.Currency.String())
	if err != nil {
		return fmt.Errorf("ensure user balance: %w", err)
	}
	return nil
}

type AdjustBalanceParams struct {
	UserID   uuid.UUID
	Currency domain.Currency
	Amount   int64
}

// CreditUserBalance atomically adds a positive amount to a balance, creating
// the row on first credit. Returns the number of affected rows.
func (q *Queries) CreditUserBalance(ctx context.Context, arg AdjustBalanceParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		INSERT INTO user_balance (user_id, currency, amount, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, currency) DO UPDATE
		SET amount = user_balance.amount + EXCLUDED.amount, updated_at = NOW()
	`, arg.UserID, arg.Currency.String(), arg.Amount)
	if err != nil {
		return 0, fmt.Errorf("credit user balance: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DebitUserBalance atomically subtracts an amount from a balance. The guard
// `amount >= $3` keeps balances non-negative: zero affected rows means the
// balance was missing or insufficient, and nothing changed.
func (q *Queries) DebitUserBalance(ctx context.Context, arg AdjustBalanceParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE user_balance
		SET amount = amount - $3, updated_at = NOW()
		WHERE user_id = $1 AND currency = $2 AND amount >= $3
	`, arg.UserID, arg.Currency.String(), arg.Amount)
	if err != nil {
		return 0, fmt.Errorf("debit user balance: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetBalance returns the minor-unit balance for one user+currency. A missing
// row reads as zero.
func (q *Queries) GetBalance(ctx context.Context, arg EnsureUserBalanceParams) (int64, error) {
	var amount int64
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(
			(SELECT amount FROM user_balance WHERE user_id = $1 AND currency = $2), 0)
	`, arg.UserID, arg.Currency.String()).Scan(&amount)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return amount, nil
}

// GetUserBalance assembles the three-currency balance view for one user.
func (q *Queries) GetUserBalance(ctx context.Context, userID uuid.UUID) (models.UserBalance, error) {
	rows, err := q.db.Query(ctx, `
		SELECT currency, amount FROM user_balance WHERE user_id = $1
	`, userID)
	if err != nil {
		return models.UserBalance{}, fmt.Errorf("get user balance: %w", err)
	}
	defer rows.Close()

	balance := models.UserBalance{UserID: userID}
	for rows.Next() {
		var currency string
		var amount int64
		if err := rows.Scan(&currency, &amount); err != nil {
			return models.UserBalance{}, fmt.Errorf("scan user balance: %w", err)
		}
		switch domain.Currency(currency) {
		case domain.CurrencyINR:
			balance.INR = amount
		case domain.CurrencyUSD:
			balance.USD = amount
		case domain.CurrencyUSDT:
			balance.USDT = amount
		}
	}
	if err := rows.Err(); err != nil {
		return models.UserBalance{}, fmt.Errorf("iterate user balance: %w", err)
	}
	return balance, nil
}

type AddUserEarningsParams struct {
	UserID      uuid.UUID
	EarnedDelta int64
	SpentDelta  int64
}

// AddUserEarnings bumps the campaign earned/spent counters for one user.
func (q *Queries) AddUserEarnings(ctx context.Context, arg AddUserEarningsParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		INSERT INTO user_earnings (user_id, total_earned, total_spent, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET total_earned = user_earnings.total_earned + EXCLUDED.total_earned,
		    total_spent = user_earnings.total_spent + EXCLUDED.total_spent,
		    updated_at = NOW()
	`, arg.UserID, arg.EarnedDelta, arg.SpentDelta)
	if err != nil {
		return 0, fmt.Errorf("add user earnings: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetUserEarnings returns the campaign counters for one user. A missing row
// reads as zeros.
func (q *Queries) GetUserEarnings(ctx context.Context, userID uuid.UUID) (models.UserEarnings, error) {
	earnings := models.UserEarnings{UserID: userID}
	err := q.db.QueryRow(ctx, `
		SELECT total_earned, total_spent, updated_at
		FROM user_earnings WHERE user_id = $1
	`, userID).Scan(&earnings.TotalEarned, &earnings.TotalSpent, &earnings.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return models.UserEarnings{UserID: userID}, nil
		}
		return models.UserEarnings{}, fmt.Errorf("get user earnings: %w", err)
	}
	return earnings, nil
}
