package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// BalanceDrift is a user+currency whose stored balance no longer equals the
// net of its applied ledger movements.
type BalanceDrift struct {
	UserID    uuid.UUID
	Currency  string
	Stored    int64
	LedgerNet int64
}

// ListBalanceDrift compares every stored balance against the net of the
// user's applied transactions in that currency. Pending withdrawals count on
// the ledger side: their debit hits the balance at initiation, before the
// payout reaches a terminal state. An empty result means the ledger and the
// balances agree.
func (q *Queries) ListBalanceDrift(ctx context.Context) ([]BalanceDrift, error) {
	rows, err := q.db.Query(ctx, `
		WITH ledger AS (
			SELECT user_id, currency,
				SUM(CASE WHEN direction = 'credit' THEN amount ELSE -amount END) AS net
			FROM wallet_transaction
			WHERE status = 'completed'
			   OR (status = 'pending' AND direction = 'debit')
			GROUP BY user_id, currency
		)
		SELECT b.user_id, b.currency, b.amount, COALESCE(l.net, 0)
		FROM user_balance b
		LEFT JOIN ledger l ON l.user_id = b.user_id AND l.currency = b.currency
		WHERE b.amount <> COALESCE(l.net, 0)
	`)
	if err != nil {
		return nil, fmt.Errorf("list balance drift: %w", err)
	}
	defer rows.Close()

	var out []BalanceDrift
	for rows.Next() {
		var d BalanceDrift
		if err := rows.Scan(&d.UserID, &d.Currency, &d.Stored, &d.LedgerNet); err != nil {
			return nil, fmt.Errorf("scan balance drift: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balance drift: %w", err)
	}
	return out, nil
}

// CommissionDrift is a currency whose admin wallet commission counter does
// not equal the sum of commissions on completed transactions.
type CommissionDrift struct {
	Currency  string
	Recorded  int64
	LedgerSum int64
}

// ListCommissionDrift cross-checks admin wallet commission counters against
// the transaction log.
func (q *Queries) ListCommissionDrift(ctx context.Context) ([]CommissionDrift, error) {
	rows, err := q.db.Query(ctx, `
		WITH ledger AS (
			SELECT currency, SUM(commission_amount) AS total
			FROM wallet_transaction
			WHERE status = 'completed' AND commission_amount > 0
			GROUP BY currency
		)
		SELECT w.currency, w.total_commission_earned, COALESCE(l.total, 0)
		FROM admin_wallet w
		LEFT JOIN ledger l ON l.currency = w.currency
		WHERE w.total_commission_earned <> COALESCE(l.total, 0)
	`)
	if err != nil {
		return nil, fmt.Errorf("list commission drift: %w", err)
	}
	defer rows.Close()

	var out []CommissionDrift
	for rows.Next() {
		var d CommissionDrift
		if err := rows.Scan(&d.Currency, &d.Recorded, &d.LedgerSum); err != nil {
			return nil, fmt.Errorf("scan commission drift: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commission drift: %w", err)
	}
	return out, nil
}
