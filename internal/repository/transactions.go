package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/winmicro/wallet-engine/internal/domain"
	"github.com/winmicro/wallet-engine/internal/models"
)

const walletTransactionColumns = `
	id, user_id, amount, direction, currency, transaction_type, status,
	reference_id, commission_amount, COALESCE(provider, ''),
	COALESCE(provider_ref, ''), created_at, updated_at`

func scanWalletTransaction(row interface{ Scan(dest ...any) error }) (models.WalletTransaction, error) {
	var tx models.WalletTransaction
	var currency string
	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.Amount, &tx.Direction, &currency,
		&tx.TransactionType, &tx.Status, &tx.ReferenceID, &tx.CommissionAmount,
		&tx.Provider, &tx.ProviderRef, &tx.CreatedAt, &tx.UpdatedAt,
	)
	tx.Currency = domain.Currency(currency)
	return tx, err
}

type CreateWalletTransactionParams struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	Amount           int64
	Direction        string
	Currency         domain.Currency
	TransactionType  string
	Status           string
	ReferenceID      string
	CommissionAmount int64
	Provider         string
	Metadata         []byte
}

// CreateWalletTransaction appends a new ledger record. The unique constraint
// on reference_id is the idempotency boundary for external confirmations.
func (q *Queries) CreateWalletTransaction(ctx context.Context, arg CreateWalletTransactionParams) (models.WalletTransaction, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO wallet_transaction (
			id, user_id, amount, direction, currency, transaction_type, status,
			reference_id, commission_amount, provider, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, NOW(), NOW())
		RETURNING `+walletTransactionColumns,
		arg.ID, arg.UserID, arg.Amount, arg.Direction, arg.Currency.String(),
		arg.TransactionType, arg.Status, arg.ReferenceID, arg.CommissionAmount,
		arg.Provider, arg.Metadata,
	)
	tx, err := scanWalletTransaction(row)
	if err != nil {
		return models.WalletTransaction{}, fmt.Errorf("create wallet transaction: %w", err)
	}
	return tx, nil
}

// GetTransactionByReference looks up a transaction by its reference id.
func (q *Queries) GetTransactionByReference(ctx context.Context, referenceID string) (models.WalletTransaction, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+walletTransactionColumns+`
		FROM wallet_transaction WHERE reference_id = $1
	`, referenceID)
	tx, err := scanWalletTransaction(row)
	if err != nil {
		if isNoRows(err) {
			return models.WalletTransaction{}, models.ErrNotFound
		}
		return models.WalletTransaction{}, fmt.Errorf("get transaction by reference: %w", err)
	}
	return tx, nil
}

// GetTransactionByReferenceForUpdate locks the transaction row for the rest
// of the enclosing database transaction. Concurrent confirmations for the
// same reference id serialize here.
func (q *Queries) GetTransactionByReferenceForUpdate(ctx context.Context, referenceID string) (models.WalletTransaction, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+walletTransactionColumns+`
		FROM wallet_transaction WHERE reference_id = $1
		FOR UPDATE
	`, referenceID)
	tx, err := scanWalletTransaction(row)
	if err != nil {
		if isNoRows(err) {
			return models.WalletTransaction{}, models.ErrNotFound
		}
		return models.WalletTransaction{}, fmt.Errorf("lock transaction by reference: %w", err)
	}
	return tx, nil
}

type UpdateTransactionStatusParams struct {
	Status string
	ID     uuid.UUID
}

// UpdateTransactionStatus sets the status of one transaction and returns the
// affected row count.
func (q *Queries) UpdateTransactionStatus(ctx context.Context, arg UpdateTransactionStatusParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE wallet_transaction SET status = $1, updated_at = NOW() WHERE id = $2
	`, arg.Status, arg.ID)
	if err != nil {
		return 0, fmt.Errorf("update transaction status: %w", err)
	}
	return tag.RowsAffected(), nil
}

type SetTransactionProviderRefParams struct {
	ProviderRef string
	ID          uuid.UUID
}

// SetTransactionProviderRef records the provider-side transaction id captured
// during verification.
func (q *Queries) SetTransactionProviderRef(ctx context.Context, arg SetTransactionProviderRefParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE wallet_transaction SET provider_ref = $1, updated_at = NOW() WHERE id = $2
	`, arg.ProviderRef, arg.ID)
	if err != nil {
		return 0, fmt.Errorf("set transaction provider ref: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetTransactionStatusForUpdate returns the current status with the row
// locked until the enclosing transaction ends.
func (q *Queries) GetTransactionStatusForUpdate(ctx context.Context, id uuid.UUID) (string, error) {
	var status string
	err := q.db.QueryRow(ctx, `
		SELECT status FROM wallet_transaction WHERE id = $1 FOR UPDATE
	`, id).Scan(&status)
	if err != nil {
		if isNoRows(err) {
			return "", models.ErrNotFound
		}
		return "", fmt.Errorf("get transaction status: %w", err)
	}
	return status, nil
}

type ListUserTransactionsParams struct {
	UserID uuid.UUID
	Limit  int32
	Offset int32
}

// ListUserTransactions returns a page of the user's ledger history, newest
// first.
func (q *Queries) ListUserTransactions(ctx context.Context, arg ListUserTransactionsParams) ([]models.WalletTransaction, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+walletTransactionColumns+`
		FROM wallet_transaction
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, fmt.Errorf("list user transactions: %w", err)
	}
	defer rows.Close()

	var out []models.WalletTransaction
	for rows.Next() {
		tx, err := scanWalletTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// PendingAgeStat summarizes pending transactions for one transaction type.
type PendingAgeStat struct {
	TransactionType string
	Count           int64
	OldestCreatedAt int64 // unix seconds
}

// ListPendingAgeStats reports how many transactions are still pending per
// type and the age of the oldest one. Read-only; the sweep never mutates.
func (q *Queries) ListPendingAgeStats(ctx context.Context) ([]PendingAgeStat, error) {
	rows, err := q.db.Query(ctx, `
		SELECT transaction_type, COUNT(*), EXTRACT(EPOCH FROM MIN(created_at))::BIGINT
		FROM wallet_transaction
		WHERE status = 'pending'
		GROUP BY transaction_type
	`)
	if err != nil {
		return nil, fmt.Errorf("list pending age stats: %w", err)
	}
	defer rows.Close()

	var out []PendingAgeStat
	for rows.Next() {
		var stat PendingAgeStat
		if err := rows.Scan(&stat.TransactionType, &stat.Count, &stat.OldestCreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending age stat: %w", err)
		}
		out = append(out, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending age stats: %w", err)
	}
	return out, nil
}
