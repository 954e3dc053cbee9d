package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/winmicro/wallet-engine/internal/domain"
	"github.com/winmicro/wallet-engine/internal/repository"
)

// A wallet transaction settles exactly once: pending may move to either
// terminal state, and terminal states absorb every further attempt.
var transactionTransitions = map[string]map[string]struct{}{
	domain.TxStatusPending: {
		domain.TxStatusCompleted: {},
		domain.TxStatusFailed:    {},
	},
	domain.TxStatusCompleted: {},
	domain.TxStatusFailed:    {},
}

func isTerminalStatus(status string) bool {
	return status == domain.TxStatusCompleted || status == domain.TxStatusFailed
}

// requireExactlyOne guards single-row mutations; settlements never touch
// more or fewer rows than the one they locked.
func requireExactlyOne(rows int64, operation string) error {
	if rows != 1 {
		return fmt.Errorf("%s affected %d rows", operation, rows)
	}
	return nil
}

func canTransition(current, next string) bool {
	nextStates, ok := transactionTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}

// transitionTransactionState moves a transaction to nextState under a row
// lock. A same-state transition is a no-op, which keeps retried settlements
// safe inside their enclosing database transaction.
func transitionTransactionState(ctx context.Context, qtx *repository.Queries, transactionID uuid.UUID, nextState string) error {
	currentState, err := qtx.GetTransactionStatusForUpdate(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("get current transaction state: %w", err)
	}

	if currentState == nextState {
		return nil
	}
	if !canTransition(currentState, nextState) {
		return fmt.Errorf("invalid transaction state transition: %s -> %s", currentState, nextState)
	}

	rows, err := qtx.UpdateTransactionStatus(ctx, repository.UpdateTransactionStatusParams{
		Status: nextState,
		ID:     transactionID,
	})
	if err != nil {
		return fmt.Errorf("update transaction state: %w", err)
	}
	return requireExactlyOne(rows, "update transaction state")
}
