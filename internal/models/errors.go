package models

import "errors"

var (
	// ErrValidation covers missing or malformed input, rejected before any
	// state mutation.
	ErrValidation = errors.New("validation failed")

	// ErrPolicyViolation means the currency wallet is disabled or the amount
	// falls outside the configured min/max bounds.
	ErrPolicyViolation = errors.New("policy violation")

	// ErrInsufficientBalance means a withdrawal exceeds the current balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNotFound means the reference id or user is unknown.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyProcessed means a terminal transaction was resolved again
	// with a contradicting verdict. Retries carrying the same verdict are
	// no-ops that return the existing state instead.
	ErrAlreadyProcessed = errors.New("transaction already processed")

	// ErrGatewayFailure means the adapter reported failure or a signature
	// mismatch. The transaction moves to failed with no balance effect.
	ErrGatewayFailure = errors.New("gateway failure")

	// ErrInternalInconsistency means a balance mutation and a status
	// mutation could not both commit. The transactional boundary is meant to
	// make this unreachable; the operation leaves the transaction pending.
	ErrInternalInconsistency = errors.New("internal inconsistency")
)
