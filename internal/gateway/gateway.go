package gateway

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/winmicro/wallet-engine/internal/domain"
)

// ChargeStatus is the normalized outcome of a verify/capture call.
type ChargeStatus string

const (
	StatusSuccess ChargeStatus = "success"
	StatusPending ChargeStatus = "pending"
	StatusFailed  ChargeStatus = "failed"
)

var (
	ErrUnknownProvider = errors.New("unknown payment provider")
	ErrChargeNotFound  = errors.New("charge not found")
)

// CreateChargeRequest asks a provider to collect Amount (minor units,
// already including any commission surcharge) from the user. ReferenceID is
// passed through for provider-side correlation.
type CreateChargeRequest struct {
	UserID      uuid.UUID
	Amount      int64
	Currency    domain.Currency
	Description string
	ReferenceID string
}

// ChargeHandle is whatever the client needs to complete payment collection
// with the provider: an order id, a client secret, or a redirect URL.
type ChargeHandle struct {
	Provider      string          `json:"provider"`
	ChargeID      string          `json:"charge_id"`
	CheckoutToken string          `json:"checkout_token,omitempty"`
	Amount        int64           `json:"amount"`
	Currency      domain.Currency `json:"currency"`
}

// VerifyRequest carries the proof that payment collection finished.
// Assertion holds provider-specific fields submitted by the client
// (payment ids, inline signatures). Payload and Signature are set instead
// when verification originates from a signed provider callback.
type VerifyRequest struct {
	ReferenceID string
	ChargeID    string
	Assertion   map[string]string
	Payload     []byte
	Signature   string
}

// VerifyResult is the normalized verification outcome. A signature mismatch
// is always reported as StatusFailed, never surfaced as success.
type VerifyResult struct {
	Status       ChargeStatus
	ProviderTxID string
	Captured     int64
	Reason       string
}

// Adapter normalizes one external payment provider into the two operations
// the settlement service consumes. Callback signature verification happens
// inside the adapter, before any ledger state is touched.
type Adapter interface {
	Name() string
	CreateCharge(ctx context.Context, req CreateChargeRequest) (*ChargeHandle, error)
	VerifyCharge(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
}

func failedResult(reason string) *VerifyResult {
	return &VerifyResult{Status: StatusFailed, Reason: reason}
}
