package gateway

import (
	"context"
	"encoding/json"
	"fmt"
)

const ProviderMobileWallet = "mwallet"

// MobileWalletClient is the provider SDK surface for the mobile-wallet
// gateway.
type MobileWalletClient interface {
	// CreateCharge opens a wallet charge and returns its id plus the payment
	// URL the user is redirected to.
	CreateCharge(ctx context.Context, amount int64, currency, referenceID string) (chargeID, paymentURL string, err error)
	// LookupCharge returns the charge status, the wallet-side transaction id
	// and the amount paid.
	LookupCharge(ctx context.Context, chargeID string) (status, walletTxID string, amount int64, err error)
}

// MobileWalletAdapter normalizes the mobile-wallet gateway. Callbacks carry
// a plain hex HMAC-SHA256 of the raw payload.
type MobileWalletAdapter struct {
	client MobileWalletClient
	secret []byte
}

func NewMobileWalletAdapter(client MobileWalletClient, secret string) *MobileWalletAdapter {
	return &MobileWalletAdapter{client: client, secret: []byte(secret)}
}

func (a *MobileWalletAdapter) Name() string { return ProviderMobileWallet }

func (a *MobileWalletAdapter) CreateCharge(ctx context.Context, req CreateChargeRequest) (*ChargeHandle, error) {
	chargeID, paymentURL, err := a.client.CreateCharge(ctx, req.Amount, req.Currency.String(), req.ReferenceID)
	if err != nil {
		return nil, fmt.Errorf("mwallet create charge: %w", err)
	}
	return &ChargeHandle{
		Provider:      ProviderMobileWallet,
		ChargeID:      chargeID,
		CheckoutToken: paymentURL,
		Amount:        req.Amount,
		Currency:      req.Currency,
	}, nil
}

type mobileWalletCallbackPayload struct {
	ChargeID  string `json:"charge_id"`
	Reference string `json:"reference"`
}

func (a *MobileWalletAdapter) VerifyCharge(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	chargeID := req.ChargeID
	if len(req.Payload) > 0 {
		if !verifyHMACHex(a.secret, req.Payload, req.Signature) {
			return failedResult("callback signature mismatch"), nil
		}
		var payload mobileWalletCallbackPayload
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return failedResult("malformed callback payload"), nil
		}
		chargeID = payload.ChargeID
	}
	if chargeID == "" {
		chargeID = req.Assertion["charge_id"]
	}
	if chargeID == "" {
		return failedResult("missing charge id"), nil
	}

	status, walletTxID, amount, err := a.client.LookupCharge(ctx, chargeID)
	if err != nil {
		return nil, fmt.Errorf("mwallet lookup charge %s: %w", chargeID, err)
	}

	result := &VerifyResult{ProviderTxID: walletTxID, Captured: amount}
	switch status {
	case "COMPLETED":
		result.Status = StatusSuccess
	case "INITIATED", "PENDING":
		result.Status = StatusPending
	default:
		result.Status = StatusFailed
		result.Reason = fmt.Sprintf("charge status %q", status)
	}
	return result, nil
}
