package gateway

import (
	"context"
	"encoding/json"
	"fmt"
)

const ProviderCardUPI = "cardupi"

// CardUPIClient is the provider SDK surface for the domestic card/UPI
// gateway. The HTTP client behind it is an external collaborator.
type CardUPIClient interface {
	// CreateOrder registers a collect order and returns the provider order id.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error)
	// FetchPayment returns the provider-side payment status and captured amount.
	FetchPayment(ctx context.Context, paymentID string) (status string, amount int64, err error)
}

// CardUPIAdapter normalizes the card/UPI gateway. The provider signs
// client-side payment assertions with HMAC-SHA256 over "orderID|paymentID".
type CardUPIAdapter struct {
	client CardUPIClient
	secret []byte
}

func NewCardUPIAdapter(client CardUPIClient, secret string) *CardUPIAdapter {
	return &CardUPIAdapter{client: client, secret: []byte(secret)}
}

func (a *CardUPIAdapter) Name() string { return ProviderCardUPI }

func (a *CardUPIAdapter) CreateCharge(ctx context.Context, req CreateChargeRequest) (*ChargeHandle, error) {
	orderID, err := a.client.CreateOrder(ctx, req.Amount, req.Currency.String(), req.ReferenceID)
	if err != nil {
		return nil, fmt.Errorf("cardupi create order: %w", err)
	}
	return &ChargeHandle{
		Provider:      ProviderCardUPI,
		ChargeID:      orderID,
		CheckoutToken: orderID,
		Amount:        req.Amount,
		Currency:      req.Currency,
	}, nil
}

type cardUPICallbackPayload struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Reference string `json:"reference"`
}

func (a *CardUPIAdapter) VerifyCharge(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	orderID := req.ChargeID
	paymentID := req.Assertion["payment_id"]

	switch {
	case len(req.Payload) > 0:
		// Signed provider callback.
		if !verifyHMACHex(a.secret, req.Payload, req.Signature) {
			return failedResult("callback signature mismatch"), nil
		}
		var payload cardUPICallbackPayload
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return failedResult("malformed callback payload"), nil
		}
		orderID = payload.OrderID
		paymentID = payload.PaymentID
	default:
		// Client-submitted assertion: signature covers "orderID|paymentID".
		signed := fmt.Sprintf("%s|%s", req.Assertion["order_id"], paymentID)
		if !verifyHMACHex(a.secret, []byte(signed), req.Assertion["signature"]) {
			return failedResult("payment signature mismatch"), nil
		}
		if orderID == "" {
			orderID = req.Assertion["order_id"]
		}
	}

	if paymentID == "" {
		return failedResult("missing payment id"), nil
	}

	status, captured, err := a.client.FetchPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("cardupi fetch payment %s: %w", paymentID, err)
	}

	result := &VerifyResult{ProviderTxID: paymentID, Captured: captured}
	switch status {
	case "captured":
		result.Status = StatusSuccess
	case "created", "authorized":
		result.Status = StatusPending
	default:
		result.Status = StatusFailed
		result.Reason = fmt.Sprintf("payment status %q for order %s", status, orderID)
	}
	return result, nil
}
