package gateway

import (
	"context"
	"encoding/json"
	"fmt"
)

const ProviderIntlCard = "intlcard"

// IntlCardClient is the provider SDK surface for the international
// card/wallet gateway.
type IntlCardClient interface {
	// CreateIntent opens a payment intent and returns its id plus the client
	// secret the frontend needs to confirm it.
	CreateIntent(ctx context.Context, amount int64, currency, referenceID string) (intentID, clientSecret string, err error)
	// GetIntent returns the intent status and the amount actually received.
	GetIntent(ctx context.Context, intentID string) (status string, amountReceived int64, err error)
}

// IntlCardAdapter normalizes the international card/wallet gateway. Webhook
// payloads arrive with a "t=<unix>,v1=<hex>" signature header.
type IntlCardAdapter struct {
	client        IntlCardClient
	webhookSecret []byte
}

func NewIntlCardAdapter(client IntlCardClient, webhookSecret string) *IntlCardAdapter {
	return &IntlCardAdapter{client: client, webhookSecret: []byte(webhookSecret)}
}

func (a *IntlCardAdapter) Name() string { return ProviderIntlCard }

func (a *IntlCardAdapter) CreateCharge(ctx context.Context, req CreateChargeRequest) (*ChargeHandle, error) {
	intentID, clientSecret, err := a.client.CreateIntent(ctx, req.Amount, req.Currency.String(), req.ReferenceID)
	if err != nil {
		return nil, fmt.Errorf("intlcard create intent: %w", err)
	}
	return &ChargeHandle{
		Provider:      ProviderIntlCard,
		ChargeID:      intentID,
		CheckoutToken: clientSecret,
		Amount:        req.Amount,
		Currency:      req.Currency,
	}, nil
}

type intlCardWebhookPayload struct {
	IntentID  string `json:"intent_id"`
	Reference string `json:"reference"`
}

func (a *IntlCardAdapter) VerifyCharge(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	intentID := req.ChargeID
	if len(req.Payload) > 0 {
		if !verifyTimestampedSignature(a.webhookSecret, req.Payload, req.Signature) {
			return failedResult("webhook signature mismatch"), nil
		}
		var payload intlCardWebhookPayload
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return failedResult("malformed webhook payload"), nil
		}
		intentID = payload.IntentID
	}
	if intentID == "" {
		intentID = req.Assertion["intent_id"]
	}
	if intentID == "" {
		return failedResult("missing intent id"), nil
	}

	status, received, err := a.client.GetIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("intlcard get intent %s: %w", intentID, err)
	}

	result := &VerifyResult{ProviderTxID: intentID, Captured: received}
	switch status {
	case "succeeded":
		result.Status = StatusSuccess
	case "processing", "requires_action", "requires_confirmation":
		result.Status = StatusPending
	default:
		result.Status = StatusFailed
		result.Reason = fmt.Sprintf("intent status %q", status)
	}
	return result, nil
}
