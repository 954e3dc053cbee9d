package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/winmicro/wallet-engine/internal/domain"
)

type stubCardUPIClient struct {
	paymentStatus string
	captured      int64
}

func (s *stubCardUPIClient) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	return "order_123", nil
}

func (s *stubCardUPIClient) FetchPayment(ctx context.Context, paymentID string) (string, int64, error) {
	return s.paymentStatus, s.captured, nil
}

func TestCardUPIVerifyAcceptsSignedAssertion(t *testing.T) {
	adapter := NewCardUPIAdapter(&stubCardUPIClient{paymentStatus: "captured", captured: 102_000}, "topsecret")

	sig := hmacHex([]byte("topsecret"), []byte("order_123|pay_456"))
	result, err := adapter.VerifyCharge(context.Background(), VerifyRequest{
		ReferenceID: "dep_x",
		Assertion: map[string]string{
			"order_id":   "order_123",
			"payment_id": "pay_456",
			"signature":  sig,
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)
	require.Equal(t, "pay_456", result.ProviderTxID)
	require.Equal(t, int64(102_000), result.Captured)
}

func TestCardUPIVerifyRejectsBadSignature(t *testing.T) {
	adapter := NewCardUPIAdapter(&stubCardUPIClient{paymentStatus: "captured"}, "topsecret")

	result, err := adapter.VerifyCharge(context.Background(), VerifyRequest{
		Assertion: map[string]string{
			"order_id":   "order_123",
			"payment_id": "pay_456",
			"signature":  "deadbeef",
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusFailed, result.Status)
}

func TestCardUPIVerifySignedCallback(t *testing.T) {
	adapter := NewCardUPIAdapter(&stubCardUPIClient{paymentStatus: "authorized"}, "topsecret")

	payload, err := json.Marshal(cardUPICallbackPayload{OrderID: "order_9", PaymentID: "pay_9"})
	require.NoError(t, err)

	result, err := adapter.VerifyCharge(context.Background(), VerifyRequest{
		Payload:   payload,
		Signature: hmacHex([]byte("topsecret"), payload),
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, result.Status)
}

type stubIntlCardClient struct {
	status   string
	received int64
}

func (s *stubIntlCardClient) CreateIntent(ctx context.Context, amount int64, currency, referenceID string) (string, string, error) {
	return "pi_1", "secret_1", nil
}

func (s *stubIntlCardClient) GetIntent(ctx context.Context, intentID string) (string, int64, error) {
	return s.status, s.received, nil
}

func TestIntlCardVerifyTimestampedWebhook(t *testing.T) {
	adapter := NewIntlCardAdapter(&stubIntlCardClient{status: "succeeded", received: 5_000}, "whsec")

	payload, err := json.Marshal(intlCardWebhookPayload{IntentID: "pi_1", Reference: "dep_y"})
	require.NoError(t, err)

	signed := fmt.Sprintf("1700000000.%s", payload)
	header := "t=1700000000,v1=" + hmacHex([]byte("whsec"), []byte(signed))

	result, err := adapter.VerifyCharge(context.Background(), VerifyRequest{Payload: payload, Signature: header})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)
	require.Equal(t, int64(5_000), result.Captured)
}

func TestIntlCardVerifyRejectsTamperedWebhook(t *testing.T) {
	adapter := NewIntlCardAdapter(&stubIntlCardClient{status: "succeeded"}, "whsec")

	payload := []byte(`{"intent_id":"pi_1"}`)
	header := "t=1700000000,v1=" + hmacHex([]byte("whsec"), []byte("1700000000.different"))

	result, err := adapter.VerifyCharge(context.Background(), VerifyRequest{Payload: payload, Signature: header})
	require.NoError(t, err)
	require.Equal(t, StatusFailed, result.Status)
}

type stubMobileWalletClient struct {
	status string
	txID   string
	amount int64
}

func (s *stubMobileWalletClient) CreateCharge(ctx context.Context, amount int64, currency, referenceID string) (string, string, error) {
	return "chg_1", "https://wallet.example/pay/chg_1", nil
}

func (s *stubMobileWalletClient) LookupCharge(ctx context.Context, chargeID string) (string, string, int64, error) {
	return s.status, s.txID, s.amount, nil
}

func TestMobileWalletVerifyCompletedCharge(t *testing.T) {
	adapter := NewMobileWalletAdapter(&stubMobileWalletClient{status: "COMPLETED", txID: "TRX9", amount: 750}, "mwsec")

	payload := []byte(`{"charge_id":"chg_1","reference":"dep_z"}`)
	result, err := adapter.VerifyCharge(context.Background(), VerifyRequest{
		Payload:   payload,
		Signature: hmacHex([]byte("mwsec"), payload),
	})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)
	require.Equal(t, "TRX9", result.ProviderTxID)
}

func TestRegistryResolvesDefaults(t *testing.T) {
	mock := NewMockAdapter(ProviderCardUPI)
	registry := NewRegistry().Register(mock).SetDefault(domain.CurrencyINR, ProviderCardUPI)

	adapter, err := registry.ForCurrency(domain.CurrencyINR, "")
	require.NoError(t, err)
	require.Equal(t, ProviderCardUPI, adapter.Name())

	_, err = registry.ForCurrency(domain.CurrencyUSD, "")
	require.ErrorIs(t, err, ErrUnknownProvider)

	_, err = registry.Get("nope")
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestMockAdapterRoundTrip(t *testing.T) {
	mock := NewMockAdapter("mock")
	handle, err := mock.CreateCharge(context.Background(), CreateChargeRequest{
		Amount:      1_000,
		Currency:    domain.CurrencyUSD,
		ReferenceID: "dep_mock",
	})
	require.NoError(t, err)

	result, err := mock.VerifyCharge(context.Background(), VerifyRequest{ChargeID: handle.ChargeID})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)
	require.Equal(t, int64(1_000), result.Captured)

	mock.SetVerifyStatus("dep_mock", StatusFailed)
	result, err = mock.VerifyCharge(context.Background(), VerifyRequest{ReferenceID: "dep_mock"})
	require.NoError(t, err)
	require.Equal(t, StatusFailed, result.Status)
}
