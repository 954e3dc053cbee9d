package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// restClient is the shared HTTP plumbing behind the provider SDK clients.
type restClient struct {
	baseURL string
	apiKey  string
	secret  string
	http    *http.Client
}

func newRESTClient(baseURL, apiKey, secret string) restClient {
	return restClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		secret:  secret,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c restClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.SetBasicAuth(c.apiKey, c.secret)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, detail)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CardUPIHTTPClient talks to the domestic card/UPI gateway REST API.
type CardUPIHTTPClient struct {
	rest restClient
}

func NewCardUPIHTTPClient(baseURL, apiKey, secret string) *CardUPIHTTPClient {
	return &CardUPIHTTPClient{rest: newRESTClient(baseURL, apiKey, secret)}
}

func (c *CardUPIHTTPClient) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := c.rest.doJSON(ctx, http.MethodPost, "/v1/orders", map[string]any{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *CardUPIHTTPClient) FetchPayment(ctx context.Context, paymentID string) (string, int64, error) {
	var resp struct {
		Status string `json:"status"`
		Amount int64  `json:"amount"`
	}
	err := c.rest.doJSON(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, &resp)
	if err != nil {
		return "", 0, err
	}
	return resp.Status, resp.Amount, nil
}

// IntlCardHTTPClient talks to the international card/wallet gateway REST API.
type IntlCardHTTPClient struct {
	rest restClient
}

func NewIntlCardHTTPClient(baseURL, secret string) *IntlCardHTTPClient {
	return &IntlCardHTTPClient{rest: newRESTClient(baseURL, "", secret)}
}

func (c *IntlCardHTTPClient) CreateIntent(ctx context.Context, amount int64, currency, referenceID string) (string, string, error) {
	var resp struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
	}
	err := c.rest.doJSON(ctx, http.MethodPost, "/v1/payment_intents", map[string]any{
		"amount":   amount,
		"currency": currency,
		"metadata": map[string]string{"reference_id": referenceID},
	}, &resp)
	if err != nil {
		return "", "", err
	}
	return resp.ID, resp.ClientSecret, nil
}

func (c *IntlCardHTTPClient) GetIntent(ctx context.Context, intentID string) (string, int64, error) {
	var resp struct {
		Status         string `json:"status"`
		AmountReceived int64  `json:"amount_received"`
	}
	err := c.rest.doJSON(ctx, http.MethodGet, "/v1/payment_intents/"+intentID, nil, &resp)
	if err != nil {
		return "", 0, err
	}
	return resp.Status, resp.AmountReceived, nil
}

// MobileWalletHTTPClient talks to the mobile-wallet gateway REST API.
type MobileWalletHTTPClient struct {
	rest restClient
}

func NewMobileWalletHTTPClient(baseURL, apiKey, secret string) *MobileWalletHTTPClient {
	return &MobileWalletHTTPClient{rest: newRESTClient(baseURL, apiKey, secret)}
}

func (c *MobileWalletHTTPClient) CreateCharge(ctx context.Context, amount int64, currency, referenceID string) (string, string, error) {
	var resp struct {
		ChargeID   string `json:"charge_id"`
		PaymentURL string `json:"payment_url"`
	}
	err := c.rest.doJSON(ctx, http.MethodPost, "/v1/charges", map[string]any{
		"amount":    amount,
		"currency":  currency,
		"reference": referenceID,
	}, &resp)
	if err != nil {
		return "", "", err
	}
	return resp.ChargeID, resp.PaymentURL, nil
}

func (c *MobileWalletHTTPClient) LookupCharge(ctx context.Context, chargeID string) (string, string, int64, error) {
	var resp struct {
		Status     string `json:"status"`
		WalletTxID string `json:"wallet_tx_id"`
		Amount     int64  `json:"amount"`
	}
	err := c.rest.doJSON(ctx, http.MethodGet, "/v1/charges/"+chargeID, nil, &resp)
	if err != nil {
		return "", "", 0, err
	}
	return resp.Status, resp.WalletTxID, resp.Amount, nil
}
