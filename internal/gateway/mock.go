package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockAdapter simulates a payment provider for tests and local runs.
// Charges succeed on verification unless a status override is set.
type MockAdapter struct {
	name string

	mu        sync.Mutex
	charges   map[string]CreateChargeRequest // charge id -> original request
	byRef     map[string]string              // reference id -> charge id
	overrides map[string]ChargeStatus        // reference id -> forced status
	createErr error
}

// NewMockAdapter creates a mock provider registered under the given name.
func NewMockAdapter(name string) *MockAdapter {
	return &MockAdapter{
		name:      name,
		charges:   make(map[string]CreateChargeRequest),
		byRef:     make(map[string]string),
		overrides: make(map[string]ChargeStatus),
	}
}

func (m *MockAdapter) Name() string { return m.name }

// FailNextCreate makes subsequent CreateCharge calls return err until reset
// with nil.
func (m *MockAdapter) FailNextCreate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

// SetVerifyStatus forces the verification outcome for one reference id.
func (m *MockAdapter) SetVerifyStatus(referenceID string, status ChargeStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[referenceID] = status
}

func (m *MockAdapter) CreateCharge(ctx context.Context, req CreateChargeRequest) (*ChargeHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	chargeID := fmt.Sprintf("MOCK-%s-%s", time.Now().Format("20060102"), uuid.NewString()[:8])
	m.charges[chargeID] = req
	m.byRef[req.ReferenceID] = chargeID
	return &ChargeHandle{
		Provider:      m.name,
		ChargeID:      chargeID,
		CheckoutToken: chargeID,
		Amount:        req.Amount,
		Currency:      req.Currency,
	}, nil
}

func (m *MockAdapter) VerifyCharge(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chargeID := req.ChargeID
	if chargeID == "" {
		chargeID = m.byRef[req.ReferenceID]
	}
	charge, ok := m.charges[chargeID]
	if !ok {
		return nil, ErrChargeNotFound
	}

	status := StatusSuccess
	if forced, ok := m.overrides[charge.ReferenceID]; ok {
		status = forced
	}
	result := &VerifyResult{Status: status, ProviderTxID: "pay_" + chargeID, Captured: charge.Amount}
	if status != StatusSuccess {
		result.Captured = 0
		result.Reason = "forced by test"
	}
	return result, nil
}
