package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/winmicro/wallet-engine/internal/domain"
)

// UserBalance is the per-user view over the three independent currency
// balances. Each field is minor units and never negative. Balances are
// mutated only through the settlement service, never by request handlers.
type UserBalance struct {
	UserID uuid.UUID `json:"user_id"`
	INR    int64     `json:"inr"`
	USD    int64     `json:"usd"`
	USDT   int64     `json:"usdt"`
}

// Amount returns the balance for one currency.
func (b UserBalance) Amount(c domain.Currency) int64 {
	switch c {
	case domain.CurrencyINR:
		return b.INR
	case domain.CurrencyUSD:
		return b.USD
	case domain.CurrencyUSDT:
		return b.USDT
	default:
		return 0
	}
}

// WalletTransaction is a money-movement record. It is created pending (or
// directly completed for internal credits), transitions to a terminal state
// exactly once, and is never deleted.
type WalletTransaction struct {
	ID               uuid.UUID       `json:"id"`
	UserID           uuid.UUID       `json:"user_id"`
	Amount           int64           `json:"amount"`
	Direction        string          `json:"direction"`
	Currency         domain.Currency `json:"currency"`
	TransactionType  string          `json:"transaction_type"`
	Status           string          `json:"status"`
	ReferenceID      string          `json:"reference_id"`
	CommissionAmount int64           `json:"commission_amount"`
	Provider         string          `json:"provider,omitempty"`
	ProviderRef      string          `json:"provider_ref,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// AdminWallet holds the platform balance for one currency plus the running
// commission counter. Mutated only when a commission-carrying transaction
// completes.
type AdminWallet struct {
	Currency              domain.Currency `json:"currency"`
	Balance               int64           `json:"balance"`
	TotalCommissionEarned int64           `json:"total_commission_earned"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// CurrencyPolicy is the per-currency slice of the commission settings row.
type CurrencyPolicy struct {
	WalletEnabled bool  `json:"wallet_enabled"`
	MinDeposit    int64 `json:"min_deposit"`
	MaxDeposit    int64 `json:"max_deposit"`
	MinWithdrawal int64 `json:"min_withdrawal"`
	MaxWithdrawal int64 `json:"max_withdrawal"`
}

// CommissionSettings is the singleton configuration row read by every
// money-moving operation. The settlement service never writes it.
type CommissionSettings struct {
	CommissionPercentage  decimal.Decimal                    `json:"commission_percentage"`
	CommissionOnDeposits  bool                               `json:"commission_on_deposits"`
	CommissionOnTransfers bool                               `json:"commission_on_transfers"`
	Policies              map[domain.Currency]CurrencyPolicy `json:"policies"`
	UpdatedAt             time.Time                          `json:"updated_at"`
}

// Policy returns the configured limits for one currency.
func (s CommissionSettings) Policy(c domain.Currency) (CurrencyPolicy, bool) {
	p, ok := s.Policies[c]
	return p, ok
}

// UserEarnings tracks the running campaign counters updated by internal
// credits: what the user has earned, and what they have paid out to others.
type UserEarnings struct {
	UserID      uuid.UUID `json:"user_id"`
	TotalEarned int64     `json:"total_earned"`
	TotalSpent  int64     `json:"total_spent"`
	UpdatedAt   time.Time `json:"updated_at"`
}
