package domain

import (
	"fmt"
	"strings"
)

// Currency is one of the three wallet currencies supported by the platform.
// Balances in different currencies are fully independent; no arithmetic ever
// crosses currencies.
type Currency string

const (
	CurrencyINR  Currency = "INR"
	CurrencyUSD  Currency = "USD"
	CurrencyUSDT Currency = "USDT"
)

// Currencies lists every supported currency in a stable order.
func Currencies() []Currency {
	return []Currency{CurrencyINR, CurrencyUSD, CurrencyUSDT}
}

// ParseCurrency normalizes and validates a currency code.
func ParseCurrency(s string) (Currency, error) {
	switch Currency(strings.ToUpper(strings.TrimSpace(s))) {
	case CurrencyINR:
		return CurrencyINR, nil
	case CurrencyUSD:
		return CurrencyUSD, nil
	case CurrencyUSDT:
		return CurrencyUSDT, nil
	default:
		return "", fmt.Errorf("unsupported currency: %q", s)
	}
}

func (c Currency) String() string {
	return string(c)
}

// Valid reports whether the currency is one of the supported codes.
func (c Currency) Valid() bool {
	switch c {
	case CurrencyINR, CurrencyUSD, CurrencyUSDT:
		return true
	default:
		return false
	}
}
