package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDepositCommission(t *testing.T) {
	// 1000.00 gross at 2% -> 20.00 commission, 1020.00 payable, 1000.00 net.
	rate := decimal.RequireFromString("2.00")
	b := DepositCommission(100_000, rate, true)
	assert.Equal(t, int64(100_000), b.Net)
	assert.Equal(t, int64(2_000), b.Commission)
	assert.Equal(t, int64(102_000), b.Payable)
}

func TestDepositCommission_NotApplied(t *testing.T) {
	rate := decimal.RequireFromString("2.00")
	b := DepositCommission(100_000, rate, false)
	assert.Equal(t, int64(100_000), b.Net)
	assert.Equal(t, int64(0), b.Commission)
	assert.Equal(t, int64(100_000), b.Payable)
}

func TestDepositCommission_RoundsHalfUp(t *testing.T) {
	// gross 125 * 2 / 100 = 2.5 -> 3.
	rate := decimal.RequireFromString("2.00")
	b := DepositCommission(125, rate, true)
	assert.Equal(t, int64(3), b.Commission)

	// gross 120 * 2 / 100 = 2.4 -> 2.
	b = DepositCommission(120, rate, true)
	assert.Equal(t, int64(2), b.Commission)
}

func TestTransferCommission_SubtractsFromGross(t *testing.T) {
	rate := decimal.RequireFromString("5.00")
	b := TransferCommission(10_000, rate, true)
	assert.Equal(t, int64(9_500), b.Net)
	assert.Equal(t, int64(500), b.Commission)
	assert.Equal(t, int64(10_000), b.Payable)
}

func TestTransferCommission_FeeNeverExceedsGross(t *testing.T) {
	rate := decimal.RequireFromString("200.00")
	b := TransferCommission(100, rate, true)
	assert.Equal(t, int64(0), b.Net)
	assert.Equal(t, int64(100), b.Commission)
}

func TestCommissionAmount_ZeroRate(t *testing.T) {
	b := DepositCommission(100_000, decimal.Zero, true)
	assert.Equal(t, int64(0), b.Commission)
	assert.Equal(t, int64(100_000), b.Payable)
}

func TestMoneyString(t *testing.T) {
	m := NewMoney(102_000, CurrencyINR)
	assert.Equal(t, "1020.00 INR", m.String())
}

func TestFromDecimal(t *testing.T) {
	d := decimal.RequireFromString("10.505")
	assert.Equal(t, int64(1051), FromDecimal(d))
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" usdt ")
	assert.NoError(t, err)
	assert.Equal(t, CurrencyUSDT, c)

	_, err = ParseCurrency("EUR")
	assert.Error(t, err)
}
