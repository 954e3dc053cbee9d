package domain

import "github.com/shopspring/decimal"

// CommissionBreakdown is the result of applying the platform commission rate
// to a gross amount. All amounts are minor units of one currency.
type CommissionBreakdown struct {
	// Net is the amount that lands on the user's balance.
	Net int64
	// Commission is the platform fee credited to the admin wallet.
	Commission int64
	// Payable is the amount collected from the external party. For deposits
	// the commission is charged on top of the gross; for internal credits it
	// is taken out of the gross, so Payable equals the original gross.
	Payable int64
}

// commissionAmount computes round-half-up(gross * rate / 100) in minor units.
// rate is a percentage, e.g. 2.00 for 2%.
func commissionAmount(gross int64, rate decimal.Decimal) int64 {
	if gross <= 0 || rate.Sign() <= 0 {
		return 0
	}
	return decimal.NewFromInt(gross).
		Mul(rate).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

// DepositCommission applies the deposit rule: the commission is added on top
// of the gross so the user's credited amount equals the requested gross and
// the gateway collects gross + commission.
func DepositCommission(gross int64, rate decimal.Decimal, applies bool) CommissionBreakdown {
	if !applies {
		return CommissionBreakdown{Net: gross, Payable: gross}
	}
	fee := commissionAmount(gross, rate)
	return CommissionBreakdown{
		Net:        gross,
		Commission: fee,
		Payable:    gross + fee,
	}
}

// TransferCommission applies the internal-credit rule: the commission is
// subtracted from the gross before crediting the recipient. The asymmetry
// with DepositCommission is the platform's intended business rule.
func TransferCommission(gross int64, rate decimal.Decimal, applies bool) CommissionBreakdown {
	if !applies {
		return CommissionBreakdown{Net: gross, Payable: gross}
	}
	fee := commissionAmount(gross, rate)
	if fee > gross {
		fee = gross
	}
	return CommissionBreakdown{
		Net:        gross - fee,
		Commission: fee,
		Payable:    gross,
	}
}
