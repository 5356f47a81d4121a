// Package settlement holds the pricing, refund, escrow and reward rules of the
// platform. Every function here is pure: callers load an entity, call into
// this package to compute or validate a change and persist the result.
//
// Mutating functions assume the caller holds an exclusive section for the
// entity being changed.
package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/tourmart/internal/domain"
)

// MinorUnits is the number of decimal places of the currency minor unit.
const MinorUnits = 2

var hundred = decimal.NewFromInt(100)

// Round rounds an amount half away from zero to the currency minor unit.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MinorUnits)
}

// CheckCapture rejects a gateway capture that is not for gatewayOrderID or
// does not pay total exactly.
func CheckCapture(gatewayOrderID string, total decimal.Decimal, c domain.Capture) error {
	if gatewayOrderID == "" || c.GatewayOrderID != gatewayOrderID {
		return domain.ErrPaymentMismatch
	}
	if !c.Amount.Equal(Round(total)) {
		return domain.ErrPaymentMismatch
	}
	return nil
}

// FromPercent converts a percent (18) into a rate (0.18).
func FromPercent(percent decimal.Decimal) (decimal.Decimal, error) {
	rate := percent.Div(hundred)
	if err := checkRate("rate", rate); err != nil {
		return decimal.Zero, err
	}
	return rate, nil
}

// ComputeFeeAndTax returns the platform fee on subtotal and the tax charged on
// subtotal plus fee. Both are rounded.
func ComputeFeeAndTax(subtotal, feeRate, taxRate decimal.Decimal) (fee, tax decimal.Decimal) {
	fee = Round(subtotal.Mul(feeRate))
	tax = Round(subtotal.Add(fee).Mul(taxRate))
	return fee, tax
}

// Total sums already rounded components. The result must not be negative.
func Total(subtotal, fee, tax, discount decimal.Decimal) (decimal.Decimal, error) {
	total := subtotal.Add(fee).Add(tax).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero, domain.NewValidationError("discount", "exceeds the payable amount")
	}
	return total, nil
}

func checkRate(field string, rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return domain.NewValidationError(field, "must be within [0, 1]")
	}
	return nil
}

func checkNonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return domain.NewValidationError(field, "must not be negative")
	}
	return nil
}
