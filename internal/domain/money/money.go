// Package money centralizes validation, rounding, and bounded arithmetic for
// monetary amounts and item quantities. Order totals and analytics aggregates
// both go through this package, so a single rounding policy applies everywhere
// and per-day revenue sums reconcile exactly with period totals.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every normalized amount carries.
const Scale = 2

// maxTotalDigits caps the coefficient size of an amount to reject
// precision-abuse inputs before the bound check.
const maxTotalDigits = 15

// Limits bounds monetary amounts and item quantities accepted by the domain.
// The zero value is not usable; construct with DefaultLimits or from config.
type Limits struct {
	// MaxAmount is the inclusive upper bound for any single amount and for
	// every intermediate arithmetic result.
	MaxAmount decimal.Decimal
	// MaxQuantity is the inclusive upper bound for a line item quantity.
	MaxQuantity int
}

// DefaultLimits returns the bounds carried over from the legacy platform:
// 9,999,999,999.99 per amount and 10,000 units per line item.
func DefaultLimits() Limits {
	return Limits{
		MaxAmount:   decimal.RequireFromString("9999999999.99"),
		MaxQuantity: 10000,
	}
}

// ValidationError reports a rejected amount or quantity together with the
// exact field that failed, so callers can surface field-level messages.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// OverflowError reports an arithmetic result exceeding the configured bound.
type OverflowError struct {
	Field string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%s: amount overflow", e.Field)
}

// Parse converts a textual amount into a normalized decimal. Non-numeric
// input (including "NaN" and "Inf", which shopspring/decimal cannot
// represent) is rejected with a ValidationError naming the field.
func (l Limits) Parse(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Reason: "must be a valid decimal number"}
	}
	return l.Normalize(field, d)
}

// Normalize validates an amount and quantizes it to exactly Scale fractional
// digits. Rounding is half away from zero, which for the non-negative amounts
// this domain allows is round-half-up; banker's rounding would let a sum of
// rounded line totals drift from the rounded sum.
func (l Limits) Normalize(field string, d decimal.Decimal) (decimal.Decimal, error) {
	if d.IsNegative() {
		return decimal.Zero, &ValidationError{Field: field, Reason: "cannot be negative"}
	}
	d = d.Round(Scale)
	if d.NumDigits() > maxTotalDigits {
		return decimal.Zero, &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("cannot have more than %d total digits", maxTotalDigits),
		}
	}
	if d.GreaterThan(l.MaxAmount) {
		return decimal.Zero, &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("cannot exceed %s", l.MaxAmount),
		}
	}
	return d, nil
}

// Add returns a+b, re-checking the bound on the result.
func (l Limits) Add(field string, a, b decimal.Decimal) (decimal.Decimal, error) {
	sum := a.Add(b)
	if sum.GreaterThan(l.MaxAmount) {
		return decimal.Zero, &OverflowError{Field: field}
	}
	return sum, nil
}

// Sub returns a-b. A negative result is a validation failure, not an
// overflow: totals and subtotals must never go below zero.
func (l Limits) Sub(field string, a, b decimal.Decimal) (decimal.Decimal, error) {
	diff := a.Sub(b)
	if diff.IsNegative() {
		return decimal.Zero, &ValidationError{Field: field, Reason: "cannot be negative"}
	}
	return diff, nil
}

// MulInt returns a*qty rounded to Scale digits, re-checking the bound.
// This is the line-total operation: quantity times unit price.
func (l Limits) MulInt(field string, a decimal.Decimal, qty int) (decimal.Decimal, error) {
	product := a.Mul(decimal.NewFromInt(int64(qty))).Round(Scale)
	if product.GreaterThan(l.MaxAmount) {
		return decimal.Zero, &OverflowError{Field: field}
	}
	return product, nil
}

// CheckQuantity validates a line item quantity: at least 1, at most
// MaxQuantity.
func (l Limits) CheckQuantity(field string, q int) error {
	if q < 1 {
		return &ValidationError{Field: field, Reason: "must be at least 1"}
	}
	if q > l.MaxQuantity {
		return &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("cannot exceed %d", l.MaxQuantity),
		}
	}
	return nil
}
