// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Quantity represents a stock quantity with full precision.
// Quantities and costs share decimal semantics: average-cost division
// must not lose precision, so the ledger never touches float64.
type Quantity = decimal.Decimal

// NewMoneyFromString creates a Money value from a string.
// This is the preferred constructor for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// MustQuantity creates a Quantity from a string, panics on error.
// Use only for constants and tests.
func MustQuantity(s string) Quantity {
	return MustMoney(s)
}

// NewQuantityFromString creates a Quantity value from a string.
func NewQuantityFromString(s string) (Quantity, error) {
	return decimal.NewFromString(s)
}

// Zero returns the zero decimal value.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// DeriveAverage computes the weighted average cost from the register
// sums: total cost value over quantity. Sums accumulate by exact
// multiplication, so this is the only division in the costing path and
// the only place rounding can occur.
//
// When quantity or value is zero or negative the average is defined as
// zero, never NaN, infinity or a negative cost.
func DeriveAverage(totalValue, quantity decimal.Decimal) decimal.Decimal {
	if quantity.Sign() <= 0 || totalValue.Sign() <= 0 {
		return decimal.Zero
	}
	return totalValue.Div(quantity)
}
