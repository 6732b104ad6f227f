// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents. Every constructor rounds half-up to two
// fractional digits at write time, so a stored Money never carries more
// precision than it reports.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string to Money with half-up rounding on the
// third fractional digit.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Zero,
// negative and non-numeric input is rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234 cents
//	ParseAmount("12,345") -> 1235 cents
//	ParseAmount("45.555") -> 4556 cents
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrMissingAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return fromDecimal(d)
}

// NormalizeAmount rounds a float amount to cents. The float is read through
// its shortest decimal representation, so 12.345 rounds to 12.35 rather than
// to whatever its binary approximation would suggest.
func NormalizeAmount(v float64) (Money, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Money{}, ErrInvalidAmount
	}
	return fromDecimal(decimal.NewFromFloat(v))
}

// MaxAmount is the largest accepted amount in whole units. Over nine hundred
// thousand entries at this ceiling still sum inside int64 cents; past that,
// Add clamps.
const MaxAmount = 100_000_000_000

var maxAmount = decimal.New(MaxAmount, 0)

func fromDecimal(d decimal.Decimal) (Money, error) {
	if d.GreaterThan(maxAmount) {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Round(2).Shift(2).IntPart()
	if cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

// Decimal returns the exact decimal value of m.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats m with exactly two fractional digits.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Float returns the amount as float64 for display purposes.
// Use cents for calculations.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

// MarshalJSON emits a JSON number with exactly two fractional digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// Sub returns m - o. The result may be negative.
func (m Money) Sub(o Money) Money {
	if o.Cents == math.MinInt64 {
		return m.Add(Money{Cents: math.MaxInt64})
	}
	return m.Add(Money{Cents: -o.Cents})
}

// Add returns m + o, clamped to the int64 range instead of wrapping.
func (m Money) Add(o Money) Money {
	switch {
	case o.Cents > 0 && m.Cents > math.MaxInt64-o.Cents:
		return Money{Cents: math.MaxInt64}
	case o.Cents < 0 && m.Cents < math.MinInt64-o.Cents:
		return Money{Cents: math.MinInt64}
	}
	return Money{Cents: m.Cents + o.Cents}
}
