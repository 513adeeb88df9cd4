// Package money provides fixed-point arithmetic on currency amounts.
// Amounts are represented as whole units plus nanos (10^-9 units), so
// cent-precise comparisons never go through floating point.
package money

import (
	"errors"
	"fmt"
	"math"
)

// Money is an amount of a single currency.
type Money struct {
	// CurrencyCode is the three-letter currency code defined in ISO 4217.
	CurrencyCode string `json:"currencyCode"`
	// Units is the whole units of the amount.
	Units int64 `json:"units"`
	// Nanos is the number of nano (10^-9) units of the amount. Must be in
	// [-999999999, +999999999] and, for non-zero Units, share its sign.
	Nanos int32 `json:"nanos"`
}

const (
	nanosMin = -999999999
	nanosMax = +999999999
	nanosMod = 1000000000
)

var (
	ErrInvalidValue        = errors.New("money: one of the specified money values is invalid")
	ErrMismatchingCurrency = errors.New("money: mismatching currency codes")
)

// New returns a Money with the given units and nanos.
func New(currencyCode string, units int64, nanos int32) Money {
	return Money{CurrencyCode: currencyCode, Units: units, Nanos: nanos}
}

// FromFloat converts a float amount (e.g. 39.99) to Money, rounding to the
// nearest nano.
func FromFloat(currencyCode string, amount float64) Money {
	units := int64(amount)
	nanos := int32(math.Round((amount - float64(units)) * nanosMod))
	return Money{CurrencyCode: currencyCode, Units: units, Nanos: nanos}
}

// Float64 returns the amount as a float, for display and JSON summaries only.
func (m Money) Float64() float64 {
	return float64(m.Units) + float64(m.Nanos)/nanosMod
}

// IsValid checks if specified value has a valid units/nanos signs and ranges.
func (m Money) IsValid() bool {
	return signMatches(m) && validNanos(m.Nanos)
}

func signMatches(m Money) bool {
	return m.Nanos == 0 || m.Units == 0 || (m.Nanos < 0) == (m.Units < 0)
}

func validNanos(nanos int32) bool { return nanosMin <= nanos && nanos <= nanosMax }

// IsZero returns true if the specified money value is equal to zero.
func (m Money) IsZero() bool { return m.Units == 0 && m.Nanos == 0 }

// IsPositive returns true if the specified money value is valid and is
// positive.
func (m Money) IsPositive() bool {
	return m.IsValid() && (m.Units > 0 || (m.Units == 0 && m.Nanos > 0))
}

// AreSameCurrency returns true if values l and r have a currency code and
// they are the same values.
func AreSameCurrency(l, r Money) bool {
	return l.CurrencyCode == r.CurrencyCode && l.CurrencyCode != ""
}

// Cmp compares l and r, returning -1 if l < r, 0 if equal and +1 if l > r.
// Both values must be of the same currency.
func Cmp(l, r Money) int {
	if l.Units != r.Units {
		if l.Units < r.Units {
			return -1
		}
		return +1
	}
	if l.Nanos != r.Nanos {
		if l.Nanos < r.Nanos {
			return -1
		}
		return +1
	}
	return 0
}

// Sum adds two values. Returns an error if one of the values are invalid or
// currency codes are not matching (unless currency code is unspecified for
// both).
func Sum(l, r Money) (Money, error) {
	if !l.IsValid() || !r.IsValid() {
		return Money{}, ErrInvalidValue
	}
	if l.CurrencyCode != r.CurrencyCode {
		return Money{}, ErrMismatchingCurrency
	}

	units := l.Units + r.Units
	nanos := l.Nanos + r.Nanos

	if (units == 0 && nanos == 0) || (units > 0 && nanos >= 0) || (units < 0 && nanos <= 0) {
		// same sign <units, nanos>
		units += int64(nanos / nanosMod)
		nanos = nanos % nanosMod
	} else {
		// different sign. nanos guaranteed to not to go over the limit
		if units > 0 {
			units--
			nanos += nanosMod
		} else {
			units++
			nanos -= nanosMod
		}
	}

	return Money{CurrencyCode: l.CurrencyCode, Units: units, Nanos: nanos}, nil
}

// Must panics if the given error is not nil. This can be used with other
// functions like: "m := Must(Sum(a,b))".
func Must(v Money, err error) Money {
	if err != nil {
		panic(err)
	}
	return v
}

// MultiplySlow is a slow multiplication operation done through adding the
// value to itself n-1 times.
func MultiplySlow(m Money, n uint32) Money {
	out := m
	for n > 1 {
		out = Must(Sum(out, m))
		n--
	}
	return out
}

// String formats the amount as "$12.34" style text for logs.
func (m Money) String() string {
	cents := m.Nanos / 10000000
	if cents < 0 {
		cents = -cents
	}
	return fmt.Sprintf("%s %d.%02d", m.CurrencyCode, m.Units, cents)
}
