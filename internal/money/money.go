// Package money provides fixed-point decimal arithmetic for the platform's
// single-currency, pennies-precision ledger. No floating-point value ever
// crosses a ledger boundary: amounts are stored and computed as integer
// cents and only ever rendered to/from decimal strings at the edges.
package money

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Decimals is the number of fractional digits carried by every amount.
const Decimals = 2

// Cents is a fixed-point amount expressed in integer minor units (cents).
// Arithmetic on Cents is exact; only multiplication by a non-integer factor
// (hours x rate, percentage x amount) requires explicit rounding via
// MulRoundHalfUp.
type Cents int64

// Zero is the additive identity.
const Zero Cents = 0

// Parse converts a decimal string (e.g. "12.50", "-3.00") to Cents.
// Returns (0, false) on malformed input. Empty string parses as zero.
func Parse(s string) (Cents, bool) {
	if s == "" {
		return 0, true
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 || len(parts) == 0 {
		return 0, false
	}
	whole := parts[0]
	if whole == "" {
		whole = "0"
	}
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if len(frac) > Decimals {
		// reject amounts carrying more precision than the ledger allows
		return 0, false
	}
	for len(frac) < Decimals {
		frac += "0"
	}

	combined := whole + frac
	n, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return 0, false
	}
	if !n.IsInt64() {
		return 0, false
	}
	v := n.Int64()
	if neg {
		v = -v
	}
	return Cents(v), true
}

// MustParse is Parse but panics on malformed input; for use with constants.
func MustParse(s string) Cents {
	c, ok := Parse(s)
	if !ok {
		panic("money: invalid amount " + s)
	}
	return c
}

// String renders the amount as a decimal string with exactly two fractional
// digits, e.g. "12.50", "-0.01".
func (c Cents) String() string {
	neg := c < 0
	abs := int64(c)
	if neg {
		abs = -abs
	}
	s := fmt.Sprintf("%d", abs)
	for len(s) < Decimals+1 {
		s = "0" + s
	}
	point := len(s) - Decimals
	out := s[:point] + "." + s[point:]
	if neg {
		out = "-" + out
	}
	return out
}

// Int64 returns the raw integer cent value.
func (c Cents) Int64() int64 { return int64(c) }

// FromInt64 wraps a raw cent value.
func FromInt64(v int64) Cents { return Cents(v) }

func (c Cents) Add(other Cents) Cents { return c + other }
func (c Cents) Sub(other Cents) Cents { return c - other }
func (c Cents) Neg() Cents             { return -c }

func (c Cents) IsZero() bool     { return c == 0 }
func (c Cents) IsNegative() bool { return c < 0 }
func (c Cents) IsPositive() bool { return c > 0 }

func (c Cents) LessThan(other Cents) bool    { return c < other }
func (c Cents) GreaterThan(other Cents) bool { return c > other }
func (c Cents) GreaterEq(other Cents) bool   { return c >= other }
func (c Cents) LessEq(other Cents) bool      { return c <= other }

// Min returns the smaller of two amounts.
func Min(a, b Cents) Cents {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of two amounts.
func Max(a, b Cents) Cents {
	if a > b {
		return a
	}
	return b
}

// MulRoundHalfUp multiplies an amount by an arbitrary-precision factor
// (hours worked, a commission rate expressed as a fraction) and rounds the
// result to the nearest cent, ties rounding away from zero (HALF_UP). This
// is the only place fractional arithmetic is allowed to touch an amount.
func (c Cents) MulRoundHalfUp(factor *big.Rat) Cents {
	amount := new(big.Rat).SetInt64(int64(c))
	product := new(big.Rat).Mul(amount, factor)
	return roundHalfUp(product)
}

// MulFloatRoundHalfUp is a convenience wrapper for float-expressed factors
// (e.g. 0.15 commission, 1.5 hours) that are exact in decimal. The float is
// converted to an exact rational before any rounding occurs, so the
// HALF_UP behavior is identical to MulRoundHalfUp.
func (c Cents) MulFloatRoundHalfUp(factor float64) Cents {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(factor, 'g', -1, 64))
	if !ok {
		return 0
	}
	return c.MulRoundHalfUp(r)
}

// roundHalfUp rounds a rational number of cents to the nearest integer,
// with ties rounding away from zero.
func roundHalfUp(r *big.Rat) Cents {
	neg := r.Sign() < 0
	abs := new(big.Rat).Abs(r)

	num := abs.Num()
	den := abs.Denom()

	quotient := new(big.Int)
	remainder := new(big.Int)
	quotient.QuoRem(num, den, remainder)

	// remainder/den >= 1/2  <=>  2*remainder >= den
	doubled := new(big.Int).Mul(remainder, big.NewInt(2))
	if doubled.Cmp(den) >= 0 {
		quotient.Add(quotient, big.NewInt(1))
	}

	v := quotient.Int64()
	if neg {
		v = -v
	}
	return Cents(v)
}

// HoursRat converts a duration expressed in seconds to an exact rational
// number of hours, for use with MulRoundHalfUp against an hourly rate.
func HoursRat(seconds int64) *big.Rat {
	return new(big.Rat).SetFrac64(seconds, 3600)
}

// PercentRat converts a whole-number-or-decimal percentage (e.g. 15 for 15%,
// 1.5 for 1.5%) to an exact fraction suitable for MulRoundHalfUp.
func PercentRat(pct float64) *big.Rat {
	r := new(big.Rat).SetFloat64(pct)
	if r == nil {
		return new(big.Rat)
	}
	hundred := new(big.Rat).SetInt64(100)
	return new(big.Rat).Quo(r, hundred)
}
