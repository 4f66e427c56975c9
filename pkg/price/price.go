// Package price implements an exact monetary amount stored as integer cents.
package price

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nikolaydubina/fpdecimal"
)

// ErrInvalidPrice is returned when a textual price cannot be parsed
var ErrInvalidPrice = errors.New("invalid price")

// Price is a monetary amount in cents. Negative values are allowed.
type Price int64

// Zero is the zero price, also used as the "no price" sentinel in market data
const Zero Price = 0

// New returns a price from a number of cents
func New(cents int64) Price {
	return Price(cents)
}

// maxDollars is the largest whole dollar amount a Price holds
const maxDollars = "92233720368547758"

// FromDecimal converts a decimal dollar amount into cents, rounding half away from zero
func FromDecimal(d fpdecimal.Decimal) Price {
	v := d.Scaled()
	digits := int(fpdecimal.FractionDigits)
	if digits <= 2 {
		return Price(v * pow10(2-digits))
	}
	div := pow10(digits - 2)
	cents, rem := v/div, v%div
	if rem < 0 {
		rem = -rem
	}
	if 2*rem >= div {
		if v < 0 {
			cents--
		} else {
			cents++
		}
	}
	return Price(cents)
}

func pow10(n int) int64 {
	out := int64(1)
	for ; n > 0; n-- {
		out *= 10
	}
	return out
}

// Parse reads a dollar amount such as "98.10", "$98.10", "$-0.05", "-$0.05" or "1,234.50"
func Parse(s string) (Price, error) {
	raw := strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(raw, "-") {
		negative = true
		raw = raw[1:]
	}
	raw = strings.TrimPrefix(raw, "$")
	if !negative && strings.HasPrefix(raw, "-") {
		negative = true
		raw = raw[1:]
	}
	raw = strings.ReplaceAll(raw, ",", "")
	if !isDecimalLiteral(raw) {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	if i := strings.IndexByte(raw, '.'); i >= 0 && len(raw)-i-1 > 2 {
		return Zero, fmt.Errorf("%w: %q has more than two fractional digits", ErrInvalidPrice, s)
	}

	if !fitsCents(raw) {
		return Zero, fmt.Errorf("%w: %q is out of range", ErrInvalidPrice, s)
	}

	cents, err := fpdecimal.ParseFixedPointDecimal(raw, 2)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q: %v", ErrInvalidPrice, s, err)
	}

	p := Price(cents)
	if negative {
		p = -p
	}
	return p, nil
}

// isDecimalLiteral accepts digits with at most one dot and at least one digit
func isDecimalLiteral(s string) bool {
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

// fitsCents reports whether an unsigned decimal literal with at most two
// fractional digits fits in int64 cents
func fitsCents(raw string) bool {
	whole, frac, _ := strings.Cut(raw, ".")
	whole = strings.TrimLeft(whole, "0")
	if len(whole) != len(maxDollars) {
		return len(whole) < len(maxDollars)
	}
	if whole != maxDollars {
		return whole < maxDollars
	}
	return (frac + "00")[:2] <= "07"
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Price {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Cents returns the raw number of cents
func (p Price) Cents() int64 {
	return int64(p)
}

// Decimal returns the price in dollars
func (p Price) Decimal() fpdecimal.Decimal {
	return fpdecimal.FromFloat(float64(p) / 100)
}

// Add returns p + o
func (p Price) Add(o Price) Price { return p + o }

// Sub returns p - o
func (p Price) Sub(o Price) Price { return p - o }

// Mul returns p scaled by an integer factor
func (p Price) Mul(n int64) Price { return p * Price(n) }

// GreaterThan reports whether p > o
func (p Price) GreaterThan(o Price) bool { return p > o }

// GreaterOrEqual reports whether p >= o
func (p Price) GreaterOrEqual(o Price) bool { return p >= o }

// LessThan reports whether p < o
func (p Price) LessThan(o Price) bool { return p < o }

// LessOrEqual reports whether p <= o
func (p Price) LessOrEqual(o Price) bool { return p <= o }

// Equal reports whether p == o
func (p Price) Equal(o Price) bool { return p == o }

// IsNegative reports whether p < 0
func (p Price) IsNegative() bool { return p < 0 }

// IsZero reports whether p is zero
func (p Price) IsZero() bool { return p == 0 }

// Compare returns -1, 0 or +1 depending on whether p is less than, equal to or greater than o
func (p Price) Compare(o Price) int {
	switch {
	case p < o:
		return -1
	case p > o:
		return 1
	default:
		return 0
	}
}

// String renders the price as dollars, e.g. "$98.10" or "$-0.05"
func (p Price) String() string {
	cents := int64(p)
	if cents < 0 {
		// negate the parts separately so math.MinInt64 does not overflow
		return fmt.Sprintf("$-%d.%02d", -(cents / 100), -(cents % 100))
	}
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
