// Package money provides currency-safe amounts as integer cents. Parsing goes through
// shopspring/decimal so no float rounding reaches a stored value, and display goes
// through go-money.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
)

// MaxCents is the largest magnitude a ledger amount may hold: the NUMERIC(12,2)
// ceiling of 9,999,999,999.99.
const MaxCents int64 = 999_999_999_999

var ErrInvalidAmount = errors.New("invalid amount")

var (
	hundred  = decimal.NewFromInt(100)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64 + 1)
)

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// New creates a Money value from cents and a currency code.
func New(amountCents int64, currencyCode string) *Money {
	return &Money{m: money.New(amountCents, currencyCode)}
}

// ParseDecimal cleans an export amount and parses it. It accepts currency symbols,
// thousands separators, a leading minus or plus, and accounting parentheses.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.Trim(s, "()")
	}

	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	for _, sym := range []string{"USD", "EUR", "GBP", "$", "€", "£"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.ReplaceAll(s, ",", "")

	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	} else {
		s = strings.TrimPrefix(s, "+")
	}
	// "$-5.00" style leaves the sign after the symbol
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// ParseCents parses raw into cents, rounding to two decimals.
func ParseCents(raw string) (int64, error) {
	d, err := ParseDecimal(raw)
	if err != nil {
		return 0, err
	}
	return ToCents(d), nil
}

// ToCents rounds d to two decimals and returns it as cents. Values beyond the int64
// range saturate so Clamp can still bound them.
func ToCents(d decimal.Decimal) int64 {
	c := d.Round(2).Mul(hundred)
	switch {
	case c.GreaterThan(maxInt64):
		return math.MaxInt64
	case c.LessThan(minInt64):
		return math.MinInt64 + 1
	}
	return c.IntPart()
}

// Clamp limits cents to ±MaxCents, keeping the sign. The second value reports
// whether the amount was changed.
func Clamp(cents int64) (int64, bool) {
	switch {
	case cents > MaxCents:
		return MaxCents, true
	case cents < -MaxCents:
		return -MaxCents, true
	default:
		return cents, false
	}
}

// FormatCents renders cents as a plain two-decimal string ("-10.00"). The ledger
// uses this form wherever an amount must be stable text.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Amount returns the amount in minor units (cents)
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsNegative returns true if the amount is less than zero
func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// Display returns a formatted string for display (e.g., "$1,234.56")
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "$0.00"
	}
	return m.m.Display()
}

// String returns the amount as a decimal string (e.g., "1234.56")
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.ToDecimal().StringFixed(int32(m.m.Currency().Fraction))
}

// ToDecimal converts to decimal.Decimal for precise calculations
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	currency := m.m.Currency()
	return decimal.NewFromInt(m.m.Amount()).Div(decimal.New(1, int32(currency.Fraction)))
}
