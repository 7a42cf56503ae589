package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a non-negative, currency-agnostic amount with a fixed scale of
// two fractional digits. Arithmetic is exact; there is no floating point
// anywhere in the price path.
type Money struct {
	amount decimal.Decimal
}

// MoneyZero returns the zero amount.
func MoneyZero() Money {
	return Money{}
}

// MoneyFromCents builds an amount from an integer number of cents.
// Negative input is rejected.
func MoneyFromCents(cents int64) (Money, error) {
	if cents < 0 {
		return Money{}, fmt.Errorf("money must not be negative: %d cents", cents)
	}
	return Money{amount: decimal.New(cents, -2)}, nil
}

// ParseMoney parses a decimal string such as "10.00". Amounts with more
// than two fractional digits or a negative sign are rejected rather than
// rounded, so a price can never silently lose precision.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", s, err)
	}
	if d.IsNegative() {
		return Money{}, fmt.Errorf("money must not be negative: %s", s)
	}
	if !d.Equal(d.Round(2)) {
		return Money{}, fmt.Errorf("money %q has more than two decimal places", s)
	}
	return Money{amount: d}, nil
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{amount: m.amount.Add(o.amount)}
}

// MulQuantity returns m multiplied by an integer quantity. Quantities are
// validated by the caller; a non-negative m times a non-negative q stays
// non-negative and exactly representable at scale two.
func (m Money) MulQuantity(q int) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(int64(q)))}
}

// Cents returns the amount as an integer number of cents.
func (m Money) Cents() int64 {
	return m.amount.Mul(decimal.NewFromInt(100)).IntPart()
}

// Equal reports whether two amounts are numerically equal.
func (m Money) Equal(o Money) bool {
	return m.amount.Equal(o.amount)
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// String renders the amount with exactly two decimal places.
func (m Money) String() string {
	return m.amount.StringFixed(2)
}

// MarshalJSON renders the amount as a fixed-scale string, e.g. "10.00".
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts either a string ("10.00") or a bare JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

var _ json.Marshaler = Money{}
var _ json.Unmarshaler = (*Money)(nil)
