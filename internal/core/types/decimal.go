// Package types provides the fixed-point value types shared by the ledgers.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits kept for prices and amounts.
const MoneyPlaces int32 = 4

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
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

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// RoundMoney rounds to the stored precision (banker's rounding is not used; half away from zero).
func RoundMoney(m Money) Money {
	return m.Round(MoneyPlaces)
}

// Quantity is a fixed-point quantity with 4 decimal places (scale = 1e4).
// Stored as a scaled BIGINT so row arithmetic never goes through floats.
type Quantity int64

const QuantityScale int64 = 10_000

// NewQuantity builds a whole-unit quantity.
func NewQuantity(units int64) Quantity { return Quantity(units * QuantityScale) }

func NewQuantityFromInt64Scaled(v int64) Quantity { return Quantity(v) }

// MustQuantity parses a decimal string, panics on error.
func MustQuantity(s string) Quantity {
	q, err := ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

func (q Quantity) Int64Scaled() int64 { return int64(q) }

// Decimal converts the quantity for money arithmetic.
func (q Quantity) Decimal() decimal.Decimal {
	return decimal.New(int64(q), -4)
}

func (q Quantity) IsZero() bool { return q == 0 }

func (q Quantity) IsPositive() bool { return q > 0 }

func (q Quantity) IsNegative() bool { return q < 0 }

func (q Quantity) Neg() Quantity { return -q }

// Add returns q+d, or false when the sum does not fit the scaled int64.
func (q Quantity) Add(d Quantity) (Quantity, bool) {
	sum := q + d
	if (d > 0 && sum < q) || (d < 0 && sum > q) {
		return 0, false
	}
	return sum, true
}

// String returns a decimal string with 4 fractional digits.
func (q Quantity) String() string {
	v := int64(q)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%04d", sign, v/QuantityScale, v%QuantityScale)
}

// MarshalJSON encodes Quantity as a JSON number with 4 digits.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalJSON accepts either a JSON number or string.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}

	raw := string(data)
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}

	parsed, err := ParseQuantity(raw)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// quantitySyntax is an optionally signed decimal with an optional exponent.
var quantitySyntax = regexp.MustCompile(`^[+-]?([0-9]+(\.[0-9]+)?|\.[0-9]+)([eE][+-]?[0-9]{1,3})?$`)

var (
	maxScaled = decimal.NewFromInt(math.MaxInt64)
	minScaled = decimal.NewFromInt(-math.MaxInt64)
)

// ParseQuantity parses "12", "12.5", "-0.0001" or "1.5e2". Digits beyond the fourth
// fractional digit are truncated. Values that do not fit the scaled int64 are rejected.
func ParseQuantity(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	if !quantitySyntax.MatchString(s) {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}

	d, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil {
		return 0, fmt.Errorf("parse quantity: %w", err)
	}
	scaled := d.Shift(4).Truncate(0)
	if scaled.GreaterThan(maxScaled) || scaled.LessThan(minScaled) {
		return 0, fmt.Errorf("quantity %q out of range", s)
	}
	return Quantity(scaled.IntPart()), nil
}
