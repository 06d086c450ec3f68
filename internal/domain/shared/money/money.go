package money

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrInvalidAmount    = errors.New("money: amount must be a finite number")
	ErrNegativeAmount   = errors.New("money: amount cannot be negative")
)

// Currency is an ISO 4217 code known to the platform.
type Currency string

const (
	EUR Currency = "EUR"
	CAD Currency = "CAD"
	USD Currency = "USD"
	GBP Currency = "GBP"
	CNY Currency = "CNY"
)

// minorUnitExponent is 2 for every supported currency.
const minorUnitExponent = 2

// ParseCurrency normalizes a code and rejects currencies the platform does not surface.
func ParseCurrency(raw string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(raw)))
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c, nil
}

func (c Currency) Validate() error {
	switch c {
	case EUR, CAD, USD, GBP, CNY:
		return nil
	default:
		return ErrInvalidCurrency
	}
}

func (c Currency) String() string { return string(c) }

// Money keeps amounts in integer minor units to avoid floating point issues.
type Money struct {
	Amount   int64
	Currency Currency
}

// New constructs Money validating the currency.
func New(amount int64, currency Currency) (Money, error) {
	if err := currency.Validate(); err != nil {
		return Money{}, err
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount int64, currency Currency) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// FromMajor is the single place where a major-unit float (e.g. 99.99) becomes
// minor units. It rounds half away from zero.
func FromMajor(major float64, currency Currency) (Money, error) {
	if math.IsNaN(major) || math.IsInf(major, 0) {
		return Money{}, ErrInvalidAmount
	}
	if err := currency.Validate(); err != nil {
		return Money{}, err
	}
	minor := decimal.NewFromFloat(major).Shift(minorUnitExponent)
	return Money{Amount: RoundHalfAwayFromZero(minor), Currency: currency}, nil
}

// Major converts back to major units for display only.
func (m Money) Major() float64 {
	f, _ := decimal.New(m.Amount, -minorUnitExponent).Float64()
	return f
}

// String renders the amount with two decimals and the currency code.
func (m Money) String() string {
	return decimal.New(m.Amount, -minorUnitExponent).StringFixed(minorUnitExponent) + " " + string(m.Currency)
}

// RoundHalfAwayFromZero rounds d to an integer count of minor units.
func RoundHalfAwayFromZero(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// MulRate returns round(amount * rate) on minor units.
func MulRate(amount int64, rate decimal.Decimal) int64 {
	return RoundHalfAwayFromZero(decimal.NewFromInt(amount).Mul(rate))
}

// Add adds two money values ensuring currencies match.
func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub subtracts other from the receiver.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Neg returns the negated amount preserving currency.
func (m Money) Neg() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// IsZero returns true if the amount equals zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}

// Proportional returns round(amount * part / whole), or 0 when whole is 0.
func Proportional(amount, part, whole int64) int64 {
	if whole == 0 {
		return 0
	}
	scaled := decimal.NewFromInt(amount).Mul(decimal.NewFromInt(part))
	return RoundHalfAwayFromZero(scaled.DivRound(decimal.NewFromInt(whole), 8))
}
