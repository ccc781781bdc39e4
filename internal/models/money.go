package models

import (
	"fmt"
)

// Money holds an amount in integer minor units (e.g. cents) tagged with a
// currency code. Arithmetic across currencies is a programming error and
// fails instead of silently mixing units.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func NewMoney(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// FromMajorUnits converts a two-decimal wire amount to minor units.
// 100.00 -> 10000. Truncation beyond two decimals is rejected upstream by
// request validation.
func FromMajorUnits(amount float64, currency string) Money {
	return Money{Amount: int64(amount*100 + 0.5), Currency: currency}
}

func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: cannot add %s to %s", other.Currency, m.Currency)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: cannot subtract %s from %s", other.Currency, m.Currency)
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Negate returns the same amount with the opposite sign.
func (m Money) Negate() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

func (m Money) IsPositive() bool {
	return m.Amount > 0
}

// MajorUnits renders the amount back to whole currency units for responses.
func (m Money) MajorUnits() float64 {
	return float64(m.Amount) / 100
}

func (m Money) String() string {
	return fmt.Sprintf("%d.%02d %s", m.Amount/100, abs(m.Amount%100), m.Currency)
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
