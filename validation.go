package tradesim

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxTickerLength bounds ticker symbols ("ERIC-B.ST", "BTC-USD", "EURUSD=X" all fit).
const MaxTickerLength = 15

// MinLot is the smallest tradable quantity.
var MinLot = Q(decimal.New(1, -8))

// ValidateTicker normalizes a ticker (trimmed, upper case) and checks its syntax:
// letters and digits, plus the separators '.', '-', '=' and '^'.
func ValidateTicker(s string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	if t == "" {
		return "", newError(Validation, "", "", "ticker symbol cannot be empty")
	}
	if len(t) > MaxTickerLength {
		return "", newError(Validation, "", "", "ticker %q is longer than %d characters", t, MaxTickerLength)
	}
	hasAlnum := false
	for _, r := range t {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			hasAlnum = true
		case r == '.', r == '-', r == '=', r == '^':
		default:
			return "", newError(Validation, "", "", "ticker %q contains invalid character %q", t, r)
		}
	}
	if !hasAlnum {
		return "", newError(Validation, "", "", "ticker %q has no letter or digit", t)
	}
	return t, nil
}

// ValidateQuantity checks that q is a tradable quantity.
func ValidateQuantity(q Quantity) (Quantity, error) {
	if !q.IsPositive() {
		return q, newError(Validation, "", "", "quantity must be greater than zero, got %s", q)
	}
	if q.LessThan(MinLot) {
		return q, newError(Validation, "", "", "quantity %s is below the minimum lot %s", q, MinLot)
	}
	return q, nil
}

// ValidatePrice checks that p is a usable price.
func ValidatePrice(p Money) (Money, error) {
	if !p.IsPositive() {
		return p, newError(Validation, "", "", "price must be greater than zero, got %s", p.value)
	}
	return p, nil
}

// ParseQuantity parses user input into a validated Quantity.
// "NaN", "Inf" and friends are not numbers for decimal and are rejected here.
func ParseQuantity(s string) (Quantity, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Quantity{}, newError(Validation, "", "", "value %q is not a valid number", s)
	}
	return ValidateQuantity(Q(d))
}

// ParsePrice parses user input into a validated price in currency.
func ParsePrice(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, newError(Validation, "", "", "value %q is not a valid number", s)
	}
	return ValidatePrice(M(d, currency))
}
