package tradesim

import (
	"errors"
	"testing"
)

func TestValidateTicker(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "AAPL", want: "AAPL"},
		{in: "  aapl ", want: "AAPL"},
		{in: "BTC-USD", want: "BTC-USD"},
		{in: "EURUSD=X", want: "EURUSD=X"},
		{in: "^GSPC", want: "^GSPC"},
		{in: "ERIC-B.ST", want: "ERIC-B.ST"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "AA PL", wantErr: true},
		{in: "AAPL$", wantErr: true},
		{in: "---", wantErr: true},
		{in: "ABCDEFGHIJKLMNOP", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ValidateTicker(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrValidation) {
				t.Errorf("ValidateTicker(%q) error = %v, want a validation error", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ValidateTicker(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ValidateTicker(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseQuantity(t *testing.T) {
	valid := []string{"1", "0.5", " 10 ", "0.00000001"}
	for _, s := range valid {
		if _, err := ParseQuantity(s); err != nil {
			t.Errorf("ParseQuantity(%q) unexpected error: %v", s, err)
		}
	}
	invalid := []string{"", "0", "-1", "abc", "NaN", "Inf", "0.000000001"}
	for _, s := range invalid {
		if _, err := ParseQuantity(s); KindOf(err) != Validation {
			t.Errorf("ParseQuantity(%q) error = %v, want a validation error", s, err)
		}
	}
}

func TestParsePrice(t *testing.T) {
	p, err := ParsePrice("150.25", "USD")
	if err != nil {
		t.Fatalf("ParsePrice() unexpected error: %v", err)
	}
	if !p.Equal(USD(150.25)) || p.Currency() != "USD" {
		t.Errorf("ParsePrice() = %v %s, want 150.25 USD", p, p.Currency())
	}
	for _, s := range []string{"0", "-3", "x", "+Inf"} {
		if _, err := ParsePrice(s, "USD"); KindOf(err) != Validation {
			t.Errorf("ParsePrice(%q) error = %v, want a validation error", s, err)
		}
	}
}

func TestParseSide(t *testing.T) {
	for in, want := range map[string]Side{"buy": Buy, "SELL": Sell, " Buy ": Buy} {
		got, err := ParseSide(in)
		if err != nil || got != want {
			t.Errorf("ParseSide(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseSide("hold"); KindOf(err) != Validation {
		t.Errorf("ParseSide(hold) error = %v, want a validation error", err)
	}
}
