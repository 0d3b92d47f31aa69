package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"5.٠٠", 0, false},
		{"1.٣", 0, false},
		{"1.5٠", 0, false},
		{"١٢", 0, false},
		{"1.5０", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyDecimalRoundTrip(t *testing.T) {
	m := Money{Cents: 1234}
	if got := m.Decimal().String(); got != "12.34" {
		t.Fatalf("Decimal() = %s, want 12.34", got)
	}
	if back := MoneyFromDecimal(m.Decimal()); back != m {
		t.Fatalf("round trip = %+v, want %+v", back, m)
	}
	if got := MoneyFromDecimal(decimal.RequireFromString("0.125")); got.Cents != 13 {
		t.Fatalf("MoneyFromDecimal(0.125) = %d, want 13", got.Cents)
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(decimal.NewFromInt(500)); got != "500.00" {
		t.Fatalf("FormatAmount = %q", got)
	}
	if got := FormatAmount(decimal.RequireFromString("-0.5")); got != "-0.50" {
		t.Fatalf("FormatAmount = %q", got)
	}
}
