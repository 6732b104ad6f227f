package core

import (
	"errors"
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
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
		{"12.345", 1235, true},
		{"45.555", 4556, true},
		{" 2.50 ", 250, true},
		{"0.004", 0, false}, // rounds to zero
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"100000000000", 10_000_000_000_000, true},
		{"100000000000.01", 0, false}, // above MaxAmount
		{"90000000000000000", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("%q expected validation error, got %v", tc.in, err)
			}
		}
	}
}

func TestNormalizeAmountIdempotent(t *testing.T) {
	inputs := []float64{0.01, 0.015, 1.005, 12.345, 45.555, 99.999, 100, 1234.5678, 0.1 + 0.2}
	for _, in := range inputs {
		once, err := NormalizeAmount(in)
		if err != nil {
			t.Fatalf("%v: %v", in, err)
		}
		twice, err := NormalizeAmount(once.Float())
		if err != nil {
			t.Fatalf("%v second pass: %v", in, err)
		}
		if once != twice {
			t.Fatalf("%v: normalize not idempotent: %s then %s", in, once, twice)
		}
		if s := once.String(); len(s) < 3 || s[len(s)-3] != '.' {
			t.Fatalf("%v: expected exactly 2 fractional digits, got %q", in, s)
		}
	}
}

func TestNormalizeAmountHalfUp(t *testing.T) {
	m, err := NormalizeAmount(12.345)
	if err != nil || m.String() != "12.35" {
		t.Fatalf("expected 12.35, got %s (err=%v)", m, err)
	}
}

func TestMoneyJSON(t *testing.T) {
	b, _ := Money{Cents: 1000}.MarshalJSON()
	if string(b) != "10.00" {
		t.Fatalf("expected 10.00, got %s", b)
	}
	b, _ = Money{Cents: -4444}.MarshalJSON()
	if string(b) != "-44.44" {
		t.Fatalf("expected -44.44, got %s", b)
	}
}

func TestMoneyAddClamps(t *testing.T) {
	big := Money{Cents: math.MaxInt64 - 10}
	if got := big.Add(Money{Cents: 100}); got.Cents != math.MaxInt64 {
		t.Fatalf("Add overflowed to %d", got.Cents)
	}
	if got := (Money{Cents: -5}).Sub(Money{Cents: math.MaxInt64}); got.Cents != math.MinInt64 {
		t.Fatalf("Sub overflowed to %d", got.Cents)
	}
	if got := (Money{Cents: 150}).Sub(Money{Cents: 200}); got.Cents != -50 {
		t.Fatalf("expected -50, got %d", got.Cents)
	}
}
