package format

import (
	"strings"
	"testing"
)

func TestMoneyFormatsIDR(t *testing.T) {
	got := Money(15000000, "IDR")
	if !strings.Contains(got, "Rp") {
		t.Fatalf("Money(IDR) = %q, want rupiah symbol", got)
	}
	// 15000000 minor units = Rp 150.000, grouped Indonesian style.
	if !strings.Contains(got, "150.000") {
		t.Fatalf("Money(IDR) = %q, want grouped 150.000", got)
	}
}

func TestMoneyFormatsUSD(t *testing.T) {
	got := Money(1999, "USD")
	if !strings.Contains(got, "19.99") {
		t.Fatalf("Money(USD) = %q, want 19.99", got)
	}
}

func TestMoneyUnknownCurrencyFallsBack(t *testing.T) {
	got := Money(5000, "XXZ")
	if !strings.Contains(got, "XXZ") {
		t.Fatalf("Money(XXZ) = %q, want currency code prefix", got)
	}
}

func TestMinorToMajor(t *testing.T) {
	tests := []struct {
		amount int64
		major  int64
		minor  int64
	}{
		{1999, 19, 99},
		{15000000, 150000, 0},
		{-1250, -12, 50},
		{0, 0, 0},
	}
	for _, tc := range tests {
		major, minor := MinorToMajor(tc.amount)
		if major != tc.major || minor != tc.minor {
			t.Errorf("MinorToMajor(%d) = (%d, %d), want (%d, %d)", tc.amount, major, minor, tc.major, tc.minor)
		}
	}
}
