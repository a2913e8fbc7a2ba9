package utils

import (
	"strconv"
	"testing"
	"time"
)

func TestNewGiftCardIDIsMonotonic(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := NewGiftCardID(now)
	second := NewGiftCardID(now)
	third := NewGiftCardID(now.Add(-time.Hour))

	a, _ := strconv.ParseInt(first, 10, 64)
	b, _ := strconv.ParseInt(second, 10, 64)
	c, _ := strconv.ParseInt(third, 10, 64)
	if !(a < b && b < c) {
		t.Fatalf("ids not increasing: %s %s %s", first, second, third)
	}
}

func TestNewGiftCodeShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := NewGiftCode()
		if err != nil {
			t.Fatalf("NewGiftCode: %v", err)
		}
		if !IsGiftCode(code) {
			t.Fatalf("generated code %q does not match XXXX-XXXX-XX", code)
		}
	}
}

func TestIsGiftCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"ABCD-EFGH-JK", true},
		{"2345-6789-AB", true},
		{"ABCD-EFGH-J", false},
		{"ABCDEFGHJKLM", false},
		{"ABCD-EFGH-I0", false},
		{"abcd-efgh-jk", false},
	}
	for _, tt := range tests {
		if got := IsGiftCode(tt.code); got != tt.want {
			t.Errorf("IsGiftCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestNewOrderID(t *testing.T) {
	id, err := NewOrderID()
	if err != nil {
		t.Fatalf("NewOrderID: %v", err)
	}
	if len(id) != 8 {
		t.Fatalf("order id %q has length %d", id, len(id))
	}
	for _, r := range id {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			t.Fatalf("order id %q contains %q", id, r)
		}
	}
}

func TestNumericCode(t *testing.T) {
	code, err := NumericCode(6)
	if err != nil {
		t.Fatalf("NumericCode: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("len = %d", len(code))
	}
	if _, err := strconv.Atoi(code); err != nil {
		t.Fatalf("code %q is not numeric", code)
	}
}

func TestRandomHex(t *testing.T) {
	token, err := RandomHex(32)
	if err != nil {
		t.Fatalf("RandomHex: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("len = %d, want 64", len(token))
	}
}
