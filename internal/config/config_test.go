package config

import (
	"reflect"
	"testing"
	"time"
)

func TestParseList(t *testing.T) {
	tests := map[string][]string{
		"":                          nil,
		"a@example.com":             {"a@example.com"},
		" a@example.com , ,b@x.io ": {"a@example.com", "b@x.io"},
	}
	for in, want := range tests {
		if got := ParseList(in); !reflect.DeepEqual(got, want) {
			t.Errorf("ParseList(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ADMIN_EMAILS", "owner@example.com, ops@example.com")
	t.Setenv("OTP_EXPIRY_MINUTES", "5")
	t.Setenv("SESSION_TTL_HOURS", "not-a-number")
	t.Setenv("DEFAULT_CURRENCY", "EUR")
	t.Setenv("ENABLE_KLARNA", "false")
	t.Setenv("PUBLIC_BASE_URL", "https://shop.example.com/")
	t.Setenv("EMAIL_USER", "shop@example.com")
	t.Setenv("EMAIL_PASSWORD", "app-password")
	t.Setenv("EMAIL_FROM", "")

	cfg := Load()

	if cfg.AppPort != "9000" {
		t.Errorf("AppPort = %q", cfg.AppPort)
	}
	if !reflect.DeepEqual(cfg.AdminEmails, []string{"owner@example.com", "ops@example.com"}) {
		t.Errorf("AdminEmails = %v", cfg.AdminEmails)
	}
	if cfg.OTPExpiry != 5*time.Minute {
		t.Errorf("OTPExpiry = %v", cfg.OTPExpiry)
	}
	if cfg.TokenExpires != 12*time.Hour {
		t.Errorf("TokenExpires = %v, want the default for an invalid value", cfg.TokenExpires)
	}
	if cfg.DefaultCurrency != "eur" {
		t.Errorf("DefaultCurrency = %q", cfg.DefaultCurrency)
	}
	if cfg.KlarnaEnabled {
		t.Error("KlarnaEnabled = true with ENABLE_KLARNA=false")
	}
	if cfg.PublicBaseURL != "https://shop.example.com" {
		t.Errorf("PublicBaseURL = %q", cfg.PublicBaseURL)
	}
	if !cfg.EmailConfigured() || cfg.EmailFrom != "shop@example.com" {
		t.Errorf("email settings = %q/%v", cfg.EmailFrom, cfg.EmailConfigured())
	}
}
