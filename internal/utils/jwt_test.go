package utils

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	issued := time.Now().Truncate(time.Second)
	token, err := GenerateToken("secret", "admin@example.com", issued, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	session, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if session.Email != "admin@example.com" {
		t.Errorf("email = %q", session.Email)
	}
	if !session.IssuedAt.Equal(issued) {
		t.Errorf("issued at = %v, want %v", session.IssuedAt, issued)
	}
}

func TestTokenKeepsMillisecondIssueTime(t *testing.T) {
	issued := time.Now().Add(-time.Minute).Truncate(time.Second).Add(750 * time.Millisecond)
	token, err := GenerateToken("secret", "admin@example.com", issued, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	session, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if !session.IssuedAt.Equal(issued) {
		t.Errorf("issued at = %v, want %v", session.IssuedAt, issued)
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	token, err := GenerateToken("secret", "admin@example.com", time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := ParseToken("other-secret", token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("wrong secret: err = %v", err)
	}

	forged := base64.StdEncoding.EncodeToString([]byte("admin@example.com:1700000000000"))
	if _, err := ParseToken("secret", forged); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("forged legacy token: err = %v", err)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := GenerateToken("secret", "admin@example.com", time.Now().Add(-2*time.Hour), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken("secret", token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expired token accepted: %v", err)
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "hunter2") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "hunter3") {
		t.Error("wrong password accepted")
	}
}
