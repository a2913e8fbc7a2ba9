package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"
)

const testWebhookSecret = "whsec_test"

func signStripePayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

const stripeSucceededEvent = `{
  "id": "evt_123",
  "object": "event",
  "type": "payment_intent.succeeded",
  "data": {
    "object": {
      "id": "pi_123",
      "object": "payment_intent",
      "amount": 5000,
      "currency": "gbp",
      "status": "succeeded",
      "client_secret": "pi_123_secret",
      "metadata": {"paymentType": "gift_card"}
    }
  }
}`

func TestNewStripeProviderRequiresKey(t *testing.T) {
	if p := NewStripeProvider("", testWebhookSecret); p != nil {
		t.Fatal("provider created without a secret key")
	}
}

func TestStripeParseWebhook(t *testing.T) {
	p := NewStripeProvider("sk_test_123", testWebhookSecret)
	payload := []byte(stripeSucceededEvent)

	event, err := p.ParseWebhook(payload, signStripePayload(payload, testWebhookSecret, time.Now()))
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if event.ID != "evt_123" || event.Type != EventPaymentSucceeded {
		t.Errorf("event = %+v", event)
	}
	if event.Intent == nil {
		t.Fatal("event carries no payment intent")
	}
	if event.Intent.ID != "pi_123" || event.Intent.AmountMinor != 5000 || event.Intent.Status != IntentStatusSucceeded {
		t.Errorf("intent = %+v", event.Intent)
	}
	if event.Intent.Metadata["paymentType"] != "gift_card" {
		t.Errorf("metadata = %v", event.Intent.Metadata)
	}
}

func TestStripeParseWebhookRejectsBadSignatures(t *testing.T) {
	p := NewStripeProvider("sk_test_123", testWebhookSecret)
	payload := []byte(stripeSucceededEvent)

	tests := map[string]string{
		"wrong secret": signStripePayload(payload, "whsec_other", time.Now()),
		"stale":        signStripePayload(payload, testWebhookSecret, time.Now().Add(-time.Hour)),
		"garbage":      "not-a-signature",
	}
	for name, signature := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := p.ParseWebhook(payload, signature); !errors.Is(err, ErrInvalidWebhookSignature) {
				t.Errorf("err = %v, want ErrInvalidWebhookSignature", err)
			}
		})
	}
}

func TestStripeParseWebhookWithoutSecret(t *testing.T) {
	p := NewStripeProvider("sk_test_123", "")
	if _, err := p.ParseWebhook([]byte(stripeSucceededEvent), "t=1,v1=00"); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("err = %v, want ErrProviderUnavailable", err)
	}
}
