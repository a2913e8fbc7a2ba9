package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// StripeProvider is the Stripe implementation of PaymentProvider.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProvider returns nil when no secret key is configured.
func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	if secretKey == "" {
		return nil
	}
	return &StripeProvider{
		api:           client.New(secretKey, nil),
		webhookSecret: webhookSecret,
	}
}

func (p *StripeProvider) CreateIntent(ctx context.Context, params CreateIntentParams) (*PaymentIntent, error) {
	req := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(params.AmountMinor),
		Currency:           stripe.String(params.Currency),
		PaymentMethodTypes: stripe.StringSlice(params.PaymentMethodTypes),
	}
	req.Context = ctx
	if params.Description != "" {
		req.Description = stripe.String(params.Description)
	}
	if params.ReceiptEmail != "" {
		req.ReceiptEmail = stripe.String(params.ReceiptEmail)
	}
	for k, v := range params.Metadata {
		req.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(req)
	if err != nil {
		return nil, err
	}
	return fromStripeIntent(pi), nil
}

func (p *StripeProvider) GetIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := p.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, err
	}
	return fromStripeIntent(pi), nil
}

func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if p.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret missing", ErrProviderUnavailable)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return out, nil
	}

	switch out.Type {
	case EventPaymentSucceeded, EventPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		out.Intent = fromStripeIntent(&pi)
	}
	return out, nil
}

func fromStripeIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	intent := &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
	if pi.LastPaymentError != nil {
		intent.LastError = pi.LastPaymentError.Msg
	}
	return intent
}
