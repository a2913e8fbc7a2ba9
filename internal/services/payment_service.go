package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/maitri/internal/models"
)

var (
	ErrPaymentNotSucceeded     = errors.New("payment has not succeeded")
	ErrAmountMismatch          = errors.New("payment amount does not match the purchase")
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrMissingPurchase         = errors.New("purchase details are required")
	ErrProviderUnavailable     = errors.New("payment provider is not configured")
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
	ErrProviderFailure         = errors.New("payment provider error")
)

const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"

	IntentStatusSucceeded = "succeeded"
)

var klarnaCountries = map[string]bool{
	"AT": true, "BE": true, "DK": true, "FI": true, "DE": true, "IT": true,
	"NL": true, "NO": true, "ES": true, "SE": true, "GB": true, "US": true,
}

var countryAliases = map[string]string{
	"united kingdom": "GB",
	"great britain":  "GB",
	"uk":             "GB",
	"united states":  "US",
	"usa":            "US",
	"germany":        "DE",
	"spain":          "ES",
	"sweden":         "SE",
	"italy":          "IT",
	"austria":        "AT",
	"belgium":        "BE",
	"denmark":        "DK",
	"finland":        "FI",
	"netherlands":    "NL",
	"norway":         "NO",
}

// NormalizeCountry maps common country names to ISO 3166 alpha-2 codes and
// upper-cases anything else.
func NormalizeCountry(country string) string {
	trimmed := strings.TrimSpace(country)
	if code, ok := countryAliases[strings.ToLower(trimmed)]; ok {
		return code
	}
	return strings.ToUpper(trimmed)
}

// KlarnaEligible reports whether Klarna may be offered for the amount and country.
func KlarnaEligible(enabled bool, minAmount, amountMinor int64, country string) bool {
	return enabled && amountMinor >= minAmount && klarnaCountries[NormalizeCountry(country)]
}

// ToMinorUnits converts a major-unit amount to minor units, rounding half up.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts minor units back to a major-unit amount.
func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

// PaymentIntent is the provider-neutral view of a payment intent.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountMinor  int64
	Currency     string
	Metadata     map[string]string
	LastError    string
}

// CreateIntentParams describes an intent to open with the provider.
type CreateIntentParams struct {
	AmountMinor        int64
	Currency           string
	Description        string
	ReceiptEmail       string
	PaymentMethodTypes []string
	Metadata           map[string]string
}

// WebhookEvent is a verified provider notification about a payment intent.
type WebhookEvent struct {
	ID     string
	Type   string
	Intent *PaymentIntent
}

// PaymentProvider is the card processor behind the checkout.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, params CreateIntentParams) (*PaymentIntent, error)
	GetIntent(ctx context.Context, id string) (*PaymentIntent, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// PurchaseNotifier is told once about every newly finalized purchase.
type PurchaseNotifier interface {
	GiftCardPurchased(ctx context.Context, card *models.GiftCard)
	OrderPlaced(ctx context.Context, order *models.Order)
}

// PaymentSettings configures PaymentService.
type PaymentSettings struct {
	Currency        string
	KlarnaEnabled   bool
	KlarnaMinAmount int64
}

// PaymentService opens payment intents and turns succeeded ones into gift cards or orders.
type PaymentService struct {
	db        *gorm.DB
	provider  PaymentProvider
	giftCards *GiftCardService
	orders    *OrderService
	notifier  PurchaseNotifier
	settings  PaymentSettings
	now       func() time.Time
}

// NewPaymentService constructs a PaymentService. provider may be nil when no
// processor is configured; notifier may be nil.
func NewPaymentService(db *gorm.DB, provider PaymentProvider, giftCards *GiftCardService, orders *OrderService, notifier PurchaseNotifier, settings PaymentSettings) *PaymentService {
	return &PaymentService{
		db:        db,
		provider:  provider,
		giftCards: giftCards,
		orders:    orders,
		notifier:  notifier,
		settings:  settings,
		now:       time.Now,
	}
}

// CreatePaymentIntentInput is the checkout request.
type CreatePaymentIntentInput struct {
	Amount          decimal.Decimal      `json:"amount"`
	Currency        string               `json:"currency"`
	Description     string               `json:"description"`
	Metadata        map[string]string    `json:"metadata"`
	CustomerEmail   string               `json:"customerEmail"`
	CustomerCountry string               `json:"customerCountry"`
	PaymentType     string               `json:"paymentType"`
	GiftCard        *CreateGiftCardInput `json:"giftCard,omitempty"`
	Order           *CreateOrderInput    `json:"order,omitempty"`
}

// PaymentIntentResult is returned to the browser to confirm the payment.
type PaymentIntentResult struct {
	ClientSecret      string `json:"clientSecret"`
	PaymentIntentID   string `json:"paymentIntentId"`
	IsKlarnaAvailable bool   `json:"isKlarnaAvailable"`
}

// CreatePaymentIntent prices the purchase, opens an intent with the provider and
// remembers what the intent pays for.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, in CreatePaymentIntentInput) (*PaymentIntentResult, error) {
	if s.provider == nil {
		return nil, ErrProviderUnavailable
	}

	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.settings.Currency
	}

	kind, amount, err := s.price(ctx, &in)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	amountMinor := ToMinorUnits(amount)

	klarna := KlarnaEligible(s.settings.KlarnaEnabled, s.settings.KlarnaMinAmount, amountMinor, in.CustomerCountry)
	methods := []string{"card"}
	if klarna {
		methods = append(methods, "klarna")
	}

	metadata := make(map[string]string, len(in.Metadata)+3)
	for k, v := range in.Metadata {
		metadata[k] = v
	}
	metadata["payment_methods_offered"] = strings.Join(methods, ",")
	metadata["debit_card_enabled"] = "true"
	if in.PaymentType != "" {
		metadata["paymentType"] = in.PaymentType
	}

	intent, err := s.provider.CreateIntent(ctx, CreateIntentParams{
		AmountMinor:        amountMinor,
		Currency:           currency,
		Description:        in.Description,
		ReceiptEmail:       strings.TrimSpace(in.CustomerEmail),
		PaymentMethodTypes: methods,
		Metadata:           metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create payment intent: %v", ErrProviderFailure, err)
	}

	if kind != "" {
		payload, err := s.payload(kind, &in)
		if err != nil {
			return nil, err
		}
		record := &models.Payment{
			IntentID:      intent.ID,
			Kind:          kind,
			Payload:       payload,
			AmountMinor:   amountMinor,
			Currency:      currency,
			CustomerEmail: strings.TrimSpace(in.CustomerEmail),
			Status:        models.PaymentStatusCreated,
		}
		if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
			return nil, err
		}
	}

	log.Printf("[Payment] intent %s created for %d %s (klarna=%t)", intent.ID, amountMinor, currency, klarna)
	return &PaymentIntentResult{
		ClientSecret:      intent.ClientSecret,
		PaymentIntentID:   intent.ID,
		IsKlarnaAvailable: klarna,
	}, nil
}

// price resolves the purchase kind and the amount to charge. Orders are priced
// from the catalogue; gift cards from their face value.
func (s *PaymentService) price(ctx context.Context, in *CreatePaymentIntentInput) (string, decimal.Decimal, error) {
	switch {
	case in.Order != nil:
		total, err := s.orders.Quote(ctx, in.Order.Items)
		if err != nil {
			return "", decimal.Zero, err
		}
		if !in.Amount.IsZero() && ToMinorUnits(in.Amount) != ToMinorUnits(total) {
			return "", decimal.Zero, ErrAmountMismatch
		}
		if in.Order.CustomerEmail == "" {
			in.Order.CustomerEmail = in.CustomerEmail
		}
		return models.PaymentKindOrder, total, nil
	case in.GiftCard != nil:
		if in.GiftCard.Amount.IsZero() {
			in.GiftCard.Amount = in.Amount
		}
		if !in.Amount.IsZero() && ToMinorUnits(in.Amount) != ToMinorUnits(in.GiftCard.Amount) {
			return "", decimal.Zero, ErrAmountMismatch
		}
		code, err := s.giftCards.CheckCode(ctx, in.GiftCard.Code)
		if err != nil {
			return "", decimal.Zero, err
		}
		in.GiftCard.Code = code
		if in.GiftCard.BuyerEmail == "" {
			in.GiftCard.BuyerEmail = in.CustomerEmail
		}
		return models.PaymentKindGiftCard, in.GiftCard.Amount, nil
	default:
		return "", in.Amount, nil
	}
}

func (s *PaymentService) payload(kind string, in *CreatePaymentIntentInput) (string, error) {
	var v any = in.GiftCard
	if kind == models.PaymentKindOrder {
		v = in.Order
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// CompleteGiftCardPayment issues the gift card paid for by intentID. fallback is
// used only when the intent was opened without purchase details.
func (s *PaymentService) CompleteGiftCardPayment(ctx context.Context, intentID string, fallback *CreateGiftCardInput) (*models.GiftCard, error) {
	record, err := s.completionRecord(ctx, intentID, models.PaymentKindGiftCard, func() (any, int64, string, error) {
		if fallback == nil {
			return nil, 0, "", ErrMissingPurchase
		}
		return fallback, ToMinorUnits(fallback.Amount), fallback.BuyerEmail, nil
	})
	if err != nil {
		return nil, err
	}

	intent, err := s.succeededIntent(ctx, record)
	if err != nil {
		return nil, err
	}

	result, err := s.finalize(ctx, record, intent)
	if err != nil {
		return nil, err
	}
	return result.giftCard, nil
}

// CompleteProductOrder places the order paid for by intentID. fallback is used
// only when the intent was opened without purchase details.
func (s *PaymentService) CompleteProductOrder(ctx context.Context, intentID string, fallback *CreateOrderInput) (*models.Order, error) {
	record, err := s.completionRecord(ctx, intentID, models.PaymentKindOrder, func() (any, int64, string, error) {
		if fallback == nil {
			return nil, 0, "", ErrMissingPurchase
		}
		total, err := s.orders.Quote(ctx, fallback.Items)
		if err != nil {
			return nil, 0, "", err
		}
		return fallback, ToMinorUnits(total), fallback.CustomerEmail, nil
	})
	if err != nil {
		return nil, err
	}

	intent, err := s.succeededIntent(ctx, record)
	if err != nil {
		return nil, err
	}

	result, err := s.finalize(ctx, record, intent)
	if err != nil {
		return nil, err
	}
	return result.order, nil
}

// completionRecord returns the stored payment for intentID, creating one from the
// fallback purchase when the intent has none.
func (s *PaymentService) completionRecord(ctx context.Context, intentID, kind string, fallback func() (any, int64, string, error)) (*models.Payment, error) {
	if s.provider == nil {
		return nil, ErrProviderUnavailable
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, ErrPaymentNotFound
	}

	record, err := s.paymentByIntent(ctx, intentID)
	if err == nil {
		if record.Kind != kind {
			return nil, fmt.Errorf("%w: intent %s pays for a %s", ErrMissingPurchase, intentID, record.Kind)
		}
		return record, nil
	}
	if !errors.Is(err, ErrPaymentNotFound) {
		return nil, err
	}

	purchase, amountMinor, email, err := fallback()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(purchase)
	if err != nil {
		return nil, err
	}

	record = &models.Payment{
		IntentID:      intentID,
		Kind:          kind,
		Payload:       string(raw),
		AmountMinor:   amountMinor,
		Currency:      s.settings.Currency,
		CustomerEmail: email,
		Status:        models.PaymentStatusCreated,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		// A concurrent completion may have inserted it first.
		if existing, lookupErr := s.paymentByIntent(ctx, intentID); lookupErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return record, nil
}

func (s *PaymentService) succeededIntent(ctx context.Context, record *models.Payment) (*PaymentIntent, error) {
	intent, err := s.provider.GetIntent(ctx, record.IntentID)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve payment intent: %v", ErrProviderFailure, err)
	}
	if intent.Status != IntentStatusSucceeded {
		return nil, fmt.Errorf("%w (status %s)", ErrPaymentNotSucceeded, intent.Status)
	}
	return intent, nil
}

// RetrievePaymentIntent looks an intent up with the provider.
func (s *PaymentService) RetrievePaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	if s.provider == nil {
		return nil, ErrProviderUnavailable
	}
	intent, err := s.provider.GetIntent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	return intent, nil
}

// HandleWebhook verifies a provider notification and applies it to the stored payment.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.provider == nil {
		return ErrProviderUnavailable
	}

	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	if event.Intent == nil {
		log.Printf("[Payment] ignoring webhook %s (%s)", event.ID, event.Type)
		return nil
	}

	record, err := s.paymentByIntent(ctx, event.Intent.ID)
	if errors.Is(err, ErrPaymentNotFound) {
		log.Printf("[Payment] webhook %s for unknown intent %s", event.Type, event.Intent.ID)
		return nil
	}
	if err != nil {
		return err
	}

	switch event.Type {
	case EventPaymentSucceeded:
		_, err := s.finalize(ctx, record, event.Intent)
		return err
	case EventPaymentFailed:
		log.Printf("[Payment] intent %s failed: %s", record.IntentID, event.Intent.LastError)
		return s.db.WithContext(ctx).Model(&models.Payment{}).
			Where("id = ? AND status <> ?", record.ID, models.PaymentStatusSucceeded).
			Updates(map[string]any{
				"status":     models.PaymentStatusFailed,
				"last_error": event.Intent.LastError,
			}).Error
	default:
		log.Printf("[Payment] ignoring webhook %s (%s)", event.ID, event.Type)
		return nil
	}
}

type finalized struct {
	giftCard *models.GiftCard
	order    *models.Order
}

// finalize creates the purchased gift card or order exactly once per intent and
// notifies only the caller that completed it.
func (s *PaymentService) finalize(ctx context.Context, record *models.Payment, intent *PaymentIntent) (*finalized, error) {
	if intent.AmountMinor != record.AmountMinor {
		return nil, fmt.Errorf("%w: charged %d, expected %d", ErrAmountMismatch, intent.AmountMinor, record.AmountMinor)
	}

	var result finalized
	switch record.Kind {
	case models.PaymentKindGiftCard:
		var in CreateGiftCardInput
		if err := json.Unmarshal([]byte(record.Payload), &in); err != nil {
			return nil, fmt.Errorf("decode gift card purchase: %w", err)
		}
		in.PaymentIntentID = record.IntentID
		if in.Currency == "" {
			in.Currency = record.Currency
		}
		card, err := s.giftCards.Create(ctx, in)
		if err != nil {
			s.recordFailure(ctx, record, err)
			return nil, err
		}
		result.giftCard = card
	case models.PaymentKindOrder:
		var in CreateOrderInput
		if err := json.Unmarshal([]byte(record.Payload), &in); err != nil {
			return nil, fmt.Errorf("decode order purchase: %w", err)
		}
		in.PaymentIntentID = record.IntentID
		if in.Currency == "" {
			in.Currency = record.Currency
		}
		order, err := s.orders.AddOrder(ctx, in)
		if err != nil {
			s.recordFailure(ctx, record, err)
			return nil, err
		}
		result.order = order
	default:
		return nil, fmt.Errorf("unknown payment kind %q", record.Kind)
	}

	resultID := ""
	if result.giftCard != nil {
		resultID = result.giftCard.ID
	} else {
		resultID = result.order.ID
	}

	now := s.now().UTC()
	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status <> ?", record.ID, models.PaymentStatusSucceeded).
		Updates(map[string]any{
			"status":       models.PaymentStatusSucceeded,
			"result_id":    resultID,
			"finalized_at": now,
			"last_error":   "",
		})
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 1 {
		log.Printf("[Payment] intent %s finalized as %s %s", record.IntentID, record.Kind, resultID)
		if s.notifier != nil {
			if result.giftCard != nil {
				s.notifier.GiftCardPurchased(ctx, result.giftCard)
			} else {
				s.notifier.OrderPlaced(ctx, result.order)
			}
		}
	}

	return &result, nil
}

func (s *PaymentService) recordFailure(ctx context.Context, record *models.Payment, cause error) {
	log.Printf("[Payment] finalizing intent %s failed: %v", record.IntentID, cause)
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", record.ID).
		Update("last_error", cause.Error()).Error; err != nil {
		log.Printf("[Payment] recording failure for %s: %v", record.IntentID, err)
	}
}

func (s *PaymentService) paymentByIntent(ctx context.Context, intentID string) (*models.Payment, error) {
	var record models.Payment
	if err := s.db.WithContext(ctx).Where("intent_id = ?", intentID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &record, nil
}
