package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/maitri/internal/models"
	"github.com/example/maitri/internal/utils"
)

var (
	ErrGiftCardNotFound     = errors.New("gift card not found")
	ErrInvalidAmount        = errors.New("amount must be a positive number")
	ErrNegativeAmount       = errors.New("amount cannot be negative")
	ErrAmountAboveOriginal  = errors.New("amount cannot exceed the original gift card value")
	ErrInvalidGiftCardState = errors.New("invalid gift card status")
	ErrReactivation         = errors.New("cannot change status back to active")
	ErrDuplicateGiftCode    = errors.New("gift card code already in use")
	ErrInvalidGiftCode      = errors.New("gift card code must look like XXXX-XXXX-XX")
)

// InactiveGiftCardError rejects a non-zero balance on a card that is no longer active.
type InactiveGiftCardError struct {
	Status string
}

func (e *InactiveGiftCardError) Error() string {
	return "cannot update amount of a " + e.Status + " gift card"
}

// GiftCardService owns the gift card lifecycle: issuance, balance changes,
// status transitions and the expiry sweep.
type GiftCardService struct {
	db             *gorm.DB
	validityMonths int
	currency       string
	now            func() time.Time
}

// NewGiftCardService constructs a GiftCardService.
func NewGiftCardService(db *gorm.DB, validityMonths int, currency string) *GiftCardService {
	if validityMonths <= 0 {
		validityMonths = 12
	}
	return &GiftCardService{
		db:             db,
		validityMonths: validityMonths,
		currency:       currency,
		now:            time.Now,
	}
}

// CreateGiftCardInput describes a purchased gift card.
type CreateGiftCardInput struct {
	Code            string          `json:"giftCode"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	BuyerName       string          `json:"buyerName"`
	BuyerEmail      string          `json:"buyerEmail"`
	RecipientName   string          `json:"recipientName"`
	RecipientEmail  string          `json:"recipientEmail"`
	Message         string          `json:"message"`
	PaymentIntentID string          `json:"-"`
}

// GiftCardFilter narrows List results. Zero values match everything.
type GiftCardFilter struct {
	Status string
	Search string
	Since  time.Time
}

// Create issues a new active gift card. A card already issued for the same
// payment intent is returned unchanged.
func (s *GiftCardService) Create(ctx context.Context, in CreateGiftCardInput) (*models.GiftCard, error) {
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	// A paid purchase always gets a card, even when its requested code went bad.
	paid := in.PaymentIntentID != ""
	code := normalizeGiftCode(in.Code)
	if code != "" && !utils.IsGiftCode(code) {
		if !paid {
			return nil, ErrInvalidGiftCode
		}
		log.Printf("[GiftCard] intent %s requested malformed code %q, generating one", in.PaymentIntentID, in.Code)
		code = ""
	}

	currency := strings.ToLower(in.Currency)
	if currency == "" {
		currency = s.currency
	}

	var card *models.GiftCard
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.PaymentIntentID != "" {
			existing, err := loadGiftCard(tx.Where("payment_intent_id = ?", in.PaymentIntentID))
			if err == nil {
				card = existing
				return nil
			}
			if !errors.Is(err, ErrGiftCardNotFound) {
				return err
			}
		}

		finalCode, err := s.reserveCode(tx, code)
		if errors.Is(err, ErrDuplicateGiftCode) && paid && code != "" {
			log.Printf("[GiftCard] intent %s requested taken code %s, generating one", in.PaymentIntentID, code)
			finalCode, err = s.reserveCode(tx, "")
		}
		if err != nil {
			return err
		}

		now := s.now().UTC()
		amount := in.Amount.Round(2)
		created := &models.GiftCard{
			ID:             utils.NewGiftCardID(now),
			Code:           finalCode,
			OriginalAmount: amount,
			CurrentAmount:  amount,
			Currency:       currency,
			BuyerName:      strings.TrimSpace(in.BuyerName),
			BuyerEmail:     strings.TrimSpace(in.BuyerEmail),
			RecipientName:  strings.TrimSpace(in.RecipientName),
			RecipientEmail: strings.TrimSpace(in.RecipientEmail),
			Message:        in.Message,
			PurchaseDate:   now,
			ExpiryDate:     now.AddDate(0, s.validityMonths, 0),
			Status:         models.GiftCardStatusActive,
			History: []models.GiftCardHistory{{
				Date:    now,
				Action:  models.GiftCardActionCreated,
				Amount:  decimalPtr(amount),
				Balance: amount,
				Note:    "Gift card created",
			}},
		}
		if in.PaymentIntentID != "" {
			created.PaymentIntentID = &in.PaymentIntentID
		}

		if err := tx.Create(created).Error; err != nil {
			return err
		}
		card = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[GiftCard] issued %s (%s %s) for %s", card.ID, card.OriginalAmount.StringFixed(2), card.Currency, card.BuyerEmail)
	return card, nil
}

// CheckCode normalises a requested code and reports whether it can be issued.
// An empty code is accepted; one is generated at issuance.
func (s *GiftCardService) CheckCode(ctx context.Context, code string) (string, error) {
	code = normalizeGiftCode(code)
	if code == "" {
		return "", nil
	}
	if !utils.IsGiftCode(code) {
		return "", ErrInvalidGiftCode
	}
	taken, err := codeTaken(s.db.WithContext(ctx), code)
	if err != nil {
		return "", err
	}
	if taken {
		return "", ErrDuplicateGiftCode
	}
	return code, nil
}

func normalizeGiftCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *GiftCardService) reserveCode(tx *gorm.DB, code string) (string, error) {
	if code != "" {
		taken, err := codeTaken(tx, code)
		if err != nil {
			return "", err
		}
		if taken {
			return "", ErrDuplicateGiftCode
		}
		return code, nil
	}

	for attempt := 0; attempt < 5; attempt++ {
		generated, err := utils.NewGiftCode()
		if err != nil {
			return "", err
		}
		taken, err := codeTaken(tx, generated)
		if err != nil {
			return "", err
		}
		if !taken {
			return generated, nil
		}
	}
	return "", ErrDuplicateGiftCode
}

func codeTaken(tx *gorm.DB, code string) (bool, error) {
	var count int64
	if err := tx.Model(&models.GiftCard{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Get returns a gift card with its history.
func (s *GiftCardService) Get(ctx context.Context, id string) (*models.GiftCard, error) {
	return loadGiftCard(s.db.WithContext(ctx).Where("id = ?", id))
}

// GetByCode looks a card up by its redemption code.
func (s *GiftCardService) GetByCode(ctx context.Context, code string) (*models.GiftCard, error) {
	return loadGiftCard(s.db.WithContext(ctx).Where("code = ?", normalizeGiftCode(code)))
}

// List returns gift cards, newest first.
func (s *GiftCardService) List(ctx context.Context, filter GiftCardFilter) ([]models.GiftCard, error) {
	query := s.db.WithContext(ctx).Model(&models.GiftCard{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if !filter.Since.IsZero() {
		query = query.Where("purchase_date >= ?", filter.Since)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		q := "%" + search + "%"
		query = query.Where(
			"LOWER(code) LIKE ? OR LOWER(buyer_name) LIKE ? OR LOWER(buyer_email) LIKE ? OR LOWER(recipient_name) LIKE ? OR LOWER(recipient_email) LIKE ?",
			q, q, q, q, q,
		)
	}

	cards := []models.GiftCard{}
	if err := query.Preload("History", orderBySeq).
		Order("purchase_date desc").
		Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

// UpdateAmount sets the card balance. A zero balance always exhausts the card,
// whatever its previous status.
func (s *GiftCardService) UpdateAmount(ctx context.Context, id string, newAmount decimal.Decimal, note string) (*models.GiftCard, error) {
	if newAmount.IsNegative() {
		return nil, ErrNegativeAmount
	}
	newAmount = newAmount.Round(2)

	var card *models.GiftCard
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockGiftCard(tx, id)
		if err != nil {
			return err
		}
		if newAmount.GreaterThan(locked.OriginalAmount) {
			return ErrAmountAboveOriginal
		}
		if locked.Status != models.GiftCardStatusActive && !newAmount.IsZero() {
			return &InactiveGiftCardError{Status: locked.Status}
		}

		now := s.now().UTC()
		previousAmount := locked.CurrentAmount
		previousStatus := locked.Status

		locked.CurrentAmount = newAmount
		if newAmount.IsZero() {
			locked.Status = models.GiftCardStatusExhausted
		}

		if note == "" {
			note = "Amount updated"
		}
		entries := []models.GiftCardHistory{{
			GiftCardID:     locked.ID,
			Date:           now,
			Action:         models.GiftCardActionAmountUpdate,
			PreviousAmount: decimalPtr(previousAmount),
			NewAmount:      decimalPtr(newAmount),
			Balance:        newAmount,
			Note:           note,
		}}
		if locked.Status != previousStatus {
			entries = append(entries, models.GiftCardHistory{
				GiftCardID:     locked.ID,
				Date:           now,
				Action:         models.GiftCardActionStatusUpdate,
				PreviousStatus: previousStatus,
				NewStatus:      locked.Status,
				Balance:        newAmount,
				Note:           fmt.Sprintf("Status changed from %s to %s due to amount update", previousStatus, locked.Status),
			})
		}

		if err := tx.Model(&models.GiftCard{}).Where("id = ?", locked.ID).Updates(map[string]any{
			"current_amount": locked.CurrentAmount,
			"status":         locked.Status,
			"updated_at":     now,
		}).Error; err != nil {
			return err
		}
		if err := tx.Create(&entries).Error; err != nil {
			return err
		}

		card, err = loadGiftCard(tx.Where("id = ?", locked.ID))
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[GiftCard] %s balance set to %s (status %s)", card.ID, card.CurrentAmount.StringFixed(2), card.Status)
	return card, nil
}

// UpdateStatus moves the card to newStatus. Cards never return to active.
func (s *GiftCardService) UpdateStatus(ctx context.Context, id, newStatus, note string) (*models.GiftCard, error) {
	if !models.IsGiftCardStatus(newStatus) {
		return nil, ErrInvalidGiftCardState
	}

	var card *models.GiftCard
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockGiftCard(tx, id)
		if err != nil {
			return err
		}
		if newStatus == models.GiftCardStatusActive && locked.Status != models.GiftCardStatusActive {
			return fmt.Errorf("%w from %s", ErrReactivation, locked.Status)
		}

		now := s.now().UTC()
		if note == "" {
			note = fmt.Sprintf("Status changed from %s to %s", locked.Status, newStatus)
		}
		if err := appendStatusChange(tx, locked, newStatus, note, now); err != nil {
			return err
		}

		card, err = loadGiftCard(tx.Where("id = ?", locked.ID))
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[GiftCard] %s status set to %s", card.ID, card.Status)
	return card, nil
}

// SweepExpired marks every active card whose expiry date has passed as expired
// and returns how many cards changed.
func (s *GiftCardService) SweepExpired(ctx context.Context) (int, error) {
	now := s.now().UTC()
	updated := 0

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var due []models.GiftCard
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("status = ? AND expiry_date < ?", models.GiftCardStatusActive, now).
			Find(&due).Error; err != nil {
			return err
		}

		for i := range due {
			if err := appendStatusChange(tx, &due[i], models.GiftCardStatusExpired, "Automatically marked as expired", now); err != nil {
				return err
			}
		}
		updated = len(due)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if updated > 0 {
		log.Printf("[GiftCard] marked %d gift cards as expired", updated)
	}
	return updated, nil
}

func appendStatusChange(tx *gorm.DB, card *models.GiftCard, newStatus, note string, now time.Time) error {
	previous := card.Status
	if err := tx.Model(&models.GiftCard{}).Where("id = ?", card.ID).Updates(map[string]any{
		"status":     newStatus,
		"updated_at": now,
	}).Error; err != nil {
		return err
	}
	card.Status = newStatus

	return tx.Create(&models.GiftCardHistory{
		GiftCardID:     card.ID,
		Date:           now,
		Action:         models.GiftCardActionStatusUpdate,
		PreviousStatus: previous,
		NewStatus:      newStatus,
		Balance:        card.CurrentAmount,
		Note:           note,
	}).Error
}

func lockGiftCard(tx *gorm.DB, id string) (*models.GiftCard, error) {
	var card models.GiftCard
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGiftCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

func loadGiftCard(query *gorm.DB) (*models.GiftCard, error) {
	var card models.GiftCard
	if err := query.Preload("History", orderBySeq).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGiftCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

func orderBySeq(db *gorm.DB) *gorm.DB {
	return db.Order("seq asc")
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
