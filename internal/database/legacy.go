package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/example/maitri/internal/models"
)

// GiftCardEnvelope is the JSON document format of the gift card store.
type GiftCardEnvelope struct {
	GiftCards   []models.GiftCard `json:"giftCards"`
	LastUpdated time.Time         `json:"lastUpdated"`
}

// ProductEnvelope is the JSON document format of the product and order store.
type ProductEnvelope struct {
	Products    []models.Product `json:"products"`
	Orders      []models.Order   `json:"orders"`
	LastUpdated time.Time        `json:"lastUpdated"`
}

// legacyGiftCard accepts the locale dates ("4/2/2025") older stores carry.
type legacyGiftCard struct {
	models.GiftCard
	PurchaseDate string `json:"purchaseDate"`
	ExpiryDate   string `json:"expiryDate"`
}

type legacyGiftCardEnvelope struct {
	GiftCards []legacyGiftCard `json:"giftCards"`
}

var legacyDateLayouts = []string{
	time.RFC3339Nano,
	"1/2/2006, 3:04:05 PM",
	"1/2/2006",
	"2006-01-02",
}

func parseLegacyDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range legacyDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", value)
}

// resolveDates fills the card's dates. A missing purchase date means today and
// a missing expiry date means one year after purchase.
func (c *legacyGiftCard) resolveDates(now time.Time) error {
	card := &c.GiftCard
	card.PurchaseDate = now
	if c.PurchaseDate != "" {
		t, err := parseLegacyDate(c.PurchaseDate)
		if err != nil {
			return fmt.Errorf("purchase date: %w", err)
		}
		card.PurchaseDate = t
	}
	card.ExpiryDate = card.PurchaseDate.AddDate(1, 0, 0)
	if c.ExpiryDate != "" {
		t, err := parseLegacyDate(c.ExpiryDate)
		if err != nil {
			return fmt.Errorf("expiry date: %w", err)
		}
		card.ExpiryDate = t
	}
	return nil
}

// legacyProduct accepts the older "image" field name.
type legacyProduct struct {
	models.Product
	Image string `json:"image"`
}

type legacyProductEnvelope struct {
	Products []legacyProduct `json:"products"`
	Orders   []models.Order  `json:"orders"`
}

// ImportLegacy seeds empty tables from JSON envelope files. Missing files are
// skipped; tables that already hold rows are never touched.
func ImportLegacy(ctx context.Context, conn *gorm.DB, giftCardsPath, productsPath, currency string) error {
	if err := importGiftCards(ctx, conn, giftCardsPath, currency); err != nil {
		return fmt.Errorf("import gift cards from %s: %w", giftCardsPath, err)
	}
	if err := importProducts(ctx, conn, productsPath, currency); err != nil {
		return fmt.Errorf("import products from %s: %w", productsPath, err)
	}
	return nil
}

func readEnvelope(path string, v any) (bool, error) {
	if path == "" {
		return false, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, err
	}
	return true, nil
}

func tableEmpty(ctx context.Context, conn *gorm.DB, model any) (bool, error) {
	var count int64
	if err := conn.WithContext(ctx).Model(model).Count(&count).Error; err != nil {
		return false, err
	}
	return count == 0, nil
}

func importGiftCards(ctx context.Context, conn *gorm.DB, path, currency string) error {
	empty, err := tableEmpty(ctx, conn, &models.GiftCard{})
	if err != nil || !empty {
		return err
	}

	var envelope legacyGiftCardEnvelope
	found, err := readEnvelope(path, &envelope)
	if err != nil || !found || len(envelope.GiftCards) == 0 {
		return err
	}

	now := time.Now().UTC()
	err = conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range envelope.GiftCards {
			if err := envelope.GiftCards[i].resolveDates(now); err != nil {
				return fmt.Errorf("gift card %s: %w", envelope.GiftCards[i].ID, err)
			}
			card := &envelope.GiftCards[i].GiftCard
			card.Code = strings.ToUpper(strings.TrimSpace(card.Code))
			if card.Currency == "" {
				card.Currency = currency
			}
			if card.Status == "" {
				card.Status = models.GiftCardStatusActive
			}
			if err := tx.Create(card).Error; err != nil {
				return fmt.Errorf("gift card %s: %w", card.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("[Database] imported %d gift cards from %s", len(envelope.GiftCards), path)
	return nil
}

func importProducts(ctx context.Context, conn *gorm.DB, path, currency string) error {
	empty, err := tableEmpty(ctx, conn, &models.Product{})
	if err != nil || !empty {
		return err
	}

	var envelope legacyProductEnvelope
	found, err := readEnvelope(path, &envelope)
	if err != nil || !found {
		return err
	}

	err = conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range envelope.Products {
			product := envelope.Products[i].Product
			if product.ImageURL == "" {
				product.ImageURL = envelope.Products[i].Image
			}
			if err := tx.Create(&product).Error; err != nil {
				return fmt.Errorf("product %s: %w", product.ID, err)
			}
		}
		for i := range envelope.Orders {
			order := &envelope.Orders[i]
			if order.Currency == "" {
				order.Currency = currency
			}
			if order.Status == "" {
				order.Status = models.OrderStatusPending
			}
			if err := tx.Create(order).Error; err != nil {
				return fmt.Errorf("order %s: %w", order.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("[Database] imported %d products and %d orders from %s", len(envelope.Products), len(envelope.Orders), path)
	return nil
}

func bySeq(db *gorm.DB) *gorm.DB {
	return db.Order("seq asc")
}

// ExportGiftCards returns every gift card with its history as an envelope.
func ExportGiftCards(ctx context.Context, conn *gorm.DB) (*GiftCardEnvelope, error) {
	envelope := &GiftCardEnvelope{GiftCards: []models.GiftCard{}, LastUpdated: time.Now().UTC()}
	if err := conn.WithContext(ctx).
		Preload("History", bySeq).
		Order("purchase_date asc").
		Find(&envelope.GiftCards).Error; err != nil {
		return nil, err
	}
	return envelope, nil
}

// ExportProducts returns the catalogue and every order as an envelope.
func ExportProducts(ctx context.Context, conn *gorm.DB) (*ProductEnvelope, error) {
	envelope := &ProductEnvelope{
		Products:    []models.Product{},
		Orders:      []models.Order{},
		LastUpdated: time.Now().UTC(),
	}

	db := conn.WithContext(ctx)
	if err := db.Order("name asc").Find(&envelope.Products).Error; err != nil {
		return nil, err
	}
	if err := db.Preload("Items").
		Preload("History", bySeq).
		Order("order_date asc").
		Find(&envelope.Orders).Error; err != nil {
		return nil, err
	}
	return envelope, nil
}
