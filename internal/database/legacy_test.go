package database

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/example/maitri/internal/models"
)

const legacyGiftCards = `{
  "giftCards": [
    {
      "id": "GC-1700000000000-1",
      "code": " abcd-efgh-jk ",
      "originalAmount": 50,
      "currentAmount": 20,
      "buyerName": "Ada Buyer",
      "buyerEmail": "ada@example.com",
      "recipientName": "Grace Recipient",
      "recipientEmail": "grace@example.com",
      "purchaseDate": "2024-01-10T12:00:00Z",
      "expiryDate": "2025-01-10T12:00:00Z",
      "history": [
        {"date": "2024-01-10T12:00:00Z", "action": "created", "amount": 50, "balance": 50, "note": "Gift card created"},
        {"date": "2024-02-01T09:30:00Z", "action": "amount_update", "previousAmount": 50, "newAmount": 20, "balance": 20, "note": "Redeemed in store"}
      ]
    }
  ],
  "lastUpdated": "2024-02-01T09:30:00Z"
}`

const localeDateGiftCards = `{
  "giftCards": [
    {
      "id": "GC-1743600000000-1",
      "code": "WXYZ-2345-AB",
      "originalAmount": 30,
      "currentAmount": 30,
      "buyerEmail": "ada@example.com",
      "purchaseDate": "4/2/2025",
      "expiryDate": "4/2/2026",
      "status": "active",
      "history": [{"date": "2025-04-02T10:15:00.000Z", "action": "created", "amount": 30, "balance": 30}]
    },
    {
      "id": "GC-1743600000000-2",
      "code": "MNPQ-6789-CD",
      "originalAmount": 15,
      "currentAmount": 15,
      "purchaseDate": "2025-05-20",
      "status": "active"
    }
  ],
  "lastUpdated": "2025-05-20T08:00:00.000Z"
}`

const legacyProducts = `{
  "products": [
    {"id": "oil", "name": "Massage Oil", "price": 12.5, "stock": 4, "image": "/img/oil.png"},
    {"id": "balm", "name": "Balm", "price": "9.99", "stock": 0, "imageUrl": "/img/balm.png"}
  ],
  "orders": [
    {
      "id": "ORD-1",
      "customerName": "Ada Customer",
      "customerEmail": "ada@example.com",
      "items": [{"productId": "oil", "name": "Massage Oil", "quantity": 2, "price": 12.5}],
      "total": 25,
      "shippingAddress": {"address": "1 High Street", "city": "London", "postcode": "N1 1AA", "country": "GB"},
      "orderDate": "2024-03-01T10:00:00Z",
      "history": [{"date": "2024-03-01T10:00:00Z", "status": "pending", "note": "Order placed"}]
    }
  ],
  "lastUpdated": "2024-03-01T10:00:00Z"
}`

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := Open("sqlite:"+filepath.Join(t.TempDir(), "test.db"), false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return conn
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestImportLegacy(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	giftCards := writeFile(t, "giftcards_db.json", legacyGiftCards)
	products := writeFile(t, "products_db.json", legacyProducts)

	if err := ImportLegacy(ctx, conn, giftCards, products, "gbp"); err != nil {
		t.Fatalf("ImportLegacy: %v", err)
	}

	var card models.GiftCard
	if err := conn.Preload("History", bySeq).First(&card, "id = ?", "GC-1700000000000-1").Error; err != nil {
		t.Fatalf("load gift card: %v", err)
	}
	if card.Code != "ABCD-EFGH-JK" {
		t.Errorf("code = %q", card.Code)
	}
	if card.Currency != "gbp" || card.Status != models.GiftCardStatusActive {
		t.Errorf("defaults not applied: currency=%q status=%q", card.Currency, card.Status)
	}
	if len(card.History) != 2 || card.History[1].Note != "Redeemed in store" {
		t.Errorf("history = %+v", card.History)
	}

	var oil models.Product
	if err := conn.First(&oil, "id = ?", "oil").Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if oil.ImageURL != "/img/oil.png" {
		t.Errorf("image url = %q, want the legacy image field", oil.ImageURL)
	}

	var order models.Order
	if err := conn.Preload("Items").First(&order, "id = ?", "ORD-1").Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != models.OrderStatusPending || len(order.Items) != 1 {
		t.Errorf("order = %+v", order)
	}
}

func TestImportLegacyLocaleDates(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	giftCards := writeFile(t, "giftcards_db.json", localeDateGiftCards)
	if err := ImportLegacy(ctx, conn, giftCards, "", "gbp"); err != nil {
		t.Fatalf("ImportLegacy: %v", err)
	}

	tests := []struct {
		id       string
		purchase time.Time
		expiry   time.Time
	}{
		{"GC-1743600000000-1", time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)},
		{"GC-1743600000000-2", time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC), time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		var card models.GiftCard
		if err := conn.First(&card, "id = ?", tt.id).Error; err != nil {
			t.Fatalf("load %s: %v", tt.id, err)
		}
		if !card.PurchaseDate.Equal(tt.purchase) {
			t.Errorf("%s purchase date = %v, want %v", tt.id, card.PurchaseDate, tt.purchase)
		}
		if !card.ExpiryDate.Equal(tt.expiry) {
			t.Errorf("%s expiry date = %v, want %v", tt.id, card.ExpiryDate, tt.expiry)
		}
	}
}

func TestImportLegacyRejectsUnreadableDate(t *testing.T) {
	conn := openTestDB(t)

	giftCards := writeFile(t, "giftcards_db.json", `{"giftCards":[{"id":"GC-1","code":"WXYZ-2345-AB","originalAmount":5,"currentAmount":5,"purchaseDate":"someday"}]}`)
	if err := ImportLegacy(context.Background(), conn, giftCards, "", "gbp"); err == nil {
		t.Fatal("ImportLegacy accepted an unreadable purchase date")
	}

	var count int64
	conn.Model(&models.GiftCard{}).Count(&count)
	if count != 0 {
		t.Errorf("%d gift cards imported, want 0", count)
	}
}

func TestImportLegacySkipsPopulatedTables(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	if err := conn.Create(&models.Product{ID: "existing", Name: "Existing"}).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	products := writeFile(t, "products_db.json", legacyProducts)
	if err := ImportLegacy(ctx, conn, "", products, "gbp"); err != nil {
		t.Fatalf("ImportLegacy: %v", err)
	}

	var count int64
	conn.Model(&models.Product{}).Count(&count)
	if count != 1 {
		t.Errorf("%d products after import, want the single existing one", count)
	}
}

func TestImportLegacyMissingFiles(t *testing.T) {
	conn := openTestDB(t)
	missing := filepath.Join(t.TempDir(), "nope.json")

	if err := ImportLegacy(context.Background(), conn, missing, missing, "gbp"); err != nil {
		t.Fatalf("missing files should be skipped: %v", err)
	}
}

func TestExportRoundTrip(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	giftCards := writeFile(t, "giftcards_db.json", legacyGiftCards)
	products := writeFile(t, "products_db.json", legacyProducts)
	if err := ImportLegacy(ctx, conn, giftCards, products, "gbp"); err != nil {
		t.Fatalf("ImportLegacy: %v", err)
	}

	cardEnvelope, err := ExportGiftCards(ctx, conn)
	if err != nil {
		t.Fatalf("ExportGiftCards: %v", err)
	}
	productEnvelope, err := ExportProducts(ctx, conn)
	if err != nil {
		t.Fatalf("ExportProducts: %v", err)
	}
	if len(cardEnvelope.GiftCards) != 1 || len(productEnvelope.Products) != 2 || len(productEnvelope.Orders) != 1 {
		t.Fatalf("export sizes: %d cards, %d products, %d orders",
			len(cardEnvelope.GiftCards), len(productEnvelope.Products), len(productEnvelope.Orders))
	}

	// An export can seed a fresh database.
	cardsJSON, _ := json.Marshal(cardEnvelope)
	productsJSON, _ := json.Marshal(productEnvelope)

	fresh := openTestDB(t)
	if err := ImportLegacy(ctx, fresh,
		writeFile(t, "cards.json", string(cardsJSON)),
		writeFile(t, "products.json", string(productsJSON)),
		"gbp"); err != nil {
		t.Fatalf("re-import: %v", err)
	}

	again, err := ExportGiftCards(ctx, fresh)
	if err != nil {
		t.Fatalf("ExportGiftCards: %v", err)
	}
	got := again.GiftCards[0]
	if !got.CurrentAmount.Equal(cardEnvelope.GiftCards[0].CurrentAmount) || len(got.History) != 2 {
		t.Errorf("re-imported card = %+v", got)
	}
}
