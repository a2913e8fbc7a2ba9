package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/maitri/internal/models"
)

// TelegramService handles sending notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
	baseURL     string
	client      *http.Client
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		baseURL:     "https://api.telegram.org",
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether both the bot token and admin chat are configured.
func (s *TelegramService) Enabled() bool {
	return s != nil && s.botToken != "" && s.adminChatID != ""
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)

	msg := telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := s.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(text string) error {
	if s.adminChatID == "" {
		log.Println("[Telegram] Admin chat ID not configured")
		return nil
	}
	return s.SendMessage(s.adminChatID, text)
}

var currencySymbols = map[string]string{
	"gbp": "£",
	"eur": "€",
	"usd": "$",
}

// FormatPrice formats an amount with two decimals and the currency symbol.
func FormatPrice(amount decimal.Decimal, currency string) string {
	currency = strings.ToLower(currency)
	if symbol, ok := currencySymbols[currency]; ok {
		return symbol + amount.StringFixed(2)
	}
	if currency == "" {
		return amount.StringFixed(2)
	}
	return amount.StringFixed(2) + " " + strings.ToUpper(currency)
}

// NotifyNewOrder sends notification about new order to admin chat.
func (s *TelegramService) NotifyNewOrder(order *models.Order) error {
	if s.adminChatID == "" {
		return nil
	}

	var itemsList strings.Builder
	for i, item := range order.Items {
		itemTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		itemsList.WriteString(fmt.Sprintf("%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1,
			html.EscapeString(item.Name),
			item.Quantity,
			FormatPrice(item.UnitPrice, order.Currency),
			FormatPrice(itemTotal, order.Currency),
		))
	}

	addr := order.ShippingAddress
	message := fmt.Sprintf(`<b>🛒 NEW ORDER</b>
<b>📋 Order:</b> %s
<b>👤 Customer:</b> %s (%s)
<b>📦 Items:</b>
%s
<b>💰 Total:</b> %s
<b>📍 Ship to:</b> %s, %s %s, %s
━━━━━━━━━━━━━━━━━━`,
		order.ID,
		html.EscapeString(order.CustomerName),
		html.EscapeString(order.CustomerEmail),
		itemsList.String(),
		FormatPrice(order.Total, order.Currency),
		html.EscapeString(addr.Line1),
		html.EscapeString(addr.City),
		html.EscapeString(addr.Postcode),
		html.EscapeString(addr.Country),
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}

// NotifyGiftCardPurchase sends notification about a sold gift card to admin chat.
func (s *TelegramService) NotifyGiftCardPurchase(card *models.GiftCard) error {
	if s.adminChatID == "" {
		return nil
	}

	recipient := card.RecipientName
	if recipient == "" {
		recipient = card.BuyerName
	}

	message := fmt.Sprintf(`<b>🎁 GIFT CARD SOLD</b>
<b>🔑 Code:</b> %s
<b>💰 Value:</b> %s
<b>👤 Buyer:</b> %s (%s)
<b>🎉 For:</b> %s
<b>⏳ Expires:</b> %s
━━━━━━━━━━━━━━━━━━`,
		card.Code,
		FormatPrice(card.OriginalAmount, card.Currency),
		html.EscapeString(card.BuyerName),
		html.EscapeString(card.BuyerEmail),
		html.EscapeString(recipient),
		card.ExpiryDate.Format("2 Jan 2006"),
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}
