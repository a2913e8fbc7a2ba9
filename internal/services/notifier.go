package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/example/maitri/internal/models"
)

// DeviceInfo describes the client behind an admin login step.
type DeviceInfo struct {
	Browser string `json:"browser"`
	OS      string `json:"os"`
	IP      string `json:"ip"`
}

// LoginAlert describes a login step that other admins are told about.
type LoginAlert struct {
	Email   string
	Success bool
	Reason  string
	Time    time.Time
	Device  DeviceInfo
	// SecurityToken, when set, is embedded as a force-logout link.
	SecurityToken string
}

// Notifier renders and dispatches customer and admin notifications. Delivery
// failures are logged; only the OTP email reports them to the caller.
type Notifier struct {
	mailer        Mailer
	telegram      *TelegramService
	adminEmails   []string
	publicBaseURL string
	otpExpiry     time.Duration
}

// NewNotifier constructs a Notifier. telegram may be nil.
func NewNotifier(mailer Mailer, telegram *TelegramService, adminEmails []string, publicBaseURL string, otpExpiry time.Duration) *Notifier {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &Notifier{
		mailer:        mailer,
		telegram:      telegram,
		adminEmails:   adminEmails,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		otpExpiry:     otpExpiry,
	}
}

type giftCardEmailData struct {
	Title     string
	Card      *models.GiftCard
	Recipient string
	Change    *models.GiftCardHistory
}

type orderEmailData struct {
	Title string
	Order *models.Order
	Note  string
}

type otpEmailData struct {
	Title         string
	OTP           string
	ExpiryMinutes int
	Device        DeviceInfo
}

type loginAlertEmailData struct {
	Title      string
	Alert      LoginAlert
	StatusText string
	LogoutURL  string
	Device     DeviceInfo
}

func (n *Notifier) send(ctx context.Context, to []string, subject, template string, data any) error {
	if len(to) == 0 {
		return nil
	}
	body, err := renderEmail(template, data)
	if err != nil {
		return fmt.Errorf("render %s: %w", template, err)
	}
	return n.mailer.Send(ctx, Email{To: to, Subject: subject, HTML: body})
}

func recipientName(card *models.GiftCard) string {
	if card.RecipientName != "" {
		return card.RecipientName
	}
	return card.BuyerName
}

// SendGiftCardEmails mails the buyer, the recipient when it is someone else, and the admins.
func (n *Notifier) SendGiftCardEmails(ctx context.Context, card *models.GiftCard) error {
	var errs []error

	if card.BuyerEmail != "" {
		errs = append(errs, n.send(ctx, []string{card.BuyerEmail}, "Your Gift Card Purchase", "giftcard_buyer",
			giftCardEmailData{Title: "Your Gift Card", Card: card, Recipient: recipientName(card)}))
	}

	if card.RecipientEmail != "" && !strings.EqualFold(card.RecipientEmail, card.BuyerEmail) {
		errs = append(errs, n.send(ctx, []string{card.RecipientEmail}, "You've Received a Gift Card!", "giftcard_recipient",
			giftCardEmailData{Title: "You've Received a Gift Card!", Card: card, Recipient: recipientName(card)}))
	}

	errs = append(errs, n.send(ctx, n.adminEmails, "New Gift Card Purchase - Admin Notification", "giftcard_admin",
		giftCardEmailData{Title: "New Gift Card Purchase", Card: card, Recipient: recipientName(card)}))

	return errors.Join(errs...)
}

// SendOrderEmails mails the order confirmation to the customer and the admins.
func (n *Notifier) SendOrderEmails(ctx context.Context, order *models.Order) error {
	var errs []error

	if order.CustomerEmail != "" {
		errs = append(errs, n.send(ctx, []string{order.CustomerEmail}, "Order Confirmation", "order_customer",
			orderEmailData{Title: "Order Confirmation", Order: order}))
	}

	errs = append(errs, n.send(ctx, n.adminEmails, "New Order Notification", "order_admin",
		orderEmailData{Title: "New Order", Order: order}))

	return errors.Join(errs...)
}

// GiftCardPurchased sends purchase emails and the Telegram summary.
func (n *Notifier) GiftCardPurchased(ctx context.Context, card *models.GiftCard) {
	if err := n.SendGiftCardEmails(ctx, card); err != nil {
		log.Printf("[Notify] gift card %s emails: %v", card.ID, err)
	}
	if n.telegram.Enabled() {
		go func(card models.GiftCard) {
			if err := n.telegram.NotifyGiftCardPurchase(&card); err != nil {
				log.Printf("[Notify] gift card %s telegram: %v", card.ID, err)
			}
		}(*card)
	}
}

// OrderPlaced sends confirmation emails and the Telegram summary.
func (n *Notifier) OrderPlaced(ctx context.Context, order *models.Order) {
	if err := n.SendOrderEmails(ctx, order); err != nil {
		log.Printf("[Notify] order %s emails: %v", order.ID, err)
	}
	if n.telegram.Enabled() {
		go func(order models.Order) {
			if err := n.telegram.NotifyNewOrder(&order); err != nil {
				log.Printf("[Notify] order %s telegram: %v", order.ID, err)
			}
		}(*order)
	}
}

// GiftCardUpdated tells the buyer about a balance or status change. The most
// recent history entry describes the change.
func (n *Notifier) GiftCardUpdated(ctx context.Context, card *models.GiftCard, action string) {
	if card.BuyerEmail == "" {
		return
	}

	subject := "Gift Card Update - Status Changed"
	title := "Gift Card Status Changed"
	if action == models.GiftCardActionAmountUpdate {
		subject = "Gift Card Update - Balance Updated"
		title = "Gift Card Balance Updated"
	}

	var change *models.GiftCardHistory
	for i := len(card.History) - 1; i >= 0; i-- {
		if card.History[i].Action == action {
			change = &card.History[i]
			break
		}
	}

	if err := n.send(ctx, []string{card.BuyerEmail}, subject, "giftcard_update",
		giftCardEmailData{Title: title, Card: card, Recipient: recipientName(card), Change: change}); err != nil {
		log.Printf("[Notify] gift card %s update email: %v", card.ID, err)
	}
}

// OrderStatusChanged tells the customer about a new order status.
func (n *Notifier) OrderStatusChanged(ctx context.Context, order *models.Order, note string) {
	if order.CustomerEmail == "" {
		return
	}

	if err := n.send(ctx, []string{order.CustomerEmail}, "Order Status Update - "+titleCase(order.Status), "order_status",
		orderEmailData{Title: "Order Status Update", Order: order, Note: note}); err != nil {
		log.Printf("[Notify] order %s status email: %v", order.ID, err)
	}
}

// SendOTP mails a login passcode to the admin. Its error is returned because
// the login cannot continue without it.
func (n *Notifier) SendOTP(ctx context.Context, email, otp string, device DeviceInfo) error {
	return n.send(ctx, []string{email}, "Admin Login OTP Verification", "admin_otp", otpEmailData{
		Title:         "Admin Login Verification",
		OTP:           otp,
		ExpiryMinutes: int(n.otpExpiry / time.Minute),
		Device:        device,
	})
}

// LoginAlert mails every other admin about a login step.
func (n *Notifier) LoginAlert(ctx context.Context, alert LoginAlert) {
	var others []string
	for _, admin := range n.adminEmails {
		if !strings.EqualFold(strings.TrimSpace(admin), strings.TrimSpace(alert.Email)) {
			others = append(others, admin)
		}
	}
	if len(others) == 0 {
		log.Println("[Notify] no other admin emails to send login alert")
		return
	}

	statusText := "Login Attempt"
	if alert.Success {
		statusText = "Login Success"
	}

	data := loginAlertEmailData{
		Title:      "Admin " + statusText,
		Alert:      alert,
		StatusText: statusText,
		Device:     alert.Device,
	}
	if alert.SecurityToken != "" {
		data.LogoutURL = n.publicBaseURL + "/api/auth/security/logout-all?token=" + url.QueryEscape(alert.SecurityToken)
	}

	if err := n.send(ctx, others, fmt.Sprintf("Admin %s - %s", statusText, alert.Email), "admin_login_alert", data); err != nil {
		log.Printf("[Notify] login alert for %s: %v", alert.Email, err)
	}
}
