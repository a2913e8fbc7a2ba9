package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	GiftCardStatusActive    = "active"
	GiftCardStatusExpired   = "expired"
	GiftCardStatusExhausted = "exhausted"
	GiftCardStatusClosed    = "closed"
)

const (
	GiftCardActionCreated      = "created"
	GiftCardActionStatusUpdate = "status_update"
	GiftCardActionAmountUpdate = "amount_update"
)

// GiftCardStatuses lists every known gift card status.
var GiftCardStatuses = []string{
	GiftCardStatusActive,
	GiftCardStatusExpired,
	GiftCardStatusExhausted,
	GiftCardStatusClosed,
}

// IsGiftCardStatus reports whether s is a known gift card status.
func IsGiftCardStatus(s string) bool {
	for _, status := range GiftCardStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// GiftCard is a stored-value card with a redemption code, balance and expiry.
type GiftCard struct {
	ID              string            `gorm:"primaryKey;size:32" json:"id"`
	Code            string            `gorm:"uniqueIndex;size:32;not null" json:"code"`
	OriginalAmount  decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"originalAmount"`
	CurrentAmount   decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"currentAmount"`
	Currency        string            `gorm:"size:8" json:"currency"`
	BuyerName       string            `json:"buyerName"`
	BuyerEmail      string            `gorm:"index" json:"buyerEmail"`
	RecipientName   string            `json:"recipientName"`
	RecipientEmail  string            `json:"recipientEmail"`
	Message         string            `json:"message"`
	PurchaseDate    time.Time         `json:"purchaseDate"`
	ExpiryDate      time.Time         `gorm:"index" json:"expiryDate"`
	Status          string            `gorm:"size:16;index;not null" json:"status"`
	PaymentIntentID *string           `gorm:"uniqueIndex" json:"paymentIntentId,omitempty"`
	CreatedAt       time.Time         `json:"-"`
	UpdatedAt       time.Time         `json:"lastUpdated"`
	History         []GiftCardHistory `gorm:"foreignKey:GiftCardID;constraint:OnDelete:CASCADE" json:"history"`
}

// GiftCardHistory is one append-only lifecycle event of a gift card.
type GiftCardHistory struct {
	Seq            uint             `gorm:"primaryKey;autoIncrement" json:"-"`
	GiftCardID     string           `gorm:"index;size:32;not null" json:"-"`
	Date           time.Time        `json:"date"`
	Action         string           `gorm:"size:24" json:"action"`
	Amount         *decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount,omitempty"`
	PreviousAmount *decimal.Decimal `gorm:"type:decimal(12,2)" json:"previousAmount,omitempty"`
	NewAmount      *decimal.Decimal `gorm:"type:decimal(12,2)" json:"newAmount,omitempty"`
	PreviousStatus string           `gorm:"size:16" json:"previousStatus,omitempty"`
	NewStatus      string           `gorm:"size:16" json:"newStatus,omitempty"`
	Balance        decimal.Decimal  `gorm:"type:decimal(12,2)" json:"balance"`
	Note           string           `json:"note"`
}
