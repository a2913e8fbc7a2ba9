package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending        = "pending"
	OrderStatusOutForDelivery = "out_for_delivery"
	OrderStatusShipped        = "shipped"
	OrderStatusCompleted      = "completed"
	OrderStatusDelivered      = "delivered"
	OrderStatusCancelled      = "cancelled"
)

// OrderStatuses lists every accepted order status. out_for_delivery/shipped and
// completed/delivered are aliases used by different clients.
var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusOutForDelivery,
	OrderStatusShipped,
	OrderStatusCompleted,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// IsOrderStatus reports whether s is a known order status.
func IsOrderStatus(s string) bool {
	for _, status := range OrderStatuses {
		if status == s {
			return true
		}
	}
	return false
}

type Order struct {
	ID              string          `gorm:"primaryKey;size:16" json:"id"`
	CustomerName    string          `json:"customerName"`
	CustomerEmail   string          `gorm:"index" json:"customerEmail"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Total           decimal.Decimal `gorm:"type:decimal(12,2)" json:"total"`
	Currency        string          `gorm:"size:8" json:"currency"`
	ShippingAddress Address         `gorm:"embedded;embeddedPrefix:ship_" json:"shippingAddress"`
	Status          string          `gorm:"size:24;index" json:"status"`
	OrderDate       time.Time       `json:"orderDate"`
	PaymentIntentID *string         `gorm:"uniqueIndex" json:"paymentIntentId,omitempty"`
	History         []OrderHistory  `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"history"`
	UpdatedAt       time.Time       `json:"lastUpdated"`
}

type OrderItem struct {
	ID        uint            `gorm:"primaryKey;autoIncrement" json:"-"`
	OrderID   string          `gorm:"index;size:16" json:"-"`
	ProductID string          `gorm:"size:64" json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2)" json:"price"`
}

type OrderHistory struct {
	Seq     uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	OrderID string    `gorm:"index;size:16" json:"-"`
	Date    time.Time `json:"date"`
	Status  string    `gorm:"size:24" json:"status"`
	Note    string    `json:"note"`
}

// Address is a postal shipping address.
type Address struct {
	Line1    string `json:"address"`
	Line2    string `json:"address2,omitempty"`
	City     string `json:"city"`
	State    string `json:"state,omitempty"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}
