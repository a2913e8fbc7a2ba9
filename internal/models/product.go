package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a shop item with a tracked stock level.
type Product struct {
	ID          string          `gorm:"primaryKey;size:64" json:"id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Stock       int             `gorm:"not null;default:0" json:"stock"`
	ImageURL    string          `json:"imageUrl"`
	Category    string          `json:"category,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
