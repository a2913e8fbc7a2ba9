package models

import "time"

const (
	PaymentKindGiftCard = "gift_card"
	PaymentKindOrder    = "order"
)

const (
	PaymentStatusCreated   = "created"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

// Payment records a provider payment intent together with the purchase it pays for.
type Payment struct {
	BaseModel
	IntentID      string     `gorm:"uniqueIndex;size:255;not null" json:"intentId"`
	Kind          string     `gorm:"size:16;not null" json:"kind"`
	Payload       string     `gorm:"type:text" json:"payload"`
	AmountMinor   int64      `json:"amountMinor"`
	Currency      string     `gorm:"size:8" json:"currency"`
	CustomerEmail string     `json:"customerEmail"`
	Status        string     `gorm:"size:16;index" json:"status"`
	ResultID      string     `json:"resultId"`
	FinalizedAt   *time.Time `json:"finalizedAt"`
	LastError     string     `json:"lastError"`
}
