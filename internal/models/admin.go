package models

import "time"

// AdminOTP is the single outstanding one-time passcode for an admin email.
type AdminOTP struct {
	Email     string    `gorm:"primaryKey;size:255"`
	Code      string    `gorm:"size:16;not null"`
	ExpiresAt time.Time `gorm:"not null"`
}

// SecurityToken authorizes a one-shot "log out every admin" action.
type SecurityToken struct {
	Token     string    `gorm:"primaryKey;size:64"`
	ExpiresAt time.Time `gorm:"not null"`
	Used      bool      `gorm:"not null;default:false"`
}

// SecuritySetting holds process-wide security state shared by every instance.
type SecuritySetting struct {
	ID             uint `gorm:"primaryKey"`
	ForcedLogoutAt *time.Time
}
