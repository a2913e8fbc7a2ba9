package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/maitri/internal/models"
)

// AuthState stores pending OTPs, security tokens and the forced-logout time.
type AuthState interface {
	PutOTP(ctx context.Context, otp models.AdminOTP) error
	GetOTP(ctx context.Context, email string) (models.AdminOTP, bool, error)
	DeleteOTP(ctx context.Context, email string) error

	PutSecurityToken(ctx context.Context, token models.SecurityToken) error
	GetSecurityToken(ctx context.Context, token string) (models.SecurityToken, bool, error)
	// MarkSecurityTokenUsed flips the token to used and reports whether this call did it.
	MarkSecurityTokenUsed(ctx context.Context, token string) (bool, error)
	DeleteSecurityToken(ctx context.Context, token string) error

	SetForcedLogoutAt(ctx context.Context, at time.Time) error
	ForcedLogoutAt(ctx context.Context) (time.Time, error)

	// PruneExpired drops OTPs and security tokens that expired at or before now.
	PruneExpired(ctx context.Context, now time.Time) error
}

// NewAuthState returns the database backed store for "db" (or "database") and
// the in-process one otherwise.
func NewAuthState(backend string, db *gorm.DB) AuthState {
	if backend == "db" || backend == "database" {
		return NewDBAuthState(db)
	}
	return NewMemoryAuthState()
}

// MemoryAuthState keeps auth state in process memory. State is lost on restart
// and not shared between instances.
type MemoryAuthState struct {
	mu             sync.Mutex
	otps           map[string]models.AdminOTP
	tokens         map[string]models.SecurityToken
	forcedLogoutAt time.Time
}

func NewMemoryAuthState() *MemoryAuthState {
	return &MemoryAuthState{
		otps:   make(map[string]models.AdminOTP),
		tokens: make(map[string]models.SecurityToken),
	}
}

func (m *MemoryAuthState) PutOTP(_ context.Context, otp models.AdminOTP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otps[otp.Email] = otp
	return nil
}

func (m *MemoryAuthState) GetOTP(_ context.Context, email string) (models.AdminOTP, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	otp, ok := m.otps[email]
	return otp, ok, nil
}

func (m *MemoryAuthState) DeleteOTP(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.otps, email)
	return nil
}

func (m *MemoryAuthState) PutSecurityToken(_ context.Context, token models.SecurityToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Token] = token
	return nil
}

func (m *MemoryAuthState) GetSecurityToken(_ context.Context, token string) (models.SecurityToken, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.tokens[token]
	return record, ok, nil
}

func (m *MemoryAuthState) MarkSecurityTokenUsed(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.tokens[token]
	if !ok || record.Used {
		return false, nil
	}
	record.Used = true
	m.tokens[token] = record
	return true, nil
}

func (m *MemoryAuthState) DeleteSecurityToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}

func (m *MemoryAuthState) SetForcedLogoutAt(_ context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forcedLogoutAt = at
	return nil
}

func (m *MemoryAuthState) ForcedLogoutAt(_ context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forcedLogoutAt, nil
}

func (m *MemoryAuthState) PruneExpired(_ context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, otp := range m.otps {
		if !now.Before(otp.ExpiresAt) {
			delete(m.otps, email)
		}
	}
	for token, record := range m.tokens {
		if !now.Before(record.ExpiresAt) {
			delete(m.tokens, token)
		}
	}
	return nil
}

// DBAuthState persists auth state through GORM so it survives restarts and is
// shared by every instance using the same database.
type DBAuthState struct {
	db *gorm.DB
}

func NewDBAuthState(db *gorm.DB) *DBAuthState {
	return &DBAuthState{db: db}
}

const securitySettingID = 1

func (d *DBAuthState) PutOTP(ctx context.Context, otp models.AdminOTP) error {
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "expires_at"}),
	}).Create(&otp).Error
}

func (d *DBAuthState) GetOTP(ctx context.Context, email string) (models.AdminOTP, bool, error) {
	var otp models.AdminOTP
	err := d.db.WithContext(ctx).Where("email = ?", email).First(&otp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.AdminOTP{}, false, nil
	}
	if err != nil {
		return models.AdminOTP{}, false, err
	}
	return otp, true, nil
}

func (d *DBAuthState) DeleteOTP(ctx context.Context, email string) error {
	return d.db.WithContext(ctx).Where("email = ?", email).Delete(&models.AdminOTP{}).Error
}

func (d *DBAuthState) PutSecurityToken(ctx context.Context, token models.SecurityToken) error {
	return d.db.WithContext(ctx).Create(&token).Error
}

func (d *DBAuthState) GetSecurityToken(ctx context.Context, token string) (models.SecurityToken, bool, error) {
	var record models.SecurityToken
	err := d.db.WithContext(ctx).Where("token = ?", token).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.SecurityToken{}, false, nil
	}
	if err != nil {
		return models.SecurityToken{}, false, err
	}
	return record, true, nil
}

func (d *DBAuthState) MarkSecurityTokenUsed(ctx context.Context, token string) (bool, error) {
	res := d.db.WithContext(ctx).Model(&models.SecurityToken{}).
		Where("token = ? AND used = ?", token, false).
		Update("used", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (d *DBAuthState) DeleteSecurityToken(ctx context.Context, token string) error {
	return d.db.WithContext(ctx).Where("token = ?", token).Delete(&models.SecurityToken{}).Error
}

func (d *DBAuthState) SetForcedLogoutAt(ctx context.Context, at time.Time) error {
	setting := models.SecuritySetting{ID: securitySettingID, ForcedLogoutAt: &at}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"forced_logout_at"}),
	}).Create(&setting).Error
}

func (d *DBAuthState) ForcedLogoutAt(ctx context.Context) (time.Time, error) {
	var setting models.SecuritySetting
	err := d.db.WithContext(ctx).Where("id = ?", securitySettingID).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if setting.ForcedLogoutAt == nil {
		return time.Time{}, nil
	}
	return *setting.ForcedLogoutAt, nil
}

func (d *DBAuthState) PruneExpired(ctx context.Context, now time.Time) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expires_at <= ?", now).Delete(&models.AdminOTP{}).Error; err != nil {
			return err
		}
		return tx.Where("expires_at <= ?", now).Delete(&models.SecurityToken{}).Error
	})
}
