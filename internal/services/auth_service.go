package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/example/maitri/internal/models"
	"github.com/example/maitri/internal/utils"
)

var (
	ErrAdminNotConfigured   = errors.New("admin credentials are not configured")
	ErrInvalidUsername      = errors.New("invalid username")
	ErrInvalidPassword      = errors.New("invalid password")
	ErrNoOTPRequested       = errors.New("No OTP requested for this email")
	ErrOTPExpired           = errors.New("OTP expired")
	ErrInvalidOTP           = errors.New("Invalid OTP")
	ErrSecurityTokenMissing = errors.New("Security token is required")
	ErrSecurityTokenInvalid = errors.New("Invalid or expired security token")
	ErrSecurityTokenUsed    = errors.New("This security action has already been performed")
	ErrSecurityTokenExpired = errors.New("Security token has expired")
	ErrSessionRevoked       = errors.New("session was revoked by a forced logout")
)

// AuthSettings configures AuthService.
type AuthSettings struct {
	AdminEmails       []string
	AdminUsername     string
	AdminPasswordHash string
	JWTSecret         string
	SessionTTL        time.Duration
	OTPLength         int
	OTPExpiry         time.Duration
	SecurityTokenTTL  time.Duration
}

// AuthService implements the admin two-step login and the forced logout switch.
type AuthService struct {
	settings AuthSettings
	state    AuthState
	now      func() time.Time
}

// NewAuthService constructs an AuthService backed by state.
func NewAuthService(settings AuthSettings, state AuthState) *AuthService {
	if settings.OTPLength <= 0 {
		settings.OTPLength = 6
	}
	if settings.OTPExpiry <= 0 {
		settings.OTPExpiry = 10 * time.Minute
	}
	if settings.SecurityTokenTTL <= 0 {
		settings.SecurityTokenTTL = 24 * time.Hour
	}
	if settings.SessionTTL <= 0 {
		settings.SessionTTL = 12 * time.Hour
	}
	return &AuthService{settings: settings, state: state, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateAdminEmail reports whether email is on the admin allow-list.
func (s *AuthService) ValidateAdminEmail(email string) bool {
	email = normalizeEmail(email)
	if email == "" {
		return false
	}
	for _, allowed := range s.settings.AdminEmails {
		if normalizeEmail(allowed) == email {
			return true
		}
	}
	return false
}

// ValidateAdminCredentials checks the shared admin username and password.
func (s *AuthService) ValidateAdminCredentials(username, password string) error {
	if s.settings.AdminUsername == "" || s.settings.AdminPasswordHash == "" {
		return ErrAdminNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.settings.AdminUsername)) != 1 {
		return ErrInvalidUsername
	}
	if !utils.CheckPassword(s.settings.AdminPasswordHash, password) {
		return ErrInvalidPassword
	}
	return nil
}

// GenerateOTP returns a fresh numeric one-time passcode.
func (s *AuthService) GenerateOTP() (string, error) {
	return utils.NumericCode(s.settings.OTPLength)
}

// SetOTP replaces any pending passcode for email.
func (s *AuthService) SetOTP(ctx context.Context, email, otp string) error {
	now := s.now()
	s.prune(ctx, now)
	return s.state.PutOTP(ctx, models.AdminOTP{
		Email:     normalizeEmail(email),
		Code:      otp,
		ExpiresAt: now.Add(s.settings.OTPExpiry).UTC(),
	})
}

func (s *AuthService) prune(ctx context.Context, now time.Time) {
	if err := s.state.PruneExpired(ctx, now.UTC()); err != nil {
		log.Printf("[Auth] pruning expired auth state: %v", err)
	}
}

// VerifyOTP consumes the pending passcode for email. A wrong code leaves it in
// place; an expired one is discarded.
func (s *AuthService) VerifyOTP(ctx context.Context, email, otp string) error {
	email = normalizeEmail(email)

	pending, ok, err := s.state.GetOTP(ctx, email)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoOTPRequested
	}

	if !s.now().Before(pending.ExpiresAt) {
		if err := s.state.DeleteOTP(ctx, email); err != nil {
			return err
		}
		return ErrOTPExpired
	}

	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(otp)), []byte(pending.Code)) != 1 {
		return ErrInvalidOTP
	}

	return s.state.DeleteOTP(ctx, email)
}

// IssueSession signs a session token for an admin who passed both login steps.
func (s *AuthService) IssueSession(email string) (string, error) {
	return utils.GenerateToken(s.settings.JWTSecret, normalizeEmail(email), s.now(), s.settings.SessionTTL)
}

// VerifySession validates a session token and rejects tokens issued before the
// most recent forced logout.
func (s *AuthService) VerifySession(ctx context.Context, token string) (utils.AdminSession, error) {
	session, err := utils.ParseToken(s.settings.JWTSecret, token)
	if err != nil {
		return utils.AdminSession{}, err
	}

	forcedAt, err := s.state.ForcedLogoutAt(ctx)
	if err != nil {
		return utils.AdminSession{}, err
	}
	// Session issue times carry millisecond precision.
	if !forcedAt.IsZero() && !session.IssuedAt.After(forcedAt.Truncate(time.Millisecond)) {
		return utils.AdminSession{}, ErrSessionRevoked
	}

	return session, nil
}

// GenerateSecurityToken creates a single-use token authorizing a forced logout.
func (s *AuthService) GenerateSecurityToken(ctx context.Context) (string, error) {
	token, err := utils.RandomHex(32)
	if err != nil {
		return "", err
	}
	now := s.now()
	s.prune(ctx, now)
	if err := s.state.PutSecurityToken(ctx, models.SecurityToken{
		Token:     token,
		ExpiresAt: now.Add(s.settings.SecurityTokenTTL).UTC(),
	}); err != nil {
		return "", err
	}
	return token, nil
}

// ForceLogoutAll consumes token and invalidates every session issued so far.
func (s *AuthService) ForceLogoutAll(ctx context.Context, token string) (time.Time, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return time.Time{}, ErrSecurityTokenMissing
	}

	record, ok, err := s.state.GetSecurityToken(ctx, token)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, ErrSecurityTokenInvalid
	}
	if record.Used {
		return time.Time{}, ErrSecurityTokenUsed
	}

	now := s.now()
	if !now.Before(record.ExpiresAt) {
		if err := s.state.DeleteSecurityToken(ctx, token); err != nil {
			return time.Time{}, err
		}
		return time.Time{}, ErrSecurityTokenExpired
	}

	marked, err := s.state.MarkSecurityTokenUsed(ctx, token)
	if err != nil {
		return time.Time{}, err
	}
	if !marked {
		return time.Time{}, ErrSecurityTokenUsed
	}

	if err := s.state.SetForcedLogoutAt(ctx, now.UTC()); err != nil {
		return time.Time{}, err
	}

	log.Printf("[Auth] forced logout of all admin sessions at %s", now.UTC().Format(time.RFC3339))
	return now, nil
}

// ForcedLogoutAt returns the time of the last forced logout, zero if none.
func (s *AuthService) ForcedLogoutAt(ctx context.Context) (time.Time, error) {
	return s.state.ForcedLogoutAt(ctx)
}
