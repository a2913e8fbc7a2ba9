package handlers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/maitri/internal/services"
)

// AuthHandler implements the two-step admin login and the forced logout link.
type AuthHandler struct {
	auth      *services.AuthService
	notifier  *services.Notifier
	otpExpiry time.Duration
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *services.AuthService, notifier *services.Notifier, otpExpiry time.Duration) *AuthHandler {
	return &AuthHandler{auth: auth, notifier: notifier, otpExpiry: otpExpiry}
}

type validateCredentialsRequest struct {
	Email      string               `json:"email"`
	Username   string               `json:"username"`
	Password   string               `json:"password"`
	DeviceInfo *services.DeviceInfo `json:"deviceInfo"`
}

type verifyOTPRequest struct {
	Email      string               `json:"email"`
	OTP        string               `json:"otp"`
	DeviceInfo *services.DeviceInfo `json:"deviceInfo"`
}

func deviceInfo(c *fiber.Ctx, reported *services.DeviceInfo) services.DeviceInfo {
	info := services.DeviceInfo{Browser: "Unknown", OS: "Unknown"}
	if reported != nil {
		info = *reported
	}
	if info.Browser == "" {
		info.Browser = c.Get(fiber.HeaderUserAgent, "Unknown")
	}
	if info.IP == "" {
		info.IP = c.IP()
	}
	return info
}

// ValidateCredentials is the first login step: allow-listed email plus the shared
// username and password. On success a one-time passcode is emailed.
func (h *AuthHandler) ValidateCredentials(c *fiber.Ctx) error {
	var req validateCredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Username == "" || req.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Email, username, and password are required")
	}

	ctx := c.UserContext()
	device := deviceInfo(c, req.DeviceInfo)

	if !h.auth.ValidateAdminEmail(req.Email) {
		log.Printf("[Auth] login attempt for unauthorized email %s", req.Email)
		h.alert(ctx, req.Email, false, "Email not authorized as admin", device)
		return fiber.NewError(fiber.StatusUnauthorized, "Email not authorized for admin access")
	}

	if err := h.auth.ValidateAdminCredentials(req.Username, req.Password); err != nil {
		log.Printf("[Auth] login attempt for %s failed: %v", req.Email, err)
		h.alert(ctx, req.Email, false, err.Error(), device)
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}

	otp, err := h.auth.GenerateOTP()
	if err != nil {
		return err
	}
	if err := h.auth.SetOTP(ctx, req.Email, otp); err != nil {
		return err
	}

	if err := h.notifier.SendOTP(ctx, req.Email, otp, device); err != nil {
		log.Printf("[Auth] sending OTP to %s: %v", req.Email, err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to send OTP email")
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "OTP sent to email",
		"expiresIn": int(h.otpExpiry.Seconds()),
	})
}

// VerifyOTP is the second login step. It returns a session token.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.OTP == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Email and OTP are required")
	}

	ctx := c.UserContext()
	device := deviceInfo(c, req.DeviceInfo)

	if err := h.auth.VerifyOTP(ctx, req.Email, req.OTP); err != nil {
		if errors.Is(err, services.ErrNoOTPRequested) || errors.Is(err, services.ErrOTPExpired) || errors.Is(err, services.ErrInvalidOTP) {
			log.Printf("[Auth] OTP verification for %s failed: %v", req.Email, err)
			h.alert(ctx, req.Email, false, err.Error(), device)
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		return err
	}

	token, err := h.auth.IssueSession(req.Email)
	if err != nil {
		return err
	}

	h.alert(ctx, req.Email, true, "", device)

	email := strings.ToLower(strings.TrimSpace(req.Email))
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Authentication successful",
		"token":   token,
		"admin": fiber.Map{
			"email":    email,
			"username": strings.SplitN(email, "@", 2)[0],
		},
	})
}

// CheckForcedLogout reports when all admin sessions were last revoked.
func (h *AuthHandler) CheckForcedLogout(c *fiber.Ctx) error {
	at, err := h.auth.ForcedLogoutAt(c.UserContext())
	if err != nil {
		return err
	}

	var timestamp int64
	if !at.IsZero() {
		timestamp = at.UnixMilli()
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"forcedLogout": timestamp > 0,
		"timestamp":    timestamp,
	})
}

// LogoutAll consumes a security token from a login alert email and revokes
// every admin session.
func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	_, err := h.auth.ForceLogoutAll(c.UserContext(), c.Query("token"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSecurityTokenMissing),
			errors.Is(err, services.ErrSecurityTokenInvalid),
			errors.Is(err, services.ErrSecurityTokenUsed),
			errors.Is(err, services.ErrSecurityTokenExpired):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return err
	}

	c.Type("html")
	return c.SendString(logoutConfirmationPage)
}

// alert tells the other admins about a login step. The email carries a
// force-logout link when a security token could be issued.
func (h *AuthHandler) alert(ctx context.Context, email string, success bool, reason string, device services.DeviceInfo) {
	token, err := h.auth.GenerateSecurityToken(ctx)
	if err != nil {
		log.Printf("[Auth] issuing security token: %v", err)
		token = ""
	}

	h.notifier.LoginAlert(ctx, services.LoginAlert{
		Email:         email,
		Success:       success,
		Reason:        reason,
		Time:          time.Now(),
		Device:        device,
		SecurityToken: token,
	})
}

const logoutConfirmationPage = `<!DOCTYPE html>
<html>
<head>
  <title>Security Action Confirmed</title>
  <style>
    body { font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 40px 20px; text-align: center; }
    h1 { color: #4caf50; }
  </style>
</head>
<body>
  <h1>All admin sessions have been logged out</h1>
  <p>Every admin will have to sign in again with a fresh one-time passcode.</p>
  <p>If you did not expect the login alert that brought you here, change the admin password as soon as possible.</p>
</body>
</html>`
