package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// WebhookSignature rejects provider callbacks that arrive without a signature header
// before the body is processed.
func WebhookSignature(header string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(header) == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing "+header+" header")
		}
		return c.Next()
	}
}

// RateLimitReached renders limiter rejections in the common error format.
func RateLimitReached(c *fiber.Ctx) error {
	return fiber.NewError(fiber.StatusTooManyRequests, "Too many requests, please try again later")
}
