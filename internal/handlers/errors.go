package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/maitri/internal/services"
)

// ErrorHandler renders every error as {success:false, message}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		log.Printf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

// serviceError maps service sentinel errors onto HTTP errors. Unknown errors
// pass through and surface as 500s.
func serviceError(err error) error {
	var inactive *services.InactiveGiftCardError
	switch {
	case errors.As(err, &inactive):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())

	case errors.Is(err, services.ErrGiftCardNotFound),
		errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrPaymentNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())

	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrNegativeAmount),
		errors.Is(err, services.ErrAmountAboveOriginal),
		errors.Is(err, services.ErrInvalidGiftCardState),
		errors.Is(err, services.ErrReactivation),
		errors.Is(err, services.ErrInvalidGiftCode),
		errors.Is(err, services.ErrInvalidStock),
		errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrEmptyOrder),
		errors.Is(err, services.ErrInvalidOrderState),
		errors.Is(err, services.ErrInvalidProduct),
		errors.Is(err, services.ErrInsufficientStock),
		errors.Is(err, services.ErrAmountMismatch),
		errors.Is(err, services.ErrPaymentNotSucceeded),
		errors.Is(err, services.ErrMissingPurchase),
		errors.Is(err, services.ErrInvalidWebhookSignature):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())

	case errors.Is(err, services.ErrDuplicateGiftCode):
		return fiber.NewError(fiber.StatusConflict, err.Error())

	case errors.Is(err, services.ErrProviderUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())

	case errors.Is(err, services.ErrProviderFailure):
		log.Printf("[Payment] %v", err)
		return fiber.NewError(fiber.StatusBadGateway, services.ErrProviderFailure.Error())
	}
	return err
}
