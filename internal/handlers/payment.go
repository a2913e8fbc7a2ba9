package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/maitri/internal/services"
)

// PaymentHandler exposes checkout and the provider webhook.
type PaymentHandler struct {
	payments *services.PaymentService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// CreatePaymentIntent opens a payment intent for a gift card or order.
func (h *PaymentHandler) CreatePaymentIntent(c *fiber.Ctx) error {
	var req services.CreatePaymentIntentInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.payments.CreatePaymentIntent(c.UserContext(), req)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

// GetPaymentIntent reports the provider status of a payment intent.
func (h *PaymentHandler) GetPaymentIntent(c *fiber.Ctx) error {
	intent, err := h.payments.RetrievePaymentIntent(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":       intent.ID,
			"status":   intent.Status,
			"amount":   services.FromMinorUnits(intent.AmountMinor),
			"currency": intent.Currency,
		},
	})
}

type completeGiftCardRequest struct {
	PaymentIntentID string                        `json:"paymentIntentId"`
	GiftCardData    *services.CreateGiftCardInput `json:"giftCardData"`
}

// CompleteGiftCardPayment issues the gift card for a succeeded payment.
func (h *PaymentHandler) CompleteGiftCardPayment(c *fiber.Ctx) error {
	var req completeGiftCardRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.PaymentIntentID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "paymentIntentId is required")
	}

	card, err := h.payments.CompleteGiftCardPayment(c.UserContext(), req.PaymentIntentID, req.GiftCardData)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Gift card purchase completed",
		"data":    card,
	})
}

type completeOrderRequest struct {
	PaymentIntentID string                     `json:"paymentIntentId"`
	OrderData       *services.CreateOrderInput `json:"orderData"`
}

// CompleteProductOrder places the order for a succeeded payment.
func (h *PaymentHandler) CompleteProductOrder(c *fiber.Ctx) error {
	var req completeOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.PaymentIntentID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "paymentIntentId is required")
	}

	order, err := h.payments.CompleteProductOrder(c.UserContext(), req.PaymentIntentID, req.OrderData)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Order completed",
		"data":    order,
	})
}

// Webhook receives provider notifications. The raw body is needed for
// signature verification.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)

	if err := h.payments.HandleWebhook(c.UserContext(), payload, c.Get("Stripe-Signature")); err != nil {
		log.Printf("[Payment] webhook rejected: %v", err)
		return serviceError(err)
	}

	return c.JSON(fiber.Map{"received": true})
}
