package handlers

import (
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/example/maitri/internal/middleware"
	"github.com/example/maitri/internal/models"
	"github.com/example/maitri/internal/services"
)

// GiftCardHandler exposes gift card administration and balance lookup.
type GiftCardHandler struct {
	giftCards *services.GiftCardService
	notifier  *services.Notifier
}

// NewGiftCardHandler constructs GiftCardHandler.
func NewGiftCardHandler(giftCards *services.GiftCardService, notifier *services.Notifier) *GiftCardHandler {
	return &GiftCardHandler{giftCards: giftCards, notifier: notifier}
}

// rangeSince turns a dashboard range name into its lower bound. Unknown names
// and "all" yield the zero time.
func rangeSince(name string, now time.Time) time.Time {
	switch name {
	case "last30days":
		return now.AddDate(0, 0, -30)
	case "last6months":
		return now.AddDate(0, -6, 0)
	case "last12months":
		return now.AddDate(0, -12, 0)
	default:
		return time.Time{}
	}
}

// ListGiftCards returns gift cards filtered by status, search text and date range.
func (h *GiftCardHandler) ListGiftCards(c *fiber.Ctx) error {
	status := strings.TrimSpace(c.Query("status"))
	if status == "all" {
		status = ""
	}
	if status != "" && !models.IsGiftCardStatus(status) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid status filter")
	}

	cards, err := h.giftCards.List(c.UserContext(), services.GiftCardFilter{
		Status: status,
		Search: c.Query("search"),
		Since:  rangeSince(c.Query("range"), time.Now().UTC()),
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    cards,
	})
}

// GetGiftCard returns one gift card with its history.
func (h *GiftCardHandler) GetGiftCard(c *fiber.Ctx) error {
	card, err := h.giftCards.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    card,
	})
}

// LookupByCode returns the public balance view of a gift card.
func (h *GiftCardHandler) LookupByCode(c *fiber.Ctx) error {
	card, err := h.giftCards.GetByCode(c.UserContext(), c.Params("code"))
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"code":          card.Code,
			"currentAmount": card.CurrentAmount,
			"currency":      card.Currency,
			"status":        card.Status,
			"expiryDate":    card.ExpiryDate,
		},
	})
}

type updateAmountRequest struct {
	CurrentAmount *decimal.Decimal `json:"currentAmount"`
	Amount        *decimal.Decimal `json:"amount"`
	Note          string           `json:"note"`
}

// UpdateAmount sets a gift card balance. Only active cards take a non-zero balance.
func (h *GiftCardHandler) UpdateAmount(c *fiber.Ctx) error {
	var req updateAmountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	amount := req.CurrentAmount
	if amount == nil {
		amount = req.Amount
	}
	if amount == nil {
		return fiber.NewError(fiber.StatusBadRequest, "amount is required")
	}

	ctx := c.UserContext()
	card, err := h.giftCards.UpdateAmount(ctx, c.Params("id"), *amount, req.Note)
	if err != nil {
		return serviceError(err)
	}

	admin, _ := middleware.GetCurrentAdmin(c)
	log.Printf("[GiftCard] %s balance set to %s by %s", card.ID, card.CurrentAmount.StringFixed(2), admin)

	h.notifier.GiftCardUpdated(ctx, card, models.GiftCardActionAmountUpdate)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Gift card amount updated",
		"data":    card,
	})
}

type updateGiftCardStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// UpdateStatus changes a gift card status.
func (h *GiftCardHandler) UpdateStatus(c *fiber.Ctx) error {
	var req updateGiftCardStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Status == "" {
		return fiber.NewError(fiber.StatusBadRequest, "status is required")
	}

	ctx := c.UserContext()
	card, err := h.giftCards.UpdateStatus(ctx, c.Params("id"), req.Status, req.Note)
	if err != nil {
		return serviceError(err)
	}

	admin, _ := middleware.GetCurrentAdmin(c)
	log.Printf("[GiftCard] %s status set to %s by %s", card.ID, card.Status, admin)

	h.notifier.GiftCardUpdated(ctx, card, models.GiftCardActionStatusUpdate)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Gift card status updated",
		"data":    card,
	})
}

type giftCardEmailsRequest struct {
	GiftCardID string `json:"giftCardId"`
}

// ResendGiftCardEmails sends the purchase emails for an existing gift card again.
func (h *GiftCardHandler) ResendGiftCardEmails(c *fiber.Ctx) error {
	var req giftCardEmailsRequest
	if err := c.BodyParser(&req); err != nil || req.GiftCardID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "giftCardId is required")
	}

	ctx := c.UserContext()
	card, err := h.giftCards.Get(ctx, req.GiftCardID)
	if err != nil {
		return serviceError(err)
	}

	if err := h.notifier.SendGiftCardEmails(ctx, card); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "failed to send gift card emails: "+err.Error())
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Gift card emails sent",
	})
}
