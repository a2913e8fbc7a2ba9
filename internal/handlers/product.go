package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/maitri/internal/middleware"
	"github.com/example/maitri/internal/models"
	"github.com/example/maitri/internal/services"
)

// ProductHandler manages the catalogue, stock and orders.
type ProductHandler struct {
	orders   *services.OrderService
	notifier *services.Notifier
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(orders *services.OrderService, notifier *services.Notifier) *ProductHandler {
	return &ProductHandler{orders: orders, notifier: notifier}
}

// ListProducts returns the public catalogue.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	products, err := h.orders.ListProducts(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"products": products,
		},
	})
}

// GetProduct returns a product by ID.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.orders.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    product,
	})
}

// CreateProduct adds a product to the catalogue.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req services.CreateProductInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	product, err := h.orders.CreateProduct(c.UserContext(), req)
	if err != nil {
		return serviceError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    product,
	})
}

type updateStockRequest struct {
	Stock *int `json:"stock"`
}

// UpdateStock sets the stock level of a product.
func (h *ProductHandler) UpdateStock(c *fiber.Ctx) error {
	var req updateStockRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Stock == nil {
		return fiber.NewError(fiber.StatusBadRequest, services.ErrInvalidStock.Error())
	}

	product, err := h.orders.UpdateStock(c.UserContext(), c.Params("id"), *req.Stock)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Stock updated",
		"data":    product,
	})
}

// ListOrders returns orders, optionally filtered by status.
func (h *ProductHandler) ListOrders(c *fiber.Ctx) error {
	status := strings.TrimSpace(c.Query("status"))
	if status == "all" {
		status = ""
	}
	if status != "" && !models.IsOrderStatus(status) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid status filter")
	}

	orders, err := h.orders.ListOrders(c.UserContext(), status)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"orders": orders,
		},
	})
}

// GetOrder returns an order with its items and history.
func (h *ProductHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.orders.GetOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    order,
	})
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// UpdateOrderStatus moves an order to a new status and tells the customer.
func (h *ProductHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	var req updateOrderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Status == "" {
		return fiber.NewError(fiber.StatusBadRequest, "status is required")
	}

	ctx := c.UserContext()
	order, err := h.orders.UpdateOrderStatus(ctx, c.Params("id"), req.Status, req.Note)
	if err != nil {
		return serviceError(err)
	}

	admin, _ := middleware.GetCurrentAdmin(c)
	log.Printf("[Order] %s moved to %s by %s", order.ID, order.Status, admin)

	h.notifier.OrderStatusChanged(ctx, order, req.Note)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Order status updated",
		"data":    order,
	})
}

type orderEmailsRequest struct {
	OrderID string `json:"orderId"`
}

// ResendOrderEmails sends the confirmation emails for an existing order again.
func (h *ProductHandler) ResendOrderEmails(c *fiber.Ctx) error {
	var req orderEmailsRequest
	if err := c.BodyParser(&req); err != nil || req.OrderID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "orderId is required")
	}

	ctx := c.UserContext()
	order, err := h.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return serviceError(err)
	}

	if err := h.notifier.SendOrderEmails(ctx, order); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "failed to send order emails: "+err.Error())
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Order emails sent",
	})
}
