package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/maitri/internal/database"
)

// ExportHandler serves full data dumps in the JSON envelope format.
type ExportHandler struct {
	db *gorm.DB
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(db *gorm.DB) *ExportHandler {
	return &ExportHandler{db: db}
}

// ExportGiftCards returns every gift card with history.
func (h *ExportHandler) ExportGiftCards(c *fiber.Ctx) error {
	envelope, err := database.ExportGiftCards(c.UserContext(), h.db)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentDisposition, `attachment; filename="giftcards_db.json"`)
	return c.JSON(envelope)
}

// ExportProducts returns the catalogue and every order.
func (h *ExportHandler) ExportProducts(c *fiber.Ctx) error {
	envelope, err := database.ExportProducts(c.UserContext(), h.db)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentDisposition, `attachment; filename="products_db.json"`)
	return c.JSON(envelope)
}
