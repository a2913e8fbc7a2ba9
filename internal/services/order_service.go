package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/maitri/internal/models"
	"github.com/example/maitri/internal/utils"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidStock      = errors.New("stock must be a non-negative number")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrEmptyOrder        = errors.New("order has no items")
	ErrInvalidOrderState = errors.New("invalid order status")
	ErrInvalidProduct    = errors.New("product name and a non-negative price are required")
)

// OrderService manages products, stock and orders.
type OrderService struct {
	db       *gorm.DB
	currency string
	now      func() time.Time
}

// NewOrderService constructs an OrderService.
func NewOrderService(db *gorm.DB, currency string) *OrderService {
	return &OrderService{db: db, currency: currency, now: time.Now}
}

// OrderItemInput is one line of a new order.
type OrderItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderInput describes an order to place.
type CreateOrderInput struct {
	CustomerName    string           `json:"customerName"`
	CustomerEmail   string           `json:"customerEmail"`
	Items           []OrderItemInput `json:"items"`
	ShippingAddress models.Address   `json:"shippingAddress"`
	Currency        string           `json:"currency"`
	PaymentIntentID string           `json:"-"`
}

// CreateProductInput describes a new catalogue product.
type CreateProductInput struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"imageUrl"`
	Category    string          `json:"category"`
}

// Quote prices the items against the current catalogue without touching stock.
func (s *OrderService) Quote(ctx context.Context, items []OrderItemInput) (decimal.Decimal, error) {
	if len(items) == 0 {
		return decimal.Zero, ErrEmptyOrder
	}

	total := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 {
			return decimal.Zero, ErrInvalidQuantity
		}
		product, err := s.GetProduct(ctx, item.ProductID)
		if err != nil {
			return decimal.Zero, err
		}
		if product.Stock < item.Quantity {
			return decimal.Zero, fmt.Errorf("%w for product %s", ErrInsufficientStock, product.Name)
		}
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total.Round(2), nil
}

// AddOrder decrements stock for every item and records a pending order. Either
// every item is reserved or nothing changes.
func (s *OrderService) AddOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	currency := strings.ToLower(in.Currency)
	if currency == "" {
		currency = s.currency
	}

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.PaymentIntentID != "" {
			existing, err := loadOrder(tx.Where("payment_intent_id = ?", in.PaymentIntentID))
			if err == nil {
				order = existing
				return nil
			}
			if !errors.Is(err, ErrOrderNotFound) {
				return err
			}
		}

		now := s.now().UTC()
		items := make([]models.OrderItem, 0, len(in.Items))
		total := decimal.Zero

		for _, item := range in.Items {
			if item.Quantity <= 0 {
				return ErrInvalidQuantity
			}

			var product models.Product
			if err := tx.Where("id = ?", item.ProductID).First(&product).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: %s", ErrProductNotFound, item.ProductID)
				}
				return err
			}

			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", product.ID, item.Quantity).
				Updates(map[string]any{
					"stock":      gorm.Expr("stock - ?", item.Quantity),
					"updated_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w for product %s", ErrInsufficientStock, product.Name)
			}

			items = append(items, models.OrderItem{
				ProductID: product.ID,
				Name:      product.Name,
				Quantity:  item.Quantity,
				UnitPrice: product.Price,
			})
			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}

		id, err := s.uniqueOrderID(tx)
		if err != nil {
			return err
		}

		created := &models.Order{
			ID:              id,
			CustomerName:    strings.TrimSpace(in.CustomerName),
			CustomerEmail:   strings.TrimSpace(in.CustomerEmail),
			Items:           items,
			Total:           total.Round(2),
			Currency:        currency,
			ShippingAddress: in.ShippingAddress,
			Status:          models.OrderStatusPending,
			OrderDate:       now,
			History: []models.OrderHistory{{
				Date:   now,
				Status: models.OrderStatusPending,
				Note:   "Order placed",
			}},
		}
		if in.PaymentIntentID != "" {
			created.PaymentIntentID = &in.PaymentIntentID
		}

		if err := tx.Create(created).Error; err != nil {
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Order] placed %s for %s, %d item(s), total %s", order.ID, order.CustomerEmail, len(order.Items), order.Total.StringFixed(2))
	return order, nil
}

func (s *OrderService) uniqueOrderID(tx *gorm.DB) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		id, err := utils.NewOrderID()
		if err != nil {
			return "", err
		}
		var count int64
		if err := tx.Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return id, nil
		}
	}
	return "", errors.New("could not allocate an order id")
}

// UpdateStock sets the absolute stock level of a product.
func (s *OrderService) UpdateStock(ctx context.Context, productID string, stock int) (*models.Product, error) {
	if stock < 0 {
		return nil, ErrInvalidStock
	}

	var product models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", productID).
			First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return err
		}

		product.Stock = stock
		product.UpdatedAt = s.now().UTC()
		return tx.Model(&models.Product{}).Where("id = ?", productID).Updates(map[string]any{
			"stock":      stock,
			"updated_at": product.UpdatedAt,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Product] %s stock set to %d", product.ID, product.Stock)
	return &product, nil
}

// UpdateOrderStatus records a new status. Any known status is accepted from any other.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID, status, note string) (*models.Order, error) {
	if !models.IsOrderStatus(status) {
		return nil, ErrInvalidOrderState
	}

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", orderID).
			First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		now := s.now().UTC()
		if note == "" {
			note = fmt.Sprintf("Status changed from %s to %s", current.Status, status)
		}

		if err := tx.Model(&models.Order{}).Where("id = ?", orderID).Updates(map[string]any{
			"status":     status,
			"updated_at": now,
		}).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.OrderHistory{
			OrderID: orderID,
			Date:    now,
			Status:  status,
			Note:    note,
		}).Error; err != nil {
			return err
		}

		var err error
		order, err = loadOrder(tx.Where("id = ?", orderID))
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Order] %s status set to %s", order.ID, order.Status)
	return order, nil
}

// CreateProduct adds a product to the catalogue.
func (s *OrderService) CreateProduct(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	if strings.TrimSpace(in.Name) == "" || in.Price.IsNegative() {
		return nil, ErrInvalidProduct
	}
	if in.Stock < 0 {
		return nil, ErrInvalidStock
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}

	product := &models.Product{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price.Round(2),
		Stock:       in.Stock,
		ImageURL:    in.ImageURL,
		Category:    in.Category,
	}
	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// ListProducts returns the catalogue ordered by name.
func (s *OrderService) ListProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	if err := s.db.WithContext(ctx).Order("name asc").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct returns a single product.
func (s *OrderService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		return nil, err
	}
	return &product, nil
}

// ListOrders returns orders, newest first, optionally filtered by status.
func (s *OrderService) ListOrders(ctx context.Context, status string) ([]models.Order, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	orders := []models.Order{}
	if err := query.Preload("Items").
		Preload("History", orderBySeq).
		Order("order_date desc").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder returns a single order with items and history.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return loadOrder(s.db.WithContext(ctx).Where("id = ?", id))
}

func loadOrder(query *gorm.DB) (*models.Order, error) {
	var order models.Order
	if err := query.Preload("Items").Preload("History", orderBySeq).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}
