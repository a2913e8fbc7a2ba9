package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"

	"github.com/example/maitri/internal/config"
	"github.com/example/maitri/internal/handlers"
	"github.com/example/maitri/internal/middleware"
	"github.com/example/maitri/internal/services"
)

// Services bundles the application services the HTTP layer depends on.
type Services struct {
	GiftCards *services.GiftCardService
	Orders    *services.OrderService
	Auth      *services.AuthService
	Payments  *services.PaymentService
	Notifier  *services.Notifier
}

// NewServices wires the application services. provider may be nil when no
// payment processor is configured.
func NewServices(db *gorm.DB, cfg *config.Config, provider services.PaymentProvider, mailer services.Mailer) Services {
	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	notifier := services.NewNotifier(mailer, telegram, cfg.AdminEmails, cfg.PublicBaseURL, cfg.OTPExpiry)

	giftCards := services.NewGiftCardService(db, cfg.GiftCardValidityMonths, cfg.DefaultCurrency)
	orders := services.NewOrderService(db, cfg.DefaultCurrency)

	auth := services.NewAuthService(services.AuthSettings{
		AdminEmails:       cfg.AdminEmails,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: cfg.AdminPasswordHash,
		JWTSecret:         cfg.JWTSecret,
		SessionTTL:        cfg.TokenExpires,
		OTPLength:         cfg.OTPLength,
		OTPExpiry:         cfg.OTPExpiry,
		SecurityTokenTTL:  cfg.SecurityTokenTTL,
	}, services.NewAuthState(cfg.AuthStateBackend, db))

	payments := services.NewPaymentService(db, provider, giftCards, orders, notifier, services.PaymentSettings{
		Currency:        cfg.DefaultCurrency,
		KlarnaEnabled:   cfg.KlarnaEnabled,
		KlarnaMinAmount: cfg.KlarnaMinAmount,
	})

	return Services{
		GiftCards: giftCards,
		Orders:    orders,
		Auth:      auth,
		Payments:  payments,
		Notifier:  notifier,
	}
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, svc Services) {
	authHandler := handlers.NewAuthHandler(svc.Auth, svc.Notifier, cfg.OTPExpiry)
	giftCardHandler := handlers.NewGiftCardHandler(svc.GiftCards, svc.Notifier)
	productHandler := handlers.NewProductHandler(svc.Orders, svc.Notifier)
	paymentHandler := handlers.NewPaymentHandler(svc.Payments)
	exportHandler := handlers.NewExportHandler(db)

	requireAdmin := middleware.AdminAuth(svc.Auth)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth", limiter.New(limiter.Config{
		Max:          20,
		Expiration:   time.Minute,
		LimitReached: middleware.RateLimitReached,
	}))
	auth.Post("/validate-credentials", authHandler.ValidateCredentials)
	auth.Post("/verify-otp", authHandler.VerifyOTP)
	auth.Get("/check-forced-logout", authHandler.CheckForcedLogout)
	auth.Get("/security/logout-all", authHandler.LogoutAll)

	// Gift card routes
	giftCards := api.Group("/gift-cards")
	giftCards.Get("/code/:code", giftCardHandler.LookupByCode)
	giftCards.Get("/", requireAdmin, giftCardHandler.ListGiftCards)
	giftCards.Get("/:id", requireAdmin, giftCardHandler.GetGiftCard)
	giftCards.Put("/:id/amount", requireAdmin, giftCardHandler.UpdateAmount)
	giftCards.Put("/:id/status", requireAdmin, giftCardHandler.UpdateStatus)

	// Product and order routes
	products := api.Group("/products")
	products.Get("/", productHandler.ListProducts)
	products.Get("/product/:id", productHandler.GetProduct)
	products.Post("/product", requireAdmin, productHandler.CreateProduct)
	products.Put("/product/:id/stock", requireAdmin, productHandler.UpdateStock)
	products.Get("/orders", requireAdmin, productHandler.ListOrders)
	products.Get("/order/:id", requireAdmin, productHandler.GetOrder)
	products.Put("/order/:id/status", requireAdmin, productHandler.UpdateOrderStatus)

	// Payment routes
	payments := api.Group("/payments")
	payments.Post("/create-payment-intent", paymentHandler.CreatePaymentIntent)
	payments.Get("/payment-intent/:id", paymentHandler.GetPaymentIntent)
	payments.Post("/complete-gift-card-payment", paymentHandler.CompleteGiftCardPayment)
	payments.Post("/complete-product-order", paymentHandler.CompleteProductOrder)
	payments.Post("/webhook", middleware.WebhookSignature("Stripe-Signature"), paymentHandler.Webhook)
	payments.Post("/send-order-emails", requireAdmin, productHandler.ResendOrderEmails)
	payments.Post("/send-gift-card-emails", requireAdmin, giftCardHandler.ResendGiftCardEmails)

	// Admin data export
	admin := api.Group("/admin", requireAdmin)
	admin.Get("/export/gift-cards", exportHandler.ExportGiftCards)
	admin.Get("/export/products", exportHandler.ExportProducts)
}
