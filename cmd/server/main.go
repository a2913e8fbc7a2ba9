package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/maitri/internal/config"
	"github.com/example/maitri/internal/database"
	"github.com/example/maitri/internal/handlers"
	"github.com/example/maitri/internal/routes"
	"github.com/example/maitri/internal/services"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL, cfg.DBDebug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.ImportLegacy(ctx, db, cfg.LegacyGiftCardsPath, cfg.LegacyProductsPath, cfg.DefaultCurrency); err != nil {
		log.Printf("Legacy import failed: %v", err)
	}

	var provider services.PaymentProvider
	if stripe := services.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret); stripe != nil {
		provider = stripe
	} else {
		log.Println("STRIPE_SECRET_KEY is not set; payments are disabled")
	}

	var mailer services.Mailer = services.LogMailer{}
	if cfg.EmailConfigured() {
		mailer = services.NewSMTPMailer(services.SMTPSettings{
			Host:     cfg.EmailHost,
			Port:     cfg.EmailPort,
			Username: cfg.EmailUser,
			Password: cfg.EmailPassword,
			From:     cfg.EmailFrom,
		})
	} else {
		log.Println("EMAIL_USER/EMAIL_PASSWORD are not set; emails will only be logged")
	}

	svc := routes.NewServices(db, cfg, provider, mailer)

	sweeper := services.NewExpirySweeper(svc.GiftCards, cfg.ExpirySweepInterval)
	go sweeper.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:      "Maitri Backend",
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Stripe-Signature",
	}))

	routes.Register(app, db, cfg, svc)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}
