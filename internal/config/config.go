package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	AppPort     string
	DatabaseURL string
	DBDebug     bool
	CORSOrigins string

	JWTSecret    string
	TokenExpires time.Duration

	AdminEmails       []string
	AdminUsername     string
	AdminPasswordHash string
	OTPLength         int
	OTPExpiry         time.Duration
	SecurityTokenTTL  time.Duration
	AuthStateBackend  string
	PublicBaseURL     string

	EmailHost     string
	EmailPort     int
	EmailUser     string
	EmailPassword string
	EmailFrom     string

	StripeSecretKey     string
	StripeWebhookSecret string
	DefaultCurrency     string
	KlarnaMinAmount     int64
	KlarnaEnabled       bool

	GiftCardValidityMonths int
	ExpirySweepInterval    time.Duration

	LegacyGiftCardsPath string
	LegacyProductsPath  string

	TelegramBotToken  string
	TelegramAdminChat string
}

// Load reads environment variables and returns a populated Config.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:     getEnv("APP_PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "sqlite:maitri.db"),
		DBDebug:     getEnvBool("DB_DEBUG", false),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		TokenExpires: time.Duration(getEnvInt("SESSION_TTL_HOURS", 12)) * time.Hour,

		AdminEmails:       ParseList(getEnv("ADMIN_EMAILS", "")),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		OTPLength:         getEnvInt("OTP_LENGTH", 6),
		OTPExpiry:         time.Duration(getEnvInt("OTP_EXPIRY_MINUTES", 10)) * time.Minute,
		SecurityTokenTTL:  time.Duration(getEnvInt("SECURITY_TOKEN_TTL_HOURS", 24)) * time.Hour,
		AuthStateBackend:  getEnv("AUTH_STATE", "memory"),
		PublicBaseURL:     strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		EmailHost:     getEnv("EMAIL_HOST", "smtp.gmail.com"),
		EmailPort:     getEnvInt("EMAIL_PORT", 587),
		EmailUser:     getEnv("EMAIL_USER", ""),
		EmailPassword: getEnv("EMAIL_PASSWORD", getEnv("EMAIL_PASS", "")),
		EmailFrom:     getEnv("EMAIL_FROM", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		DefaultCurrency:     strings.ToLower(getEnv("DEFAULT_CURRENCY", "gbp")),
		KlarnaMinAmount:     int64(getEnvInt("KLARNA_MIN_AMOUNT", 300)),
		KlarnaEnabled:       getEnv("ENABLE_KLARNA", "true") != "false",

		GiftCardValidityMonths: getEnvInt("GIFTCARD_VALIDITY_MONTHS", 12),
		ExpirySweepInterval:    time.Duration(getEnvInt("EXPIRY_SWEEP_INTERVAL_HOURS", 24)) * time.Hour,

		LegacyGiftCardsPath: getEnv("LEGACY_GIFTCARDS_PATH", "giftcards_db.json"),
		LegacyProductsPath:  getEnv("LEGACY_PRODUCTS_PATH", "products_db.json"),

		TelegramBotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAdminChat: getEnv("TELEGRAM_ADMIN_CHAT_ID", ""),
	}

	if cfg.EmailFrom == "" {
		cfg.EmailFrom = cfg.EmailUser
	}

	if cfg.AppPort == "" {
		log.Fatal("APP_PORT must be set")
	}

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	if cfg.AdminPasswordHash == "" {
		log.Println("[Config] ADMIN_PASSWORD_HASH is not set; admin login is disabled")
	}

	return cfg
}

// EmailConfigured reports whether SMTP credentials are present.
func (c *Config) EmailConfigured() bool {
	return c.EmailUser != "" && c.EmailPassword != ""
}

// ParseList splits a comma separated value, trimming blanks.
func ParseList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
		log.Printf("[Config] %s=%q is not a number, using %d", key, value, fallback)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
