package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Redsys   RedsysConfig
	Stripe   StripeConfig
	Pricing  PricingConfig
	Booking  BookingConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	BookingPort string
	PaymentPort string
	BaseURL     string
}

type DatabaseConfig struct {
	Addr     string
	User     string
	Password string
	Database string
	Insecure bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
}

// RedsysConfig carries the merchant credentials for the signed
// redirect flow. SecretKey is the base64-encoded merchant key issued
// by the bank.
type RedsysConfig struct {
	MerchantCode    string
	Terminal        string
	SecretKey       string
	Environment     string
	NotificationURL string
	ReturnURLBase   string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

type PricingConfig struct {
	SeasonCacheTTL time.Duration
	DepositRate    float64
}

type BookingConfig struct {
	VehicleLockTTL    time.Duration
	SchedulerInterval time.Duration
	DefaultMinDays    int
}

type AuthConfig struct {
	JWTSecret     string
	VoucherSecret string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		Server: ServerConfig{
			BookingPort: getEnv("BOOKING_SERVICE_PORT", "8080"),
			PaymentPort: getEnv("PAYMENT_SERVICE_PORT", "8081"),
			BaseURL:     getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			Addr:     getEnv("DB_ADDR", "localhost:5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "rentals"),
			Insecure: getEnvBool("DB_INSECURE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_BROKER", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
		},
		Redsys: RedsysConfig{
			MerchantCode:    getEnv("REDSYS_MERCHANT_CODE", ""),
			Terminal:        getEnv("REDSYS_TERMINAL", "1"),
			SecretKey:       getEnv("REDSYS_SECRET_KEY", ""),
			Environment:     getEnv("REDSYS_ENVIRONMENT", "test"),
			NotificationURL: getEnv("REDSYS_NOTIFICATION_URL", ""),
			ReturnURLBase:   getEnv("REDSYS_RETURN_URL_BASE", ""),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SuccessURL:    getEnv("STRIPE_SUCCESS_URL", ""),
			CancelURL:     getEnv("STRIPE_CANCEL_URL", ""),
		},
		Pricing: PricingConfig{
			SeasonCacheTTL: time.Duration(getEnvInt("SEASON_CACHE_TTL_SECONDS", 300)) * time.Second,
			DepositRate:    getEnvFloat("DEPOSIT_RATE", 0.25),
		},
		Booking: BookingConfig{
			VehicleLockTTL:    time.Duration(getEnvInt("VEHICLE_LOCK_TTL_SECONDS", 30)) * time.Second,
			SchedulerInterval: time.Duration(getEnvInt("SCHEDULER_INTERVAL_SECONDS", 3600)) * time.Second,
			DefaultMinDays:    getEnvInt("DEFAULT_MIN_DAYS", 2),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			VoucherSecret: getEnv("VOUCHER_SECRET", "furgocasa-voucher"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
