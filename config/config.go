package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DBDriver       string
	DatabaseURL    string
	AllowedOrigins []string

	JWTSecret     string
	JWTTTL        time.Duration
	AdminUsername string
	AdminPassword string

	Cashfree CashfreeConfig
	R2       R2Config
	Alerts   AlertConfig

	StatusSweepInterval    time.Duration
	WithdrawalPollInterval time.Duration
	SeedDemoData           bool

	LogLevel string
	LogFile  string
}

type CashfreeConfig struct {
	AppID              string
	SecretKey          string
	PayoutClientID     string
	PayoutClientSecret string
	WebhookSecret      string
	Environment        string
	ReturnURL          string
	Timeout            time.Duration
}

// PaymentsBaseURL is the Cashfree PG endpoint for the configured environment.
func (c CashfreeConfig) PaymentsBaseURL() string {
	if c.Environment == "production" {
		return "https://api.cashfree.com/pg"
	}
	return "https://sandbox.cashfree.com/pg"
}

func (c CashfreeConfig) PayoutBaseURL() string {
	if c.Environment == "production" {
		return "https://payout-api.cashfree.com"
	}
	return "https://payout-gamma.cashfree.com"
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

// Enabled reports whether uploads should go to R2 instead of local disk.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.Bucket != ""
}

type AlertConfig struct {
	ResendAPIKey string
	From         string
	To           []string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, []string, error) {
	var warnings []string
	if err := godotenv.Load(); err != nil {
		warnings = append(warnings, "no .env file found, reading environment variables directly")
	}

	cfg := &Config{
		Port:           getEnv("PORT", "5200"),
		DBDriver:       getEnv("DB_DRIVER", "postgres"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTTTL:         getDuration("JWT_TTL", 24*time.Hour),
		AdminUsername:  getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		Cashfree: CashfreeConfig{
			AppID:              os.Getenv("CASHFREE_APP_ID"),
			SecretKey:          os.Getenv("CASHFREE_SECRET_KEY"),
			PayoutClientID:     os.Getenv("CASHFREE_PAYOUT_CLIENT_ID"),
			PayoutClientSecret: os.Getenv("CASHFREE_PAYOUT_CLIENT_SECRET"),
			WebhookSecret:      os.Getenv("CASHFREE_WEBHOOK_SECRET"),
			Environment:        getEnv("CASHFREE_ENV", "sandbox"),
			ReturnURL:          os.Getenv("CASHFREE_RETURN_URL"),
			Timeout:            getDuration("GATEWAY_TIMEOUT", 15*time.Second),
		},
		R2: R2Config{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
			CDNBaseURL:      os.Getenv("CDN_BASE_URL"),
		},
		Alerts: AlertConfig{
			ResendAPIKey: os.Getenv("RESEND_API_KEY"),
			From:         getEnv("ALERT_EMAIL_FROM", "alerts@resend.dev"),
			To:           splitList(os.Getenv("ALERT_EMAIL_TO")),
		},
		StatusSweepInterval:    getDuration("STATUS_SWEEP_INTERVAL", time.Minute),
		WithdrawalPollInterval: getDuration("WITHDRAWAL_POLL_INTERVAL", 30*time.Second),
		SeedDemoData:           getBool("SEED_DEMO_DATA", true),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFile:                os.Getenv("LOG_FILE"),
	}

	if cfg.DatabaseURL == "" {
		if cfg.DBDriver != "sqlite" {
			return nil, warnings, fmt.Errorf("DATABASE_URL environment variable not set")
		}
		cfg.DatabaseURL = "kirda.db"
	}
	if cfg.JWTSecret == "" {
		return nil, warnings, fmt.Errorf("JWT_SECRET environment variable not set")
	}
	return cfg, warnings, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
