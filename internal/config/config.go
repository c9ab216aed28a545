package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Port        string
	DatabaseDSN string
	QueueURL    string
	// CreditLimit is assigned to cards created lazily on their first
	// authorization.
	CreditLimit decimal.Decimal
	LogLevel    slog.Level
}

func Load() Config {
	return Config{
		Port:        getenv("HTTP_PORT", "8080"),
		DatabaseDSN: getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=card_ledger port=5432 sslmode=disable"),
		QueueURL:    os.Getenv("SQS_QUEUE_URL"),
		CreditLimit: decimalEnv("CARD_CREDIT_LIMIT", "10000"),
		LogLevel:    logLevel(os.Getenv("LOG_LEVEL")),
	}
}

func InitDB(cfg Config) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
}

func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func decimalEnv(key, fallback string) decimal.Decimal {
	v := getenv(key, fallback)
	d, err := decimal.NewFromString(v)
	if err != nil {
		d, _ = decimal.NewFromString(fallback)
	}
	return d
}

func logLevel(v string) slog.Level {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
