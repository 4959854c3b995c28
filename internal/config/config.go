package config

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	ListenAddr     string
	DBDriver       string
	DBDSN          string
	AllowedOrigins []string
	SessionTTL     time.Duration
	// MinLedgerMonths is the shortest transaction-history span the scoring
	// engine accepts before it reports insufficient data.
	MinLedgerMonths int
	ProviderTimeout time.Duration
	ProviderBaseURL string
	// RefreshInterval drives the scheduled ledger re-pull; zero disables it.
	RefreshInterval time.Duration
}

func Load() Config {
	cfg := Config{
		ListenAddr:      getenv("LISTEN_ADDR", ":8080"),
		DBDriver:        getenv("DB_DRIVER", "postgres"),
		DBDSN:           getenv("DB_DSN", "host=localhost user=postgres dbname=trustengine port=5432 sslmode=disable"),
		AllowedOrigins:  []string{getenv("CORS_ORIGIN", "http://localhost:3000")},
		SessionTTL:      getdur("SESSION_TTL", 12*time.Hour),
		MinLedgerMonths: getint("MIN_LEDGER_MONTHS", 6),
		ProviderTimeout: getdur("PROVIDER_TIMEOUT", 10*time.Second),
		ProviderBaseURL: getenv("PROVIDER_BASE_URL", "https://api.withmono.com/v2"),
		RefreshInterval: getdur("LEDGER_REFRESH_INTERVAL", 6*time.Hour),
	}
	return cfg
}

func InitDB(cfg Config) *gorm.DB {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DBDriver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.DBDSN), &gorm.Config{})
	default:
		db, err = gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{})
	}
	if err != nil {
		log.Fatalf("failed to connect database (%s): %v", cfg.DBDriver, err)
	}
	slog.Info("database opened", "driver", cfg.DBDriver)
	return db
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getdur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
