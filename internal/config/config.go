package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration values.
type Config struct {
	DataDir           string
	DatabaseDSN       string
	BackupDir         string
	HTTPAddr          string
	AllowedOrigin     string
	RefreshInterval   time.Duration
	LowStockThreshold int64
	NearExpiryDays    int
	SeedCSV           string
	LogLevel          string
}

const (
	defaultRefreshInterval   = 4 * time.Hour
	defaultLowStockThreshold = 10
	defaultNearExpiryDays    = 30
)

// Load reads configuration from environment variables with reasonable defaults.
func Load() Config {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dataDir = filepath.Join(home, "Documents", "PharmacyData")
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = filepath.Join(dataDir, "pharmacy.db")
	}

	backupDir := os.Getenv("BACKUP_DIR")
	if backupDir == "" {
		backupDir = filepath.Join(dataDir, "backups")
	}

	refresh := defaultRefreshInterval
	if raw := os.Getenv("REFRESH_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			slog.Warn("invalid REFRESH_INTERVAL, using default", "value", raw, "default", defaultRefreshInterval.String())
		} else {
			refresh = d
		}
	}

	lowStock := int64(defaultLowStockThreshold)
	if raw := os.Getenv("LOW_STOCK_THRESHOLD"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			slog.Warn("invalid LOW_STOCK_THRESHOLD, using default", "value", raw, "default", defaultLowStockThreshold)
		} else {
			lowStock = v
		}
	}

	nearDays := defaultNearExpiryDays
	if raw := os.Getenv("NEAR_EXPIRY_DAYS"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			slog.Warn("invalid NEAR_EXPIRY_DAYS, using default", "value", raw, "default", defaultNearExpiryDays)
		} else {
			nearDays = v
		}
	}

	return Config{
		DataDir:           dataDir,
		DatabaseDSN:       dsn,
		BackupDir:         backupDir,
		HTTPAddr:          getEnv("HTTP_ADDR", "127.0.0.1:8080"),
		AllowedOrigin:     getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		RefreshInterval:   refresh,
		LowStockThreshold: lowStock,
		NearExpiryDays:    nearDays,
		SeedCSV:           strings.TrimSpace(os.Getenv("SEED_CSV")),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
}

// DatabasePath returns the on-disk file behind DatabaseDSN, or "" for
// in-memory and URI style DSNs.
func (c Config) DatabasePath() string {
	if c.DatabaseDSN == ":memory:" || strings.HasPrefix(c.DatabaseDSN, "file:") {
		return ""
	}
	return c.DatabaseDSN
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
