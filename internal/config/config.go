package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config is the typed application configuration, populated from the
// environment and validated once at startup.
type Config struct {
	Port         string
	JWTSecret    string
	OperatorName string
	// OperatorPasswordHash is a bcrypt hash; cmd/seed generates one.
	OperatorPasswordHash string

	ShopifyDomain     string
	ShopifyToken      string
	ShopifyAPIVersion string

	// SheetCSVURL is the published CSV export of the clients spreadsheet.
	SheetCSVURL string
	// ClientFilesDir optionally points at a folder of per-customer
	// semicolon-delimited files; empty disables that source.
	ClientFilesDir string

	// DataDir holds the flat tables that are the source of truth between runs.
	DataDir string

	HTTPTimeout  time.Duration
	FetchRetries int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "8081"),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		OperatorName:         getEnv("OPERATOR_NAME", "admin"),
		OperatorPasswordHash: getEnv("OPERATOR_PASSWORD_HASH", ""),
		ShopifyDomain:        getEnv("SHOPIFY_DOMAIN", ""),
		ShopifyToken:         getEnv("SHOPIFY_ACCESS_TOKEN", ""),
		ShopifyAPIVersion:    getEnv("SHOPIFY_API_VERSION", "2025-01"),
		SheetCSVURL:          getEnv("CLIENTS_SHEET_CSV_URL", ""),
		ClientFilesDir:       getEnv("CLIENT_FILES_DIR", ""),
		DataDir:              getEnv("DATA_DIR", "data"),
		HTTPTimeout:          getDuration("HTTP_TIMEOUT", 15*time.Second),
		FetchRetries:         getInt("FETCH_RETRIES", 3),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.OperatorPasswordHash == "" {
		return nil, errors.New("OPERATOR_PASSWORD_HASH is required (generate one with cmd/seed)")
	}
	if cfg.FetchRetries < 1 {
		return nil, errors.New("FETCH_RETRIES must be >= 1")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
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
