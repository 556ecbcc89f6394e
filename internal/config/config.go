package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultDBDriver      = "sqlite"
	defaultDBPath        = "./dev.db"
	defaultPort          = "8080"
	defaultMigrationsDir = "migrations"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AppEnv        string
	Port          string
	DBDriver      string
	DBPath        string
	DatabaseURL   string
	MigrationsDir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	LogLevel  string
	LogFormat string

	CatalogPath string

	SuggestionsURL     string
	SuggestionsTimeout time.Duration

	AWSRegion    string
	SESFromEmail string

	ChromePath string
	PDFTimeout time.Duration

	// Warnings lists missing optional settings. They are logged once the
	// logger exists.
	Warnings []string
}

// IsDev reports whether the app runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "", "dev", "development", "local":
		return true
	}
	return false
}

// DSN returns the data source for the configured driver.
func (c Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DBPath
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	// Best-effort: local development keeps its settings in .env.
	_ = loadDotEnv(".env")

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("DB_DRIVER", defaultDBDriver)
	v.SetDefault("DB_PATH", defaultDBPath)
	v.SetDefault("MIGRATIONS_DIR", defaultMigrationsDir)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", "24h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SUGGESTIONS_TIMEOUT", "20s")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("PDF_TIMEOUT", "30s")

	return fromViper(v)
}

func fromViper(v *viper.Viper) Config {
	cfg := Config{
		AppEnv:             v.GetString("APP_ENV"),
		Port:               v.GetString("PORT"),
		DBDriver:           strings.ToLower(v.GetString("DB_DRIVER")),
		DBPath:             v.GetString("DB_PATH"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		MigrationsDir:      v.GetString("MIGRATIONS_DIR"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		CacheTTL:           v.GetDuration("CACHE_TTL"),
		LogLevel:           strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:          strings.ToLower(v.GetString("LOG_FORMAT")),
		CatalogPath:        v.GetString("CATALOG_PATH"),
		SuggestionsURL:     strings.TrimRight(v.GetString("SUGGESTIONS_URL"), "/"),
		SuggestionsTimeout: v.GetDuration("SUGGESTIONS_TIMEOUT"),
		AWSRegion:          v.GetString("AWS_REGION"),
		SESFromEmail:       v.GetString("SES_FROM_EMAIL"),
		ChromePath:         v.GetString("CHROME_PATH"),
		PDFTimeout:         v.GetDuration("PDF_TIMEOUT"),
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
		if cfg.IsDev() {
			cfg.LogFormat = "console"
		}
	}
	if cfg.DBDriver != "postgres" {
		cfg.DBDriver = defaultDBDriver
	}

	if cfg.DBDriver == "postgres" && cfg.DatabaseURL == "" {
		cfg.Warnings = append(cfg.Warnings, "DATABASE_URL is not set for the postgres driver")
	}
	if cfg.RedisAddr == "" {
		cfg.Warnings = append(cfg.Warnings, "REDIS_ADDR is not set; pricing cache disabled")
	}
	if cfg.SuggestionsURL == "" {
		cfg.Warnings = append(cfg.Warnings, "SUGGESTIONS_URL is not set; proposal suggestions disabled")
	}
	if cfg.SESFromEmail == "" {
		cfg.Warnings = append(cfg.Warnings, "SES_FROM_EMAIL is not set; proposal email disabled")
	}

	return cfg
}
