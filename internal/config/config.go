package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	OutputDir    string
	AuditEnabled bool
	AuditDBPath  string

	FieldPatternsPath string
	SchemaSampleRows  int
	HeaderScanRows    int
	SniffThreshold    float64
	ClassifyFloor     float64
	SheetNamePattern  string

	SplitTolerance int

	CurrencySymbol string
	DisplayLocale  string

	LogLevel  string
	LogFormat string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		OutputDir:    getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		AuditEnabled: getEnvBool("AUDIT_ENABLED", false),
		AuditDBPath:  getEnv("AUDIT_DB_PATH", filepath.Join(cwd, "data", "recon.db")),

		FieldPatternsPath: getEnv("FIELD_PATTERNS_PATH", ""),
		SchemaSampleRows:  getEnvInt("SCHEMA_SAMPLE_ROWS", 10),
		HeaderScanRows:    getEnvInt("HEADER_SCAN_ROWS", 10),
		SniffThreshold:    getEnvFloat("SNIFF_THRESHOLD", 0.6),
		ClassifyFloor:     getEnvFloat("CLASSIFY_FLOOR", 2.0),
		SheetNamePattern:  getEnv("SHEET_NAME_PATTERN", `(?i)(load|sales|report|data)`),

		SplitTolerance: getEnvInt("SPLIT_TOLERANCE", 1),

		CurrencySymbol: getEnv("CURRENCY_SYMBOL", "R"),
		DisplayLocale:  getEnv("DISPLAY_LOCALE", "en"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if cfg.SchemaSampleRows < 1 {
		cfg.SchemaSampleRows = 1
	}
	if cfg.HeaderScanRows < 1 {
		cfg.HeaderScanRows = 1
	}
	if cfg.SplitTolerance < 0 {
		cfg.SplitTolerance = 0
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// Logger builds the process logger from LOG_LEVEL / LOG_FORMAT. Logs go to stderr so stdout stays parseable.
func (c Config) Logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
