package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"plndash/internal/core"
	"plndash/internal/dashboard"
	applog "plndash/internal/log"
	"plndash/internal/source/remote"
)

// Data sources
const (
	SourceCSV    = "csv"
	SourceFile   = "file"
	SourceSheets = "sheets"
	SourceSQLite = "sqlite"
)

type Config struct {
	// HTTP Server
	Port               string
	LogLevel           string
	RateLimitPerMinute int
	TrustedProxies     []string

	// Data source selection
	DataSource   string
	FetchTimeout time.Duration

	// Remote CSV
	DataURL string

	// Local file (.csv or .xlsx)
	DataFile  string
	DataSheet string

	// SQLite (read-only)
	SQLiteDBPath string
	SQLiteTable  string

	// Google Sheets
	GoogleSpreadsheetID string
	GoogleSheetRange    string

	// Pipeline and dashboard
	SchemaPolicy        string
	DefaultMode         string
	SinglePointCharts   string
	DashboardLayoutFile string

	// Chart cache
	ChartCacheSize int
	ChartCacheTTL  time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),

		DataSource:   getEnv("DATA_SOURCE", SourceCSV),
		FetchTimeout: getEnvDuration("FETCH_TIMEOUT", 30*time.Second),

		DataURL: getEnv("DATA_URL", remote.DefaultURL),

		DataFile:  getEnv("DATA_FILE", ""),
		DataSheet: getEnv("DATA_SHEET", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/pln.db"),
		SQLiteTable:  getEnv("SQLITE_TABLE", "pln"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetRange:    getEnv("GOOGLE_SHEET_RANGE", "A:H"),

		SchemaPolicy:        getEnv("SCHEMA_POLICY", string(core.SchemaStrict)),
		DefaultMode:         getEnv("DEFAULT_MODE", string(core.ModeYear)),
		SinglePointCharts:   getEnv("SINGLE_POINT_CHARTS", string(dashboard.SinglePointRender)),
		DashboardLayoutFile: getEnv("DASHBOARD_LAYOUT_FILE", ""),

		ChartCacheSize: getEnvInt("CHART_CACHE_SIZE", 128),
		ChartCacheTTL:  getEnvDuration("CHART_CACHE_TTL", 10*time.Minute),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	// Validate data source
	validSources := []string{SourceCSV, SourceFile, SourceSheets, SourceSQLite}
	isValidSource := false
	for _, s := range validSources {
		if c.DataSource == s {
			isValidSource = true
			break
		}
	}
	if !isValidSource {
		errors = append(errors, fmt.Sprintf("invalid data source '%s': must be one of %v", c.DataSource, validSources))
	}

	switch c.DataSource {
	case SourceCSV:
		if parsedURL, err := url.Parse(c.DataURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid data URL '%s': %v", c.DataURL, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid data URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
	case SourceFile:
		if c.DataFile == "" {
			errors = append(errors, "DATA_FILE is required when using file source")
		} else if _, err := os.Stat(c.DataFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("data file does not exist: %s", c.DataFile))
		}
	case SourceSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite source")
		} else if _, err := os.Stat(c.SQLiteDBPath); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("SQLite database does not exist: %s", c.SQLiteDBPath))
		}
		if c.SQLiteTable == "" {
			errors = append(errors, "SQLite table cannot be empty when using sqlite source")
		}
	case SourceSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets source")
		}
		if c.GoogleSheetRange == "" {
			errors = append(errors, "Google Sheet range is required when using sheets source")
		}
	}

	if c.FetchTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be at least 1 second", c.FetchTimeout))
	} else if c.FetchTimeout > 10*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be at most 10 minutes", c.FetchTimeout))
	}

	// Validate pipeline and dashboard options
	if _, err := core.ParseSchemaPolicy(c.SchemaPolicy); err != nil {
		errors = append(errors, err.Error())
	}
	if _, err := core.ParseMode(c.DefaultMode); err != nil {
		errors = append(errors, err.Error())
	}
	if _, err := dashboard.ParseSinglePoint(c.SinglePointCharts); err != nil {
		errors = append(errors, err.Error())
	}
	if c.DashboardLayoutFile != "" {
		if _, err := os.Stat(c.DashboardLayoutFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("dashboard layout file does not exist: %s", c.DashboardLayoutFile))
		}
	}

	// Validate chart cache
	if c.ChartCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid chart cache size %d: must be at least 1", c.ChartCacheSize))
	} else if c.ChartCacheSize > 10000 {
		errors = append(errors, fmt.Sprintf("invalid chart cache size %d: must be at most 10000", c.ChartCacheSize))
	}
	if c.ChartCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid chart cache TTL %v: must be at least 1 second", c.ChartCacheTTL))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Schema returns the parsed schema policy; call after Validate.
func (c *Config) Schema() core.SchemaPolicy {
	p, _ := core.ParseSchemaPolicy(c.SchemaPolicy)
	return p
}

// Mode returns the parsed default pipeline mode; call after Validate.
func (c *Config) Mode() core.Mode {
	m, _ := core.ParseMode(c.DefaultMode)
	return m
}

// SinglePoint returns the parsed single-point chart policy; call after Validate.
func (c *Config) SinglePoint() dashboard.SinglePoint {
	s, _ := dashboard.ParseSinglePoint(c.SinglePointCharts)
	return s
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blank items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
