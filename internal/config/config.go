package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"studydash/internal/revenue"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// REST backend
	APIBaseURL  string
	APIToken    string
	APIPageSize int
	APITimeout  time.Duration

	// Database
	SQLiteDBPath string

	// Memory backend seed files
	DataDirectory string

	// AMQP, disabled when the URL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets report export, disabled when the spreadsheet is empty
	GoogleSpreadsheetID      string
	GoogleReportSheetName    string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Dashboard
	Timezone          string
	CacheTTL          time.Duration
	RefreshInterval   time.Duration
	RollingMonths     int
	CalendarNetPolicy string
	RollingNetPolicy  string
	ZoneNetPolicy     string
	MoMSource         string

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8081"),
		DataBackend: getEnv("DATA_BACKEND", "memory"),

		APIBaseURL:  strings.TrimRight(getEnv("API_BASE_URL", ""), "/"),
		APIToken:    getEnv("API_TOKEN", ""),
		APIPageSize: getEnvInt("API_PAGE_SIZE", 500),
		APITimeout:  getEnvDuration("API_TIMEOUT", 15*time.Second),

		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/studydash.db"),
		DataDirectory: getEnv("DATA_DIRECTORY", "data"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "studydash"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_changes"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleReportSheetName:    getEnv("GOOGLE_REPORT_SHEET_NAME", "Revenue"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		Timezone:          getEnv("TIMEZONE", "Local"),
		CacheTTL:          getEnvDuration("CACHE_TTL", 60*time.Second),
		RefreshInterval:   getEnvDuration("REFRESH_INTERVAL", 5*time.Minute),
		RollingMonths:     getEnvInt("ROLLING_MONTHS", revenue.DefaultRollingMonths),
		CalendarNetPolicy: getEnv("CALENDAR_NET_POLICY", "signed"),
		RollingNetPolicy:  getEnv("ROLLING_NET_POLICY", "signed"),
		ZoneNetPolicy:     getEnv("ZONE_NET_POLICY", "signed"),
		MoMSource:         getEnv("MOM_SOURCE", "payments"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
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

	// Validate data backend
	validBackends := []string{"api", "memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "api" {
		if c.APIBaseURL == "" {
			errors = append(errors, "API base URL is required when using api backend")
		} else if parsedURL, err := url.Parse(c.APIBaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
		if c.APIPageSize < 1 || c.APIPageSize > 10000 {
			errors = append(errors, fmt.Sprintf("invalid API page size %d: must be between 1 and 10000", c.APIPageSize))
		}
		if c.APITimeout <= 0 {
			errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be positive", c.APITimeout))
		}
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate Google Sheets export if configured
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleReportSheetName == "" {
			errors = append(errors, "Google report sheet name is required when a spreadsheet ID is set")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		hasJSON := c.GoogleServiceAccountJSON != ""
		if !hasFile && !hasJSON {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Validate dashboard settings
	if _, err := c.Location(); err != nil {
		errors = append(errors, err.Error())
	}
	if c.CacheTTL < 0 || c.CacheTTL > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be between 0 and 1 hour", c.CacheTTL))
	}
	if c.RefreshInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at least 1 second", c.RefreshInterval))
	} else if c.RefreshInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at most 24 hours", c.RefreshInterval))
	}
	if c.RollingMonths < 1 || c.RollingMonths > 36 {
		errors = append(errors, fmt.Sprintf("invalid rolling months %d: must be between 1 and 36", c.RollingMonths))
	}
	policies := []struct{ name, value string }{
		{"CALENDAR_NET_POLICY", c.CalendarNetPolicy},
		{"ROLLING_NET_POLICY", c.RollingNetPolicy},
		{"ZONE_NET_POLICY", c.ZoneNetPolicy},
	}
	for _, p := range policies {
		if _, err := revenue.ParseNetPolicy(p.value); err != nil {
			errors = append(errors, fmt.Sprintf("%s: %v", p.name, err))
		}
	}
	if _, err := revenue.ParseMoMSource(c.MoMSource); err != nil {
		errors = append(errors, err.Error())
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %v", c.Timezone, err)
	}
	return loc, nil
}

// DashboardOptions turns the dashboard settings into aggregation options.
// Call Validate first, invalid values fall back to defaults.
func (c *Config) DashboardOptions() revenue.Options {
	calendarNet, _ := revenue.ParseNetPolicy(c.CalendarNetPolicy)
	rollingNet, _ := revenue.ParseNetPolicy(c.RollingNetPolicy)
	zoneNet, _ := revenue.ParseNetPolicy(c.ZoneNetPolicy)
	momSource, _ := revenue.ParseMoMSource(c.MoMSource)
	return revenue.Options{
		ZoneNet:       zoneNet,
		CalendarNet:   calendarNet,
		RollingNet:    rollingNet,
		RollingMonths: c.RollingMonths,
		Summary:       revenue.SummaryOptions{MoMSource: momSource},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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
