package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/mamadbah2/bakery/internal/domain/models"
)

// Storage drivers.
const (
	StorageMongoDB = "mongodb"
	StorageMemory  = "memory"
)

// Config represents the full application configuration surface.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	MongoDB    MongoDBConfig
	Reporting  ReportingConfig
	Production ProductionConfig
	WhatsApp   WhatsAppConfig
	Sheets     SheetsConfig
	Logger     LoggerConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port           string
	Mode           string
	AllowedOrigins []string
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI     string
	DBName  string
	Timeout time.Duration
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	CronSchedule       string
	DailyResetSchedule string
	Timezone           string
}

// ProductionConfig holds prices and the wage rate.
type ProductionConfig struct {
	CakePrice     float64
	BreadPrice    float64
	WageRate      float64
	FlourMaterial string
}

// WhatsAppConfig contains Cloud API credentials. Reports are sent when a
// recipient is set; the command webhook is served when a verify token is set.
type WhatsAppConfig struct {
	AccessToken     string
	PhoneNumberID   string
	VerifyToken     string
	BaseURL         string
	APIVersion      string
	ReportRecipient string
}

// SheetsConfig contains configuration required to export summaries to Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// LoggerConfig controls the log level and optional rotating log file.
type LoggerConfig struct {
	Level string
	File  string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	var errs []error
	cfg := &Config{
		Server: ServerConfig{
			Port:           getenvWithDefault("APP_PORT", "5000"),
			Mode:           getenvWithDefault("GIN_MODE", "release"),
			AllowedOrigins: splitList(getenvWithDefault("CORS_ALLOWED_ORIGINS", "*")),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(getenvWithDefault("STORAGE_DRIVER", StorageMongoDB)),
		},
		MongoDB: MongoDBConfig{
			URI:     os.Getenv("MONGODB_URI"),
			DBName:  getenvWithDefault("MONGODB_DB_NAME", "bakery"),
			Timeout: getDuration("MONGODB_TIMEOUT", 10*time.Second, &errs),
		},
		Reporting: ReportingConfig{
			CronSchedule:       getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * *"),
			DailyResetSchedule: os.Getenv("DAILY_RESET_CRON"),
			Timezone:           getenvWithDefault("TIMEZONE", "Africa/Accra"),
		},
		Production: ProductionConfig{
			CakePrice:     getFloat("CAKE_PRICE", models.DefaultCakePrice, &errs),
			BreadPrice:    getFloat("BREAD_PRICE", models.DefaultBreadPrice, &errs),
			WageRate:      getFloat("WAGE_RATE_PER_FLOUR_UNIT", models.DefaultWageRatePerFlourUnit, &errs),
			FlourMaterial: getenvWithDefault("FLOUR_MATERIAL_NAME", models.DefaultFlourMaterialName),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:     os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID:   os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			VerifyToken:     os.Getenv("META_VERIFY_TOKEN"),
			BaseURL:         getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:      getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			ReportRecipient: os.Getenv("WHATSAPP_REPORT_RECIPIENT"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
		},
		Logger: LoggerConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Storage.Driver {
	case StorageMongoDB:
		if c.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided when STORAGE_DRIVER is mongodb")
		}
		if c.MongoDB.DBName == "" {
			return errors.New("MONGODB_DB_NAME must not be empty")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}

	if c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	switch {
	case c.Production.CakePrice < 0:
		return errors.New("CAKE_PRICE must not be negative")
	case c.Production.BreadPrice < 0:
		return errors.New("BREAD_PRICE must not be negative")
	case c.Production.WageRate < 0:
		return errors.New("WAGE_RATE_PER_FLOUR_UNIT must not be negative")
	case strings.TrimSpace(c.Production.FlourMaterial) == "":
		return errors.New("FLOUR_MATERIAL_NAME must not be empty")
	}

	wa := c.WhatsApp
	if wa.AccessToken != "" || wa.PhoneNumberID != "" || wa.ReportRecipient != "" || wa.VerifyToken != "" {
		switch {
		case wa.AccessToken == "":
			return errors.New("WHATSAPP_TOKEN must be provided")
		case wa.PhoneNumberID == "":
			return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided")
		case wa.BaseURL == "":
			return errors.New("WHATSAPP_BASE_URL must not be empty")
		case wa.APIVersion == "":
			return errors.New("WHATSAPP_API_VERSION must not be empty")
		}
	}

	if (c.Sheets.CredentialsPath == "") != (c.Sheets.SpreadsheetID == "") {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH and GOOGLE_SHEET_DATABASE_ID must be provided together")
	}

	return nil
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Reporting.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Reporting.Timezone, err)
	}
	return loc, nil
}

// Pricing returns the production prices and wage rate.
func (c *Config) Pricing() models.Pricing {
	return models.Pricing{
		CakePrice:     c.Production.CakePrice,
		BreadPrice:    c.Production.BreadPrice,
		WageRate:      c.Production.WageRate,
		FlourMaterial: strings.TrimSpace(c.Production.FlourMaterial),
	}
}

// NotificationsEnabled reports whether daily reports go out over WhatsApp.
func (c *Config) NotificationsEnabled() bool {
	return c.WhatsApp.AccessToken != "" && c.WhatsApp.ReportRecipient != ""
}

// WebhookEnabled reports whether the WhatsApp command webhook is served.
func (c *Config) WebhookEnabled() bool {
	return c.WhatsApp.AccessToken != "" && c.WhatsApp.VerifyToken != ""
}

// SheetsEnabled reports whether the Google Sheets export is configured.
func (c *Config) SheetsEnabled() bool {
	return c.Sheets.SpreadsheetID != ""
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getFloat(key string, fallback float64, errs *[]error) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a number: %w", key, err))
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a duration: %w", key, err))
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
