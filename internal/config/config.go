package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

var Backends = []string{"memory", "sqlite", "mongo", "sheets"}

type Config struct {
	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration
	RateLimit       int // POST requests per client per minute

	// Backend selection
	DataBackend string

	// Memory
	SeedFile string

	// SQLite
	SQLiteDBPath string

	// AMQP change feed (sqlite backend)
	AMQPURL         string
	AMQPExchange    string
	AMQPRoutingKey  string
	AMQPMirrorQueue string

	// MongoDB
	MongoURI      string
	MongoDatabase string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	SheetsMirror             bool

	// Identity
	JWTSecret string

	// Statistics
	RecentWindow       int
	StatsCacheSize     int
	StatsCacheTTL      time.Duration
	CacheSweepInterval time.Duration

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8081"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		RateLimit:       getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		DataBackend: getEnv("DATA_BACKEND", "memory"),
		SeedFile:    getEnv("SEED_FILE", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),

		AMQPURL:         getEnv("AMQP_URL", ""),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPRoutingKey:  getEnv("AMQP_ROUTING_KEY", "transactions.changed"),
		AMQPMirrorQueue: getEnv("AMQP_MIRROR_QUEUE", "fintrack.sheets_mirror"),

		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "fintrack"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		SheetsMirror:             getEnvBool("SHEETS_MIRROR", false),

		JWTSecret: getEnv("JWT_SECRET", ""),

		RecentWindow:       getEnvInt("RECENT_WINDOW", 5),
		StatsCacheSize:     getEnvInt("STATS_CACHE_SIZE", 1000),
		StatsCacheTTL:      getEnvDuration("STATS_CACHE_TTL", 5*time.Minute),
		CacheSweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(Backends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, Backends))
	}

	switch c.DataBackend {
	case "memory":
		if c.SeedFile != "" {
			if _, err := os.Stat(c.SeedFile); err != nil {
				errors = append(errors, fmt.Sprintf("seed file not readable: %v", err))
			}
		}

	case "sqlite":
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

	case "mongo":
		if u, err := url.Parse(c.MongoURI); err != nil || (u.Scheme != "mongodb" && u.Scheme != "mongodb+srv") {
			errors = append(errors, fmt.Sprintf("invalid Mongo URI '%s': must start with mongodb:// or mongodb+srv://", c.MongoURI))
		}
		if c.MongoDatabase == "" {
			errors = append(errors, "Mongo database name cannot be empty when using mongo backend")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	needsSheets := c.DataBackend == "sheets" || c.SheetsMirror
	if needsSheets {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the sheets backend or mirror")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "service account credentials are required for the sheets backend or mirror")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}
	if c.SheetsMirror {
		if c.DataBackend != "sqlite" {
			errors = append(errors, "SHEETS_MIRROR requires the sqlite backend")
		}
		if c.AMQPURL == "" {
			errors = append(errors, "SHEETS_MIRROR requires AMQP_URL")
		}
		if c.AMQPMirrorQueue == "" {
			errors = append(errors, "AMQP mirror queue name cannot be empty when SHEETS_MIRROR is enabled")
		}
	}

	if c.RecentWindow < 1 {
		errors = append(errors, fmt.Sprintf("invalid recent window %d: must be at least 1", c.RecentWindow))
	}
	if c.StatsCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid stats cache size %d: must be at least 1", c.StatsCacheSize))
	}
	if c.StatsCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid stats cache ttl %v: must not be negative", c.StatsCacheTTL))
	}
	if c.CacheSweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache sweep interval %v: must be at least 1 second", c.CacheSweepInterval))
	}
	if c.RateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimit))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
