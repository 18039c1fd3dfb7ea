package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Backends accepted by DATA_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Cache backends accepted by CACHE_BACKEND.
const (
	CacheLRU   = "lru"
	CacheRedis = "redis"
)

type Config struct {
	// HTTP server
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Auth
	SecretKey  string
	TokenTTL   time.Duration
	BcryptCost int

	// Storage
	DataBackend  string
	DatabaseURL  string
	DBHost       string
	DBPort       string
	DBUser       string
	DBPassword   string
	DBName       string
	DBSSLMode    string
	SQLiteDBPath string

	// AI proxy
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	// Cache
	CacheBackend string
	CacheTTL     time.Duration
	CacheSize    int
	RedisURL     string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Rate limiting on /api/register and /api/login
	AuthRateLimitPerMinute int
	AuthRateLimitBurst     int

	// Security
	TrustedProxies     []string
	CORSAllowedOrigins []string

	// Google Sheets export (worker)
	GoogleSpreadsheetID        string
	GoogleSheetName            string
	GoogleServiceAccountJSON   string
	GoogleServiceAccountFile   string
	GoogleApplicationCredsFile string
}

// Load reads the configuration from the environment.
func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "3001"),
		ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		SecretKey:  os.Getenv("SECRET_KEY"),
		TokenTTL:   getEnvDuration("TOKEN_TTL", 24*time.Hour),
		BcryptCost: getEnvInt("BCRYPT_COST", 10),

		DataBackend:  getEnv("DATA_BACKEND", BackendPostgres),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DBHost:       getEnv("DB_HOST", "localhost"),
		DBPort:       getEnv("DB_PORT", "5432"),
		DBUser:       os.Getenv("DB_USER"),
		DBPassword:   os.Getenv("DB_PASSWORD"),
		DBName:       getEnv("DB_NAME", "budget_tracker"),
		DBSSLMode:    getEnv("DB_SSLMODE", "disable"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/budget.db"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),

		CacheBackend: getEnv("CACHE_BACKEND", CacheLRU),
		CacheTTL:     getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheSize:    getEnvInt("CACHE_SIZE", 16),
		RedisURL:     os.Getenv("REDIS_URL"),

		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getEnv("AMQP_EXCHANGE_NAME", "budget_exchange"),
		AMQPQueue:    getEnv("AMQP_QUEUE_NAME", "entries_export"),

		AuthRateLimitPerMinute: getEnvInt("AUTH_RATE_LIMIT_PER_MINUTE", 20),
		AuthRateLimitBurst:     getEnvInt("AUTH_RATE_LIMIT_BURST", 5),

		TrustedProxies:     getEnvList("TRUSTED_PROXIES", nil),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		GoogleSpreadsheetID:        os.Getenv("GOOGLE_SPREADSHEET_ID"),
		GoogleSheetName:            getEnv("GOOGLE_SHEET_NAME", "Ledger"),
		GoogleServiceAccountJSON:   os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		GoogleServiceAccountFile:   os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
		GoogleApplicationCredsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
	}
}

// PostgresDSN returns DATABASE_URL when set, otherwise a URL assembled from
// the DB_* parameters.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   c.DBHost + ":" + c.DBPort,
		Path:   "/" + c.DBName,
	}
	if c.DBUser != "" {
		if c.DBPassword != "" {
			u.User = url.UserPassword(c.DBUser, c.DBPassword)
		} else {
			u.User = url.User(c.DBUser)
		}
	}
	q := url.Values{}
	if c.DBSSLMode != "" {
		q.Set("sslmode", c.DBSSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Validate checks the settings the HTTP server needs and reports every
// problem at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.SecretKey) == "" {
		errs = append(errs, "SECRET_KEY is required")
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Sprintf("invalid token TTL %v: must be positive", c.TokenTTL))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Sprintf("invalid bcrypt cost %d: must be between 4 and 31", c.BcryptCost))
	}

	errs = append(errs, c.validateStorage()...)

	validCaches := []string{CacheLRU, CacheRedis}
	if !slices.Contains(validCaches, c.CacheBackend) {
		errs = append(errs, fmt.Sprintf("invalid cache backend '%s': must be one of %v", c.CacheBackend, validCaches))
	}
	if c.CacheBackend == CacheRedis && c.RedisURL == "" {
		errs = append(errs, "REDIS_URL is required when using redis cache")
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Sprintf("invalid cache TTL %v: must be positive", c.CacheTTL))
	}
	if c.CacheSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}

	errs = append(errs, c.validateAMQP()...)

	if c.AuthRateLimitPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid auth rate limit %d: must be at least 1", c.AuthRateLimitPerMinute))
	}
	if c.AuthRateLimitBurst < 1 {
		errs = append(errs, fmt.Sprintf("invalid auth rate limit burst %d: must be at least 1", c.AuthRateLimitBurst))
	}

	return joinErrors(errs)
}

// ValidateStorage checks only the storage settings. Used by the CLI.
func (c *Config) ValidateStorage() error {
	return joinErrors(c.validateStorage())
}

// ValidateWorker checks the settings the export worker needs.
func (c *Config) ValidateWorker() error {
	errs := c.validateStorage()
	if c.AMQPURL == "" {
		errs = append(errs, "AMQP_URL is required for the export worker")
	}
	errs = append(errs, c.validateAMQP()...)
	if c.GoogleSpreadsheetID == "" {
		errs = append(errs, "GOOGLE_SPREADSHEET_ID is required for the export worker")
	}
	if c.GoogleSheetName == "" {
		errs = append(errs, "GOOGLE_SHEET_NAME cannot be empty")
	}
	if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && c.GoogleApplicationCredsFile == "" {
		errs = append(errs, "one of GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be set")
	}
	for _, f := range []string{c.GoogleServiceAccountFile, c.GoogleApplicationCredsFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("service account file does not exist: %s", f))
		}
	}
	return joinErrors(errs)
}

func (c *Config) validateStorage() []string {
	var errs []string
	validBackends := []string{BackendPostgres, BackendSQLite, BackendMemory}
	if !slices.Contains(validBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendPostgres:
		if c.DatabaseURL != "" {
			if u, err := url.Parse(c.DatabaseURL); err != nil {
				errs = append(errs, fmt.Sprintf("invalid DATABASE_URL: %v", err))
			} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
				errs = append(errs, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
			}
			break
		}
		if c.DBHost == "" {
			errs = append(errs, "DB_HOST is required when using postgres backend")
		}
		if c.DBName == "" {
			errs = append(errs, "DB_NAME is required when using postgres backend")
		}
		if port, err := strconv.Atoi(c.DBPort); err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("invalid DB_PORT '%s'", c.DBPort))
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		}
	}
	return errs
}

func (c *Config) validateAMQP() []string {
	if c.AMQPURL == "" {
		return nil
	}
	var errs []string
	if u, err := url.Parse(c.AMQPURL); err != nil {
		errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
	} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
		errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
	}
	if c.AMQPExchange == "" {
		errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
	}
	return errs
}

func joinErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
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

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
