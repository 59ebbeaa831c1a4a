package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendPostgres  = "postgres"
	BackendSQLite    = "sqlite"
	BackendMongoDB   = "mongodb"
	BackendSurrealDB = "surrealdb"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Realtime RealtimeConfig
	Auth     AuthConfig
	Jobs     JobsConfig
	Log      LogConfig

	// SeedSampleForms inserts the two demo forms when the store is empty.
	SeedSampleForms bool
}

type ServerConfig struct {
	Port           string
	GinMode        string
	APIPrefix      string
	AllowedOrigins []string
	RatePerMinute  int
	RateBurst      int
}

type StorageConfig struct {
	Backend string

	// postgres
	DatabaseURL string

	// sqlite
	SQLitePath string

	// mongodb
	MongoURI      string
	MongoDatabase string

	// surrealdb
	SurrealURL       string
	SurrealNamespace string
	SurrealDatabase  string
	SurrealUser      string
	SurrealPassword  string
}

type RealtimeConfig struct {
	RedisURL  string
	Channel   string
	QueueSize int
}

type AuthConfig struct {
	JWTSecret         string
	ExpiryHours       int
	AdminPasswordHash string
}

// Enabled reports whether admin endpoints require a token.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

type JobsConfig struct {
	OrphanSweepInterval time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads the configuration from the process environment.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8000"),
			GinMode:        getEnv("GIN_MODE", "debug"),
			APIPrefix:      getEnv("API_PREFIX", "/api"),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			RatePerMinute:  getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
			RateBurst:      getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Storage: StorageConfig{
			Backend:          strings.ToLower(getEnv("STORAGE_BACKEND", BackendPostgres)),
			DatabaseURL:      getEnv("DB_URL", ""),
			SQLitePath:       getEnv("SQLITE_PATH", "forms.db"),
			MongoURI:         getEnv("MONGODB_URI", ""),
			MongoDatabase:    getEnv("MONGODB_DATABASE", "form_analytics"),
			SurrealURL:       getEnv("SURREALDB_URL", ""),
			SurrealNamespace: getEnv("SURREALDB_NAMESPACE", "forms"),
			SurrealDatabase:  getEnv("SURREALDB_DATABASE", "form_analytics"),
			SurrealUser:      getEnv("SURREALDB_USER", "root"),
			SurrealPassword:  getEnv("SURREALDB_PASSWORD", "root"),
		},
		Realtime: RealtimeConfig{
			RedisURL:  getEnv("REDIS_URL", ""),
			Channel:   getEnv("REALTIME_CHANNEL", "analytics"),
			QueueSize: getEnvAsInt("BROADCAST_QUEUE_SIZE", 100),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", ""),
			ExpiryHours:       getEnvAsInt("JWT_EXPIRY_HOURS", 24),
			AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		Jobs: JobsConfig{
			OrphanSweepInterval: getEnvAsDuration("ORPHAN_SWEEP_INTERVAL", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		SeedSampleForms: getEnvAsBool("SEED_SAMPLE_FORMS", false),
	}
}

// Validate checks that the selected storage backend has what it needs to connect.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("DB_URL is required for the %s backend", BackendPostgres)
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the %s backend", BackendSQLite)
		}
	case BackendMongoDB:
		if c.Storage.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required for the %s backend", BackendMongoDB)
		}
	case BackendSurrealDB:
		if c.Storage.SurrealURL == "" {
			return fmt.Errorf("SURREALDB_URL is required for the %s backend", BackendSurrealDB)
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}

	if c.Realtime.QueueSize <= 0 {
		return fmt.Errorf("BROADCAST_QUEUE_SIZE must be positive, got %d", c.Realtime.QueueSize)
	}
	if c.Jobs.OrphanSweepInterval <= 0 {
		return fmt.Errorf("ORPHAN_SWEEP_INTERVAL must be positive, got %s", c.Jobs.OrphanSweepInterval)
	}
	if c.Auth.Enabled() && c.Auth.AdminPasswordHash == "" {
		return fmt.Errorf("ADMIN_PASSWORD_HASH is required when JWT_SECRET is set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
