package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingJWTSecret is returned when JWT_SECRET is not set. The server
// refuses to start rather than sign sessions with a well-known key.
var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      *DatabaseConfig // Optional: user store. When nil, logins are not persisted.
	Redis         *RedisConfig    // Optional: session revocation. When nil, logout is a no-op server side.
	Auth          AuthConfig
	Google        GoogleConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	BaseURL         string // Public base URL, also published in the API docs
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds session credential configuration
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// GoogleConfig holds identity provider configuration
type GoogleConfig struct {
	ClientID     string
	TokenInfoURL string
	Verifier     string // "tokeninfo" or "oidc"
	IssuerURL    string // OIDC issuer, used when Verifier is "oidc"
	HTTPTimeout  time.Duration
}

// CORSConfig holds allowed origins for the browser frontend
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

const (
	// VerifierTokenInfo verifies identity tokens against Google's tokeninfo endpoint
	VerifierTokenInfo = "tokeninfo"
	// VerifierOIDC verifies ID tokens locally against the provider's JWKS
	VerifierOIDC = "oidc"
)

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists (backend/.env when run from project root, .env when run from backend/)
	_ = godotenv.Load("backend/.env")
	_ = godotenv.Load(".env")

	port := getPort()
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            port,
			BaseURL:         strings.TrimSuffix(getEnv("BASE_URL", fmt.Sprintf("http://localhost:%d", port)), "/"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: loadDatabaseConfig(),
		Redis:    loadRedisConfig(),
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			Issuer:    getEnv("JWT_ISSUER", "crm-xeno"),
		},
		Google: GoogleConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			TokenInfoURL: getEnv("GOOGLE_TOKENINFO_URL", "https://oauth2.googleapis.com/tokeninfo"),
			Verifier:     strings.ToLower(getEnv("GOOGLE_VERIFIER", VerifierTokenInfo)),
			IssuerURL:    getEnv("GOOGLE_ISSUER_URL", "https://accounts.google.com"),
			HTTPTimeout:  getEnvAsDuration("GOOGLE_HTTP_TIMEOUT", 10*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}

	switch c.Google.Verifier {
	case VerifierTokenInfo:
		if c.Google.TokenInfoURL == "" {
			return fmt.Errorf("google tokeninfo URL is required")
		}
	case VerifierOIDC:
		if c.Google.ClientID == "" {
			return fmt.Errorf("google client ID is required for the oidc verifier")
		}
	default:
		return fmt.Errorf("unknown google verifier %q", c.Google.Verifier)
	}

	// Google client ID pins the audience (required in production)
	if c.IsProduction() && c.Google.ClientID == "" {
		return fmt.Errorf("google client ID is required in production")
	}

	if c.Database != nil && c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars.
// Returns nil when neither DATABASE_URL nor DB_HOST is set.
func loadDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return &DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	if os.Getenv("DB_HOST") == "" {
		return nil
	}
	return &DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "crm"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "crm"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// loadRedisConfig returns nil when REDIS_ADDR is not set
func loadRedisConfig() *RedisConfig {
	addr := getEnv("REDIS_ADDR", "")
	if addr == "" {
		return nil
	}
	return &RedisConfig{
		Addr:     addr,
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvAsInt("REDIS_DB", 0),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 5000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 5000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated value, dropping empty entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
