package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Auth           AuthConfig           `yaml:"auth"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CORS           CORSConfig           `yaml:"cors"`
	AdminBootstrap AdminBootstrapConfig `yaml:"admin_bootstrap"`
	Logging        LoggingConfig        `yaml:"logging"`
	Tracing        TracingConfig        `yaml:"tracing"`
	Jobs           JobsConfig           `yaml:"jobs"`
	Registration   RegistrationConfig   `yaml:"registration"`
	Environment    string               `yaml:"environment"`
}

type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MaxConnections int    `yaml:"max_connections"`
	MaxIdle        int    `yaml:"max_idle"`
	MigrationsPath string `yaml:"migrations_path"`
	AutoMigrate    bool   `yaml:"auto_migrate"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	JWTExpiry time.Duration `yaml:"jwt_expiry"`
	JWTIssuer string        `yaml:"jwt_issuer"`
}

type RateLimitConfig struct {
	PublicPerMinute   int      `yaml:"public_per_minute"`
	AdminPerMinute    int      `yaml:"admin_per_minute"`
	LoginPer15Minutes int      `yaml:"login_per_15_minutes"`
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs"`
}

type CORSConfig struct {
	AllowAllOrigins bool     `yaml:"allow_all_origins"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

type AdminBootstrapConfig struct {
	FullName string `yaml:"full_name"`
	Password string `yaml:"password"`
	Email    string `yaml:"email"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

type JobsConfig struct {
	Enabled           bool          `yaml:"enabled"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	RetryReconcile    int           `yaml:"retry_reconcile"`
}

// RegistrationConfig tunes the registration policy.
type RegistrationConfig struct {
	// ConflictWindow is the distance between two event start times under
	// which a registration is annotated with a time conflict warning.
	ConflictWindow time.Duration `yaml:"conflict_window"`
}

// Defaults returns the configuration used when neither a config file nor
// the environment sets a value.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Database: DatabaseConfig{
			MaxConnections: 25,
			MaxIdle:        5,
			MigrationsPath: "internal/storage/postgres/migrations",
			AutoMigrate:    false,
		},
		Auth: AuthConfig{
			JWTExpiry: 24 * time.Hour,
			JWTIssuer: "campus-events",
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute:   60,
			AdminPerMinute:    0,
			LoginPer15Minutes: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "stdout",
			ServiceName: "campus-events",
			SampleRate:  1.0,
		},
		Jobs: JobsConfig{
			Enabled:           true,
			ReconcileInterval: 5 * time.Minute,
			RetryReconcile:    3,
		},
		Registration: RegistrationConfig{
			ConflictWindow: 2 * time.Hour,
		},
		Environment: "development",
	}
}

// Load reads configuration from the environment on top of Defaults.
func Load() (Config, error) {
	return load(Defaults())
}

// LoadFile reads a YAML config file and applies environment overrides on top.
func LoadFile(path string) (Config, error) {
	base := Defaults()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &base); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	return load(base)
}

func load(base Config) (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", base.Server.Host),
			Port:    getEnvInt("SERVER_PORT", base.Server.Port),
			BaseURL: getEnv("SERVER_BASE_URL", base.Server.BaseURL),
		},
		Database: DatabaseConfig{
			URL:            normalizeDatabaseURL(getEnv("DATABASE_URL", base.Database.URL)),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", base.Database.MaxConnections),
			MaxIdle:        getEnvInt("DATABASE_MAX_IDLE_CONNECTIONS", base.Database.MaxIdle),
			MigrationsPath: getEnv("DATABASE_MIGRATIONS_PATH", base.Database.MigrationsPath),
			AutoMigrate:    getEnvBool("DATABASE_AUTO_MIGRATE", base.Database.AutoMigrate),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", base.Auth.JWTSecret),
			JWTExpiry: time.Duration(getEnvInt("JWT_EXPIRY_HOURS", int(base.Auth.JWTExpiry/time.Hour))) * time.Hour,
			JWTIssuer: getEnv("JWT_ISSUER", base.Auth.JWTIssuer),
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute:   getEnvInt("RATE_LIMIT_PUBLIC", base.RateLimit.PublicPerMinute),
			AdminPerMinute:    getEnvInt("RATE_LIMIT_ADMIN", base.RateLimit.AdminPerMinute),
			LoginPer15Minutes: getEnvInt("RATE_LIMIT_LOGIN", base.RateLimit.LoginPer15Minutes),
			TrustedProxyCIDRs: getEnvList("TRUSTED_PROXY_CIDRS", base.RateLimit.TrustedProxyCIDRs),
		},
		AdminBootstrap: AdminBootstrapConfig{
			FullName: getEnv("ADMIN_FULL_NAME", base.AdminBootstrap.FullName),
			Password: getEnv("ADMIN_PASSWORD", base.AdminBootstrap.Password),
			Email:    getEnv("ADMIN_EMAIL", base.AdminBootstrap.Email),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", base.Logging.Level),
			Format: getEnv("LOG_FORMAT", base.Logging.Format),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvBool("TRACING_ENABLED", base.Tracing.Enabled),
			Exporter:     getEnv("TRACING_EXPORTER", base.Tracing.Exporter),
			ServiceName:  getEnv("TRACING_SERVICE_NAME", base.Tracing.ServiceName),
			OTLPEndpoint: getEnv("TRACING_OTLP_ENDPOINT", base.Tracing.OTLPEndpoint),
			SampleRate:   getEnvFloat("TRACING_SAMPLE_RATE", base.Tracing.SampleRate),
		},
		Jobs: JobsConfig{
			Enabled:           getEnvBool("JOBS_ENABLED", base.Jobs.Enabled),
			ReconcileInterval: getEnvDuration("JOBS_RECONCILE_INTERVAL", base.Jobs.ReconcileInterval),
			RetryReconcile:    getEnvInt("JOB_RETRY_RECONCILE", base.Jobs.RetryReconcile),
		},
		Registration: RegistrationConfig{
			ConflictWindow: getEnvDuration("REGISTRATION_CONFLICT_WINDOW", base.Registration.ConflictWindow),
		},
		Environment: getEnv("ENVIRONMENT", base.Environment),
	}

	origins := getEnvList("CORS_ALLOWED_ORIGINS", base.CORS.AllowedOrigins)
	cfg.CORS = CORSConfig{
		AllowedOrigins:  origins,
		AllowAllOrigins: cfg.Environment == "development" || cfg.Environment == "test" || base.CORS.AllowAllOrigins,
	}

	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Environment == "production" {
		if len(cfg.Auth.JWTSecret) < 32 {
			return Config{}, fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
		if len(cfg.CORS.AllowedOrigins) == 0 {
			return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS is required in production")
		}
	}
	if cfg.Registration.ConflictWindow < 0 {
		return Config{}, fmt.Errorf("REGISTRATION_CONFLICT_WINDOW must not be negative")
	}
	return cfg, nil
}

// normalizeDatabaseURL rewrites the legacy postgres:// scheme some hosting
// providers still hand out.
func normalizeDatabaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "postgres://") {
		return "postgresql://" + strings.TrimPrefix(raw, "postgres://")
	}
	return raw
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
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
	value := os.Getenv(key)
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
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
