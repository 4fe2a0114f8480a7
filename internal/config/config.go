package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Development fallbacks for the signing secrets. Validate rejects them in production.
const (
	devAccessSecret  = "dev-access-secret"
	devRefreshSecret = "dev-refresh-secret"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	Notification NotificationConfig
	Worker       WorkerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	BodyLimitBytes        int
	BaseURL               string
	StaticDir             string
	AllowedOrigins        []string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	AccessTokenSecret        string
	RefreshTokenSecret       string
	AccessTokenTTL           time.Duration
	RefreshTokenTTL          time.Duration
	VerificationTokenTTL     time.Duration
	PasswordResetTTL         time.Duration
	BcryptCost               int
	RequireEmailVerification bool
	RotateRefreshTokens      bool
	AgentsMayDeleteUsers     bool
	AllowStaffSelfSignup     bool
	ExposeResetToken         bool
}

// RateLimitConfig bounds login and registration attempts per client IP.
type RateLimitConfig struct {
	Window      time.Duration
	LoginMax    int
	RegisterMax int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom    string
	EmailEnabled bool
	WebhookURL   string
}

// WorkerConfig controls background maintenance.
type WorkerConfig struct {
	SweepInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	env := strings.ToLower(getEnv("APP_ENV", "development"))
	origins := getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"})
	if frontend := os.Getenv("FRONTEND_URL"); frontend != "" {
		origins = append(origins, frontend)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticketly-api"),
			Env:                   env,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", getEnv("PORT", "8080")),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			BodyLimitBytes:        getEnvAsInt("HTTP_BODY_LIMIT_BYTES", 5*1024*1024),
			BaseURL:               getEnv("APP_BASE_URL", "http://localhost:5173"),
			StaticDir:             getEnv("STATIC_DIR", "frontend/dist"),
			AllowedOrigins:        origins,
		},
		Postgres: PostgresConfig{
			DSN:            getEnv("POSTGRES_DSN", os.Getenv("DATABASE_URL")),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			AccessTokenSecret:        getEnv("ACCESS_TOKEN_SECRET", devAccessSecret),
			RefreshTokenSecret:       getEnv("REFRESH_TOKEN_SECRET", devRefreshSecret),
			AccessTokenTTL:           getEnvAsDuration("ACCESS_TOKEN_TTL", 14*24*time.Hour),
			RefreshTokenTTL:          getEnvAsDuration("REFRESH_TOKEN_TTL", 14*24*time.Hour),
			VerificationTokenTTL:     getEnvAsDuration("VERIFICATION_TOKEN_TTL", time.Hour),
			PasswordResetTTL:         getEnvAsDuration("PASSWORD_RESET_TTL", time.Hour),
			BcryptCost:               getEnvAsInt("AUTH_BCRYPT_COST", 12),
			RequireEmailVerification: getEnvAsBool("AUTH_REQUIRE_EMAIL_VERIFICATION", false),
			RotateRefreshTokens:      getEnvAsBool("AUTH_ROTATE_REFRESH_TOKENS", false),
			AgentsMayDeleteUsers:     getEnvAsBool("AUTH_AGENTS_MAY_DELETE_USERS", false),
			AllowStaffSelfSignup:     getEnvAsBool("AUTH_ALLOW_STAFF_SELF_REGISTRATION", true),
			ExposeResetToken:         getEnvAsBool("AUTH_EXPOSE_RESET_TOKEN", env != "production"),
		},
		RateLimit: RateLimitConfig{
			Window:      getEnvAsDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
			LoginMax:    getEnvAsInt("RATE_LIMIT_LOGIN_MAX", 5),
			RegisterMax: getEnvAsInt("RATE_LIMIT_REGISTER_MAX", 9),
		},
		Notification: NotificationConfig{
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "noreply@ticketly.local"),
			EmailEnabled: getEnvAsBool("NOTIFY_EMAIL_ENABLED", false),
			WebhookURL:   getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Worker: WorkerConfig{
			SweepInterval: getEnvAsDuration("SWEEP_INTERVAL", time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that must hold before the server starts.
func (c *Config) Validate() error {
	if c.Auth.AccessTokenSecret == "" || c.Auth.RefreshTokenSecret == "" {
		return errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required")
	}
	if c.Auth.AccessTokenSecret == c.Auth.RefreshTokenSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	if c.App.IsProduction() {
		if c.Auth.AccessTokenSecret == devAccessSecret || c.Auth.RefreshTokenSecret == devRefreshSecret {
			return errors.New("development token secrets are not allowed in production")
		}
		if c.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required in production")
		}
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsProduction reports whether cookies must be marked secure and static assets served.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvAsDuration accepts Go duration strings ("15m", "336h") or a "d" suffix for days.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	if days, ok := strings.CutSuffix(val, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return fallback
		}
		return time.Duration(n) * 24 * time.Hour
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
