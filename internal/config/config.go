package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	JWKSURL     string
	JWTIssuer   string
	JWTAudience string
	AdminEmails []string

	CORSAllowedOrigins []string

	SaltPayAPIKey    string
	SaltPaySecretKey string
	SaltPayBaseURL   string
	PaymentIntentTTL time.Duration
	CallbackBaseURL  string

	CurrencyCode string

	ShippingCapitalCodes    []string
	ShippingLocationCapital int64
	ShippingLocationOther   int64
	ShippingHomeCapital     int64
	ShippingHomeOther       int64

	CartTTL          time.Duration
	IdempotencyTTL   time.Duration
	WebhookReplayTTL time.Duration

	PromoPerUserLimit int

	NotifyEmailEnabled bool
	NotifyEmailFrom    string

	RateLimitRPM int

	MigrationsDir string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:      valueOrDefault(k.String("APP_ENV"), "development"),
		Port:        valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL: k.String("DATABASE_URL"),
		RedisURL:    k.String("REDIS_URL"),

		JWKSURL:     k.String("AUTH_JWKS_URL"),
		JWTIssuer:   k.String("AUTH_ISSUER"),
		JWTAudience: k.String("AUTH_AUDIENCE"),
		AdminEmails: splitAndTrim(k.String("ADMIN_EMAILS")),

		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		SaltPayAPIKey:    k.String("SALTPAY_API_KEY"),
		SaltPaySecretKey: k.String("SALTPAY_SECRET_KEY"),
		SaltPayBaseURL:   k.String("SALTPAY_BASE_URL"),
		PaymentIntentTTL: parseDuration(k.String("PAYMENT_INTENT_TTL"), "15m"),
		CallbackBaseURL:  k.String("PAYMENT_CALLBACK_BASE_URL"),

		CurrencyCode: valueOrDefault(k.String("CURRENCY_CODE"), "ISK"),

		ShippingCapitalCodes:    splitAndTrim(valueOrDefault(k.String("SHIPPING_CAPITAL_CODES"), defaultCapitalCodes)),
		ShippingLocationCapital: parseInt64(k.String("SHIPPING_LOCATION_CAPITAL"), 790),
		ShippingLocationOther:   parseInt64(k.String("SHIPPING_LOCATION_OTHER"), 990),
		ShippingHomeCapital:     parseInt64(k.String("SHIPPING_HOME_CAPITAL"), 1350),
		ShippingHomeOther:       parseInt64(k.String("SHIPPING_HOME_OTHER"), 1450),

		CartTTL:          parseDuration(k.String("CART_TTL"), "168h"),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		WebhookReplayTTL: parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "72h"),

		PromoPerUserLimit: int(parseInt64(k.String("PROMO_PER_USER_LIMIT"), 1)),

		NotifyEmailEnabled: parseBool(valueOrDefault(k.String("NOTIFY_EMAIL_ENABLED"), "true")),
		NotifyEmailFrom:    valueOrDefault(k.String("NOTIFY_EMAIL_FROM"), "no-reply@verslun.is"),

		RateLimitRPM: int(parseInt64(k.String("RATE_LIMIT_RPM"), 120)),

		MigrationsDir: valueOrDefault(k.String("MIGRATIONS_DIR"), "migrations"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// Capital-area postal codes: Reykjavík and the surrounding municipalities.
const defaultCapitalCodes = "101,102,103,104,105,107,108,109,110,111,112,113,116,170,200,201,203,205,206,210,220,221,222,225,270,271,276"

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt64(value string, fallback int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
