package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// devSessionSecret is the development-only fallback signing key. Production
// refuses to start on it; see Validate.
const devSessionSecret = "edgegate-dev-secret-do-not-use-in-production"

// fallbackSecretEnv is consulted when SESSION_SECRET is unset, for
// deployments that share one auth secret across services.
const fallbackSecretEnv = "AUTH_SECRET"

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	ListenAddr  string
	PublicDir   string

	SessionSecret   string
	SessionTTL      time.Duration
	CookieSecure    bool
	UpstreamBaseURL string

	RefreshBuffer time.Duration
	ProxyTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	APIRateLimit APIRateLimitConfig

	OTLPEndpoint string

	secretFellBack bool
}

// APIRateLimitConfig throttles the proxied API surface per user.
type APIRateLimitConfig struct {
	Enabled bool
	Rate    float64
	Burst   int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := normalizeEnvironment(getenv("ENVIRONMENT", EnvDevelopment))
	cookieSecure := environment == EnvProduction
	if !cookieSecure {
		cookieSecure = getenvBool("SESSION_COOKIE_SECURE", false)
	}

	secret := strings.TrimSpace(getenv("SESSION_SECRET", ""))
	fellBack := false
	if secret == "" {
		secret = strings.TrimSpace(getenv(fallbackSecretEnv, ""))
	}
	if secret == "" {
		secret = devSessionSecret
		fellBack = true
	}

	return Config{
		AppName:         getenv("APP_SERVICE", "edgegate"),
		AppVersion:      getenv("APP_VERSION", "0.1.0"),
		Environment:     environment,
		ListenAddr:      getenv("LISTEN_ADDR", ":8080"),
		PublicDir:       getenv("PUBLIC_DIR", "./public"),
		SessionSecret:   secret,
		secretFellBack:  fellBack,
		SessionTTL:      time.Duration(getenvInt("SESSION_TTL_DAYS", 7)) * 24 * time.Hour,
		CookieSecure:    cookieSecure,
		UpstreamBaseURL: strings.TrimRight(strings.TrimSpace(getenv("UPSTREAM_BASE_URL", "")), "/"),
		RefreshBuffer:   time.Duration(getenvInt("TOKEN_REFRESH_BUFFER_SECONDS", 300)) * time.Second,
		ProxyTimeout:    time.Duration(getenvInt("PROXY_TIMEOUT_SECONDS", 30)) * time.Second,
		RedisAddr:       strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:   strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
		RedisDB:         getenvInt("REDIS_DB", 0),
		APIRateLimit: APIRateLimitConfig{
			Enabled: getenvBool("API_RATE_LIMIT_ENABLED", false),
			Rate:    getenvFloat("API_RATE_LIMIT_RATE", 50),
			Burst:   getenvInt("API_RATE_LIMIT_BURST", 100),
		},
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// SecretFellBack reports whether the session secret came from the
// development constant rather than explicit configuration.
func (c Config) SecretFellBack() bool {
	return c.secretFellBack
}

// Validate refuses an unusable configuration. Outside production the
// development fallback is tolerated with a loud warning.
func (c Config) Validate(log *zap.Logger) error {
	if c.IsProduction() {
		if c.secretFellBack {
			return errors.New("SESSION_SECRET is required in production")
		}
		if c.UpstreamBaseURL == "" {
			return errors.New("UPSTREAM_BASE_URL is required in production")
		}
	}
	if c.secretFellBack && log != nil {
		log.Warn("session secret not configured, using development fallback",
			zap.String("environment", c.Environment),
		)
	}
	if c.UpstreamBaseURL == "" && log != nil {
		log.Warn("upstream base url not configured, broker will reject API calls")
	}
	return nil
}

func normalizeEnvironment(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case EnvProduction, "prod":
		return EnvProduction
	case EnvStaging, "stage":
		return EnvStaging
	default:
		return EnvDevelopment
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
