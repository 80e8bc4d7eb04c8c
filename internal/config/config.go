package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr           = ":8080"
	defaultDatabaseURL        = "file:staybook.db?_pragma=busy_timeout(5000)"
	defaultJWTSecret          = "change-me-jwt-secret"
	defaultJWTAccessTTL       = "24h"
	defaultSubscribeTimeout   = "10s"
	defaultNotificationRetain = "720h"
	defaultCleanupSchedule    = "@daily"
	defaultGatewayRate        = "10"
	defaultGatewayBurst       = "20"
	defaultSearchPageSize     = "20"
	defaultAllowedOrigins     = "http://localhost:3000,http://localhost:5173"
	defaultMeiliIndex         = "properties"
	defaultWSAllowAnyOrigin   = "true"
	defaultRefreshPepper      = "change-me-refresh-pepper"
	defaultRefreshTTL         = "168h"
	defaultViewSyncSchedule   = "@every 5m"
	defaultSessionPurge       = "@hourly"
)

// Config is the process configuration shared by every binary.
type Config struct {
	AppEnv      string
	HTTPAddr    string
	DatabaseURL string
	RedisURL    string

	JWTSecret    string
	JWTAccessTTL time.Duration

	RefreshTokenPepper string
	RefreshTTL         time.Duration
	CookieSecure       bool

	AllowedOrigins []string

	MeiliHost   string
	MeiliAPIKey string
	MeiliIndex  string

	RealtimeSubscribeTimeout time.Duration

	NotificationRetention time.Duration
	CleanupSchedule       string
	ViewSyncSchedule      string
	SessionPurgeSchedule  string

	WSAllowAnyOrigin     bool
	GatewayRatePerSecond float64
	GatewayBurst         int
	SearchPageSize       int

	AgentUserID int64
	AgentRole   string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.MeiliHost = strings.TrimSpace(os.Getenv("MEILISEARCH_HOST"))
	cfg.MeiliAPIKey = strings.TrimSpace(os.Getenv("MEILI_MASTER_KEY"))
	cfg.MeiliIndex = strings.TrimSpace(getEnv("MEILI_INDEX", defaultMeiliIndex))
	cfg.CleanupSchedule = strings.TrimSpace(getEnv("NOTIFICATION_CLEANUP_SCHEDULE", defaultCleanupSchedule))
	cfg.RefreshTokenPepper = strings.TrimSpace(getEnv("REFRESH_TOKEN_PEPPER", defaultRefreshPepper))
	cfg.ViewSyncSchedule = strings.TrimSpace(getEnv("VIEW_SYNC_SCHEDULE", defaultViewSyncSchedule))
	cfg.SessionPurgeSchedule = strings.TrimSpace(getEnv("SESSION_PURGE_SCHEDULE", defaultSessionPurge))
	cfg.AllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins))
	cfg.AgentRole = strings.TrimSpace(getEnv("AGENT_ROLE", "host"))
	cfg.WSAllowAnyOrigin = parseBoolEnv("WS_ALLOW_ANY_ORIGIN", defaultWSAllowAnyOrigin)
	cfg.CookieSecure = parseBoolEnv("COOKIE_SECURE", strconv.FormatBool(isProdLike(cfg.AppEnv)))

	var err error
	cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", defaultJWTAccessTTL)
	if err != nil {
		return nil, err
	}

	cfg.RefreshTTL, err = parseDurationEnv("REFRESH_TTL", defaultRefreshTTL)
	if err != nil {
		return nil, err
	}

	cfg.RealtimeSubscribeTimeout, err = parseDurationEnv("REALTIME_SUBSCRIBE_TIMEOUT", defaultSubscribeTimeout)
	if err != nil {
		return nil, err
	}

	cfg.NotificationRetention, err = parseDurationEnv("NOTIFICATION_RETENTION", defaultNotificationRetain)
	if err != nil {
		return nil, err
	}

	cfg.GatewayRatePerSecond, err = parseFloatEnv("GATEWAY_RATE_PER_SECOND", defaultGatewayRate)
	if err != nil {
		return nil, err
	}

	cfg.GatewayBurst, err = parseIntEnv("GATEWAY_BURST", defaultGatewayBurst)
	if err != nil {
		return nil, err
	}

	cfg.SearchPageSize, err = parseIntEnv("SEARCH_PAGE_SIZE", defaultSearchPageSize)
	if err != nil {
		return nil, err
	}

	agentUser, err := parseIntEnv("AGENT_USER_ID", "0")
	if err != nil {
		return nil, err
	}
	cfg.AgentUserID = int64(agentUser)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	log.Printf("config loaded: env=%s addr=%s redis=%t meili=%t", cfg.AppEnv, cfg.HTTPAddr, cfg.RedisURL != "", cfg.MeiliHost != "")

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.JWTAccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be > 0")
	}
	if cfg.RefreshTTL <= 0 {
		return fmt.Errorf("REFRESH_TTL must be > 0")
	}
	if cfg.RealtimeSubscribeTimeout <= 0 {
		return fmt.Errorf("REALTIME_SUBSCRIBE_TIMEOUT must be > 0")
	}
	if cfg.NotificationRetention <= 0 {
		return fmt.Errorf("NOTIFICATION_RETENTION must be > 0")
	}
	if cfg.CleanupSchedule == "" {
		return fmt.Errorf("NOTIFICATION_CLEANUP_SCHEDULE must not be empty")
	}
	if cfg.GatewayRatePerSecond <= 0 {
		return fmt.Errorf("GATEWAY_RATE_PER_SECOND must be > 0")
	}
	if cfg.GatewayBurst <= 0 {
		return fmt.Errorf("GATEWAY_BURST must be > 0")
	}
	if cfg.SearchPageSize <= 0 || cfg.SearchPageSize > 100 {
		return fmt.Errorf("SEARCH_PAGE_SIZE must be between 1 and 100")
	}
	if cfg.AgentUserID < 0 {
		return fmt.Errorf("AGENT_USER_ID must be >= 0")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.RefreshTokenPepper, defaultRefreshPepper) {
			return fmt.Errorf("in prod/release REFRESH_TOKEN_PEPPER must be set and not default")
		}
		if cfg.RedisURL == "" {
			return fmt.Errorf("in prod/release REDIS_URL must be set")
		}
		if cfg.WSAllowAnyOrigin {
			return fmt.Errorf("in prod/release WS_ALLOW_ANY_ORIGIN must be false")
		}
	}

	return nil
}

// IsProdLike reports whether the config runs in a production environment.
func (c *Config) IsProdLike() bool {
	return isProdLike(c.AppEnv)
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseFloatEnv(name, fallback string) (float64, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return f, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func splitList(raw string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
