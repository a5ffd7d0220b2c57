package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName       = "TipsMega888"
	defaultAppEnv        = "development"
	defaultPort          = "8080"
	defaultLogLevel      = "info"
	defaultShutdownDelay = 10 * time.Second
	defaultOTPTTL        = 3 * time.Minute
	defaultTokenMaxAge   = 720 * time.Hour
	defaultDailyLimit    = 5
	defaultIdemTTL       = 24 * time.Hour
	defaultTimezone      = "Asia/Kuala_Lumpur"
	defaultGroupLink     = "https://t.me/tipsmega888chat"

	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	otpTTLEnvVar           = "OTP_TTL"
	tokenMaxAgeEnvVar      = "TOKEN_MAX_AGE"
	dailyLimitEnvVar       = "DAILY_LIMIT"
	idemTTLEnvVar          = "IDEMPOTENCY_TTL"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	AuthSecret     string
	BotToken       string
	UserGroupID    string
	AdminGroupID   string
	GroupLink      string
	Timezone       string
	DailyLimit     int
	OTPTTL         time.Duration
	TokenMaxAge    time.Duration
	IdempotencyTTL time.Duration
	ShutdownPeriod time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		AuthSecret:     os.Getenv("AUTH_SECRET"),
		BotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		UserGroupID:    os.Getenv("TG_GROUP_USER_JOIN"),
		AdminGroupID:   getEnv("ADMIN_GROUP_ID", os.Getenv("TG_GROUP_ADMIN_REPORT")),
		GroupLink:      getEnv("GROUP_LINK", defaultGroupLink),
		Timezone:       getEnv("TIMEZONE", defaultTimezone),
		DailyLimit:     defaultDailyLimit,
		OTPTTL:         defaultOTPTTL,
		TokenMaxAge:    defaultTokenMaxAge,
		IdempotencyTTL: defaultIdemTTL,
		ShutdownPeriod: defaultShutdownDelay,
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv(otpTTLEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", otpTTLEnvVar, err)
		}
		cfg.OTPTTL = d
	}

	// TOKEN_MAX_AGE=0 disables the age check and restores unlimited token lifetime.
	if v := os.Getenv(tokenMaxAgeEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", tokenMaxAgeEnvVar, err)
		}
		cfg.TokenMaxAge = d
	}

	if v := os.Getenv(dailyLimitEnvVar); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid %s: %q", dailyLimitEnvVar, v)
		}
		cfg.DailyLimit = n
	}

	if v := os.Getenv(idemTTLEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}

	if cfg.AuthSecret == "" {
		return Config{}, fmt.Errorf("AUTH_SECRET must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
