package config

import (
	"fmt"
	"net"
	"net/mail"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	// devSecretKey signs cookies when SECRET_KEY is unset outside production.
	devSecretKey = "moneywise-dev-secret-change-me"

	minSecretKeyLength = 32
)

type Config struct {
	// HTTP Server
	Port   string
	AppEnv string

	// Database
	SQLiteDBPath string

	// Sessions
	SecretKey           string
	SessionLifetime     time.Duration
	SessionCookieSecure bool

	// Logging and limits
	LogLevel           string
	RateLimitPerMinute int
	// TrustedProxies are CIDRs, beyond the private ranges, allowed to set
	// X-Forwarded-For.
	TrustedProxies []string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	RecurringInterval time.Duration
	RecurringSchedule string

	// Mail
	MailServer        string
	MailPort          int
	MailUsername      string
	MailPassword      string
	MailDefaultSender string
}

func Load() *Config {
	appEnv := strings.ToLower(getEnv("APP_ENV", EnvDevelopment))
	cfg := &Config{
		Port:   getEnv("PORT", "5000"),
		AppEnv: appEnv,

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/moneywise.db"),

		SecretKey:           getEnv("SECRET_KEY", ""),
		SessionLifetime:     getEnvDuration("SESSION_LIFETIME", 7*24*time.Hour),
		SessionCookieSecure: getEnvBool("SESSION_COOKIE_SECURE", appEnv == EnvProduction),

		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "moneywise"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "budget_alerts"),

		RecurringInterval: getEnvDuration("RECURRING_INTERVAL", time.Hour),
		RecurringSchedule: getEnv("RECURRING_SCHEDULE", ""),

		MailServer:        getEnv("MAIL_SERVER", ""),
		MailPort:          getEnvInt("MAIL_PORT", 587),
		MailUsername:      getEnv("MAIL_USERNAME", ""),
		MailPassword:      getEnv("MAIL_PASSWORD", ""),
		MailDefaultSender: getEnv("MAIL_DEFAULT_SENDER", "MoneyWise <noreply@moneywise.local>"),
	}

	if cfg.SecretKey == "" && cfg.AppEnv != EnvProduction {
		cfg.SecretKey = devSecretKey
	}

	return cfg
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// AMQPEnabled reports whether budget alerts should be published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// MailEnabled reports whether an SMTP server is configured.
func (c *Config) MailEnabled() bool {
	return c.MailServer != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.AppEnv {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		errors = append(errors, fmt.Sprintf("invalid APP_ENV '%s': must be one of [%s %s %s]", c.AppEnv, EnvDevelopment, EnvProduction, EnvTest))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.SecretKey == "" {
		errors = append(errors, "SECRET_KEY is required in production")
	} else if c.IsProduction() && (c.SecretKey == devSecretKey || len(c.SecretKey) < minSecretKeyLength) {
		errors = append(errors, fmt.Sprintf("SECRET_KEY must be at least %d characters and not the development default in production", minSecretKeyLength))
	}

	if c.SessionLifetime < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session lifetime %v: must be at least 1 minute", c.SessionLifetime))
	} else if c.SessionLifetime > 90*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid session lifetime %v: must be at most 90 days", c.SessionLifetime))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid TRUSTED_PROXIES entry '%s': must be a CIDR", cidr))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RecurringInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at least 1 minute", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}

	if c.RecurringSchedule != "" {
		if _, err := cron.ParseStandard(c.RecurringSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid RECURRING_SCHEDULE '%s': %v", c.RecurringSchedule, err))
		}
	}

	if c.MailServer != "" {
		if c.MailPort < 1 || c.MailPort > 65535 {
			errors = append(errors, fmt.Sprintf("invalid mail port %d: must be between 1 and 65535", c.MailPort))
		}
		if _, err := mail.ParseAddress(c.MailDefaultSender); err != nil {
			errors = append(errors, fmt.Sprintf("invalid MAIL_DEFAULT_SENDER '%s': %v", c.MailDefaultSender, err))
		}
	}

	// Return combined errors
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

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
