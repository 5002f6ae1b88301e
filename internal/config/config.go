package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full configuration surface of the gateway process.
type Config struct {
	Server ServerConfig
	Ledger LedgerConfig
	Redis  RedisConfig
	MySQL  MySQLConfig
	Market MarketConfig
}

type ServerConfig struct {
	Port string
}

// LedgerConfig points at the external ledger gateway.
type LedgerConfig struct {
	HTTPURL string
	WSURL   string
	Timeout time.Duration
}

type RedisConfig struct {
	Addr string
}

type MySQLConfig struct {
	DSN string
}

// MarketConfig holds engine tuning and the initially tracked items.
type MarketConfig struct {
	TrackedItems []string
	QueueSize    int
}

// Load reads environment variables, optionally seeded from a .env file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// missing .env is fine when config comes from the environment
		_ = godotenv.Load()
	}

	timeout, err := time.ParseDuration(getenvWithDefault("LEDGER_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Ledger: LedgerConfig{
			HTTPURL: os.Getenv("LEDGER_HTTP_URL"),
			WSURL:   os.Getenv("LEDGER_WS_URL"),
			Timeout: timeout,
		},
		Redis: RedisConfig{
			Addr: getenvWithDefault("REDIS_ADDR", "localhost:6379"),
		},
		MySQL: MySQLConfig{
			DSN: getenvWithDefault("MYSQL_DSN", "root:root@tcp(localhost:3306)/marketgate?parseTime=true"),
		},
		Market: MarketConfig{
			TrackedItems: splitList(os.Getenv("TRACKED_ITEMS")),
			QueueSize:    1000,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures required fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}
	if c.Ledger.HTTPURL == "" {
		return errors.New("LEDGER_HTTP_URL must be provided")
	}
	if c.Ledger.WSURL == "" {
		return errors.New("LEDGER_WS_URL must be provided")
	}
	if c.Ledger.Timeout <= 0 {
		return errors.New("LEDGER_TIMEOUT must be positive")
	}
	return nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
