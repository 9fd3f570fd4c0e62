package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App            AppConfig
	HTTP           ServerConfig
	MySQL          MySQLConfig
	Redis          RedisConfig
	Log            LogConfig
	Provider       ProviderConfig
	FeeQuote       FeeQuoteConfig
	SystemOfRecord SystemOfRecordConfig
	DDC            DDCConfig
	Defaults       GatewayDefaultsConfig
}

type AppConfig struct {
	ServiceName string
	APIKey      string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL      string
	CacheTTL time.Duration
}

type LogConfig struct {
	Level string
}

type ProviderConfig struct {
	BaseURL        string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

type FeeQuoteConfig struct {
	URL         string
	HTTPTimeout time.Duration
}

type SystemOfRecordConfig struct {
	BaseURL     string
	APIKey      string
	HTTPTimeout time.Duration
}

type DDCConfig struct {
	Deadline     time.Duration
	ScanInterval time.Duration
}

// GatewayDefaultsConfig is the hard fallback used when a merchant has no
// stored gateway settings and the caller supplied no override.
type GatewayDefaultsConfig struct {
	CustomerID         string
	CountryCode        string
	ProductCode        string
	ProductDescription string
	CommissionPct      float64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	providerBaseURL := os.Getenv("PROVIDER_BASE_URL")
	if providerBaseURL == "" {
		return nil, errors.New("PROVIDER_BASE_URL environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "threeds-gateway"),
			APIKey:      getEnv("APP_API_KEY", ""),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			CacheTTL: getSecondsEnv("REDIS_SETTINGS_CACHE_TTL_SECONDS", 300*time.Second),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Provider: ProviderConfig{
			BaseURL:        providerBaseURL,
			ConnectTimeout: getSecondsEnv("PROVIDER_CONNECT_TIMEOUT_SECONDS", 10*time.Second),
			RequestTimeout: getSecondsEnv("PROVIDER_REQUEST_TIMEOUT_SECONDS", 30*time.Second),
		},
		FeeQuote: FeeQuoteConfig{
			URL:         getEnv("FEE_QUOTE_URL", ""),
			HTTPTimeout: getSecondsEnv("FEE_QUOTE_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		SystemOfRecord: SystemOfRecordConfig{
			BaseURL:     getEnv("SOR_BASE_URL", ""),
			APIKey:      getEnv("SOR_API_KEY", ""),
			HTTPTimeout: getSecondsEnv("SOR_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		DDC: DDCConfig{
			Deadline:     getSecondsEnv("DDC_DEADLINE_SECONDS", 6*time.Second),
			ScanInterval: getMillisEnv("DDC_SCAN_INTERVAL_MS", 500*time.Millisecond),
		},
		Defaults: GatewayDefaultsConfig{
			CustomerID:         getEnv("GATEWAY_DEFAULT_CUSTOMER_ID", "default"),
			CountryCode:        getEnv("GATEWAY_DEFAULT_COUNTRY_CODE", "US"),
			ProductCode:        getEnv("GATEWAY_DEFAULT_PRODUCT_CODE", "CARD"),
			ProductDescription: getEnv("GATEWAY_DEFAULT_PRODUCT_DESCRIPTION", "Card payment"),
			CommissionPct:      getFloatEnv("GATEWAY_DEFAULT_COMMISSION_PCT", 0),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getMillisEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
