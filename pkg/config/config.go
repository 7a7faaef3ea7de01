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

// Cache backends accepted by CACHE_BACKEND
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Application settings
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Upstream UpstreamConfig
	API      APIConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Pivot    PivotConfig
	Sink     SinkConfig
}

// Server settings
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// Upstream ads API
type UpstreamConfig struct {
	URL                string
	Member             string
	DefaultQuery       string
	InsecureTLS        bool
	RequestTimeout     time.Duration
	RateLimitPerSecond int
	RateLimitBurst     int

	// ad lists loaded at startup; "all" stands for no platform filter
	WarmPlatforms []string
}

// Inbound API throttling
type APIConfig struct {
	RateLimitPerSecond int
	RateLimitBurst     int
}

type CacheConfig struct {
	Backend string
	TTL     time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Output conventions of the pivot engine
type PivotConfig struct {
	CTRPercent bool
	TopN       int
}

// Export sink
type SinkConfig struct {
	URL    string
	Secret string
}

// Logging settings
type LoggingConfig struct {
	Level string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", "10s"),
		},
		Upstream: UpstreamConfig{
			URL:                strings.TrimRight(getEnv("ADS_API_URL", ""), "/"),
			Member:             getEnv("ADS_API_MEMBER", ""),
			DefaultQuery:       getEnv("ADS_DEFAULT_QUERY", ""),
			InsecureTLS:        getBoolEnv("ADS_INSECURE_TLS", false),
			RequestTimeout:     getDurationEnv("REQUEST_TIMEOUT", "30s"),
			RateLimitPerSecond: getIntEnv("RATE_LIMIT_PER_SECOND", 10),
			RateLimitBurst:     getIntEnv("RATE_LIMIT_BURST", 5),
			WarmPlatforms:      warmPlatforms(getEnv("ADS_WARM_PLATFORMS", "")),
		},
		API: APIConfig{
			RateLimitPerSecond: getIntEnv("API_RATE_LIMIT_PER_SECOND", 50),
			RateLimitBurst:     getIntEnv("API_RATE_LIMIT_BURST", 100),
		},
		Cache: CacheConfig{
			Backend: strings.ToLower(getEnv("CACHE_BACKEND", CacheMemory)),
			TTL:     getDurationEnv("CACHE_TTL", "5m"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Pivot: PivotConfig{
			CTRPercent: getBoolEnv("PIVOT_CTR_PERCENT", false),
			TopN:       getIntEnv("PIVOT_TOP_N", 5),
		},
		Sink: SinkConfig{
			URL:    getEnv("SINK_URL", ""),
			Secret: getEnv("SINK_SECRET", ""),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheMemory, CacheRedis, CacheNone:
	default:
		return fmt.Errorf("invalid CACHE_BACKEND %q: want memory, redis or none", c.Cache.Backend)
	}
	if c.Upstream.RateLimitPerSecond <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_SECOND must be positive, got %d", c.Upstream.RateLimitPerSecond)
	}
	if c.Sink.URL != "" && c.Sink.Secret == "" {
		return errors.New("SINK_SECRET is required when SINK_URL is set")
	}
	return nil
}

func warmPlatforms(value string) []string {
	var platforms []string
	for _, p := range strings.Split(value, ",") {
		p = strings.TrimSpace(p)
		switch {
		case p == "":
			continue
		case strings.EqualFold(p, "all"):
			platforms = append(platforms, "")
		default:
			platforms = append(platforms, p)
		}
	}
	return platforms
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
