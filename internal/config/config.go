package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/appminic/kamera/internal/models"
)

type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Map     MapConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	RateLimitRPS   int
	AllowedOrigins []string
	SessionTTL     time.Duration
}

type StoreConfig struct {
	Driver       string // "sqlite" or "mongo"
	Path         string
	MongoURI     string
	MongoDB      string
	MongoTimeout time.Duration
}

type MapConfig struct {
	// DefaultRegion is shown when location permission is denied and no
	// camera position was saved.
	DefaultRegion models.Bounds
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	region, err := parseBounds(getEnv("DEFAULT_REGION", "1.0,29.0,4.0,35.0"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_REGION: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "localhost"),
			Port:           getEnvInt("SERVER_PORT", 8080),
			RateLimitRPS:   getEnvInt("RATE_LIMIT_RPS", 20),
			AllowedOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),
			SessionTTL:     getEnvDuration("SESSION_TTL", 30*time.Minute),
		},
		Store: StoreConfig{
			Driver:       getEnv("STORE_DRIVER", "sqlite"),
			Path:         getEnv("DB_PATH", "./data/kamera.db"),
			MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDB:      getEnv("MONGO_DB", "kamera"),
			MongoTimeout: getEnvDuration("MONGO_TIMEOUT", 10*time.Second),
		},
		Map: MapConfig{
			DefaultRegion: region,
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimitRPS < 1 {
		return fmt.Errorf("rate limit must be at least 1 req/s, got %d", c.Server.RateLimitRPS)
	}
	if c.Server.SessionTTL < time.Minute {
		return fmt.Errorf("session ttl must be at least 1 minute")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite store")
		}
	case "mongo":
		if c.Store.MongoURI == "" || c.Store.MongoDB == "" {
			return fmt.Errorf("MONGO_URI and MONGO_DB are required for the mongo store")
		}
		if c.Store.MongoTimeout <= 0 {
			return fmt.Errorf("invalid mongo timeout: %s", c.Store.MongoTimeout)
		}
	default:
		return fmt.Errorf("invalid store driver: %s", c.Store.Driver)
	}

	r := c.Map.DefaultRegion
	if r.Southwest.Latitude > r.Northeast.Latitude || r.Southwest.Longitude > r.Northeast.Longitude {
		return fmt.Errorf("default region southwest corner must be below and left of northeast corner")
	}

	return nil
}

// parseBounds reads "swLat,swLng,neLat,neLng".
func parseBounds(s string) (models.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return models.Bounds{}, fmt.Errorf("expected 4 comma separated values, got %d", len(parts))
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return models.Bounds{}, fmt.Errorf("bad coordinate %q: %w", p, err)
		}
		vals[i] = f
	}
	return models.Bounds{
		Southwest: models.Coordinates{Latitude: vals[0], Longitude: vals[1]},
		Northeast: models.Coordinates{Latitude: vals[2], Longitude: vals[3]},
	}, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, v := range strings.Split(val, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
