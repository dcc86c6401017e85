package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds HTTP server settings for the stats API.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FeedConfig holds the aircraft feed settings.
type FeedConfig struct {
	URL          string
	FetchTimeout time.Duration
}

// TrackerConfig holds the aggregation loop settings.
type TrackerConfig struct {
	DataDir          string
	PollInterval     time.Duration
	RecencyThreshold time.Duration
	SquawkCodes      []string
}

// SensorConfig holds the optional NATS sensor feed settings. An empty URL
// disables the sensor feed entirely.
type SensorConfig struct {
	NATSURL            string
	MotionSubject      string
	EnvironmentSubject string
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string
}

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig
	Feed    FeedConfig
	Tracker TrackerConfig
	Sensor  SensorConfig
	Logging LoggingConfig
}

// LoadConfig reads configuration from the environment, with a .env file
// overlay when one is present next to the process.
func LoadConfig() (*Config, error) {
	// Missing .env is fine; the environment alone is a complete source.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8090),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Feed: FeedConfig{
			URL:          getEnv("FEED_URL", "http://localhost:8080/data/aircraft.json"),
			FetchTimeout: getEnvDuration("FEED_FETCH_TIMEOUT", 5*time.Second),
		},
		Tracker: TrackerConfig{
			DataDir:          getEnv("DATA_DIR", "./data"),
			PollInterval:     getEnvDuration("POLL_INTERVAL", 5*time.Second),
			RecencyThreshold: getEnvDuration("RECENCY_THRESHOLD", 60*time.Second),
			SquawkCodes:      getEnvList("SQUAWK_CODES", []string{"7700", "7600", "7500"}),
		},
		Sensor: SensorConfig{
			NATSURL:            getEnv("NATS_URL", ""),
			MotionSubject:      getEnv("SENSOR_MOTION_SUBJECT", "sensors.motion"),
			EnvironmentSubject: getEnv("SENSOR_ENV_SUBJECT", "sensors.environment"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Validate checks the configuration for values the tracker cannot run with.
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("feed URL must not be empty")
	}
	if c.Tracker.DataDir == "" {
		return fmt.Errorf("data directory must not be empty")
	}
	if c.Tracker.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.Tracker.PollInterval)
	}
	if c.Tracker.RecencyThreshold <= 0 {
		return fmt.Errorf("recency threshold must be positive, got %v", c.Tracker.RecencyThreshold)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	for _, code := range c.Tracker.SquawkCodes {
		if len(code) != 4 {
			return fmt.Errorf("squawk code %q is not a 4-digit code", code)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
