package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port            string
	Environment     string
	DatabaseURL     string
	CarSpots        int
	BikeSpots       int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ExitLockTTLSecs int
	KafkaBrokers    []string
	KafkaTopic      string
	OTelServiceName string
	OTelEndpoint    string
}

func Load() *Config {
	return &Config{
		Port:            envOr("APP_PORT", "8080"),
		Environment:     envOr("APP_ENV", "development"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		CarSpots:        envOrInt("CAR_SPOTS", 3),
		BikeSpots:       envOrInt("BIKE_SPOTS", 2),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         envOrInt("REDIS_DB", 0),
		ExitLockTTLSecs: envOrInt("EXIT_LOCK_TTL_SECONDS", 30),
		KafkaBrokers:    envOrList("KAFKA_BROKERS"),
		KafkaTopic:      envOr("KAFKA_TOPIC", "parking.sessions"),
		OTelServiceName: envOr("OTEL_SERVICE_NAME", "parking-system"),
		OTelEndpoint:    envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// UsesPostgres is false when no DATABASE_URL is set; the in-memory store is used then.
func (c *Config) UsesPostgres() bool {
	return c.DatabaseURL != ""
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
	}
	return fallback
}

func envOrList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
