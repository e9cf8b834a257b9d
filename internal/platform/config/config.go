package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration. Read once at startup so main
// stays lean; components receive values explicitly, never via the environment.
type Config struct {
	Addr          string
	PostgresDSN   string
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSigningKey string

	// SmartMode is the single global policy flag read by the decision engine.
	// It is only ever captured as evidence on packets built after the change;
	// already-finalized packets are never reinterpreted.
	SmartMode bool

	// DriftThreshold is the device clock skew beyond which events are flagged.
	DriftThreshold time.Duration
}

// FromEnv builds a Config from environment variables with local-dev defaults.
func FromEnv() Config {
	cfg := Config{
		Addr:           getEnv("VERIS_ADDR", ":8080"),
		PostgresDSN:    os.Getenv("VERIS_POSTGRES_DSN"),
		RedisURL:       os.Getenv("VERIS_REDIS_URL"),
		KafkaTopic:     getEnv("VERIS_KAFKA_TOPIC", "veris.events"),
		JWTSigningKey:  getEnv("VERIS_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		SmartMode:      os.Getenv("VERIS_SMART_MODE") == "true",
		DriftThreshold: 2 * time.Minute,
	}

	if brokers := os.Getenv("VERIS_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if raw := os.Getenv("VERIS_DRIFT_THRESHOLD"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.DriftThreshold = d
		}
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
