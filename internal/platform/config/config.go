package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration so main stays lean. The engine
// itself is a library; everything here belongs to the wiring around it.
type Config struct {
	Addr            string
	DatabaseURL     string
	RedisURL        string
	KafkaBrokers    []string
	AuditTopic      string
	ModeratorJWTKey string

	ChallengeTTL      time.Duration
	ChallengeAttempts int
	DefaultBanTTL     time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:              getenv("FAIRDRAW_ADDR", ":8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		AuditTopic:        getenv("AUDIT_TOPIC", "fairdraw.audit"),
		ModeratorJWTKey:   getenv("MODERATOR_JWT_KEY", "dev-secret-key-change-in-production"),
		ChallengeTTL:      getDuration("CHALLENGE_TTL", 5*time.Minute),
		ChallengeAttempts: getInt("CHALLENGE_ATTEMPTS", 3),
		DefaultBanTTL:     getDuration("DEFAULT_BAN_TTL", 30*24*time.Hour),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
