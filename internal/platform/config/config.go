// Package config builds runtime configuration from the environment so main
// stays lean. Issuer secrets are deliberately absent: signing and
// verification secrets are injected per call at the API boundary, never read
// from ambient process state.
package config

import (
	"os"
	"strings"
	"time"
)

// Config captures all server-level configuration.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration

	// JWTSigningKey validates API bearer tokens. This authenticates callers
	// of the HTTP surface; it has no role in envelope signatures.
	JWTSigningKey string

	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// PostgresConfig configures the durable record store. An empty DSN selects
// the in-memory store.
type PostgresConfig struct {
	DSN string
}

// RedisConfig configures the optional read-through record cache. An empty
// URL disables caching.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the best-effort notification ledger. No brokers
// disables the side channel.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:            envOr("SIGIL_ADDR", ":8080"),
		ShutdownTimeout: 10 * time.Second,
		JWTSigningKey:   envOr("SIGIL_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Postgres: PostgresConfig{
			DSN: os.Getenv("SIGIL_POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("SIGIL_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic: envOr("SIGIL_KAFKA_TOPIC", "sigil.provenance.events"),
		},
	}

	if brokers := os.Getenv("SIGIL_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
