package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures process-level configuration. Persistence and broker
// settings are optional: with no DATABASE_URL the service runs entirely on
// the in-memory stores, which is how the test suites exercise it.
type Server struct {
	Addr          string
	DatabaseURL   string
	Redis         RedisConfig
	Kafka         KafkaConfig
	JWTSigningKey string
	// AllocateOnCreate makes the workflow assign a subject code at identity
	// creation instead of lazily at first approval.
	AllocateOnCreate bool
}

// RedisConfig holds connection settings for the optional subject code index.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds settings for the optional audit stream fan-out.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays
// lean. A .env file is honored when present.
func FromEnv() Server {
	_ = godotenv.Load()

	addr := os.Getenv("COHORT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	kafka := KafkaConfig{Topic: os.Getenv("AUDIT_STREAM_TOPIC")}
	if kafka.Topic == "" {
		kafka.Topic = "cohort.audit"
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				kafka.Brokers = append(kafka.Brokers, b)
			}
		}
	}

	return Server{
		Addr:        addr,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka:            kafka,
		JWTSigningKey:    jwtSigningKey,
		AllocateOnCreate: os.Getenv("ALLOCATE_ON_CREATE") == "true",
	}
}
