package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr              string
	LogLevel          string
	ShutdownTimeout   time.Duration
	SessionConfigPath string
	RecorderBuffer    int
	SnapshotTTL       time.Duration
	// TelemetryRateLimit caps samples per device (HTTP) or participant
	// (WebSocket) within TelemetryRateWindow. Zero disables throttling.
	TelemetryRateLimit  int
	TelemetryRateWindow time.Duration
	DatabaseURL         string
	Redis               RedisConfig
	Kafka               KafkaConfig
}

// RedisConfig configures the shared snapshot store. An empty URL keeps
// snapshots in memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the telemetry consumer. No brokers disables it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:                envString("PULSEGATE_ADDR", ":8080"),
		LogLevel:            envString("PULSEGATE_LOG_LEVEL", "info"),
		ShutdownTimeout:     envDuration("PULSEGATE_SHUTDOWN_TIMEOUT", 10*time.Second),
		SessionConfigPath:   os.Getenv("PULSEGATE_SESSION_CONFIG"),
		RecorderBuffer:      envInt("PULSEGATE_RECORDER_BUFFER", 256),
		SnapshotTTL:         envDuration("PULSEGATE_SNAPSHOT_TTL", 24*time.Hour),
		TelemetryRateLimit:  envInt("PULSEGATE_TELEMETRY_RATE_LIMIT", 10),
		TelemetryRateWindow: envDuration("PULSEGATE_TELEMETRY_RATE_WINDOW", time.Second),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   envString("KAFKA_TELEMETRY_TOPIC", "pulsegate.telemetry"),
			GroupID: envString("KAFKA_GROUP_ID", "pulsegate"),
		},
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

// envDuration accepts Go durations ("750ms", "2m").
func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
