package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for both services
type Config struct {
	// Service name
	ServiceName string

	// HTTP server port
	HTTPPort int

	// gRPC health server port
	GRPCPort int

	// Log level: debug, info, warn, error
	LogLevel string

	// Kafka brokers (comma-separated)
	KafkaBrokers string

	// Kafka topic for database change records
	ChangeTopic string

	// Consumer group id for the change consumer
	ConsumerGroup string

	// Consumer group heartbeat interval
	HeartbeatInterval time.Duration

	// Consumer group session timeout; kept an order of magnitude above
	// the heartbeat interval by default
	SessionTimeout time.Duration

	// SQLite database path (backend-api only)
	DBPath string

	// JWT signing secret (backend-api only)
	JWTSecret string

	// JWT token lifetime (backend-api only)
	JWTExpiry time.Duration
}

// Default topic and consumer group; overridable via environment.
const (
	DefaultChangeTopic   = "database-changes"
	DefaultConsumerGroup = "database-changes-group"
)

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig(serviceName string) *Config {
	defaultHTTPPort := 3000
	if serviceName == "kafka-consumer" {
		defaultHTTPPort = 8080
	}

	cfg := &Config{
		ServiceName:       serviceName,
		HTTPPort:          getEnvAsInt("PORT_HTTP", defaultHTTPPort),
		GRPCPort:          getEnvAsInt("PORT_GRPC", 50051),
		LogLevel:          getEnvAsString("LOG_LEVEL", "info"),
		KafkaBrokers:      getEnvAsString("KAFKA_BROKERS", "127.0.0.1:9092"),
		ChangeTopic:       getEnvAsString("KAFKA_CHANGE_TOPIC", DefaultChangeTopic),
		ConsumerGroup:     getEnvAsString("KAFKA_CONSUMER_GROUP", DefaultConsumerGroup),
		HeartbeatInterval: getEnvAsDuration("KAFKA_HEARTBEAT_INTERVAL", 3*time.Second),
		SessionTimeout:    getEnvAsDuration("KAFKA_SESSION_TIMEOUT", 30*time.Second),
		DBPath:            getEnvAsString("DB_PATH", "data/users.db"),
		JWTSecret:         getEnvAsString("JWT_SECRET", "dev-secret-change-me"),
		JWTExpiry:         getEnvAsDuration("JWT_EXPIRY", 24*time.Hour),
	}

	return cfg
}

// HTTPAddr returns the HTTP server address
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GRPCAddr returns the gRPC server address
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
