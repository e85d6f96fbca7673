package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server              ServerConfig
	Auth                AuthConfig
	RecordsService      ServiceConfig
	NotificationService ServiceConfig
	Realtime            RealtimeConfig
	Policy              PolicyConfig
	Kafka               KafkaConfig
	Logging             LoggingConfig
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// AuthConfig holds authentication specific configuration
type AuthConfig struct {
	JWTSecret string
}

// ServiceConfig holds configuration for external collaborator services
type ServiceConfig struct {
	URL        string
	Timeout    time.Duration
	ServiceKey string
}

// RealtimeConfig holds push channel specific configuration
type RealtimeConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	MaxDialElapsed   time.Duration
	WriteTimeout     time.Duration
}

// PolicyConfig holds scheduling policy constants. The defaults reproduce the
// observed production behavior; they are exposed here as tunables, not
// hard-coded truths.
type PolicyConfig struct {
	UpcomingDaysWindow int
	UpcomingKmWindow   int
	DueWeight          int
	UpcomingWeight     int
}

// KafkaConfig holds Kafka specific configuration
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topics  map[string]string
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads the configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Environment variables override
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Policy.UpcomingDaysWindow <= 0 || cfg.Policy.UpcomingKmWindow <= 0 {
		return nil, fmt.Errorf("policy windows must be positive")
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8090")
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "10s")
	v.SetDefault("server.idleTimeout", "120s")

	// Records Service defaults
	v.SetDefault("recordsService.url", "http://records-service:8081")
	v.SetDefault("recordsService.timeout", "10s")
	v.SetDefault("recordsService.serviceKey", "maintenance-sync-key")

	// Notification Service defaults
	v.SetDefault("notificationService.url", "http://notification-service:8082")
	v.SetDefault("notificationService.timeout", "10s")
	v.SetDefault("notificationService.serviceKey", "maintenance-sync-key")

	// Realtime channel defaults
	v.SetDefault("realtime.url", "ws://notification-service:8082/ws")
	v.SetDefault("realtime.handshakeTimeout", "10s")
	v.SetDefault("realtime.initialBackoff", "500ms")
	v.SetDefault("realtime.maxBackoff", "8s")
	v.SetDefault("realtime.maxDialElapsed", "30s")
	v.SetDefault("realtime.writeTimeout", "5s")

	// Scheduling policy defaults, matching observed production values
	v.SetDefault("policy.upcomingDaysWindow", 30)
	v.SetDefault("policy.upcomingKmWindow", 1000)
	v.SetDefault("policy.dueWeight", 25)
	v.SetDefault("policy.upcomingWeight", 10)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topics.maintenanceEvents", "maintenance-events")
	v.SetDefault("kafka.topics.notificationEvents", "notification-events")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
