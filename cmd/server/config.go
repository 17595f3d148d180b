package main

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/thenexusengine/tne_mediation/internal/adapter"
	"github.com/thenexusengine/tne_mediation/internal/config"
	"github.com/thenexusengine/tne_mediation/internal/events"
	"github.com/thenexusengine/tne_mediation/internal/partnersdk"
)

// ServerConfig holds all server configuration
type ServerConfig struct {
	// Server
	Port string

	// Database
	DatabaseConfig *DatabaseConfig

	// Redis
	RedisURL string

	// Adapter switches
	TestMode         bool
	VerboseLogging   bool
	OversizedBanners bool

	// Partner SDK simulation
	SDK *partnersdk.Config

	// Event recorder
	EventBufferSize    int
	EventFlushInterval time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// ParseConfig parses configuration from flags and environment variables
func ParseConfig() *ServerConfig {
	port := flag.String("port", getEnvOrDefault("MEDIATION_PORT", "8000"), "Server port")
	testMode := flag.Bool("test-mode", getEnvBoolOrDefault("ADAPTER_TEST_MODE", false), "Enable partner test mode")
	verbose := flag.Bool("verbose", getEnvBoolOrDefault("ADAPTER_VERBOSE_LOGGING", false), "Enable verbose partner logging")
	oversized := flag.Bool("oversized-banners", getEnvBoolOrDefault("ADAPTER_OVERSIZED_BANNERS", false), "Report enlarged banner sizes")
	flag.Parse()

	sdk := partnersdk.DefaultConfig()
	sdk.SetupDelay = getEnvDurationOrDefault("SDK_SETUP_DELAY", sdk.SetupDelay)
	sdk.LoadDelay = getEnvDurationOrDefault("SDK_LOAD_DELAY", sdk.LoadDelay)
	sdk.ShowDelay = getEnvDurationOrDefault("SDK_SHOW_DELAY", sdk.ShowDelay)
	sdk.EventDelay = getEnvDurationOrDefault("SDK_EVENT_DELAY", sdk.EventDelay)
	sdk.ClickDelay = getEnvDurationOrDefault("SDK_CLICK_DELAY", sdk.ClickDelay)
	sdk.FailLoads = getEnvBoolOrDefault("SDK_FAIL_LOADS", false)
	sdk.FailShows = getEnvBoolOrDefault("SDK_FAIL_SHOWS", false)

	cfg := &ServerConfig{
		Port:               *port,
		RedisURL:           os.Getenv("REDIS_URL"),
		TestMode:           *testMode,
		VerboseLogging:     *verbose,
		OversizedBanners:   *oversized,
		SDK:                sdk,
		EventBufferSize:    getEnvIntOrDefault("EVENT_BUFFER_SIZE", config.DefaultEventBufferSize),
		EventFlushInterval: getEnvDurationOrDefault("EVENT_FLUSH_INTERVAL", config.DefaultEventFlushInterval),
	}

	// Parse database config if DB_HOST is set
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		cfg.DatabaseConfig = &DatabaseConfig{
			Host:     dbHost,
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			User:     getEnvOrDefault("DB_USER", "mediation"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "mediation"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		}
	}

	return cfg
}

// ToAdapterConfig converts ServerConfig to adapter.Config
func (c *ServerConfig) ToAdapterConfig() *adapter.Config {
	return &adapter.Config{
		TestMode:         c.TestMode,
		VerboseLogging:   c.VerboseLogging,
		OversizedBanners: c.OversizedBanners,
	}
}

// ToRecorderConfig converts ServerConfig to events.RecorderConfig
func (c *ServerConfig) ToRecorderConfig() *events.RecorderConfig {
	return &events.RecorderConfig{
		BufferSize:    c.EventBufferSize,
		FlushInterval: c.EventFlushInterval,
	}
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBoolOrDefault returns the environment variable as bool or a default
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvIntOrDefault returns the environment variable as int or a default
func getEnvIntOrDefault(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

// getEnvDurationOrDefault parses a duration such as "250ms" or falls back to a default
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value < 0 {
		return defaultValue
	}
	return value
}
