package main

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/thenexusengine/tne_mediation/internal/config"
)

func TestParseConfig_Defaults(t *testing.T) {
	clearEnvVars(t)
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	cfg := ParseConfig()

	if cfg.Port != "8000" {
		t.Errorf("Expected default port '8000', got '%s'", cfg.Port)
	}
	if cfg.TestMode || cfg.VerboseLogging || cfg.OversizedBanners {
		t.Error("Expected adapter switches to be off by default")
	}
	if cfg.SDK == nil || cfg.SDK.SetupDelay != config.SDKSetupDelay || cfg.SDK.EventDelay != config.SDKEventDelay {
		t.Errorf("Expected default SDK timings, got %+v", cfg.SDK)
	}
	if cfg.SDK.FailLoads || cfg.SDK.FailShows {
		t.Error("Expected SDK failures off by default")
	}
	if cfg.EventBufferSize != config.DefaultEventBufferSize {
		t.Errorf("Expected default buffer size %d, got %d", config.DefaultEventBufferSize, cfg.EventBufferSize)
	}
	if cfg.EventFlushInterval != config.DefaultEventFlushInterval {
		t.Errorf("Expected default flush interval, got %v", cfg.EventFlushInterval)
	}
	if cfg.DatabaseConfig != nil {
		t.Error("Expected no database config when DB_HOST is not set")
	}
	if cfg.RedisURL != "" {
		t.Error("Expected empty Redis URL when REDIS_URL is not set")
	}
}

func TestParseConfig_EnvironmentOverrides(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(*testing.T, *ServerConfig)
	}{
		{
			name:    "Custom port",
			envVars: map[string]string{"MEDIATION_PORT": "9090"},
			validate: func(t *testing.T, cfg *ServerConfig) {
				if cfg.Port != "9090" {
					t.Errorf("Expected port '9090', got '%s'", cfg.Port)
				}
			},
		},
		{
			name: "Adapter switches",
			envVars: map[string]string{
				"ADAPTER_TEST_MODE":         "true",
				"ADAPTER_VERBOSE_LOGGING":   "1",
				"ADAPTER_OVERSIZED_BANNERS": "yes",
			},
			validate: func(t *testing.T, cfg *ServerConfig) {
				if !cfg.TestMode || !cfg.VerboseLogging || !cfg.OversizedBanners {
					t.Errorf("Expected all switches on, got %+v", cfg)
				}
				ac := cfg.ToAdapterConfig()
				if !ac.TestMode || !ac.VerboseLogging || !ac.OversizedBanners {
					t.Errorf("Expected adapter config to carry switches, got %+v", ac)
				}
			},
		},
		{
			name: "SDK timings",
			envVars: map[string]string{
				"SDK_SETUP_DELAY": "10ms",
				"SDK_LOAD_DELAY":  "20ms",
				"SDK_SHOW_DELAY":  "bogus",
				"SDK_FAIL_SHOWS":  "true",
			},
			validate: func(t *testing.T, cfg *ServerConfig) {
				if cfg.SDK.SetupDelay != 10*time.Millisecond || cfg.SDK.LoadDelay != 20*time.Millisecond {
					t.Errorf("Expected parsed delays, got %+v", cfg.SDK)
				}
				if cfg.SDK.ShowDelay != config.SDKShowDelay {
					t.Errorf("Expected invalid delay to fall back, got %v", cfg.SDK.ShowDelay)
				}
				if !cfg.SDK.FailShows {
					t.Error("Expected FailShows")
				}
			},
		},
		{
			name: "Event recorder",
			envVars: map[string]string{
				"EVENT_BUFFER_SIZE":    "25",
				"EVENT_FLUSH_INTERVAL": "1s",
			},
			validate: func(t *testing.T, cfg *ServerConfig) {
				rc := cfg.ToRecorderConfig()
				if rc.BufferSize != 25 || rc.FlushInterval != time.Second {
					t.Errorf("Unexpected recorder config %+v", rc)
				}
			},
		},
		{
			name:    "Redis URL",
			envVars: map[string]string{"REDIS_URL": "redis://localhost:6379"},
			validate: func(t *testing.T, cfg *ServerConfig) {
				if cfg.RedisURL != "redis://localhost:6379" {
					t.Errorf("Expected Redis URL, got '%s'", cfg.RedisURL)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			tt.validate(t, ParseConfig())
		})
	}
}

func TestParseConfig_DatabaseConfig(t *testing.T) {
	clearEnvVars(t)
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	t.Setenv("DB_HOST", "db.example.com")
	t.Setenv("DB_USER", "admin")
	t.Setenv("DB_SSL_MODE", "require")

	cfg := ParseConfig()
	if cfg.DatabaseConfig == nil {
		t.Fatal("Expected database config when DB_HOST is set")
	}

	db := cfg.DatabaseConfig
	if db.Host != "db.example.com" || db.User != "admin" || db.SSLMode != "require" {
		t.Errorf("Unexpected database config %+v", db)
	}
	if db.Port != "5432" || db.Name != "mediation" {
		t.Errorf("Expected default port and name, got %+v", db)
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		setValue     bool
		defaultValue string
		expected     string
	}{
		{"With value", "TEST_VAR", "test_value", true, "default", "test_value"},
		{"Without value", "MISSING_VAR", "", false, "default", "default"},
		{"Empty string", "EMPTY_VAR", "", true, "default", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setValue {
				t.Setenv(tt.key, tt.value)
			} else {
				os.Unsetenv(tt.key)
			}

			if result := getEnvOrDefault(tt.key, tt.defaultValue); result != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func TestGetEnvBoolOrDefault(t *testing.T) {
	tests := []struct {
		value        string
		defaultValue bool
		expected     bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"false", true, false},
		{"nope", true, false},
		{"", true, true},
	}

	for _, tt := range tests {
		t.Run("value="+tt.value, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.value)
			if result := getEnvBoolOrDefault("TEST_BOOL", tt.defaultValue); result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestGetEnvDurationOrDefault(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"250ms", 250 * time.Millisecond},
		{"0s", 0},
		{"-1s", time.Minute},
		{"soon", time.Minute},
		{"", time.Minute},
	}

	for _, tt := range tests {
		t.Run("value="+tt.value, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			if result := getEnvDurationOrDefault("TEST_DURATION", time.Minute); result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func clearEnvVars(t *testing.T) {
	t.Helper()

	envVars := []string{
		"MEDIATION_PORT",
		"ADAPTER_TEST_MODE",
		"ADAPTER_VERBOSE_LOGGING",
		"ADAPTER_OVERSIZED_BANNERS",
		"SDK_SETUP_DELAY",
		"SDK_LOAD_DELAY",
		"SDK_SHOW_DELAY",
		"SDK_EVENT_DELAY",
		"SDK_CLICK_DELAY",
		"SDK_FAIL_LOADS",
		"SDK_FAIL_SHOWS",
		"EVENT_BUFFER_SIZE",
		"EVENT_FLUSH_INTERVAL",
		"DB_HOST",
		"DB_PORT",
		"DB_USER",
		"DB_PASSWORD",
		"DB_NAME",
		"DB_SSL_MODE",
		"REDIS_URL",
	}

	for _, key := range envVars {
		os.Unsetenv(key)
	}
}
