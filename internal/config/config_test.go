package config

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "REGISTRY_BACKEND", "SPEED_LIMIT", "LOW_FUEL_THRESHOLD",
		"LOW_BATTERY_THRESHOLD", "HIGH_ENGINE_TEMP_THRESHOLD", "ANALYTICS_WINDOW",
		"AUTH_ENABLED", "MQTT_TOPIC", "MQTT_BROKER", "MQTT_QOS", "SEED_VEHICLES"} {
		t.Setenv(key, "")
	}
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.RegistryBackend)
	assert.Equal(t, 80.0, cfg.SpeedLimit)
	assert.Equal(t, 15.0, cfg.LowFuelThreshold)
	assert.Equal(t, 15.0, cfg.LowBatteryThreshold)
	assert.Equal(t, 110.0, cfg.HighEngineTempThreshold)
	assert.Equal(t, 24*time.Hour, cfg.AnalyticsWindow)
	assert.True(t, cfg.AuthEnabled)
	assert.Equal(t, "fleet/telemetry/+", cfg.MQTTTopic)
	assert.Empty(t, cfg.MQTTBroker)
	assert.Empty(t, cfg.SeedVehicles)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REGISTRY_BACKEND", "Redis")
	t.Setenv("SPEED_LIMIT", "100.5")
	t.Setenv("ANALYTICS_WINDOW", "6h")
	t.Setenv("AUTH_ENABLED", "false")
	t.Setenv("RATE_LIMIT_REQUESTS", "50")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("SEED_VEHICLES", "truck-1, van-2,,ev-3 ")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, BackendRedis, cfg.RegistryBackend)
	assert.Equal(t, 100.5, cfg.SpeedLimit)
	assert.Equal(t, 6*time.Hour, cfg.AnalyticsWindow)
	assert.False(t, cfg.AuthEnabled)
	assert.Equal(t, 50, cfg.RateLimitRequests)
	assert.Equal(t, 0, cfg.RedisDB, "unparseable values fall back to the default")
	assert.Equal(t, []string{"truck-1", "van-2", "ev-3"}, cfg.SeedVehicles)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.RegistryBackend = "cassandra" }, true},
		{"zero speed limit", func(c *Config) { c.SpeedLimit = 0 }, true},
		{"negative fuel threshold", func(c *Config) { c.LowFuelThreshold = -1 }, true},
		{"zero window", func(c *Config) { c.AnalyticsWindow = 0 }, true},
		{"bad qos", func(c *Config) { c.MQTTQoS = 3 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				RegistryBackend:         BackendMemory,
				SpeedLimit:              80,
				LowFuelThreshold:        15,
				LowBatteryThreshold:     15,
				HighEngineTempThreshold: 110,
				AnalyticsWindow:         24 * time.Hour,
				MQTTQoS:                 1,
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger(&Config{LogLevel: "debug", LogFormat: "text"})
	assert.Equal(t, log.DebugLevel, logger.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, logger.Formatter)

	logger = NewLogger(&Config{LogLevel: "nonsense", LogFormat: "json"})
	assert.Equal(t, log.InfoLevel, logger.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, logger.Formatter)
}
