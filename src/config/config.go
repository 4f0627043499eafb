package config

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"

	"battery-observer/src/helpers"
	"battery-observer/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// Defaults returns the configuration used when neither the YAML file nor the
// environment sets a value.
func Defaults() *models.MConfig {
	return &models.MConfig{
		Name:     "battery-observer",
		Host:     "0.0.0.0",
		Port:     5000,
		LogLevel: "INFO",
		GrpcHost: "0.0.0.0",
		EventSource: models.MEventSourceConfig{
			URL:                     "ws://homeassistant.local:8123/api/websocket",
			RetryDelaySeconds:       5,
			HandshakeTimeoutSeconds: 10,
			PongWaitSeconds:         60,
		},
		Monitor: models.MMonitorConfig{
			BatteryThreshold:    20.0,
			UnresponsiveMinutes: 30,
			SeriesCapacity:      50000,
		},
		Notify: models.MNotifyConfig{
			Service:        "notify.notify",
			Title:          "Battery Alert",
			TimeoutSeconds: 10,
			MQTT: models.MMQTTConfig{
				ClientID: "battery-observer",
				Topic:    "battery-observer/alerts",
			},
		},
		Storage: models.MStorageConfig{
			DBType:    "none",
			QueueSize: 1024,
		},
		Cache: models.MCacheConfig{
			TTLHours: 24,
		},
	}
}

// -----------------------------------------------------------------------------

// NewConfig builds the configuration from defaults, the optional YAML file and
// the process environment, then validates it.
func NewConfig(configPath string) (*Config, error) {
	modelConfig := Defaults()

	// 1. Overlay the YAML file when one is given
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, configError(fmt.Sprintf("failed to read config file '%s'", configPath), err)
		}
		if err := yaml.Unmarshal(data, modelConfig); err != nil {
			return nil, configError("failed to parse config from YAML", err)
		}
	}

	config := &Config{MConfig: modelConfig}

	// 2. Environment wins over the file
	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, configError("config validation failed", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// ApplyEnv overrides fields from the add-on environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("HA_URL"); ok && v != "" {
		c.EventSource.URL = v
	}
	if v, ok := lookup("HA_TOKEN"); ok {
		c.EventSource.Token = v
	}
	if v, ok := lookup("ENTITIES"); ok && strings.TrimSpace(v) != "" {
		var entities []string
		if err := json.Unmarshal([]byte(v), &entities); err != nil {
			return configError("ENTITIES must be a JSON list of entity ids", err)
		}
		c.Monitor.Entities = entities
	}
	if v, ok := lookup("BATTERY_THRESHOLD"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return configError("BATTERY_THRESHOLD is not a number", err)
		}
		c.Monitor.BatteryThreshold = f
	}
	if v, ok := lookup("UNRESPONSIVE_MINUTES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return configError("UNRESPONSIVE_MINUTES is not an integer", err)
		}
		c.Monitor.UnresponsiveMinutes = n
	}
	if v, ok := lookup("NOTIFY_SERVICE"); ok && v != "" {
		c.Notify.Service = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	return nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Server
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d", c.Port)
	}
	if c.GrpcPort < 0 || c.GrpcPort > 65535 {
		return fmt.Errorf("invalid grpc port number: %d", c.GrpcPort)
	}

	// Event source
	u, err := url.Parse(c.EventSource.URL)
	if err != nil {
		return fmt.Errorf("invalid event source url %q: %w", c.EventSource.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("event source url must use ws:// or wss://, got %q", c.EventSource.URL)
	}
	if c.EventSource.RetryDelaySeconds <= 0 {
		return fmt.Errorf("retry delay must be greater than 0")
	}
	if c.EventSource.HandshakeTimeoutSeconds <= 0 {
		return fmt.Errorf("handshake timeout must be greater than 0")
	}
	if c.EventSource.PongWaitSeconds <= 0 {
		return fmt.Errorf("pong wait must be greater than 0")
	}

	// Monitor
	if len(c.Monitor.Entities) == 0 {
		return fmt.Errorf("at least one entity must be tracked")
	}
	for i, id := range c.Monitor.Entities {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("entity %d cannot be empty", i)
		}
	}
	if math.IsNaN(c.Monitor.BatteryThreshold) || math.IsInf(c.Monitor.BatteryThreshold, 0) {
		return fmt.Errorf("battery threshold must be a finite number")
	}
	if c.Monitor.UnresponsiveMinutes <= 0 {
		return fmt.Errorf("unresponsive minutes must be greater than 0")
	}
	if c.Monitor.SeriesCapacity < 0 {
		return fmt.Errorf("series capacity cannot be negative")
	}

	// Notify
	if domain, name, ok := strings.Cut(c.Notify.Service, "."); !ok || domain == "" || name == "" {
		return fmt.Errorf("notify service must look like <domain>.<service>, got %q", c.Notify.Service)
	}
	if c.Notify.TimeoutSeconds <= 0 {
		return fmt.Errorf("notify timeout must be greater than 0")
	}
	if c.Notify.MQTT.Enabled && (c.Notify.MQTT.Broker == "" || c.Notify.MQTT.Topic == "") {
		return fmt.Errorf("mqtt notifications need a broker and a topic")
	}

	// Storage
	switch c.Storage.DBType {
	case "", "none":
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres", "timescale":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for %s", c.Storage.DBType)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}
	if c.Storage.QueueSize <= 0 {
		return fmt.Errorf("storage queue size must be greater than 0")
	}

	// Cache
	if c.Cache.Enabled && c.Cache.RedisAddr == "" {
		return fmt.Errorf("redis address cannot be empty when the cache is enabled")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func configError(msg string, cause error) error {
	return &helpers.ConfigurationError{ObserverError: helpers.ObserverError{Message: msg, Cause: cause}}
}
