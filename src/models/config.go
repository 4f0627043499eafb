package models

// MConfig Structure
type MConfig struct {
	Name        string             `yaml:"name"`
	Host        string             `yaml:"host"`
	Port        int                `yaml:"port"`
	LogLevel    string             `yaml:"log_level"`
	LogFile     string             `yaml:"log_file"`
	GrpcHost    string             `yaml:"grpc_host"`
	GrpcPort    int                `yaml:"grpc_port"`
	EventSource MEventSourceConfig `yaml:"event_source"`
	Monitor     MMonitorConfig     `yaml:"monitor"`
	Notify      MNotifyConfig      `yaml:"notify"`
	Storage     MStorageConfig     `yaml:"storage"`
	Cache       MCacheConfig       `yaml:"cache"`
}

type MEventSourceConfig struct {
	URL                     string `yaml:"url"`
	Token                   string `yaml:"token"`
	RetryDelaySeconds       int    `yaml:"retry_delay_seconds"`
	HandshakeTimeoutSeconds int    `yaml:"handshake_timeout_seconds"`
	PongWaitSeconds         int    `yaml:"pong_wait_seconds"`
	StrictAuth              bool   `yaml:"strict_auth"`
}

type MMonitorConfig struct {
	Entities            []string `yaml:"entities"`
	BatteryThreshold    float64  `yaml:"battery_threshold"`
	UnresponsiveMinutes int      `yaml:"unresponsive_minutes"`
	SeriesCapacity      int      `yaml:"series_capacity"` // 0 = unbounded
}

type MNotifyConfig struct {
	Service        string      `yaml:"service"`
	Title          string      `yaml:"title"`
	TimeoutSeconds int         `yaml:"timeout_seconds"`
	MQTT           MMQTTConfig `yaml:"mqtt"`
}

type MMQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"` // none, sqlite, postgres, timescale
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	QueueSize          int    `yaml:"queue_size"`
}

type MCacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	RedisAddr string `yaml:"redis_addr"`
	TTLHours  int    `yaml:"ttl_hours"`
}
