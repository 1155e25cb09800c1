package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config aquadash server configuration, loaded from environment variables.
type Config struct {
	HTTP struct {
		Addr string
	}
	Database DatabaseConfig
	Redis    struct {
		Addr     string
		Password string
		DB       int
	}
	MQTT   MQTTConfig
	Bridge BridgeConfig
	Log    struct {
		Level  string
		Format string
	}
}

// DatabaseConfig PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN builds the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// MQTTConfig broker connection and topic layout.
type MQTTConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	TelemetryTopic string
	ControlTopic   string
}

// BridgeConfig ingestion bridge tuning.
type BridgeConfig struct {
	// DebounceWindow drops telemetry messages arriving within the window of
	// the previous one. Zero disables the guard; every message is a sample.
	DebounceWindow time.Duration
	// LiveChannel is the Redis pub/sub channel carrying live events from the
	// bridge to the websocket hub.
	LiveChannel string
	// StallThreshold / StallCheckInterval drive the feed watchdog.
	StallThreshold     time.Duration
	StallCheckInterval time.Duration
}

// Load reads configuration from the environment with local-dev defaults.
func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "aquadash")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "aquadash-server")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))
	cfg.MQTT.TelemetryTopic = getEnv("MQTT_TELEMETRY_TOPIC", "aquarium/data")
	cfg.MQTT.ControlTopic = getEnv("MQTT_CONTROL_TOPIC", "aquarium/control")

	cfg.Bridge.DebounceWindow = parseDuration(getEnv("BRIDGE_DEBOUNCE", "0s"), 0)
	cfg.Bridge.LiveChannel = getEnv("BRIDGE_LIVE_CHANNEL", "aquadash:live")
	cfg.Bridge.StallThreshold = parseDuration(getEnv("BRIDGE_STALL_THRESHOLD", "30s"), 30*time.Second)
	cfg.Bridge.StallCheckInterval = parseDuration(getEnv("BRIDGE_STALL_CHECK_INTERVAL", "1s"), time.Second)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
