package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const configName = "carsim.cfg.json"

// ServerConfig holds the listener and connection admission settings.
type ServerConfig struct {
	Host           string   `json:"host" mapstructure:"host"`
	Port           int      `json:"port" mapstructure:"port"`
	AllowedOrigins []string `json:"allowedOrigins" mapstructure:"allowedOrigins"`
	MaxConnections int64    `json:"maxConnections" mapstructure:"maxConnections"`
	UpdateRateHz   int      `json:"updateRateHz" mapstructure:"updateRateHz"`
	WriteTimeout   time.Duration
}

// WorldConfig holds world generation and chunk cache settings.
type WorldConfig struct {
	Seed          int64 `json:"seed" mapstructure:"seed"`
	KeepRadius    int   `json:"keepRadius" mapstructure:"keepRadius"`
	EvictInterval time.Duration
}

// MemoryConfig holds in-memory/JSON recorder backend settings.
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds the sqlite recorder backend settings.
type SQLiteConfig struct {
	Path          string `json:"path" mapstructure:"path"`
	FlushInterval time.Duration
}

// StorageConfig selects and configures the session recorder backend.
type StorageConfig struct {
	Type   string `json:"type" mapstructure:"type"`
	Memory MemoryConfig
	SQLite SQLiteConfig
}

// OTelConfig holds the OpenTelemetry metrics export settings.
type OTelConfig struct {
	Enabled        bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName    string `json:"serviceName" mapstructure:"serviceName"`
	Endpoint       string `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool   `json:"insecure" mapstructure:"insecure"`
	ExportInterval time.Duration
}

// InfluxConfig holds the metrics sink settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// Load reads configuration from a JSON file and sets default values.
// configDir is the directory containing the config file; a missing file
// leaves the defaults in place.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")
	viper.SetDefault("logToFile", false)

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowedOrigins", []string{"*"})
	viper.SetDefault("server.maxConnections", 64)
	viper.SetDefault("server.updateRateHz", 30)
	viper.SetDefault("server.writeTimeout", "10s")

	viper.SetDefault("world.seed", 0)
	viper.SetDefault("world.keepRadius", 4)
	viper.SetDefault("world.evictInterval", "30s")

	viper.SetDefault("storage.type", "none")
	viper.SetDefault("storage.memory.outputDir", "./sessions")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./sessions/carsim.db")
	viper.SetDefault("storage.sqlite.flushInterval", "5s")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "carsim")
	viper.SetDefault("influx.bucket", "carsim-metrics")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "carsim-server")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", false)
	viper.SetDefault("otel.exportInterval", "15s")

	viper.SetDefault("monitor.interval", "5s")

	viper.SetConfigName(configName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")
	viper.SetEnvPrefix("CARSIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetServerConfig returns the server section.
func GetServerConfig() ServerConfig {
	var cfg ServerConfig
	_ = viper.UnmarshalKey("server", &cfg)
	cfg.WriteTimeout = viper.GetDuration("server.writeTimeout")
	return cfg
}

// GetWorldConfig returns the world section.
func GetWorldConfig() WorldConfig {
	var cfg WorldConfig
	_ = viper.UnmarshalKey("world", &cfg)
	cfg.Seed = viper.GetInt64("world.seed")
	cfg.EvictInterval = viper.GetDuration("world.evictInterval")
	return cfg
}

// GetStorageConfig returns the recorder storage section.
func GetStorageConfig() StorageConfig {
	var cfg StorageConfig
	cfg.Type = viper.GetString("storage.type")
	_ = viper.UnmarshalKey("storage.memory", &cfg.Memory)
	cfg.SQLite.Path = viper.GetString("storage.sqlite.path")
	cfg.SQLite.FlushInterval = viper.GetDuration("storage.sqlite.flushInterval")
	return cfg
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	var cfg OTelConfig
	_ = viper.UnmarshalKey("otel", &cfg)
	cfg.ExportInterval = viper.GetDuration("otel.exportInterval")
	return cfg
}

// GetInfluxConfig returns the influx section.
func GetInfluxConfig() InfluxConfig {
	var cfg InfluxConfig
	_ = viper.UnmarshalKey("influx", &cfg)
	return cfg
}
