// Package config provides configuration management for the verification engine.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Verifier  VerifierConfig  `mapstructure:"verifier"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// VerifierConfig bounds the engine's per-pass and per-loader allocations.
// Zero means unlimited; hitting a limit surfaces as an insufficient-memory
// error on the affected class only.
type VerifierConfig struct {
	MaxSnippets    int `mapstructure:"max_snippets"`
	MaxBufferBytes int `mapstructure:"max_buffer_bytes"`
	MaxRecords     int `mapstructure:"max_records"`
	MaxParentNodes int `mapstructure:"max_parent_nodes"`
}

// CacheConfig configures the cross-process shared snippet cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Type    string `mapstructure:"type"` // memory, database or blob

	// ExcludePatterns lists class-name wildcard patterns whose snippets are
	// never persisted (they are still verified).
	ExcludePatterns []string `mapstructure:"exclude_patterns"`

	Database DatabaseConfig `mapstructure:"database"`
	Blob     BlobConfig     `mapstructure:"blob"`
}

// DatabaseConfig holds database connection configuration for the
// database-backed cache.
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // sqlite, postgres or mysql
	Path     string `mapstructure:"path"` // sqlite file path
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// BlobConfig holds object-storage configuration for the blob-backed cache.
type BlobConfig struct {
	Type        string `mapstructure:"type"` // local or cos
	LocalPath   string `mapstructure:"local_path"`
	Bucket      string `mapstructure:"bucket"`
	Region      string `mapstructure:"region"`
	SecretID    string `mapstructure:"secret_id"`
	SecretKey   string `mapstructure:"secret_key"`
	Domain      string `mapstructure:"domain"` // e.g., "myqcloud.com"
	Scheme      string `mapstructure:"scheme"` // e.g., "https" or "http"
	Compression string `mapstructure:"compression"` // none, gzip or zstd
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
}

// TelemetryConfig holds tracing configuration.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // grpc or http/protobuf
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	Insecure    bool    `mapstructure:"insecure"`
}

// Load reads configuration from the specified file path.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/class-verify")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, use defaults
		} else if os.IsNotExist(err) {
			// File specified but doesn't exist, use defaults
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Allow environment variables to override config
	v.SetEnvPrefix("CLASS_VERIFY")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from raw content (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Verifier defaults
	v.SetDefault("verifier.max_snippets", 0)
	v.SetDefault("verifier.max_buffer_bytes", 0)
	v.SetDefault("verifier.max_records", 0)
	v.SetDefault("verifier.max_parent_nodes", 0)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.database.type", "sqlite")
	v.SetDefault("cache.database.path", "./snippets.db")
	v.SetDefault("cache.database.host", "localhost")
	v.SetDefault("cache.database.port", 5432)
	v.SetDefault("cache.database.max_conns", 10)
	v.SetDefault("cache.blob.type", "local")
	v.SetDefault("cache.blob.local_path", "./snippet-cache")
	v.SetDefault("cache.blob.compression", "zstd")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output_path", "")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.protocol", "grpc")
	v.SetDefault("telemetry.service_name", "class-verify")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.insecure", true)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Cache.Type {
	case "memory", "database", "blob":
	default:
		return fmt.Errorf("unsupported cache type: %s", c.Cache.Type)
	}

	if c.Cache.Type == "database" {
		switch c.Cache.Database.Type {
		case "sqlite", "postgres", "mysql":
		default:
			return fmt.Errorf("unsupported cache database type: %s", c.Cache.Database.Type)
		}
		if c.Cache.Database.Type != "sqlite" && c.Cache.Database.Host == "" {
			return fmt.Errorf("cache database host is required")
		}
	}

	if c.Cache.Type == "blob" {
		switch c.Cache.Blob.Type {
		case "local", "cos":
		default:
			return fmt.Errorf("unsupported cache blob type: %s", c.Cache.Blob.Type)
		}
	}

	for _, limit := range []int{c.Verifier.MaxSnippets, c.Verifier.MaxBufferBytes, c.Verifier.MaxRecords, c.Verifier.MaxParentNodes} {
		if limit < 0 {
			return fmt.Errorf("verifier limits must not be negative")
		}
	}

	return nil
}
