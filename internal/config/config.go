// Package config handles configuration loading for fnopart.
// It supports YAML config files, a .env file, and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "FNOPART"

// Signal variants.
const (
	VariantOIOnly        = "oi_only"
	VariantValueWeighted = "value_weighted"
)

// Archive sinks.
const (
	SinkLocal = "local"
	SinkS3    = "s3"
)

// Config represents the complete application configuration.
type Config struct {
	Source  SourceConfig  `mapstructure:"source"  yaml:"source"`
	Cache   CacheConfig   `mapstructure:"cache"   yaml:"cache"`
	Signal  SignalConfig  `mapstructure:"signal"  yaml:"signal"`
	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// SourceConfig holds the NSE archive endpoints and request behaviour.
type SourceConfig struct {
	ArchiveBaseURL    string        `mapstructure:"archive_base_url"    yaml:"archive_base_url"`
	HomeURL           string        `mapstructure:"home_url"            yaml:"home_url"` // visited first for session cookies
	UserAgent         string        `mapstructure:"user_agent"          yaml:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"             yaml:"timeout"`
	HandshakeTimeout  time.Duration `mapstructure:"handshake_timeout"   yaml:"handshake_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// CacheConfig holds snapshot cache settings.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"     yaml:"ttl"`
}

// SignalConfig holds engine settings.
type SignalConfig struct {
	Variant string `mapstructure:"variant" yaml:"variant"` // "value_weighted" or "oi_only"
}

// ArchiveConfig holds the optional raw and normalized table archive.
type ArchiveConfig struct {
	Enabled     bool     `mapstructure:"enabled"     yaml:"enabled"`
	Sink        string   `mapstructure:"sink"        yaml:"sink"` // "local" or "s3"
	Dir         string   `mapstructure:"dir"         yaml:"dir"`
	Prefix      string   `mapstructure:"prefix"      yaml:"prefix"`
	Compression string   `mapstructure:"compression" yaml:"compression"` // parquet codec
	S3          S3Config `mapstructure:"s3"          yaml:"s3"`
}

// S3Config holds S3 sink settings. Empty credentials fall back to the
// default AWS credential chain.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"            yaml:"bucket"`
	Region          string `mapstructure:"region"            yaml:"region"`
	Endpoint        string `mapstructure:"endpoint"          yaml:"endpoint"`
	UsePathStyle    bool   `mapstructure:"use_path_style"    yaml:"use_path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"     yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"        yaml:"level"`  // "debug", "info", "warn", "error"
	Format     string `mapstructure:"format"       yaml:"format"` // "text" or "json"
	File       string `mapstructure:"file"         yaml:"file"`   // empty logs to stderr
	MaxSizeMB  int    `mapstructure:"max_size_mb"  yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"  yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.fnopart/config.yaml (home directory)
//  3. /etc/fnopart/config.yaml (system)
//
// A .env file in the working directory is loaded first when present.
// Environment variables override config file values.
// Format: FNOPART_<SECTION>_<KEY>, e.g., FNOPART_SIGNAL_VARIANT
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".fnopart"))
	v.AddConfigPath("/etc/fnopart")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return unmarshal(v)
}

// Default returns the configuration with only defaults applied.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading .env: %w", err)
	}
	return nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Source defaults
	v.SetDefault("source.archive_base_url", "https://nsearchives.nseindia.com/content")
	v.SetDefault("source.home_url", "https://www.nseindia.com")
	v.SetDefault("source.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	v.SetDefault("source.timeout", 30*time.Second)
	v.SetDefault("source.handshake_timeout", 10*time.Second)
	v.SetDefault("source.requests_per_second", 3.0)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", 6*time.Hour)

	// Signal defaults
	v.SetDefault("signal.variant", VariantValueWeighted)

	// Archive defaults (off)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.sink", SinkLocal)
	v.SetDefault("archive.dir", "data")
	v.SetDefault("archive.prefix", "nse")
	v.SetDefault("archive.compression", "snappy")
	v.SetDefault("archive.s3.bucket", "")
	v.SetDefault("archive.s3.region", "ap-south-1")
	v.SetDefault("archive.s3.endpoint", "")
	v.SetDefault("archive.s3.use_path_style", false)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 14)
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
// The standard AWS variables are honoured when the prefixed ones are unset.
func overrideFromEnv(cfg *Config) {
	if key := firstEnv(envAccessKeyID, "AWS_ACCESS_KEY_ID"); key != "" {
		cfg.Archive.S3.AccessKeyID = key
	}
	if key := firstEnv(envSecretAccessKey, "AWS_SECRET_ACCESS_KEY"); key != "" {
		cfg.Archive.S3.SecretAccessKey = key
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks values the rest of the program relies on.
func (c *Config) Validate() error {
	if !slices.Contains([]string{VariantOIOnly, VariantValueWeighted}, c.Signal.Variant) {
		return fmt.Errorf("signal.variant: unknown variant %q", c.Signal.Variant)
	}
	if c.Source.RequestsPerSecond <= 0 {
		return fmt.Errorf("source.requests_per_second must be positive, got %v", c.Source.RequestsPerSecond)
	}
	if c.Source.HandshakeTimeout <= 0 {
		return fmt.Errorf("source.handshake_timeout must be positive, got %v", c.Source.HandshakeTimeout)
	}
	if c.Archive.Enabled {
		switch c.Archive.Sink {
		case SinkLocal:
			if c.Archive.Dir == "" {
				return errors.New("archive.dir is required for the local sink")
			}
		case SinkS3:
			if c.Archive.S3.Bucket == "" {
				return errors.New("archive.s3.bucket is required for the s3 sink")
			}
		default:
			return fmt.Errorf("archive.sink: unknown sink %q", c.Archive.Sink)
		}
	}
	return nil
}

// SaveToFile writes cfg as YAML, creating parent directories. Existing
// files are not overwritten unless force is set.
func SaveToFile(cfg *Config, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
