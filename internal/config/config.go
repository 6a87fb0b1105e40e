// Package config loads forensicvault settings from an optional YAML file and
// FORENSICVAULT_* environment variables. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfigFile names the YAML file to load before applying the environment.
const EnvConfigFile = "FORENSICVAULT_CONFIG"

// Config is the complete runtime configuration.
type Config struct {
	Storage          Storage          `yaml:"storage"`
	Blob             Blob             `yaml:"blob"`
	Identifiers      Identifiers      `yaml:"identifiers"`
	DeviceAttributes DeviceAttributes `yaml:"device_attributes"`
	Log              Log              `yaml:"log"`
	Observability    Observability    `yaml:"observability"`
}

// Storage selects the persistence backend.
type Storage struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	BadgerPath  string `yaml:"badger_path"`
}

// Blob selects the content store.
type Blob struct {
	Driver string `yaml:"driver"`
	FSRoot string `yaml:"fs_root"`
	S3     S3     `yaml:"s3"`
}

// S3 configures an S3 or MinIO bucket. Empty credentials fall back to the
// AWS default chain.
type S3 struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Identifiers tunes number generation.
type Identifiers struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// DeviceAttributes tunes the attribute resolver.
type DeviceAttributes struct {
	Strict bool `yaml:"strict"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Observability selects the service metrics recorder and tracer.
type Observability struct {
	// Metrics is none, expvar or prometheus.
	Metrics string `yaml:"metrics"`
	// MetricsFile receives the recorded metrics when the runtime closes:
	// JSON for expvar, the text exposition format for prometheus. Empty
	// skips the dump.
	MetricsFile string `yaml:"metrics_file"`
	// Tracing is none, json or otel.
	Tracing string `yaml:"tracing"`
	// TraceFile receives finished spans. Empty writes to stderr.
	TraceFile string `yaml:"trace_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: Storage{
			Driver:     "sqlite",
			SQLitePath: "./forensicvault.db",
			BadgerPath: "./forensicvault.badger",
		},
		Blob: Blob{
			Driver: "fs",
			FSRoot: "./evidence-content",
			S3:     S3{Region: "us-east-1"},
		},
		Identifiers: Identifiers{MaxAttempts: 3},
		Log:         Log{Level: "info", Format: "text"},
		Observability: Observability{
			Metrics: "none",
			Tracing: "none",
		},
	}
}

// Load builds the configuration from defaults, the file named by
// FORENSICVAULT_CONFIG (if any) and the process environment.
func Load() (Config, error) {
	return LoadWith(os.LookupEnv)
}

// LoadWith is Load with an injectable environment lookup.
func LoadWith(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path, ok := lookup(EnvConfigFile); ok && strings.TrimSpace(path) != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("FORENSICVAULT_STORAGE_DRIVER", &cfg.Storage.Driver)
	str("FORENSICVAULT_SQLITE_PATH", &cfg.Storage.SQLitePath)
	str("FORENSICVAULT_POSTGRES_DSN", &cfg.Storage.PostgresDSN)
	str("FORENSICVAULT_BADGER_PATH", &cfg.Storage.BadgerPath)

	str("FORENSICVAULT_BLOB_DRIVER", &cfg.Blob.Driver)
	str("FORENSICVAULT_BLOB_FS_ROOT", &cfg.Blob.FSRoot)
	str("FORENSICVAULT_BLOB_S3_BUCKET", &cfg.Blob.S3.Bucket)
	str("FORENSICVAULT_BLOB_S3_REGION", &cfg.Blob.S3.Region)
	str("FORENSICVAULT_BLOB_S3_ENDPOINT", &cfg.Blob.S3.Endpoint)
	str("FORENSICVAULT_BLOB_S3_ACCESS_KEY_ID", &cfg.Blob.S3.AccessKeyID)
	str("FORENSICVAULT_BLOB_S3_SECRET_ACCESS_KEY", &cfg.Blob.S3.SecretAccessKey)
	if err := boolean("FORENSICVAULT_BLOB_S3_PATH_STYLE", &cfg.Blob.S3.PathStyle); err != nil {
		return err
	}

	if v, ok := lookup("FORENSICVAULT_ID_MAX_ATTEMPTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FORENSICVAULT_ID_MAX_ATTEMPTS: %w", err)
		}
		cfg.Identifiers.MaxAttempts = n
	}
	if err := boolean("FORENSICVAULT_STRICT_DEVICE_ATTRIBUTES", &cfg.DeviceAttributes.Strict); err != nil {
		return err
	}

	str("FORENSICVAULT_LOG_LEVEL", &cfg.Log.Level)
	str("FORENSICVAULT_LOG_FORMAT", &cfg.Log.Format)

	str("FORENSICVAULT_METRICS", &cfg.Observability.Metrics)
	str("FORENSICVAULT_METRICS_FILE", &cfg.Observability.MetricsFile)
	str("FORENSICVAULT_TRACING", &cfg.Observability.Tracing)
	str("FORENSICVAULT_TRACE_FILE", &cfg.Observability.TraceFile)
	return nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory", "sqlite", "badger":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn required for postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case "fs", "memory":
	case "s3":
		if c.Blob.S3.Bucket == "" {
			errs = append(errs, errors.New("blob.s3.bucket required for s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}
	if c.Identifiers.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("identifiers.max_attempts must be positive, got %d", c.Identifiers.MaxAttempts))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	switch c.Observability.Metrics {
	case "", "none", "expvar", "prometheus":
	default:
		errs = append(errs, fmt.Errorf("unknown metrics recorder %q", c.Observability.Metrics))
	}
	switch c.Observability.Tracing {
	case "", "none", "json", "otel":
	default:
		errs = append(errs, fmt.Errorf("unknown tracer %q", c.Observability.Tracing))
	}
	return errors.Join(errs...)
}
