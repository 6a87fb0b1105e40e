package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadWith(envMap(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Blob.Driver != "fs" {
		t.Fatalf("unexpected drivers: %+v", cfg)
	}
	if cfg.Identifiers.MaxAttempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", cfg.Identifiers.MaxAttempts)
	}
	if cfg.DeviceAttributes.Strict {
		t.Fatalf("resolver should default to permissive")
	}
	if cfg.Observability.Metrics != "none" || cfg.Observability.Tracing != "none" {
		t.Fatalf("observability should default to none: %+v", cfg.Observability)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forensicvault.yaml")
	body := `
storage:
  driver: badger
  badger_path: /var/lib/fv
blob:
  driver: s3
  s3:
    bucket: evidence
    path_style: true
identifiers:
  max_attempts: 5
log:
  level: debug
  format: json
observability:
  metrics: prometheus
  metrics_file: /var/lib/fv/metrics.prom
  tracing: json
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadWith(envMap(map[string]string{
		EnvConfigFile:                            path,
		"FORENSICVAULT_BLOB_S3_ENDPOINT":         "http://minio:9000",
		"FORENSICVAULT_ID_MAX_ATTEMPTS":          "7",
		"FORENSICVAULT_STRICT_DEVICE_ATTRIBUTES": "true",
		"FORENSICVAULT_TRACING":                  "otel",
		"FORENSICVAULT_TRACE_FILE":               "/tmp/spans.jsonl",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != "badger" || cfg.Storage.BadgerPath != "/var/lib/fv" {
		t.Fatalf("file storage settings not applied: %+v", cfg.Storage)
	}
	if cfg.Blob.S3.Bucket != "evidence" || !cfg.Blob.S3.PathStyle || cfg.Blob.S3.Endpoint != "http://minio:9000" {
		t.Fatalf("unexpected s3 settings: %+v", cfg.Blob.S3)
	}
	if cfg.Blob.S3.Region != "us-east-1" {
		t.Fatalf("default region lost: %q", cfg.Blob.S3.Region)
	}
	if cfg.Identifiers.MaxAttempts != 7 {
		t.Fatalf("env should override file, got %d", cfg.Identifiers.MaxAttempts)
	}
	if !cfg.DeviceAttributes.Strict {
		t.Fatalf("strict flag not applied")
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log settings: %+v", cfg.Log)
	}
	want := Observability{Metrics: "prometheus", MetricsFile: "/var/lib/fv/metrics.prom", Tracing: "otel", TraceFile: "/tmp/spans.jsonl"}
	if cfg.Observability != want {
		t.Fatalf("unexpected observability settings: %+v", cfg.Observability)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing file", map[string]string{EnvConfigFile: filepath.Join(t.TempDir(), "absent.yaml")}, "load config file"},
		{"bad attempts", map[string]string{"FORENSICVAULT_ID_MAX_ATTEMPTS": "many"}, "FORENSICVAULT_ID_MAX_ATTEMPTS"},
		{"bad bool", map[string]string{"FORENSICVAULT_STRICT_DEVICE_ATTRIBUTES": "maybe"}, "FORENSICVAULT_STRICT_DEVICE_ATTRIBUTES"},
		{"unknown storage", map[string]string{"FORENSICVAULT_STORAGE_DRIVER": "mongo"}, "unknown storage driver"},
		{"postgres without dsn", map[string]string{"FORENSICVAULT_STORAGE_DRIVER": "postgres"}, "postgres_dsn"},
		{"s3 without bucket", map[string]string{"FORENSICVAULT_BLOB_DRIVER": "s3"}, "bucket"},
		{"zero attempts", map[string]string{"FORENSICVAULT_ID_MAX_ATTEMPTS": "0"}, "max_attempts"},
		{"bad format", map[string]string{"FORENSICVAULT_LOG_FORMAT": "xml"}, "log format"},
		{"bad metrics", map[string]string{"FORENSICVAULT_METRICS": "statsd"}, "unknown metrics recorder"},
		{"bad tracing", map[string]string{"FORENSICVAULT_TRACING": "zipkin"}, "unknown tracer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadWith(envMap(tc.env))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = "postgres"
	cfg.Blob.Driver = "s3"
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "postgres_dsn") || !strings.Contains(msg, "bucket") {
		t.Fatalf("expected both problems reported, got %q", msg)
	}
}
