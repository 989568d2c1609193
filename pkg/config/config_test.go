package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Server.ObservabilityPort != 9090 {
		t.Errorf("observability port = %d, want 9090", cfg.Server.ObservabilityPort)
	}
	if cfg.Idempotency.Backend != "memory" {
		t.Errorf("backend = %q, want memory", cfg.Idempotency.Backend)
	}
	if cfg.Idempotency.ReservationTTL.Std() != 30*time.Second {
		t.Errorf("reservation ttl = %v, want 30s", cfg.Idempotency.ReservationTTL.Std())
	}
	if cfg.Reliability.CallTimeout.Std() != 3*time.Second || cfg.Reliability.MaxRetries != 3 {
		t.Errorf("reliability defaults = %+v", cfg.Reliability)
	}
	if cfg.Reliability.BackoffBase.Std() != 100*time.Millisecond || cfg.Reliability.BackoffCap.Std() != 800*time.Millisecond {
		t.Errorf("backoff defaults = %+v", cfg.Reliability)
	}
	if cfg.Voice.MinAudioBytes != 100 {
		t.Errorf("min audio bytes = %d, want 100", cfg.Voice.MinAudioBytes)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("log defaults = %+v", cfg.Log)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  body_limit: 1048576
log:
  level: debug
  format: json
idempotency:
  backend: redis
  reservation_ttl: 45s
redis:
  addr: "localhost:6379"
reliability:
  call_timeout: 5s
  max_retries: 2
  backoff_base: 50ms
  backoff_cap: 400ms
voice:
  min_audio_bytes: 256
pricing:
  vendora: 0.004
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Idempotency.Backend != "redis" || cfg.Idempotency.ReservationTTL.Std() != 45*time.Second {
		t.Errorf("idempotency = %+v", cfg.Idempotency)
	}
	if cfg.Reliability.CallTimeout.Std() != 5*time.Second || cfg.Reliability.MaxRetries != 2 {
		t.Errorf("reliability = %+v", cfg.Reliability)
	}
	if cfg.Reliability.BackoffBase.Std() != 50*time.Millisecond {
		t.Errorf("backoff base = %v", cfg.Reliability.BackoffBase.Std())
	}
	if cfg.Voice.MinAudioBytes != 256 {
		t.Errorf("min audio bytes = %d", cfg.Voice.MinAudioBytes)
	}
	if cfg.Pricing["vendora"] != 0.004 {
		t.Errorf("pricing = %v", cfg.Pricing)
	}
	// Unset fields still default.
	if cfg.Server.ObservabilityPort != 9090 {
		t.Errorf("observability port = %d, want default", cfg.Server.ObservabilityPort)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.Idempotency.Backend = "etcd" }, true},
		{"redis without addr", func(c *Config) { c.Idempotency.Backend = "redis" }, true},
		{"redis with addr", func(c *Config) {
			c.Idempotency.Backend = "redis"
			c.Redis.Addr = "localhost:6379"
		}, false},
		{"negative price", func(c *Config) { c.Pricing = map[string]float64{"vendora": -1} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.applyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TURNPIKE_API_KEY_PEPPER", "env-pepper")
	t.Setenv("TURNPIKE_REDIS_ADDR", "redis:6379")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.APIKeyPepper != "env-pepper" {
		t.Errorf("pepper = %q, want env override", cfg.APIKeyPepper)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Errorf("redis addr = %q, want env override", cfg.Redis.Addr)
	}
}

func TestDuration_YAML(t *testing.T) {
	var d Duration
	if err := yaml.Unmarshal([]byte(`"1h30m"`), &d); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if d.Std() != 90*time.Minute {
		t.Errorf("duration = %v, want 90m", d.Std())
	}

	if err := yaml.Unmarshal([]byte(`"not-a-duration"`), &d); err == nil {
		t.Error("expected error for malformed duration")
	}

	out, err := yaml.Marshal(Duration(2 * time.Second))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(out) != "2s\n" {
		t.Errorf("marshal = %q, want 2s", out)
	}
}
