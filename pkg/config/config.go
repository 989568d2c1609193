// Package config loads the gateway configuration from YAML with
// environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "3s" or
// "800ms" rather than nanosecond integers.
type Duration time.Duration

// UnmarshalYAML parses a duration string or a bare integer (nanoseconds).
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var ns int64
	if err := value.Decode(&ns); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(ns)
	return nil
}

// MarshalYAML renders the duration in its string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config represents the application configuration
type Config struct {
	Server      ServerConfig       `yaml:"server"`
	Log         LogConfig          `yaml:"log"`
	Redis       RedisConfig        `yaml:"redis"`
	Idempotency IdempotencyConfig  `yaml:"idempotency"`
	Reliability ReliabilityConfig  `yaml:"reliability"`
	RateLimit   RateLimitConfig    `yaml:"rate_limit"`
	Voice       VoiceConfig        `yaml:"voice"`
	Retention   RetentionConfig    `yaml:"retention"`
	Providers   ProvidersConfig    `yaml:"providers"`
	Pricing     map[string]float64 `yaml:"pricing"`

	// APIKeyPepper is appended to raw API keys before hashing. Secret;
	// usually set via TURNPIKE_API_KEY_PEPPER.
	APIKeyPepper string `yaml:"api_key_pepper"`
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	// Addr is the gateway listen address (default ":8080").
	Addr string `yaml:"addr"`

	// ObservabilityPort serves /health and /metrics (default 9090).
	ObservabilityPort int `yaml:"observability_port"`

	// BodyLimit caps request bodies in bytes, mainly voice uploads
	// (default 10MiB).
	BodyLimit int `yaml:"body_limit"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// RedisConfig holds the Redis connection used by the idempotency store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// IdempotencyConfig tunes the idempotency store.
type IdempotencyConfig struct {
	// Backend selects "memory" or "redis" (default "memory").
	Backend string `yaml:"backend"`

	// ReservationTTL is the crash-recovery grace period for uncompleted
	// reservations (default 30s).
	ReservationTTL Duration `yaml:"reservation_ttl"`

	// ResultTTL bounds replay retention in the redis backend
	// (0 = keep forever).
	ResultTTL Duration `yaml:"result_ttl"`
}

// ReliabilityConfig tunes the dispatch retry behavior.
type ReliabilityConfig struct {
	CallTimeout Duration `yaml:"call_timeout"`
	MaxRetries  int      `yaml:"max_retries"`
	BackoffBase Duration `yaml:"backoff_base"`
	BackoffCap  Duration `yaml:"backoff_cap"`
}

// RateLimitConfig tunes the global + per-tenant admission limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// VoiceConfig tunes the voice pipeline.
type VoiceConfig struct {
	// MinAudioBytes is the threshold below which a recording is treated
	// as containing no speech (default 100).
	MinAudioBytes int `yaml:"min_audio_bytes"`
}

// RetentionConfig tunes the background sweeper.
type RetentionConfig struct {
	// SweepSchedule is a cron expression (default "*/1 * * * *").
	SweepSchedule string `yaml:"sweep_schedule"`
}

// ProvidersConfig holds per-backend credentials. Simulated vendors need
// none; a backend with an empty key is not registered.
type ProvidersConfig struct {
	OpenAIKey     string `yaml:"openai_key"`
	OpenAIModel   string `yaml:"openai_model"`
	GeminiKey     string `yaml:"gemini_key"`
	GeminiModel   string `yaml:"gemini_model"`
	BedrockModel  string `yaml:"bedrock_model"`
	BedrockRegion string `yaml:"bedrock_region"`

	// BedrockEnabled opts into the AWS Bedrock backend; credentials come
	// from the standard AWS environment/config chain.
	BedrockEnabled bool `yaml:"bedrock_enabled"`
}

// LoadConfig loads configuration from a YAML file. An empty path returns
// the defaults with environment overrides applied.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ObservabilityPort == 0 {
		c.Server.ObservabilityPort = 9090
	}
	if c.Server.BodyLimit == 0 {
		c.Server.BodyLimit = 10 * 1024 * 1024
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Idempotency.Backend == "" {
		c.Idempotency.Backend = "memory"
	}
	if c.Idempotency.ReservationTTL == 0 {
		c.Idempotency.ReservationTTL = Duration(30 * time.Second)
	}
	if c.Reliability.CallTimeout == 0 {
		c.Reliability.CallTimeout = Duration(3 * time.Second)
	}
	if c.Reliability.MaxRetries == 0 {
		c.Reliability.MaxRetries = 3
	}
	if c.Reliability.BackoffBase == 0 {
		c.Reliability.BackoffBase = Duration(100 * time.Millisecond)
	}
	if c.Reliability.BackoffCap == 0 {
		c.Reliability.BackoffCap = Duration(800 * time.Millisecond)
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 50
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 100
	}
	if c.Voice.MinAudioBytes == 0 {
		c.Voice.MinAudioBytes = 100
	}
	if c.Retention.SweepSchedule == "" {
		c.Retention.SweepSchedule = "*/1 * * * *"
	}
	if c.APIKeyPepper == "" {
		c.APIKeyPepper = "change-me"
	}
}

// applyEnv loads secrets from the environment when not set in the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("TURNPIKE_API_KEY_PEPPER"); v != "" {
		c.APIKeyPepper = v
	}
	if v := os.Getenv("TURNPIKE_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("TURNPIKE_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if c.Providers.OpenAIKey == "" {
		c.Providers.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Providers.GeminiKey == "" {
		c.Providers.GeminiKey = os.Getenv("GEMINI_API_KEY")
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Idempotency.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown idempotency backend %q", c.Idempotency.Backend)
	}
	if c.Idempotency.Backend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis backend selected but redis.addr is empty")
	}
	for provider, price := range c.Pricing {
		if price < 0 {
			return fmt.Errorf("negative price for provider %q", provider)
		}
	}
	return nil
}
