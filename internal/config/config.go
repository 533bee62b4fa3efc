package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all rplog configuration.
type Config struct {
	Handler HandlerConfig `yaml:"handler"`
	Emitter EmitterConfig `yaml:"emitter"`
	Spool   SpoolConfig   `yaml:"spool"`
	Log     LogConfig     `yaml:"log"`
}

// HandlerConfig configures the slog handler.
type HandlerConfig struct {
	Name             string   `yaml:"name"`
	Pattern          string   `yaml:"pattern"`
	Level            string   `yaml:"level"`
	InternalPrefixes []string `yaml:"internal_prefixes"`
	ResourceDir      string   `yaml:"resource_dir"`
}

// EmitterConfig configures batching and the no-owner policy.
type EmitterConfig struct {
	Policy         string        `yaml:"policy"` // "drop" or "queue"
	BatchSize      int           `yaml:"batch_size"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
	QueueSize      int           `yaml:"queue_size"`
	ResolveTimeout time.Duration `yaml:"resolve_timeout"`
}

// SpoolConfig configures local persistence of records.
type SpoolConfig struct {
	Dir             string        `yaml:"dir"`
	MaxSegmentBytes int64         `yaml:"max_segment_bytes"`
	Retention       time.Duration `yaml:"retention"`
	Seal            bool          `yaml:"seal"`
	KeyFile         string        `yaml:"key_file"`
}

// LogConfig configures diagnostics.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Handler: HandlerConfig{
			Name:    "rplog",
			Pattern: "%d %-5p %c - %m%n",
			Level:   "debug",
		},
		Emitter: EmitterConfig{
			Policy:         "drop",
			BatchSize:      100,
			FlushInterval:  time.Second,
			QueueSize:      10000,
			ResolveTimeout: 30 * time.Second,
		},
		Spool: SpoolConfig{
			Dir:             "spool",
			MaxSegmentBytes: 64 << 20,
			Retention:       168 * time.Hour,
			KeyFile:         "spool.key",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path, if any, over the defaults and then
// applies RPLOG_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

// Validate rejects configurations no handler could be built from.
func (c Config) Validate() error {
	if c.Handler.Name == "" {
		return fmt.Errorf("handler.name is required")
	}
	if c.Handler.Pattern == "" {
		return fmt.Errorf("handler.pattern is required")
	}
	switch c.Emitter.Policy {
	case "drop", "queue":
	default:
		return fmt.Errorf("emitter.policy must be drop or queue, got %q", c.Emitter.Policy)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Handler.Name = getenv("RPLOG_NAME", cfg.Handler.Name)
	cfg.Handler.Pattern = getenv("RPLOG_PATTERN", cfg.Handler.Pattern)
	cfg.Handler.Level = getenv("RPLOG_LEVEL", cfg.Handler.Level)
	if v := os.Getenv("RPLOG_INTERNAL_PREFIXES"); v != "" {
		cfg.Handler.InternalPrefixes = splitList(v)
	}
	cfg.Handler.ResourceDir = getenv("RPLOG_RESOURCE_DIR", cfg.Handler.ResourceDir)

	cfg.Emitter.Policy = getenv("RPLOG_POLICY", cfg.Emitter.Policy)
	cfg.Emitter.BatchSize = getenvInt("RPLOG_BATCH_SIZE", cfg.Emitter.BatchSize)
	cfg.Emitter.FlushInterval = getenvDuration("RPLOG_FLUSH_INTERVAL", cfg.Emitter.FlushInterval)

	cfg.Spool.Dir = getenv("RPLOG_SPOOL_DIR", cfg.Spool.Dir)
	cfg.Spool.Retention = getenvDuration("RPLOG_RETENTION", cfg.Spool.Retention)
	cfg.Spool.KeyFile = getenv("RPLOG_KEY_FILE", cfg.Spool.KeyFile)
	cfg.Spool.Seal = getenvBool("RPLOG_SEAL", cfg.Spool.Seal)

	cfg.Log.Level = getenv("RPLOG_LOG_LEVEL", cfg.Log.Level)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
