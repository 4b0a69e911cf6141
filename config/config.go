package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Node      Node      `toml:"Node" yaml:"node"`
	RPC       RPC       `toml:"RPC" yaml:"rpc"`
	Market    Market    `toml:"Market" yaml:"market"`
	Logging   Logging   `toml:"Logging" yaml:"logging"`
	EventLog  EventLog  `toml:"EventLog" yaml:"eventLog"`
	Telemetry Telemetry `toml:"Telemetry" yaml:"telemetry"`
	Webhook   Webhook   `toml:"Webhook" yaml:"webhook"`
}

// Load loads the configuration from the given path. Files ending in .yaml or
// .yml are parsed as YAML, everything else as TOML. A missing file is created
// with defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := Default()
	if isYAML(path) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		decoder := yaml.NewDecoder(f)
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config %s: unknown field %s", path, undecoded[0].String())
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration written on first start.
func Default() *Config {
	return &Config{
		Node: Node{
			DataDir: "./farm-data",
			Backend: "leveldb",
		},
		RPC: RPC{
			ListenAddress:      "127.0.0.1:8645",
			JWTSecretEnv:       "FARM_RPC_JWT_SECRET",
			JWTIssuer:          "farmmarket",
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
			FaucetMaxAmount:    1_000_000_000,
			ReadTimeout:        "10s",
			WriteTimeout:       "15s",
		},
		Market: Market{
			MaxCommitAttempts: 8,
			SweepInterval:     "1m",
		},
		Logging: Logging{
			Level: "info",
			Env:   "local",
		},
		EventLog: EventLog{
			DSN: "./farm-data/events.db",
		},
		Telemetry: Telemetry{
			Endpoint:       "localhost:4318",
			Insecure:       true,
			MetricInterval: "15s",
		},
		Webhook: Webhook{
			SecretEnv:    "FARM_WEBHOOK_SECRET",
			QueueSize:    256,
			DrainTimeout: "10s",
		},
	}
}

func (c *Config) applyDefaults() {
	defaults := Default()
	if strings.TrimSpace(c.Node.Backend) == "" {
		c.Node.Backend = defaults.Node.Backend
	}
	if strings.TrimSpace(c.Node.DataDir) == "" {
		c.Node.DataDir = defaults.Node.DataDir
	}
	if c.Market.MaxCommitAttempts <= 0 {
		c.Market.MaxCommitAttempts = defaults.Market.MaxCommitAttempts
	}
	if strings.TrimSpace(c.Market.SweepInterval) == "" {
		c.Market.SweepInterval = defaults.Market.SweepInterval
	}
	if strings.TrimSpace(c.RPC.ReadTimeout) == "" {
		c.RPC.ReadTimeout = defaults.RPC.ReadTimeout
	}
	if strings.TrimSpace(c.RPC.WriteTimeout) == "" {
		c.RPC.WriteTimeout = defaults.RPC.WriteTimeout
	}
	if strings.TrimSpace(c.Telemetry.MetricInterval) == "" {
		c.Telemetry.MetricInterval = defaults.Telemetry.MetricInterval
	}
	if c.Webhook.QueueSize <= 0 {
		c.Webhook.QueueSize = defaults.Webhook.QueueSize
	}
	if strings.TrimSpace(c.Webhook.DrainTimeout) == "" {
		c.Webhook.DrainTimeout = defaults.Webhook.DrainTimeout
	}
}

// StoragePath returns the on-disk location for the configured backend.
func (c *Config) StoragePath() string {
	switch c.Node.Backend {
	case "bolt":
		return filepath.Join(c.Node.DataDir, "market.db")
	case "leveldb":
		return filepath.Join(c.Node.DataDir, "state")
	default:
		return ""
	}
}

// JWTSecret reads the RPC signing secret from the configured environment
// variable.
func (c *Config) JWTSecret() string {
	if c.RPC.JWTSecretEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.RPC.JWTSecretEnv))
}

func (c *Config) WebhookSecret() string {
	if c.Webhook.SecretEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.Webhook.SecretEnv))
}

func (c *Config) SweepInterval() time.Duration { return mustDuration(c.Market.SweepInterval) }

func (c *Config) ReadTimeout() time.Duration { return mustDuration(c.RPC.ReadTimeout) }

func (c *Config) WriteTimeout() time.Duration { return mustDuration(c.RPC.WriteTimeout) }

func (c *Config) WebhookDrainTimeout() time.Duration { return mustDuration(c.Webhook.DrainTimeout) }

// mustDuration is only called on validated values.
func mustDuration(raw string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return d
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		encoder := yaml.NewEncoder(f)
		defer encoder.Close()
		return encoder.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
