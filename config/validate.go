package config

import (
	"fmt"
	"strings"
	"time"

	"farmmarket/crypto"
)

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.Node.Backend {
	case "memory", "leveldb", "bolt":
	default:
		return fmt.Errorf("node: unknown backend %q", c.Node.Backend)
	}
	if err := validAddress("node.Deployer", c.Node.Deployer); err != nil {
		return err
	}
	if err := validAddress("market.KeeperAddress", c.Market.KeeperAddress); err != nil {
		return err
	}
	for name, raw := range map[string]string{
		"market.SweepInterval":     c.Market.SweepInterval,
		"rpc.ReadTimeout":          c.RPC.ReadTimeout,
		"rpc.WriteTimeout":         c.RPC.WriteTimeout,
		"telemetry.MetricInterval": c.Telemetry.MetricInterval,
		"webhook.DrainTimeout":     c.Webhook.DrainTimeout,
	} {
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s: must be positive", name)
		}
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be between 0 and 1")
	}
	if c.RPC.RateLimitPerSecond < 0 || c.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if c.RPC.RateLimitPerSecond > 0 && c.RPC.RateLimitBurst == 0 {
		return fmt.Errorf("rpc: RateLimitBurst required when RateLimitPerSecond is set")
	}
	if c.RPC.FaucetEnabled && c.RPC.FaucetMaxAmount == 0 {
		return fmt.Errorf("rpc: FaucetMaxAmount must be positive when the faucet is enabled")
	}
	return nil
}

func validAddress(field, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if _, err := crypto.ParseAddress(value); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}
