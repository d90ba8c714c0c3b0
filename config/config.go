package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the service configuration. Genesis allocations stand in for
// the external funds-receipt environment: they seed account balances exactly
// once so fans have something to deposit.
type Config struct {
	RPCAddress  string            `toml:"RPCAddress"`
	DataDir     string            `toml:"DataDir"`
	NetworkName string            `toml:"NetworkName"`
	Genesis     map[string]string `toml:"Genesis"`

	// RateLimitPerMinute caps mutating RPC calls per client address.
	RateLimitPerMinute float64 `toml:"RateLimitPerMinute"`
	RateLimitBurst     int     `toml:"RateLimitBurst"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./fanvault-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "fanvault-local"
	}
	if cfg.Genesis == nil {
		cfg.Genesis = map[string]string{}
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 120
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 20
	}

	return cfg, nil
}

// Allocations parses the configured genesis balances. Amounts are decimal
// strings because deposit amounts routinely exceed what TOML integers hold.
func (c *Config) Allocations() (map[string]*big.Int, error) {
	out := make(map[string]*big.Int, len(c.Genesis))
	for addr, amount := range c.Genesis {
		trimmed := strings.TrimSpace(amount)
		if trimmed == "" {
			continue
		}
		value, ok := new(big.Int).SetString(trimmed, 10)
		if !ok || value.Sign() < 0 {
			return nil, fmt.Errorf("config: invalid genesis amount %q for %s", amount, addr)
		}
		out[strings.TrimSpace(addr)] = value
	}
	return out, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:         ":8080",
		DataDir:            "./fanvault-data",
		NetworkName:        "fanvault-local",
		Genesis:            map[string]string{},
		RateLimitPerMinute: 120,
		RateLimitBurst:     20,
	}

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

	return toml.NewEncoder(f).Encode(cfg)
}
