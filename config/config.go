// Package config loads wallet engine configuration from TOML with sane
// defaults. A missing file is fine (defaults apply); a malformed file or a
// missing store target is a fatal configuration error, reported before any
// user is processed.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dealgrid/wallet-engine/clock"
	"github.com/dealgrid/wallet-engine/wallet"
)

// Config is the full engine configuration.
type Config struct {
	Store  StoreConfig  `toml:"store"`
	API    APIConfig    `toml:"api"`
	Clock  ClockConfig  `toml:"clock"`
	Wallet WalletConfig `toml:"wallet"`
}

type StoreConfig struct {
	// Path is the SQLite database path. ":memory:" runs ephemeral.
	Path string `toml:"path"`
}

type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type ClockConfig struct {
	// TimeScale is simulated seconds per real second.
	TimeScale float64 `toml:"time_scale"`
}

type WalletConfig struct {
	FrontstoreCap    int `toml:"frontstore_cap"`
	CategoryBrandCap int `toml:"category_brand_cap"`
	ValidityDays     int `toml:"validity_days"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store:  StoreConfig{Path: "wallet.db"},
		API:    APIConfig{Host: "127.0.0.1", Port: 8080},
		Clock:  ClockConfig{TimeScale: clock.DefaultTimeScale},
		Wallet: WalletConfig{FrontstoreCap: 2, CategoryBrandCap: 30, ValidityDays: 14},
	}
}

// Load reads path over the defaults. An empty path or a missing file keeps
// the defaults; any other read or parse failure is fatal.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	if c.Clock.TimeScale <= 0 {
		return fmt.Errorf("clock.time_scale must be positive, got %v", c.Clock.TimeScale)
	}
	if c.Wallet.FrontstoreCap < 0 || c.Wallet.CategoryBrandCap < 0 {
		return errors.New("wallet caps must not be negative")
	}
	if c.Wallet.ValidityDays <= 0 {
		return fmt.Errorf("wallet.validity_days must be positive, got %d", c.Wallet.ValidityDays)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port out of range: %d", c.API.Port)
	}
	return nil
}

// QuotaPolicy converts the wallet section into the domain policy.
func (c Config) QuotaPolicy() wallet.QuotaPolicy {
	return wallet.QuotaPolicy{
		FrontstoreCap:    c.Wallet.FrontstoreCap,
		CategoryBrandCap: c.Wallet.CategoryBrandCap,
		Validity:         time.Duration(c.Wallet.ValidityDays) * 24 * time.Hour,
	}
}

// Addr is the API listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}
