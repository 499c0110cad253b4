// Package config loads client settings from an optional yaml file and
// the environment. Environment variables win over the file, the file
// wins over the defaults.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blockberries/ledger/crypto"
	"github.com/blockberries/ledger/types"
)

// Environment variables read by ApplyEnvOverrides.
const (
	EnvHost           = "IROHA_HOST_ADDR"
	EnvPort           = "IROHA_PORT"
	EnvAdminAccount   = "ADMIN_ACCOUNT_ID"
	EnvAdminKey       = "ADMIN_PRIVATE_KEY"
	EnvStatusTimeout  = "LEDGER_STATUS_TIMEOUT"
	EnvSubmitRate     = "LEDGER_SUBMIT_RPS"
	DefaultConfigPath = "configs/ledger.yaml"
)

// Defaults of the example network.
const (
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 50051
	DefaultAdminAccount  = types.AccountID("admin@test")
	DefaultAdminKey      = "f101537e319568c765b2cc89698325604991dca57b9716b58016b253506cab70"
	DefaultStatusTimeout = 30 * time.Second
)

// Config holds the effective client settings.
type Config struct {
	Host string
	Port int

	AdminAccount    types.AccountID
	AdminPrivateKey string

	// StatusTimeout bounds every wait for a terminal status.
	StatusTimeout time.Duration
	// SubmitRPS throttles submissions when positive. SubmitBurst
	// defaults to 1.
	SubmitRPS   float64
	SubmitBurst int
}

// FileConfig is the yaml layout. Zero values leave the current setting
// untouched.
type FileConfig struct {
	Node   FileNodeConfig   `yaml:"node"`
	Admin  FileAdminConfig  `yaml:"admin"`
	Client FileClientConfig `yaml:"client"`
}

// FileNodeConfig is the node address section.
type FileNodeConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// FileAdminConfig holds the admin identity.
type FileAdminConfig struct {
	Account    string `yaml:"account"`
	PrivateKey string `yaml:"privateKey"`
}

// FileClientConfig tunes status waits and submission rate.
type FileClientConfig struct {
	StatusTimeout time.Duration `yaml:"statusTimeout"`
	SubmitRPS     float64       `yaml:"submitRPS"`
	SubmitBurst   int           `yaml:"submitBurst"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Host:            DefaultHost,
		Port:            DefaultPort,
		AdminAccount:    DefaultAdminAccount,
		AdminPrivateKey: DefaultAdminKey,
		StatusTimeout:   DefaultStatusTimeout,
		SubmitBurst:     1,
	}
}

// Load builds the configuration from path and the environment. An empty
// path tries DefaultConfigPath and silently falls back to the defaults
// when it does not exist; an explicit path must be readable.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var parsed FileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		Merge(&cfg, parsed)
	case explicit || !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Merge copies the non-zero settings of src into dst.
func Merge(dst *Config, src FileConfig) {
	if src.Node.Host != "" {
		dst.Host = src.Node.Host
	}
	if src.Node.Port != 0 {
		dst.Port = src.Node.Port
	}
	if src.Admin.Account != "" {
		dst.AdminAccount = types.AccountID(src.Admin.Account)
	}
	if src.Admin.PrivateKey != "" {
		dst.AdminPrivateKey = src.Admin.PrivateKey
	}
	if src.Client.StatusTimeout != 0 {
		dst.StatusTimeout = src.Client.StatusTimeout
	}
	if src.Client.SubmitRPS != 0 {
		dst.SubmitRPS = src.Client.SubmitRPS
	}
	if src.Client.SubmitBurst != 0 {
		dst.SubmitBurst = src.Client.SubmitBurst
	}
}

// ApplyEnvOverrides reads the environment into cfg. Unset or blank
// variables are ignored; malformed numbers are errors.
func ApplyEnvOverrides(cfg *Config) error {
	if v := env(EnvHost); v != "" {
		cfg.Host = v
	}
	if v := env(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q: %w", EnvPort, v, err)
		}
		cfg.Port = port
	}
	if v := env(EnvAdminAccount); v != "" {
		cfg.AdminAccount = types.AccountID(v)
	}
	if v := env(EnvAdminKey); v != "" {
		cfg.AdminPrivateKey = v
	}
	if v := env(EnvStatusTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s=%q: %w", EnvStatusTimeout, v, err)
		}
		cfg.StatusTimeout = d
	}
	if v := env(EnvSubmitRate); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: %s=%q: %w", EnvSubmitRate, v, err)
		}
		cfg.SubmitRPS = rps
	}
	return nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

// Validate checks that the settings are usable.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("config: empty node host")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: node port %d out of range", c.Port)
	}
	if err := c.AdminAccount.Validate(); err != nil {
		return fmt.Errorf("config: admin account: %w", err)
	}
	if c.StatusTimeout <= 0 {
		return fmt.Errorf("config: status timeout %s must be positive", c.StatusTimeout)
	}
	if c.SubmitRPS < 0 || c.SubmitBurst < 0 {
		return errors.New("config: negative submit rate")
	}
	return nil
}

// Addr returns host:port of the node.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// AdminKeyPair decodes the admin private key.
func (c Config) AdminKeyPair() (crypto.KeyPair, error) {
	kp, err := crypto.KeyPairFromHex(c.AdminPrivateKey)
	if err != nil {
		return crypto.KeyPair{}, fmt.Errorf("config: admin key: %w", err)
	}
	return kp, nil
}
