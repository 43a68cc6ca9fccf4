package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/FishIT-Mantle/fishit-sub000/internal/types"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefix of environment overrides, e.g. FISHIT_DATABASE_DSN
const EnvPrefix = "FISHIT"

// Config application configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Database   DatabaseConfig   `yaml:"database" envconfig:"DATABASE"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOG"`
	Chain      ChainConfig      `yaml:"chain" envconfig:"CHAIN"`
	Watcher    WatcherConfig    `yaml:"watcher" envconfig:"WATCHER"`
	Retry      RetryConfig      `yaml:"retry" envconfig:"RETRY"`
	Generator  GeneratorConfig  `yaml:"generator" envconfig:"GENERATOR"`
	Storage    StorageConfig    `yaml:"storage" envconfig:"STORAGE"`
	NATS       NATSConfig       `yaml:"nats" envconfig:"NATS"`
	Admin      AdminConfig      `yaml:"admin" envconfig:"ADMIN"`
	Checkpoint CheckpointConfig `yaml:"checkpoint" envconfig:"CHECKPOINT"`

	// Source file the config was read from, empty when only defaults and env were used
	Source string `yaml:"-" ignored:"true"`
}

// ServerConfig ops HTTP server configuration
type ServerConfig struct {
	Host    string `yaml:"host" split_words:"true"`
	Port    int    `yaml:"port" split_words:"true"`
	GinMode string `yaml:"ginMode" split_words:"true"` // debug | release | test
}

// DatabaseConfig Database configuration
type DatabaseConfig struct {
	Driver                 string `yaml:"driver" split_words:"true"` // postgres | sqlite
	DSN                    string `yaml:"dsn" split_words:"true"`
	MaxOpenConns           int    `yaml:"maxOpenConns" split_words:"true"`
	MaxIdleConns           int    `yaml:"maxIdleConns" split_words:"true"`
	ConnMaxLifetimeMinutes int    `yaml:"connMaxLifetimeMinutes" split_words:"true"`
}

// LoggingConfig logger configuration
type LoggingConfig struct {
	Level      string `yaml:"level" split_words:"true"`  // debug | info | warn | error
	Format     string `yaml:"format" split_words:"true"` // text | json
	File       string `yaml:"file" split_words:"true"`   // optional rotating log file
	MaxSizeMB  int    `yaml:"maxSizeMB" split_words:"true"`
	MaxBackups int    `yaml:"maxBackups" split_words:"true"`
	MaxAgeDays int    `yaml:"maxAgeDays" split_words:"true"`
}

// ChainConfig Mantle network and FishNFT contract configuration
type ChainConfig struct {
	ChainID                    int64    `yaml:"chainId" split_words:"true"`
	RPCEndpoints               []string `yaml:"rpcEndpoints" split_words:"true"`
	ContractAddress            string   `yaml:"contractAddress" split_words:"true"`
	PrivateKey                 string   `yaml:"privateKey" split_words:"true"` // hex, with or without 0x
	GasMultiplier              float64  `yaml:"gasMultiplier" split_words:"true"`
	Confirmations              uint64   `yaml:"confirmations" split_words:"true"`
	ConfirmationTimeoutSeconds int      `yaml:"confirmationTimeoutSeconds" split_words:"true"`
	RPCTimeoutSeconds          int      `yaml:"rpcTimeoutSeconds" split_words:"true"`
}

// WatcherConfig FishMinted event watcher
type WatcherConfig struct {
	PollIntervalSeconds int    `yaml:"pollIntervalSeconds" split_words:"true"`
	ConfirmationLag     uint64 `yaml:"confirmationLag" split_words:"true"`
	MaxBlockRange       uint64 `yaml:"maxBlockRange" split_words:"true"`
	BackfillBlocks      uint64 `yaml:"backfillBlocks" split_words:"true"` // used when no checkpoint exists
	TimeoutSeconds      int    `yaml:"timeoutSeconds" split_words:"true"`
}

// RetryConfig retry sweep
type RetryConfig struct {
	IntervalMinutes    int `yaml:"intervalMinutes" split_words:"true"`
	MaxRetries         int `yaml:"maxRetries" split_words:"true"`
	RecencyWindowHours int `yaml:"recencyWindowHours" split_words:"true"`
	Concurrency        int `yaml:"concurrency" split_words:"true"`
	TimeoutMinutes     int `yaml:"timeoutMinutes" split_words:"true"`
}

// GeneratorConfig image generation service
type GeneratorConfig struct {
	BaseURL        string `yaml:"baseUrl" split_words:"true"`
	APIKey         string `yaml:"apiKey" split_words:"true"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" split_words:"true"`
}

// StorageConfig Pinata IPFS pinning service
type StorageConfig struct {
	BaseURL        string `yaml:"baseUrl" split_words:"true"`
	JWT            string `yaml:"jwt" split_words:"true"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" split_words:"true"`
}

// NATSConfig status event publisher. Empty URL disables it.
type NATSConfig struct {
	URL             string `yaml:"url" split_words:"true"`
	Timeout         int    `yaml:"timeout" split_words:"true"` // seconds
	EnableJetStream bool   `yaml:"enableJetStream" split_words:"true"`
	SubjectPrefix   string `yaml:"subjectPrefix" split_words:"true"`
}

// AdminConfig admin API login
type AdminConfig struct {
	Username      string   `yaml:"username" split_words:"true"`
	Password      string   `yaml:"password" split_words:"true"`
	TOTPSecret    string   `yaml:"totpSecret" split_words:"true"`
	JWTSecret     string   `yaml:"jwtSecret" split_words:"true"`
	TokenTTLHours int      `yaml:"tokenTTLHours" split_words:"true"`
	AllowedIPs    []string `yaml:"allowedIPs" split_words:"true"` // IPs or CIDRs besides localhost
}

// CheckpointConfig checkpoint storage backend
type CheckpointConfig struct {
	Backend   string `yaml:"backend" split_words:"true"` // database | badger
	BadgerDir string `yaml:"badgerDir" split_words:"true"`
}

const (
	CheckpointBackendDatabase = "database"
	CheckpointBackendBadger   = "badger"
)

// Default returns a config with every optional value filled in
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080, GinMode: "release"},
		Database: DatabaseConfig{Driver: "postgres", MaxOpenConns: 20, MaxIdleConns: 5, ConnMaxLifetimeMinutes: 30},
		Logging:  LoggingConfig{Level: "info", Format: "text", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 14},
		Chain: ChainConfig{
			ChainID:                    5000,
			GasMultiplier:              1.2,
			Confirmations:              2,
			ConfirmationTimeoutSeconds: 180,
			RPCTimeoutSeconds:          15,
		},
		Watcher: WatcherConfig{
			PollIntervalSeconds: 12,
			ConfirmationLag:     5,
			MaxBlockRange:       2000,
			BackfillBlocks:      5000,
			TimeoutSeconds:      60,
		},
		Retry: RetryConfig{
			IntervalMinutes:    5,
			MaxRetries:         5,
			RecencyWindowHours: 72,
			Concurrency:        3,
			TimeoutMinutes:     30,
		},
		Generator:  GeneratorConfig{TimeoutSeconds: 120},
		Storage:    StorageConfig{BaseURL: "https://api.pinata.cloud", TimeoutSeconds: 60},
		NATS:       NATSConfig{Timeout: 10, SubjectPrefix: "fishit.mint"},
		Admin:      AdminConfig{Username: "admin", TokenTTLHours: 24},
		Checkpoint: CheckpointConfig{Backend: CheckpointBackendDatabase, BadgerDir: "data/checkpoint"},
	}
}

// LoadConfig Load configuration file. An empty path tries config.local.yaml
// then config.yaml and falls back to defaults when neither exists.
// Environment variables override the file.
func LoadConfig(configPath string) (*Config, error) {
	cfg := Default()

	explicit := configPath != ""
	if !explicit {
		for _, candidate := range []string{"config.local.yaml", "config.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				configPath = candidate
				break
			}
		}
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			cfg.Source = configPath
		case explicit || !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	cfg.Chain.RPCEndpoints = trimAll(cfg.Chain.RPCEndpoints)
	return cfg, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &types.ConfigurationError{Field: field, Reason: "required"}
	}
	return nil
}

func positive(field string, value int) error {
	if value <= 0 {
		return &types.ConfigurationError{Field: field, Reason: "must be greater than zero"}
	}
	return nil
}

// ValidateDatabase checks the parameters every command needs
func (c *Config) ValidateDatabase() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return &types.ConfigurationError{Field: "database.driver", Reason: fmt.Sprintf("unsupported driver %q", c.Database.Driver)}
	}
	return required("database.dsn", c.Database.DSN)
}

// Validate checks everything the pipeline needs to run. The process must not
// start when this fails.
func (c *Config) Validate() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if len(c.Chain.RPCEndpoints) == 0 {
		return &types.ConfigurationError{Field: "chain.rpcEndpoints", Reason: "at least one endpoint required"}
	}
	checks := []error{
		required("chain.contractAddress", c.Chain.ContractAddress),
		required("chain.privateKey", c.Chain.PrivateKey),
		required("generator.baseUrl", c.Generator.BaseURL),
		required("storage.baseUrl", c.Storage.BaseURL),
		required("storage.jwt", c.Storage.JWT),
		positive("watcher.pollIntervalSeconds", c.Watcher.PollIntervalSeconds),
		positive("retry.intervalMinutes", c.Retry.IntervalMinutes),
		positive("retry.maxRetries", c.Retry.MaxRetries),
		positive("retry.recencyWindowHours", c.Retry.RecencyWindowHours),
		positive("retry.concurrency", c.Retry.Concurrency),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	if c.Chain.GasMultiplier < 1 {
		return &types.ConfigurationError{Field: "chain.gasMultiplier", Reason: "must be at least 1"}
	}
	if c.Watcher.MaxBlockRange == 0 {
		return &types.ConfigurationError{Field: "watcher.maxBlockRange", Reason: "must be greater than zero"}
	}
	switch c.Checkpoint.Backend {
	case CheckpointBackendDatabase:
	case CheckpointBackendBadger:
		if err := required("checkpoint.badgerDir", c.Checkpoint.BadgerDir); err != nil {
			return err
		}
	default:
		return &types.ConfigurationError{Field: "checkpoint.backend", Reason: fmt.Sprintf("unsupported backend %q", c.Checkpoint.Backend)}
	}
	return nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c ChainConfig) RPCTimeout() time.Duration          { return seconds(c.RPCTimeoutSeconds) }
func (c ChainConfig) ConfirmationTimeout() time.Duration { return seconds(c.ConfirmationTimeoutSeconds) }
func (c WatcherConfig) PollInterval() time.Duration      { return seconds(c.PollIntervalSeconds) }
func (c WatcherConfig) Timeout() time.Duration           { return seconds(c.TimeoutSeconds) }
func (c RetryConfig) Interval() time.Duration            { return time.Duration(c.IntervalMinutes) * time.Minute }
func (c RetryConfig) RecencyWindow() time.Duration       { return time.Duration(c.RecencyWindowHours) * time.Hour }
func (c RetryConfig) Timeout() time.Duration             { return time.Duration(c.TimeoutMinutes) * time.Minute }
func (c GeneratorConfig) Timeout() time.Duration         { return seconds(c.TimeoutSeconds) }
func (c StorageConfig) Timeout() time.Duration           { return seconds(c.TimeoutSeconds) }
func (c AdminConfig) TokenTTL() time.Duration            { return time.Duration(c.TokenTTLHours) * time.Hour }

// Address listen address of the ops server
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
