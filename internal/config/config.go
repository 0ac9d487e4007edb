// Package config defines the top-level configuration for safescore and
// provides validation helpers.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SAFESCORE_* environment variables.
type Config struct {
	Engine    EngineConfig    `toml:"engine"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Collector CollectorConfig `toml:"collector"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Notify    NotifyConfig    `toml:"notify"`
	Server    ServerConfig    `toml:"server"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
	DataDir   string          `toml:"data_dir"`
}

// EngineConfig holds scoring parameters.
type EngineConfig struct {
	// AlertThreshold is the score below which a transaction is critical.
	AlertThreshold   int      `toml:"alert_threshold"`
	AmountThreshold  float64  `toml:"amount_threshold"`
	VelocityWindow   duration `toml:"velocity_window"`
	VelocityMaxCount int      `toml:"velocity_max_count"`
}

// MonitorConfig selects which sender addresses the pipeline scores.
type MonitorConfig struct {
	// UseWatchlist adds every watchlist entry to the monitored set.
	UseWatchlist bool     `toml:"use_watchlist"`
	Addresses    []string `toml:"addresses"`
	// RequireMatch drops transactions whose sender and recipient are both
	// outside the monitored set. With an empty set nothing is dropped.
	RequireMatch bool `toml:"require_match"`
}

// CollectorConfig selects and tunes the transaction source.
type CollectorConfig struct {
	// Kind is the collector to run: "mock" or "eth".
	Kind       string   `toml:"kind"`
	RPCURLs    []string `toml:"rpc_urls"`
	BlocksBack int      `toml:"blocks_back"`
	MaxTxs     int      `toml:"max_txs"`
	MinAmount  float64  `toml:"min_amount"`
	Chain      string   `toml:"chain"`
}

// PipelineConfig holds tick-loop parameters.
type PipelineConfig struct {
	Interval duration `toml:"interval"`
	// ArchiveEnabled uploads every scored batch to S3 as JSONL.
	ArchiveEnabled bool `toml:"archive_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. An empty Addr disables the
// seen-set cache and the pipeline rebuilds state from PostgreSQL.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials. Channels with empty
// credentials are skipped.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
}

// ServerConfig holds HTTP status server parameters.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "20s", "10m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			AlertThreshold:   50,
			AmountThreshold:  10000.0,
			VelocityWindow:   duration{10 * time.Minute},
			VelocityMaxCount: 5,
		},
		Monitor: MonitorConfig{
			UseWatchlist: false,
			Addresses:    []string{},
			RequireMatch: false,
		},
		Collector: CollectorConfig{
			Kind:       "mock",
			BlocksBack: 20,
			MaxTxs:     50,
			MinAmount:  0.0,
			Chain:      "ETH",
		},
		Pipeline: PipelineConfig{
			Interval:       duration{20 * time.Second},
			ArchiveEnabled: false,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "safescore",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "safescore-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled: false,
			Port:    8080,
		},
		Mode:     "once",
		LogLevel: "info",
		DataDir:  "data",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"once":   true,
	"daemon": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validCollectors enumerates the accepted values for Collector.Kind.
var validCollectors = map[string]bool{
	"mock": true,
	"eth":  true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: once, daemon)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Data dir must exist and be readable before anything else starts.
	if info, err := os.Stat(c.DataDir); err != nil {
		errs = append(errs, fmt.Sprintf("data_dir %q is not readable: %v", c.DataDir, err))
	} else if !info.IsDir() {
		errs = append(errs, fmt.Sprintf("data_dir %q is not a directory", c.DataDir))
	}

	// Engine
	if c.Engine.AlertThreshold < 0 || c.Engine.AlertThreshold > 100 {
		errs = append(errs, fmt.Sprintf("engine: alert_threshold must be 0-100, got %d", c.Engine.AlertThreshold))
	}
	if c.Engine.AmountThreshold <= 0 {
		errs = append(errs, "engine: amount_threshold must be > 0")
	}
	if c.Engine.VelocityWindow.Duration <= 0 {
		errs = append(errs, "engine: velocity_window must be > 0")
	}
	if c.Engine.VelocityMaxCount < 1 {
		errs = append(errs, "engine: velocity_max_count must be >= 1")
	}

	// Collector
	if !validCollectors[strings.ToLower(c.Collector.Kind)] {
		errs = append(errs, fmt.Sprintf("collector: unknown kind %q (valid: mock, eth)", c.Collector.Kind))
	}
	if strings.ToLower(c.Collector.Kind) == "eth" && len(c.Collector.RPCURLs) == 0 {
		errs = append(errs, "collector: rpc_urls must not be empty for kind eth")
	}
	if c.Collector.BlocksBack < 1 {
		errs = append(errs, "collector: blocks_back must be >= 1")
	}
	if c.Collector.MaxTxs < 1 {
		errs = append(errs, "collector: max_txs must be >= 1")
	}

	// Pipeline
	if strings.ToLower(c.Mode) == "daemon" && c.Pipeline.Interval.Duration <= 0 {
		errs = append(errs, "pipeline: interval must be > 0 in daemon mode")
	}
	if c.Pipeline.ArchiveEnabled {
		if c.S3.Endpoint == "" && c.S3.Bucket == "" {
			errs = append(errs, "pipeline: archive_enabled requires s3 configuration")
		}
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis is optional; validate only when an address is configured.
	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Notify credentials must be paired.
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
