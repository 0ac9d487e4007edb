package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SAFESCORE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SAFESCORE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setInt(&cfg.Engine.AlertThreshold, "SAFESCORE_ENGINE_ALERT_THRESHOLD")
	setFloat64(&cfg.Engine.AmountThreshold, "SAFESCORE_ENGINE_AMOUNT_THRESHOLD")
	setDuration(&cfg.Engine.VelocityWindow, "SAFESCORE_ENGINE_VELOCITY_WINDOW")
	setInt(&cfg.Engine.VelocityMaxCount, "SAFESCORE_ENGINE_VELOCITY_MAX_COUNT")

	// ── Monitor ──
	setBool(&cfg.Monitor.UseWatchlist, "SAFESCORE_MONITOR_USE_WATCHLIST")
	setStringSlice(&cfg.Monitor.Addresses, "SAFESCORE_MONITOR_ADDRESSES")
	setBool(&cfg.Monitor.RequireMatch, "SAFESCORE_MONITOR_REQUIRE_MATCH")

	// ── Collector ──
	setStr(&cfg.Collector.Kind, "SAFESCORE_COLLECTOR_KIND")
	setStringSlice(&cfg.Collector.RPCURLs, "SAFESCORE_COLLECTOR_RPC_URLS")
	setInt(&cfg.Collector.BlocksBack, "SAFESCORE_COLLECTOR_BLOCKS_BACK")
	setInt(&cfg.Collector.MaxTxs, "SAFESCORE_COLLECTOR_MAX_TXS")
	setFloat64(&cfg.Collector.MinAmount, "SAFESCORE_COLLECTOR_MIN_AMOUNT")
	setStr(&cfg.Collector.Chain, "SAFESCORE_COLLECTOR_CHAIN")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.Interval, "SAFESCORE_PIPELINE_INTERVAL")
	setBool(&cfg.Pipeline.ArchiveEnabled, "SAFESCORE_PIPELINE_ARCHIVE_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SAFESCORE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SAFESCORE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SAFESCORE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SAFESCORE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SAFESCORE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SAFESCORE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SAFESCORE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SAFESCORE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SAFESCORE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SAFESCORE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SAFESCORE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SAFESCORE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SAFESCORE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SAFESCORE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SAFESCORE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SAFESCORE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SAFESCORE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SAFESCORE_S3_REGION")
	setStr(&cfg.S3.Bucket, "SAFESCORE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SAFESCORE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SAFESCORE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SAFESCORE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SAFESCORE_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SAFESCORE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SAFESCORE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SAFESCORE_NOTIFY_DISCORD_WEBHOOK_URL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SAFESCORE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SAFESCORE_SERVER_PORT")

	// ── Top-level ──
	setStr(&cfg.Mode, "SAFESCORE_MODE")
	setStr(&cfg.LogLevel, "SAFESCORE_LOG_LEVEL")
	setStr(&cfg.DataDir, "SAFESCORE_DATA_DIR")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
