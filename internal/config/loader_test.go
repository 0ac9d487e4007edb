package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// validConfig returns a config body whose data_dir exists.
func validConfig(t *testing.T, extra string) string {
	t.Helper()
	dataDir := t.TempDir()
	return "data_dir = \"" + dataDir + "\"\n" + extra
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "once", cfg.Mode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 50, cfg.Engine.AlertThreshold)
	assert.Equal(t, 10000.0, cfg.Engine.AmountThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Engine.VelocityWindow.Duration)
	assert.Equal(t, 5, cfg.Engine.VelocityMaxCount)
	assert.Equal(t, "mock", cfg.Collector.Kind)
	assert.Equal(t, 20*time.Second, cfg.Pipeline.Interval.Duration)
	assert.True(t, cfg.Postgres.RunMigrations)
}

func TestLoadOverlaysFileValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
mode = "daemon"
log_level = "debug"

[engine]
alert_threshold = 30
velocity_window = "5m"

[collector]
kind = "eth"
rpc_urls = ["https://rpc.example.com"]

[monitor]
use_watchlist = true
addresses = ["0xAbc"]
`))
	require.NoError(t, err)

	assert.Equal(t, "daemon", cfg.Mode)
	assert.Equal(t, 30, cfg.Engine.AlertThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Engine.VelocityWindow.Duration)
	assert.Equal(t, "eth", cfg.Collector.Kind)
	assert.Equal(t, []string{"https://rpc.example.com"}, cfg.Collector.RPCURLs)
	assert.True(t, cfg.Monitor.UseWatchlist)
	assert.Equal(t, []string{"0xAbc"}, cfg.Monitor.Addresses)
	// Untouched sections keep defaults.
	assert.Equal(t, 10000.0, cfg.Engine.AmountThreshold)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SAFESCORE_ENGINE_ALERT_THRESHOLD", "60")
	t.Setenv("SAFESCORE_MONITOR_ADDRESSES", "0xa, 0xb ,")
	t.Setenv("SAFESCORE_NOTIFY_TELEGRAM_TOKEN", "tok")
	t.Setenv("SAFESCORE_PIPELINE_INTERVAL", "1m")
	t.Setenv("SAFESCORE_REDIS_TLS_ENABLED", "true")

	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Engine.AlertThreshold)
	assert.Equal(t, []string{"0xa", "0xb"}, cfg.Monitor.Addresses)
	assert.Equal(t, "tok", cfg.Notify.TelegramToken)
	assert.Equal(t, time.Minute, cfg.Pipeline.Interval.Duration)
	assert.True(t, cfg.Redis.TLSEnabled)
}

func TestValidateAcceptsDefaultsWithDataDir(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig(t, "")))
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"unknown mode", `mode = "forever"`, "unknown mode"},
		{"threshold above range", "[engine]\nalert_threshold = 101\n", "alert_threshold"},
		{"threshold below range", "[engine]\nalert_threshold = -1\n", "alert_threshold"},
		{"unknown collector", "[collector]\nkind = \"solana\"\n", "unknown kind"},
		{"eth without rpc", "[collector]\nkind = \"eth\"\n", "rpc_urls"},
		{"daemon without interval", "mode = \"daemon\"\n[pipeline]\ninterval = \"0s\"\n", "interval"},
		{"unpaired telegram", "[notify]\ntelegram_token = \"tok\"\n", "telegram"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, validConfig(t, c.body)))
			require.NoError(t, err)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.want)
		})
	}
}

func TestValidateRejectsMissingDataDir(t *testing.T) {
	cfg, err := Load(writeConfig(t, `data_dir = "/no/such/dir"`))
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data_dir")
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pg-secret"
	cfg.Redis.Password = "redis-secret"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Notify.TelegramToken = "tg-secret"
	cfg.Monitor.Addresses = []string{"0xa"}

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	assert.Equal(t, "", red.S3.AccessKey, "empty secrets stay empty")

	// The original is untouched and the redacted copy owns its slices.
	assert.Equal(t, "pg-secret", cfg.Postgres.Password)
	red.Monitor.Addresses[0] = "mutated"
	assert.Equal(t, "0xa", cfg.Monitor.Addresses[0])

	for _, s := range []string{"pg-secret", "redis-secret", "s3-secret", "tg-secret"} {
		assert.False(t, strings.Contains(redactedString(red), s), "secret %q leaked", s)
	}
}

func redactedString(c Config) string {
	return c.Postgres.Password + c.Postgres.DSN + c.Redis.Password +
		c.S3.AccessKey + c.S3.SecretKey + c.Notify.TelegramToken + c.Notify.DiscordWebhookURL
}
