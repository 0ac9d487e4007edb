package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Monitor.Addresses != nil {
		out.Monitor.Addresses = make([]string, len(cfg.Monitor.Addresses))
		copy(out.Monitor.Addresses, cfg.Monitor.Addresses)
	}
	if cfg.Collector.RPCURLs != nil {
		out.Collector.RPCURLs = make([]string, len(cfg.Collector.RPCURLs))
		copy(out.Collector.RPCURLs, cfg.Collector.RPCURLs)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
