package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/alanyoungcy/safescore/internal/blob/s3"
	"github.com/alanyoungcy/safescore/internal/cache/redis"
	"github.com/alanyoungcy/safescore/internal/collector"
	"github.com/alanyoungcy/safescore/internal/config"
	"github.com/alanyoungcy/safescore/internal/domain"
	"github.com/alanyoungcy/safescore/internal/engine"
	"github.com/alanyoungcy/safescore/internal/notify"
	"github.com/alanyoungcy/safescore/internal/pipeline"
	"github.com/alanyoungcy/safescore/internal/refdata"
	"github.com/alanyoungcy/safescore/internal/rules"
	"github.com/alanyoungcy/safescore/internal/store/postgres"
)

// historyRestoreWindow bounds how much scored history is reloaded from the
// store at startup. It comfortably exceeds any sane velocity window.
const historyRestoreWindow = 24 * time.Hour

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Orchestrator *pipeline.Orchestrator
	State        *pipeline.State
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// --- Reference data and weights ---
	sets, err := refdata.LoadSets(cfg.DataDir, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: reference sets: %w", err)
	}
	weights := rules.LoadWeights(cfg.DataDir, logger)

	battery := rules.Ordered(rules.Params{
		AmountThreshold:  cfg.Engine.AmountThreshold,
		VelocityWindow:   cfg.Engine.VelocityWindow.Duration,
		VelocityMaxCount: cfg.Engine.VelocityMaxCount,
	})
	eng := engine.New(battery, weights, logger)

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	txStore := postgres.NewTransactionStore(pool)
	pendingStore := postgres.NewPendingStore(pool)
	knownStore := postgres.NewKnownAddressStore(pool)

	// --- Redis (optional seen-set cache) ---
	var seenCache domain.SeenCache
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		seenCache = redis.NewSeenStore(redisClient)
	}

	// --- S3 batch archive (optional) ---
	var archiver pipeline.Archiver
	if cfg.Pipeline.ArchiveEnabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		archiver = pipeline.NewBlobArchiver(s3blob.NewWriter(s3Client), logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	var alerter pipeline.Alerter
	if len(senders) > 0 {
		alerter = notify.NewNotifier(senders, logger)
	}

	// --- Collector ---
	coll, err := newCollector(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	// --- State restore ---
	state := pipeline.NewState()
	if err := restoreState(ctx, state, seenCache, txStore, knownStore, logger); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: restore state: %w", err)
	}

	// --- Monitored-address policy ---
	monitored := make([]string, 0, len(cfg.Monitor.Addresses)+len(sets.Watch))
	monitored = append(monitored, cfg.Monitor.Addresses...)
	if cfg.Monitor.UseWatchlist {
		for a := range sets.Watch {
			monitored = append(monitored, a)
		}
	}
	policy := pipeline.NewMonitorPolicy(monitored, cfg.Monitor.RequireMatch)

	proc := pipeline.NewProcessor(pipeline.ProcessorOptions{
		Collector:      coll,
		Engine:         eng,
		Sets:           sets,
		State:          state,
		Policy:         policy,
		TxStore:        txStore,
		PendingStore:   pendingStore,
		KnownStore:     knownStore,
		SeenCache:      seenCache,
		Alerter:        alerter,
		Archiver:       archiver,
		AlertThreshold: cfg.Engine.AlertThreshold,
		ChainLabel:     cfg.Collector.Chain,
		Logger:         logger,
	})

	orch := pipeline.NewOrchestrator(proc, cfg.Pipeline.Interval.Duration, logger)

	return &Dependencies{
		Orchestrator: orch,
		State:        state,
	}, cleanup, nil
}

// newCollector builds the transaction source selected by config.
func newCollector(cfg *config.Config, logger *slog.Logger) (domain.Collector, error) {
	switch strings.ToLower(cfg.Collector.Kind) {
	case "mock":
		return collector.NewMockCollector(cfg.Collector.Chain), nil
	case "eth":
		return collector.NewEthCollector(collector.EthConfig{
			RPCURLs:    cfg.Collector.RPCURLs,
			BlocksBack: cfg.Collector.BlocksBack,
			MaxTxs:     cfg.Collector.MaxTxs,
			MinAmount:  cfg.Collector.MinAmount,
			Chain:      cfg.Collector.Chain,
		}, logger), nil
	default:
		return nil, fmt.Errorf("wire: unknown collector kind %q", cfg.Collector.Kind)
	}
}

// restoreState rebuilds the in-memory seen set, known addresses, and recent
// scored history. The seen set prefers the Redis cache and falls back to the
// transaction store when the cache is absent or empty.
func restoreState(
	ctx context.Context,
	state *pipeline.State,
	seenCache domain.SeenCache,
	txStore domain.TransactionStore,
	knownStore domain.KnownAddressStore,
	logger *slog.Logger,
) error {
	var seen []string
	if seenCache != nil {
		ids, err := seenCache.Load(ctx)
		if err != nil {
			logger.Warn("seen cache unavailable, falling back to store",
				slog.String("error", err.Error()),
			)
		} else {
			seen = ids
		}
	}
	if len(seen) == 0 {
		ids, err := txStore.SeenIDs(ctx)
		if err != nil {
			return fmt.Errorf("load seen ids: %w", err)
		}
		seen = ids
	}

	known, err := knownStore.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load known addresses: %w", err)
	}

	since := time.Now().UTC().Add(-historyRestoreWindow)
	history, err := txStore.History(ctx, since)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	state.Restore(seen, known, history)
	logger.Info("state restored",
		slog.Int("seen", len(seen)),
		slog.Int("known_addresses", len(known)),
		slog.Int("history", len(history)),
	)
	return nil
}
