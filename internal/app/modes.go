package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/safescore/internal/server"
)

// OnceMode runs a single evaluation tick and exits. Any acquisition or
// persistence failure is fatal so operators see a non-zero exit status.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting once mode")

	stats, err := deps.Orchestrator.RunOnce(ctx)
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "run complete",
		slog.Int("collected", stats.Collected),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("scored", stats.Scored),
		slog.Int("pending", stats.Pending),
		slog.Int("new_known", stats.NewKnown),
	)
	return nil
}

// DaemonMode runs the tick loop until the context is cancelled, optionally
// alongside the HTTP status server.
func (a *App) DaemonMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting daemon mode",
		slog.Duration("interval", a.cfg.Pipeline.Interval.Duration),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := deps.Orchestrator.RunLoop(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	if a.cfg.Server.Enabled {
		srv := server.New(server.Config{Port: a.cfg.Server.Port},
			deps.Orchestrator, deps.State, a.logger)
		g.Go(func() error {
			return srv.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutCtx)
		})
	}

	return g.Wait()
}
