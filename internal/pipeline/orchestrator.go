package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Orchestrator runs the processor once or on a fixed interval. Ticks are
// strictly sequential; an interrupt stops the loop between ticks and a tick
// in progress always completes.
type Orchestrator struct {
	proc     *Processor
	interval time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	total TickStats
	ticks int
}

// NewOrchestrator creates an Orchestrator around proc. interval only matters
// to RunLoop.
func NewOrchestrator(proc *Processor, interval time.Duration, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		proc:     proc,
		interval: interval,
		logger:   logger.With(slog.String("component", "orchestrator")),
	}
}

// RunOnce executes a single tick and returns its stats.
func (o *Orchestrator) RunOnce(ctx context.Context) (TickStats, error) {
	stats, err := o.proc.RunTick(ctx)
	o.record(stats)
	return stats, err
}

// RunLoop runs ticks on the configured interval until the context is
// cancelled. Tick errors are logged and the loop continues; only cancellation
// ends it.
func (o *Orchestrator) RunLoop(ctx context.Context) error {
	o.logger.Info("tick loop starting", slog.Duration("interval", o.interval))

	// Run immediately on start.
	o.tick(ctx)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("tick loop stopped")
			return ctx.Err()
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

func (o *Orchestrator) tick(ctx context.Context) {
	stats, err := o.proc.RunTick(ctx)
	o.record(stats)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.logger.Error("tick failed", slog.String("error", err.Error()))
		return
	}
	o.logger.Info("tick complete",
		slog.Int("collected", stats.Collected),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("scored", stats.Scored),
		slog.Int("pending", stats.Pending),
		slog.Int("new_known", stats.NewKnown),
	)
}

func (o *Orchestrator) record(stats TickStats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ticks++
	o.total.Collected += stats.Collected
	o.total.Filtered += stats.Filtered
	o.total.Duplicates += stats.Duplicates
	o.total.Scored += stats.Scored
	o.total.Pending += stats.Pending
	o.total.NewKnown += stats.NewKnown
}

// Totals returns the number of completed ticks and the cumulative stats, for
// the status endpoint.
func (o *Orchestrator) Totals() (int, TickStats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ticks, o.total
}
