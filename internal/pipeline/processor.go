package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/safescore/internal/domain"
	"github.com/alanyoungcy/safescore/internal/engine"
	"github.com/alanyoungcy/safescore/internal/refdata"
)

// Alerter delivers one free-text alert per critical transaction. Delivery is
// best-effort; failures never propagate into the tick.
type Alerter interface {
	Notify(ctx context.Context, title, message string) error
}

// Archiver receives every scored batch for cold storage. Best-effort.
type Archiver interface {
	ArchiveBatch(ctx context.Context, rows []domain.ScoredTransaction) error
}

// TickStats summarizes one tick.
type TickStats struct {
	Collected  int
	Filtered   int
	Duplicates int
	Scored     int
	Pending    int
	NewKnown   int
}

// ProcessorOptions wires a Processor. TxStore, KnownStore, and Engine are
// required; PendingStore, SeenCache, Alerter, and Archiver may be nil.
type ProcessorOptions struct {
	Collector    domain.Collector
	Engine       *engine.Engine
	Sets         *refdata.Sets
	State        *State
	Policy       MonitorPolicy
	TxStore      domain.TransactionStore
	PendingStore domain.PendingStore
	KnownStore   domain.KnownAddressStore
	SeenCache    domain.SeenCache
	Alerter      Alerter
	Archiver     Archiver

	AlertThreshold int
	ChainLabel     string
	Logger         *slog.Logger
}

// Processor executes one full evaluation tick: acquire, filter, dedup, score,
// classify, persist, learn, extend history, mark seen.
type Processor struct {
	ProcessorOptions
	logger *slog.Logger
}

// NewProcessor creates a Processor from opts.
func NewProcessor(opts ProcessorOptions) *Processor {
	return &Processor{
		ProcessorOptions: opts,
		logger:           opts.Logger.With(slog.String("component", "processor")),
	}
}

// RunTick performs one tick. The returned error covers acquisition and
// persistence failures; the caller decides whether to abort (once mode) or
// log and keep looping (daemon mode). A failed tick never leaves the seen set
// partially updated: identifiers are marked seen only after their rows are in
// the store, so a crash can re-score a not-yet-recorded transaction but never
// skip one.
func (p *Processor) RunTick(ctx context.Context) (TickStats, error) {
	var stats TickStats

	// 1. Acquire.
	batch, err := p.Collector.Collect(ctx)
	if err != nil {
		return stats, fmt.Errorf("pipeline: collect: %w", err)
	}
	stats.Collected = len(batch)

	// 2. Monitored-address filter.
	batch = p.Policy.Filter(batch)
	stats.Filtered = len(batch)

	// 3. Dedup strictly before scoring: duplicates never reach the engine and
	// never touch velocity history.
	fresh := make([]domain.Transaction, 0, len(batch))
	for _, tx := range batch {
		if tx.ID == "" || p.State.Seen(tx.ID) {
			stats.Duplicates++
			continue
		}
		fresh = append(fresh, tx)
	}
	if len(fresh) == 0 {
		return stats, nil
	}

	// 4. Score against a context snapshotted now. Addresses learned during
	// this tick stay invisible until the next one, so several transactions
	// from one new sender in the same batch all flag new_address.
	rc := refdata.NewContext(p.Sets, p.State.KnownAddresses(), p.State.HistorySnapshot())

	scored := make([]domain.ScoredTransaction, 0, len(fresh))
	pending := make([]domain.ScoredTransaction, 0)
	learned := make(map[string]struct{})

	for _, tx := range fresh {
		res := p.Engine.Score(tx, rc)

		row := domain.ScoredTransaction{
			Transaction:   tx,
			IsNewAddress:  res.NewAddress(),
			VelocityCount: res.VelocityCount,
			Score:         res.Score,
			PenaltyTotal:  res.Penalty,
			Reasons:       res.Reasons,
			Explain:       res.Explain,
		}
		row.From = strings.ToLower(row.From)
		row.To = strings.ToLower(row.To)
		if p.ChainLabel != "" {
			row.Chain = p.ChainLabel
		}
		scored = append(scored, row)

		if res.NewAddress() {
			learned[row.From] = struct{}{}
		}
		if row.Score < p.AlertThreshold {
			pending = append(pending, row)
		}
	}
	stats.Scored = len(scored)
	stats.Pending = len(pending)

	// 5. Classify: alert on critical rows. Always best-effort.
	for _, row := range pending {
		p.alert(ctx, row)
	}

	// 6. Persist. All scored rows go to the transaction store; critical rows
	// additionally to the pending store.
	inserted, err := p.TxStore.InsertBatch(ctx, scored)
	if err != nil {
		return stats, fmt.Errorf("pipeline: persist scored rows: %w", err)
	}
	if inserted < len(scored) {
		p.logger.Warn("store skipped conflicting rows",
			slog.Int("batch", len(scored)),
			slog.Int("inserted", inserted),
		)
	}
	if p.PendingStore != nil && len(pending) > 0 {
		if err := p.PendingStore.InsertBatch(ctx, pending); err != nil {
			p.logger.Error("pending store write failed",
				slog.Int("rows", len(pending)),
				slog.String("error", err.Error()),
			)
		}
	}

	// 7. Learn: deferred until all scoring completed (see step 4).
	now := time.Now().UTC()
	addrs := make([]string, 0, len(learned))
	for a := range learned {
		if p.State.Learn(a) {
			addrs = append(addrs, a)
		}
	}
	stats.NewKnown = len(addrs)
	if len(addrs) > 0 {
		if err := p.KnownStore.Add(ctx, addrs, now); err != nil {
			p.logger.Error("known-address write failed",
				slog.Int("addresses", len(addrs)),
				slog.String("error", err.Error()),
			)
		}
	}

	// 8. Extend history and mark seen.
	ids := make([]string, 0, len(scored))
	entries := make([]domain.HistoryEntry, 0, len(scored))
	for _, row := range scored {
		ids = append(ids, row.ID)
		if h, ok := domain.HistoryFrom(row); ok {
			entries = append(entries, h)
		}
	}
	p.State.AppendHistory(entries...)
	p.State.MarkSeen(ids...)
	if p.SeenCache != nil {
		if err := p.SeenCache.Add(ctx, ids); err != nil {
			p.logger.Warn("seen cache update failed", slog.String("error", err.Error()))
		}
	}

	// 9. Archive the batch.
	if p.Archiver != nil {
		if err := p.Archiver.ArchiveBatch(ctx, scored); err != nil {
			p.logger.Warn("archive failed", slog.String("error", err.Error()))
		}
	}

	return stats, nil
}

// alert formats and dispatches the review message for one critical row.
func (p *Processor) alert(ctx context.Context, row domain.ScoredTransaction) {
	if p.Alerter == nil {
		return
	}
	reasons := row.ReasonsText()
	if reasons == "" {
		reasons = "n/a"
	}
	msg := fmt.Sprintf(
		"TX: %s\nScore: %d (< %d)\nFrom: %s\nTo: %s\nAmount: %g %s\nReasons: %s",
		row.ID,
		row.Score, p.AlertThreshold,
		domain.AbbreviateAddress(row.From),
		domain.AbbreviateAddress(row.To),
		row.Amount, row.Token,
		reasons,
	)
	if err := p.Alerter.Notify(ctx, "SafeScore alert", msg); err != nil {
		p.logger.Warn("alert delivery failed",
			slog.String("tx_id", row.ID),
			slog.String("error", err.Error()),
		)
	}
}
