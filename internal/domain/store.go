package domain

import (
	"context"
	"time"
)

// Collector acquires one finite batch of candidate transactions per tick. An
// empty batch is a valid, non-error result.
type Collector interface {
	// Name identifies the collector ("eth", "mock") and doubles as the chain
	// label default.
	Name() string
	Collect(ctx context.Context) ([]Transaction, error)
}

// TransactionStore persists scored rows append-only. Implementations must be
// safe to call with overlapping batches; deduplication is the orchestrator's
// job, the sink only has to not duplicate on conflict.
type TransactionStore interface {
	// InsertBatch writes the batch and reports how many rows were actually
	// inserted (conflicts on the identifier are skipped, not errors).
	InsertBatch(ctx context.Context, rows []ScoredTransaction) (int, error)

	// SeenIDs returns every transaction identifier already persisted. Used to
	// rebuild the dedup set at startup.
	SeenIDs(ctx context.Context) ([]string, error)

	// History returns sender/timestamp pairs for rows at or after since,
	// seeding the velocity history at startup.
	History(ctx context.Context, since time.Time) ([]HistoryEntry, error)
}

// PendingStore records transactions flagged for review (score below the alert
// threshold).
type PendingStore interface {
	InsertBatch(ctx context.Context, rows []ScoredTransaction) error
}

// KnownAddressStore is the durable backing of the known-address set.
type KnownAddressStore interface {
	LoadAll(ctx context.Context) ([]string, error)
	Add(ctx context.Context, addrs []string, firstSeen time.Time) error
}

// SeenCache is an optional fast lookaside for the seen-identifier set (Redis
// in production). It mirrors, never replaces, the durable store.
type SeenCache interface {
	Load(ctx context.Context) ([]string, error)
	Add(ctx context.Context, ids []string) error
}
