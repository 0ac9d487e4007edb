package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/safescore/internal/domain"
)

// PendingStore implements domain.PendingStore: critical rows held for review.
type PendingStore struct {
	pool *pgxpool.Pool
}

// NewPendingStore creates a PendingStore over the given pool.
func NewPendingStore(pool *pgxpool.Pool) *PendingStore {
	return &PendingStore{pool: pool}
}

const insertPendingSQL = `
	INSERT INTO pending_reviews (
		tx_id, ts, from_address, to_address, amount, token, method, chain,
		score, penalty_total, reasons, explain
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (tx_id) DO NOTHING`

// InsertBatch records critical rows, skipping identifiers already present.
func (s *PendingStore) InsertBatch(ctx context.Context, rows []domain.ScoredTransaction) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		explain, err := json.Marshal(row.Explain)
		if err != nil {
			return fmt.Errorf("postgres: marshal explain for %s: %w", row.ID, err)
		}
		batch.Queue(insertPendingSQL,
			row.ID, parsedOrNil(row.Timestamp),
			row.From, row.To, row.Amount, row.Token, row.Method, row.Chain,
			row.Score, row.PenaltyTotal, row.ReasonsText(), explain,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: insert pending batch: %w", err)
		}
	}
	return nil
}
