package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/safescore/internal/domain"
)

// TransactionStore implements domain.TransactionStore. Rows are append-only;
// re-inserting an identifier is a no-op, which makes overlapping batches safe.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a TransactionStore over the given pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

const insertTransactionSQL = `
	INSERT INTO transactions (
		tx_id, ts, ts_raw, from_address, to_address, amount, token, method,
		chain, is_new_address, velocity_count, score, penalty_total, reasons, explain
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (tx_id) DO NOTHING`

// InsertBatch writes rows in one pipelined batch and reports how many were
// actually inserted.
func (s *TransactionStore) InsertBatch(ctx context.Context, rows []domain.ScoredTransaction) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		explain, err := json.Marshal(row.Explain)
		if err != nil {
			return 0, fmt.Errorf("postgres: marshal explain for %s: %w", row.ID, err)
		}
		batch.Queue(insertTransactionSQL,
			row.ID, parsedOrNil(row.Timestamp), row.Timestamp,
			row.From, row.To, row.Amount, row.Token, row.Method, row.Chain,
			row.IsNewAddress, row.VelocityCount, row.Score, row.PenaltyTotal,
			row.ReasonsText(), explain,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range rows {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("postgres: insert transaction batch: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// SeenIDs returns every persisted transaction identifier.
func (s *TransactionStore) SeenIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT tx_id FROM transactions")
	if err != nil {
		return nil, fmt.Errorf("postgres: load seen ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan seen id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// History returns sender/timestamp pairs for rows at or after since. Rows
// whose timestamp could not be parsed at insert time are excluded.
func (s *TransactionStore) History(ctx context.Context, since time.Time) ([]domain.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT from_address, ts FROM transactions WHERE ts IS NOT NULL AND ts >= $1",
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: load history: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		var h domain.HistoryEntry
		if err := rows.Scan(&h.Sender, &h.At); err != nil {
			return nil, fmt.Errorf("postgres: scan history row: %w", err)
		}
		h.At = h.At.UTC()
		out = append(out, h)
	}
	return out, rows.Err()
}

// parsedOrNil converts the raw timestamp for the nullable ts column.
func parsedOrNil(raw string) any {
	if ts, ok := domain.ParseTimestamp(raw); ok {
		return ts
	}
	return nil
}
