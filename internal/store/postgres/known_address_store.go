package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// KnownAddressStore implements domain.KnownAddressStore.
type KnownAddressStore struct {
	pool *pgxpool.Pool
}

// NewKnownAddressStore creates a KnownAddressStore over the given pool.
func NewKnownAddressStore(pool *pgxpool.Pool) *KnownAddressStore {
	return &KnownAddressStore{pool: pool}
}

// LoadAll returns every known sender address.
func (s *KnownAddressStore) LoadAll(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT address FROM known_addresses")
	if err != nil {
		return nil, fmt.Errorf("postgres: load known addresses: %w", err)
	}
	defer rows.Close()

	var addrs []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("postgres: scan known address: %w", err)
		}
		addrs = append(addrs, a)
	}
	return addrs, rows.Err()
}

// Add records newly learned addresses with their first-seen timestamp. The
// set only grows; re-adding an address keeps the original first_seen.
func (s *KnownAddressStore) Add(ctx context.Context, addrs []string, firstSeen time.Time) error {
	if len(addrs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, a := range addrs {
		batch.Queue(
			"INSERT INTO known_addresses (address, first_seen) VALUES ($1, $2) ON CONFLICT (address) DO NOTHING",
			a, firstSeen,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range addrs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: insert known address: %w", err)
		}
	}
	return nil
}
