package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alanyoungcy/safescore/internal/domain"
)

// BlobWriter uploads one object to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobArchiver writes every scored batch as a JSONL object under
// scored/<date>/<time>.jsonl. It implements Archiver.
type BlobArchiver struct {
	writer BlobWriter
	now    func() time.Time
	logger *slog.Logger
}

// NewBlobArchiver creates a BlobArchiver over the given writer.
func NewBlobArchiver(writer BlobWriter, logger *slog.Logger) *BlobArchiver {
	return &BlobArchiver{
		writer: writer,
		now:    time.Now,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveBatch encodes rows as JSON lines and uploads them in one object.
// Empty batches are skipped.
func (a *BlobArchiver) ArchiveBatch(ctx context.Context, rows []domain.ScoredTransaction) error {
	if len(rows) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("pipeline: encode archive row %s: %w", row.ID, err)
		}
	}

	ts := a.now().UTC()
	key := fmt.Sprintf("scored/%s/%s.jsonl", ts.Format("2006-01-02"), ts.Format("150405.000"))
	if err := a.writer.Put(ctx, key, &buf, "application/x-ndjson"); err != nil {
		return err
	}

	a.logger.Debug("batch archived",
		slog.String("key", key),
		slog.Int("rows", len(rows)),
	)
	return nil
}
