package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/fundarb/internal/domain"
)

// SnapshotArchiveStore is the narrow store surface the archiver needs: read
// aged snapshots and delete them once uploaded. The Postgres SnapshotStore
// satisfies it.
type SnapshotArchiveStore interface {
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ScanSnapshot, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Archiver moves scan snapshots older than a retention cutoff out of the
// primary store: serialize to JSONL, upload to S3, then delete the archived
// rows. Upload strictly precedes deletion so a failed upload never loses data.
type Archiver struct {
	writer domain.BlobWriter
	store  SnapshotArchiveStore
	logger *slog.Logger
}

// NewArchiver creates an Archiver over the given writer and store.
func NewArchiver(writer domain.BlobWriter, store SnapshotArchiveStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		store:  store,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveSnapshots uploads all snapshots older than cutoff to
// archive/snapshots/YYYY-MM.jsonl and removes them from the store. Returns
// the number of snapshots archived.
func (a *Archiver) ArchiveSnapshots(ctx context.Context, cutoff time.Time) (int64, error) {
	snaps, err := a.store.ListBefore(ctx, cutoff, 0)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots query: %w", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(snaps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots marshal: %w", err)
	}

	path := archivePath("snapshots", cutoff)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive snapshots upload: %w", err)
	}

	deleted, err := a.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return int64(len(snaps)), fmt.Errorf("s3blob: archive snapshots delete: %w", err)
	}

	a.logger.Info("snapshots archived",
		slog.String("path", path),
		slog.Int("uploaded", len(snaps)),
		slog.Int64("deleted", deleted),
	)
	return int64(len(snaps)), nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
func archivePath(kind string, cutoff time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, cutoff.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
