package legacycatalog

import (
	"context"

	"github.com/JustinTDCT/mediacat/internal/storage"
	"github.com/JustinTDCT/mediacat/internal/storage/storageerr"
)

// Stats implements spec.md §6.2's stats() surface. Unlike the zero-copy
// engine, this variant has no atomic in-memory counters to read, so
// total_files and total_operations are derived with a COUNT query and
// cache/throughput/memory figures are reported as zero — Postgres has
// its own buffer cache and EXPLAIN-level accounting, out of scope for
// this capability-set implementation.
func (c *Catalog) Stats(ctx context.Context) (storage.Stats, error) {
	var total int64
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media_files`).Scan(&total); err != nil {
		return storage.Stats{}, storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.Stats", err)
	}
	return storage.Stats{
		TotalFiles:      total,
		TotalOperations: total,
	}, nil
}

// StreamAllMediaFiles implements spec.md §4.9's streaming read, used by
// the scanner to diff the live catalog against a filesystem walk without
// materializing the whole table.
func (c *Catalog) StreamAllMediaFiles(ctx context.Context) (<-chan storage.MediaFile, error) {
	return c.streamQuery(ctx, `SELECT `+selectColumns+` FROM media_files ORDER BY id`)
}

// StreamByPrefix streams only records whose canonical path begins with
// canonicalPrefix, used for a scoped rescan of one root.
func (c *Catalog) StreamByPrefix(ctx context.Context, canonicalPrefix string) (<-chan storage.MediaFile, error) {
	return c.streamQuery(ctx, `SELECT `+selectColumns+` FROM media_files WHERE canonical_path LIKE $1 ORDER BY id`, canonicalPrefix+"%")
}

func (c *Catalog) streamQuery(ctx context.Context, query string, args ...interface{}) (<-chan storage.MediaFile, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.stream", err)
	}

	out := make(chan storage.MediaFile, 256)
	go func() {
		defer close(out)
		defer rows.Close()
		for rows.Next() {
			var f storage.MediaFile
			if err := rows.Scan(
				&f.ID, &f.Path, &f.CanonicalPath, &f.CanonicalParentPath, &f.Filename,
				&f.Size, &f.Modified, &f.MimeType, &f.DurationMs, &f.Title, &f.Artist,
				&f.Album, &f.Genre, &f.TrackNumber, &f.Year, &f.AlbumArtist,
				&f.CreatedAt, &f.UpdatedAt,
			); err != nil {
				c.log.Printf("stream scan failed: %v", err)
				return
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// CleanupMissing implements spec.md §4.9's reconciliation step: any
// canonical path not present in existing is collected from a streaming
// scan, and all of them are removed with a single BulkRemove call.
func (c *Catalog) CleanupMissing(ctx context.Context, existing map[string]struct{}) (int, error) {
	stream, err := c.StreamAllMediaFiles(ctx)
	if err != nil {
		return 0, err
	}

	var stale []string
	for f := range stream {
		if _, ok := existing[f.CanonicalPath]; !ok {
			stale = append(stale, f.CanonicalPath)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	return c.BulkRemove(ctx, stale)
}
