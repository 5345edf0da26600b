package legacycatalog

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/JustinTDCT/mediacat/internal/storage"
	"github.com/JustinTDCT/mediacat/internal/storage/pathnorm"
	"github.com/JustinTDCT/mediacat/internal/storage/storageerr"
)

const insertStmt = `
	INSERT INTO media_files (path, canonical_path, canonical_parent_path, filename, size,
		modified, mime_type, duration_ms, title, artist, album, genre, track_number, year,
		album_artist, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (canonical_path) DO NOTHING
	RETURNING id`

const upsertStmt = `
	INSERT INTO media_files (path, canonical_path, canonical_parent_path, filename, size,
		modified, mime_type, duration_ms, title, artist, album, genre, track_number, year,
		album_artist, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (canonical_path) DO UPDATE SET
		path = EXCLUDED.path, size = EXCLUDED.size, modified = EXCLUDED.modified,
		mime_type = EXCLUDED.mime_type, duration_ms = EXCLUDED.duration_ms,
		title = EXCLUDED.title, artist = EXCLUDED.artist, album = EXCLUDED.album,
		genre = EXCLUDED.genre, track_number = EXCLUDED.track_number, year = EXCLUDED.year,
		album_artist = EXCLUDED.album_artist, updated_at = EXCLUDED.updated_at
	RETURNING id`

// BulkStore implements spec.md §4.5's bulk_store against Postgres: one
// transaction per call so the whole batch commits or rolls back together,
// matching the engine's "committed or rolled back" failure semantics.
func (c *Catalog) BulkStore(ctx context.Context, files []storage.MediaFile, mode storage.UpsertMode) ([]int64, error) {
	if len(files) == 0 {
		return nil, nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkStore", err)
	}
	defer tx.Rollback()

	stmt := insertStmt
	if mode == storage.Upsert {
		stmt = upsertStmt
	}

	now := nowSeconds()
	ids := make([]int64, len(files))
	for i, f := range files {
		cp := canonicalOrSelf(f.CanonicalPath, f.Path)
		parent := pathnorm.ParentOf(cp)
		filename := pathnorm.FilenameOf(cp)

		var id int64
		err := tx.QueryRowContext(ctx, stmt, f.Path, cp, parent, filename, f.Size, f.Modified,
			f.MimeType, f.DurationMs, f.Title, f.Artist, f.Album, f.Genre, f.TrackNumber,
			f.Year, f.AlbumArtist, now, now).Scan(&id)
		if err == sql.ErrNoRows {
			ids[i] = 0 // duplicate rejected, per-item, not batch-fatal
			continue
		}
		if err != nil {
			return nil, storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkStore", err)
		}
		ids[i] = id
	}

	if err := tx.Commit(); err != nil {
		return nil, storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkStore", err)
	}
	return ids, nil
}

// BulkUpdate implements spec.md §4.5's bulk_update: every record must
// already have a live id. created_at is untouched; updated_at is
// stamped fresh.
func (c *Catalog) BulkUpdate(ctx context.Context, files []storage.MediaFile) error {
	if len(files) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkUpdate", err)
	}
	defer tx.Rollback()

	now := nowSeconds()
	const stmt = `
		UPDATE media_files SET
			path = $1, canonical_parent_path = $2, filename = $3, size = $4, modified = $5,
			mime_type = $6, duration_ms = $7, title = $8, artist = $9, album = $10,
			genre = $11, track_number = $12, year = $13, album_artist = $14, updated_at = $15
		WHERE canonical_path = $16`

	for _, f := range files {
		cp := canonicalOrSelf(f.CanonicalPath, f.Path)
		parent := pathnorm.ParentOf(cp)
		filename := pathnorm.FilenameOf(cp)

		res, err := tx.ExecContext(ctx, stmt, f.Path, parent, filename, f.Size, f.Modified,
			f.MimeType, f.DurationMs, f.Title, f.Artist, f.Album, f.Genre, f.TrackNumber,
			f.Year, f.AlbumArtist, now, cp)
		if err != nil {
			return storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkUpdate", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkUpdate", err)
		}
		if n == 0 {
			return storageerr.New(storageerr.NotFound, "legacycatalog.BulkUpdate", "no live id for "+cp)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkUpdate", err)
	}
	return nil
}

// BulkRemove implements spec.md §4.5's bulk_remove.
func (c *Catalog) BulkRemove(ctx context.Context, canonicalPaths []string) (int, error) {
	if len(canonicalPaths) == 0 {
		return 0, nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkRemove", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM media_files WHERE canonical_path = ANY($1)`,
		pq.Array(normalizeAll(canonicalPaths)))
	if err != nil {
		return 0, storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkRemove", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkRemove", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkRemove", err)
	}
	return int(n), nil
}

// BulkGetByPaths implements spec.md §4.5's bulk_get_by_paths, preserving
// input order with nil for a miss.
func (c *Catalog) BulkGetByPaths(ctx context.Context, canonicalPaths []string) ([]*storage.MediaFile, error) {
	out := make([]*storage.MediaFile, len(canonicalPaths))
	if len(canonicalPaths) == 0 {
		return out, nil
	}

	paths := normalizeAll(canonicalPaths)
	rows, err := c.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM media_files WHERE canonical_path = ANY($1)`, pq.Array(paths))
	if err != nil {
		return nil, storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkGetByPaths", err)
	}
	files, err := scanRowsToFiles(rows)
	if err != nil {
		return nil, err
	}

	byPath := make(map[string]storage.MediaFile, len(files))
	for _, f := range files {
		byPath[f.CanonicalPath] = f
	}
	for i, p := range paths {
		if f, ok := byPath[p]; ok {
			rec := f
			out[i] = &rec
		}
	}
	return out, nil
}

func normalizeAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = canonicalOrSelf(p, p)
	}
	return out
}

func canonicalOrSelf(canonical, fallback string) string {
	if canonical != "" {
		return canonical
	}
	norm, err := pathnorm.Normalize(fallback, pathnorm.Options{})
	if err != nil {
		return fallback
	}
	return norm
}
