// Package legacycatalog implements storage.Catalog on top of PostgreSQL,
// the "legacy SQL-backed store" variant spec.md §9's Design Notes calls
// for alongside the zero-copy engine — useful for hosts that already run
// Postgres and would rather not manage a second on-disk format.
//
// Grounded on the teacher's internal/db/db.go (sql.Open + Ping + pooled
// *sql.DB) and internal/repository's raw-SQL, $N-placeholder style (e.g.
// media_repository.go), generalized from the teacher's media_items
// table to this engine's MediaFile shape and to the bulk-first operation
// surface storage.Catalog requires.
package legacycatalog

import (
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/JustinTDCT/mediacat/internal/storage"
	"github.com/JustinTDCT/mediacat/internal/storage/enginelog"
	"github.com/JustinTDCT/mediacat/internal/storage/storageerr"
)

var _ storage.Catalog = (*Catalog)(nil)

// Catalog is the Postgres-backed storage.Catalog implementation.
type Catalog struct {
	db  *sql.DB
	log *enginelog.Logger
}

// Open connects to databaseURL and ensures the schema exists.
func Open(databaseURL string) (*Catalog, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.Open", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		return nil, storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.Open", err)
	}

	c := &Catalog{db: db, log: enginelog.New("legacycatalog")}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS media_files (
			id BIGSERIAL PRIMARY KEY,
			path TEXT NOT NULL,
			canonical_path TEXT NOT NULL UNIQUE,
			canonical_parent_path TEXT NOT NULL,
			filename TEXT NOT NULL,
			size BIGINT NOT NULL,
			modified BIGINT NOT NULL,
			mime_type TEXT NOT NULL,
			duration_ms BIGINT,
			title TEXT,
			artist TEXT,
			album TEXT,
			genre TEXT,
			track_number INT,
			year INT,
			album_artist TEXT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS media_files_parent_idx ON media_files (canonical_parent_path)`,
		`CREATE INDEX IF NOT EXISTS media_files_artist_idx ON media_files (artist)`,
		`CREATE INDEX IF NOT EXISTS media_files_album_idx ON media_files (artist, album)`,
		`CREATE INDEX IF NOT EXISTS media_files_genre_idx ON media_files (genre)`,
		`CREATE INDEX IF NOT EXISTS media_files_year_idx ON media_files (year)`,
		`CREATE TABLE IF NOT EXISTS playlists (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS playlist_entries (
			playlist_id UUID NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
			media_file_id BIGINT NOT NULL,
			position INT NOT NULL,
			PRIMARY KEY (playlist_id, media_file_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := c.db.Exec(stmt); err != nil {
			return storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.migrate", err)
		}
	}
	return nil
}

func (c *Catalog) Close() error { return c.db.Close() }

func scanRowsToFiles(rows *sql.Rows) ([]storage.MediaFile, error) {
	defer rows.Close()
	out := make([]storage.MediaFile, 0)
	for rows.Next() {
		var f storage.MediaFile
		if err := rows.Scan(
			&f.ID, &f.Path, &f.CanonicalPath, &f.CanonicalParentPath, &f.Filename,
			&f.Size, &f.Modified, &f.MimeType, &f.DurationMs, &f.Title, &f.Artist,
			&f.Album, &f.Genre, &f.TrackNumber, &f.Year, &f.AlbumArtist,
			&f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, storageerr.Wrap(storageerr.Corrupt, "legacycatalog.scanRows", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

const selectColumns = `id, path, canonical_path, canonical_parent_path, filename, size, modified,
	mime_type, duration_ms, title, artist, album, genre, track_number, year, album_artist,
	created_at, updated_at`

func scanRowToFile(row *sql.Row) (storage.MediaFile, error) {
	var f storage.MediaFile
	err := row.Scan(
		&f.ID, &f.Path, &f.CanonicalPath, &f.CanonicalParentPath, &f.Filename,
		&f.Size, &f.Modified, &f.MimeType, &f.DurationMs, &f.Title, &f.Artist,
		&f.Album, &f.Genre, &f.TrackNumber, &f.Year, &f.AlbumArtist,
		&f.CreatedAt, &f.UpdatedAt,
	)
	return f, err
}
