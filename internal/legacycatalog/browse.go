package legacycatalog

import (
	"context"
	"strings"

	"github.com/JustinTDCT/mediacat/internal/storage"
	"github.com/JustinTDCT/mediacat/internal/storage/pathnorm"
)

// GetDirectoryListing implements spec.md §4.7 against Postgres: direct
// files come from one indexed query on canonical_parent_path; direct
// subdirectories are derived from the distinct next path segment of
// every row whose canonical_path starts with parent+"/" and that is not
// itself a direct file of parent, computed in Go
// rather than with a recursive SQL expression, since no flavor-neutral
// equivalent of split_part-on-first-slash-after-prefix exists in the
// pack's query style.
func (c *Catalog) GetDirectoryListing(ctx context.Context, parent, mimePrefix string) (storage.DirectoryListing, error) {
	canonicalParent := rootOrNormalized(parent)

	rows, err := c.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM media_files WHERE canonical_parent_path = $1 ORDER BY filename`, canonicalParent)
	if err != nil {
		return storage.DirectoryListing{}, err
	}
	files, err := scanRowsToFiles(rows)
	if err != nil {
		return storage.DirectoryListing{}, err
	}
	if mimePrefix != "" {
		filtered := files[:0]
		for _, f := range files {
			if strings.HasPrefix(f.MimeType, mimePrefix) {
				filtered = append(filtered, f)
			}
		}
		files = filtered
	}

	prefix := canonicalParent + "/"
	if canonicalParent == "/" {
		prefix = "/"
	}
	subRows, err := c.db.QueryContext(ctx, `SELECT DISTINCT canonical_path FROM media_files WHERE canonical_path LIKE $1`, prefix+"%")
	if err != nil {
		return storage.DirectoryListing{}, err
	}
	defer subRows.Close()
	subdirSet := make(map[string]bool)
	for subRows.Next() {
		var path string
		if err := subRows.Scan(&path); err != nil {
			return storage.DirectoryListing{}, err
		}
		if pathnorm.ParentOf(path) == canonicalParent {
			continue // a direct file, not a subdirectory
		}
		if token, ok := pathnorm.ImmediateSubdirToken(canonicalParent, path); ok {
			subdirSet[token] = true
		}
	}
	subdirs := make([]string, 0, len(subdirSet))
	for token := range subdirSet {
		subdirs = append(subdirs, token)
	}

	return storage.DirectoryListing{Subdirectories: subdirs, Files: files}, nil
}

func rootOrNormalized(parent string) string {
	if parent == "" || parent == "/" {
		return "/"
	}
	norm, err := pathnorm.Normalize(parent, pathnorm.Options{})
	if err != nil {
		return parent
	}
	return norm
}

func (c *Catalog) GetArtists(ctx context.Context) ([]storage.MusicCategory, error) {
	return c.categoryQuery(ctx, `SELECT artist, COUNT(*) FROM media_files WHERE artist IS NOT NULL AND artist <> '' GROUP BY artist`)
}

func (c *Catalog) GetAlbums(ctx context.Context, artist string) ([]storage.MusicCategory, error) {
	if artist == "" {
		return c.categoryQuery(ctx, `SELECT album, COUNT(*) FROM media_files WHERE album IS NOT NULL AND album <> '' GROUP BY album`)
	}
	rows, err := c.db.QueryContext(ctx, `SELECT album, COUNT(*) FROM media_files WHERE artist = $1 AND album IS NOT NULL AND album <> '' GROUP BY album`, artist)
	if err != nil {
		return nil, err
	}
	return scanCategoryRows(rows)
}

func (c *Catalog) GetGenres(ctx context.Context) ([]storage.MusicCategory, error) {
	return c.categoryQuery(ctx, `SELECT genre, COUNT(*) FROM media_files WHERE genre IS NOT NULL AND genre <> '' GROUP BY genre`)
}

func (c *Catalog) GetYears(ctx context.Context) ([]storage.MusicCategory, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT year::text, COUNT(*) FROM media_files WHERE year IS NOT NULL GROUP BY year`)
	if err != nil {
		return nil, err
	}
	return scanCategoryRows(rows)
}

func (c *Catalog) categoryQuery(ctx context.Context, query string) ([]storage.MusicCategory, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return scanCategoryRows(rows)
}

func scanCategoryRows(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
	Close() error
}) ([]storage.MusicCategory, error) {
	defer rows.Close()
	out := make([]storage.MusicCategory, 0)
	for rows.Next() {
		var cat storage.MusicCategory
		if err := rows.Scan(&cat.Key, &cat.Count); err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, rows.Err()
}

func (c *Catalog) GetMusicByArtist(ctx context.Context, artist string) ([]storage.MediaFile, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM media_files WHERE artist = $1 ORDER BY album, track_number`, artist)
	if err != nil {
		return nil, err
	}
	return scanRowsToFiles(rows)
}

func (c *Catalog) GetMusicByAlbum(ctx context.Context, artist, album string) ([]storage.MediaFile, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM media_files WHERE artist = $1 AND album = $2 ORDER BY track_number`, artist, album)
	if err != nil {
		return nil, err
	}
	return scanRowsToFiles(rows)
}

func (c *Catalog) GetMusicByGenre(ctx context.Context, genre string) ([]storage.MediaFile, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM media_files WHERE genre = $1 ORDER BY artist, album, track_number`, genre)
	if err != nil {
		return nil, err
	}
	return scanRowsToFiles(rows)
}

func (c *Catalog) GetMusicByYear(ctx context.Context, year string) ([]storage.MediaFile, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM media_files WHERE year::text = $1 ORDER BY artist, album, track_number`, year)
	if err != nil {
		return nil, err
	}
	return scanRowsToFiles(rows)
}
