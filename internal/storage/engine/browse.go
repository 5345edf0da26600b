package engine

import (
	"context"
	"strings"

	"github.com/JustinTDCT/mediacat/internal/storage"
	"github.com/JustinTDCT/mediacat/internal/storage/pathnorm"
)

// GetDirectoryListing implements spec.md §4.7: direct subdirectories plus
// direct files filtered by mime_prefix, with no descendant scan.
func (e *Engine) GetDirectoryListing(ctx context.Context, parent, mimePrefix string) (storage.DirectoryListing, error) {
	canonicalParent := rootOrNormalized(parent)

	subdirs := e.idx.DirectSubdirectories(canonicalParent)
	ids := e.idx.DirectFiles(canonicalParent)

	files := make([]storage.MediaFile, 0, len(ids))
	for _, id := range ids {
		f, ok := e.getMaterialized(id)
		if !ok {
			continue
		}
		if mimePrefix == "" || strings.HasPrefix(f.MimeType, mimePrefix) {
			files = append(files, f)
		}
	}

	return storage.DirectoryListing{Subdirectories: subdirs, Files: files}, nil
}

// rootOrNormalized treats "" and "/" as the catalog root ("/" parent
// key), matching how canonical paths store a root-level item's parent as
// "/" (pathnorm.ParentOf), while still accepting non-root input through
// the full normalizer.
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

func (e *Engine) GetArtists(ctx context.Context) ([]storage.MusicCategory, error) {
	return toCategories(e.idx.Artists()), nil
}

func (e *Engine) GetAlbums(ctx context.Context, artist string) ([]storage.MusicCategory, error) {
	out := make([]storage.MusicCategory, 0)
	for key, count := range e.idx.Albums(artist) {
		out = append(out, storage.MusicCategory{Key: key[1], Count: count})
	}
	return out, nil
}

func (e *Engine) GetGenres(ctx context.Context) ([]storage.MusicCategory, error) {
	return toCategories(e.idx.Genres()), nil
}

func (e *Engine) GetYears(ctx context.Context) ([]storage.MusicCategory, error) {
	return toCategories(e.idx.Years()), nil
}

func (e *Engine) GetMusicByArtist(ctx context.Context, artist string) ([]storage.MediaFile, error) {
	return e.materializeAll(e.idx.ByArtist(artist)), nil
}

func (e *Engine) GetMusicByAlbum(ctx context.Context, artist, album string) ([]storage.MediaFile, error) {
	return e.materializeAll(e.idx.ByAlbum(artist, album)), nil
}

func (e *Engine) GetMusicByGenre(ctx context.Context, genre string) ([]storage.MediaFile, error) {
	return e.materializeAll(e.idx.ByGenre(genre)), nil
}

func (e *Engine) GetMusicByYear(ctx context.Context, year string) ([]storage.MediaFile, error) {
	return e.materializeAll(e.idx.ByYear(year)), nil
}

func (e *Engine) materializeAll(ids []int64) []storage.MediaFile {
	out := make([]storage.MediaFile, 0, len(ids))
	for _, id := range ids {
		if f, ok := e.getMaterialized(id); ok {
			out = append(out, f)
		}
	}
	return out
}

func toCategories(counts map[string]int) []storage.MusicCategory {
	out := make([]storage.MusicCategory, 0, len(counts))
	for k, c := range counts {
		out = append(out, storage.MusicCategory{Key: k, Count: c})
	}
	return out
}
