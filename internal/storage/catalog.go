// Package storage defines the capability-set interface spec.md §9's
// Design Notes calls for: {bulk_store, bulk_update, bulk_remove, bulk_get,
// stream, browse}, implemented by two variants (ZeroCopy in
// internal/storage/engine and a Postgres-backed legacy variant in
// internal/legacycatalog) rather than by inheritance.
package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/JustinTDCT/mediacat/internal/storage/codec"
)

// MediaFile is the engine's domain record, spec.md §3.
type MediaFile = codec.MediaFile

// Playlist is a position-ordered collection of media file ids, spec.md §3.
type Playlist struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedAt   int64
	UpdatedAt   int64
	Entries     []PlaylistEntry
}

// PlaylistEntry pairs a media file id with its position in a playlist.
type PlaylistEntry struct {
	MediaFileID int64
	Position    int
}

// MusicCategory is a derived (key, count) view, spec.md §3.
type MusicCategory struct {
	Key   string
	Count int
}

// DirectoryListing is the ephemeral result of a browse query, spec.md §3.
type DirectoryListing struct {
	Subdirectories []string
	Files          []MediaFile
}

// Stats mirrors spec.md §6.2's stats() surface.
type Stats struct {
	TotalFiles      int64
	TotalOperations int64
	CacheHitRate    float64
	Throughput      float64
	MemoryBytes     int64
	PeakMemoryBytes int64
}

// UpsertMode controls how bulk_store treats a path that already resolves
// to a live id, spec.md §4.5 step 2.
type UpsertMode int

const (
	// RejectDuplicates fails an individual record (not the whole batch)
	// when its canonical path already maps to a live id.
	RejectDuplicates UpsertMode = iota
	// Upsert routes such records to bulk_update instead.
	Upsert
)

// Catalog is the full operation surface spec.md §6.2 names. Both the
// zero-copy engine and the legacy SQL-backed store implement it, so a
// caller (scanner, watcher, browse consumer) can be handed either variant
// interchangeably.
type Catalog interface {
	BulkStore(ctx context.Context, files []MediaFile, mode UpsertMode) ([]int64, error)
	BulkUpdate(ctx context.Context, files []MediaFile) error
	BulkRemove(ctx context.Context, canonicalPaths []string) (int, error)
	BulkGetByPaths(ctx context.Context, canonicalPaths []string) ([]*MediaFile, error)

	Store(ctx context.Context, file MediaFile) (int64, error)
	Update(ctx context.Context, file MediaFile) error
	Remove(ctx context.Context, canonicalPath string) error
	GetByPath(ctx context.Context, canonicalPath string) (*MediaFile, error)
	GetByID(ctx context.Context, id int64) (*MediaFile, error)

	GetDirectoryListing(ctx context.Context, parent, mimePrefix string) (DirectoryListing, error)

	GetArtists(ctx context.Context) ([]MusicCategory, error)
	GetAlbums(ctx context.Context, artist string) ([]MusicCategory, error)
	GetGenres(ctx context.Context) ([]MusicCategory, error)
	GetYears(ctx context.Context) ([]MusicCategory, error)
	GetMusicByArtist(ctx context.Context, artist string) ([]MediaFile, error)
	GetMusicByAlbum(ctx context.Context, artist, album string) ([]MediaFile, error)
	GetMusicByGenre(ctx context.Context, genre string) ([]MediaFile, error)
	GetMusicByYear(ctx context.Context, year string) ([]MediaFile, error)

	CreatePlaylist(ctx context.Context, name, description string) (*Playlist, error)
	BulkAddToPlaylist(ctx context.Context, playlistID uuid.UUID, mediaFileIDs []int64) error
	BulkRemoveFromPlaylist(ctx context.Context, playlistID uuid.UUID, mediaFileIDs []int64) error
	GetPlaylistTracks(ctx context.Context, playlistID uuid.UUID) ([]MediaFile, error)

	StreamAllMediaFiles(ctx context.Context) (<-chan MediaFile, error)
	StreamByPrefix(ctx context.Context, canonicalPrefix string) (<-chan MediaFile, error)
	CleanupMissing(ctx context.Context, existing map[string]struct{}) (int, error)

	Stats(ctx context.Context) (Stats, error)
	Close() error
}
