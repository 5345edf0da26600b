package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinTDCT/mediacat/internal/storage"
	"github.com/JustinTDCT/mediacat/internal/storage/engineconfig"
	"github.com/JustinTDCT/mediacat/internal/storage/mmapfile"
	"github.com/JustinTDCT/mediacat/internal/storage/storageerr"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	cfg := engineconfig.Defaults()
	e, err := Open(dir, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestBulkStoreThenGetByPathAndID(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	files := []storage.MediaFile{
		{CanonicalPath: "/media/movies/inception.mkv", Path: "/mnt/media/movies/inception.mkv", Size: 100, MimeType: "video/x-matroska"},
		{CanonicalPath: "/media/movies/matrix.mkv", Path: "/mnt/media/movies/matrix.mkv", Size: 200, MimeType: "video/x-matroska"},
	}

	ids, err := e.BulkStore(ctx, files, storage.RejectDuplicates)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])

	got, err := e.GetByPath(ctx, "/media/movies/inception.mkv")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ids[0], got.ID)
	assert.Equal(t, int64(100), got.Size)

	byID, err := e.GetByID(ctx, ids[1])
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "/media/movies/matrix.mkv", byID.CanonicalPath)
}

func TestBulkStoreRejectsDuplicatePathUnderRejectMode(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	first := []storage.MediaFile{{CanonicalPath: "/media/a.mp4", Size: 1}}
	ids, err := e.BulkStore(ctx, first, storage.RejectDuplicates)
	require.NoError(t, err)
	require.NotEqual(t, int64(0), ids[0])

	// Second attempt at the same path is rejected per-record, not as a
	// batch failure: its slot comes back as id 0 while err stays nil.
	ids, err = e.BulkStore(ctx, first, storage.RejectDuplicates)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ids[0])

	got, err := e.GetByPath(ctx, "/media/a.mp4")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Size, "original record must be untouched")
}

func TestBulkStoreUpsertModeUpdatesExisting(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	ids, err := e.BulkStore(ctx, []storage.MediaFile{{CanonicalPath: "/media/a.mp4", Size: 1}}, storage.RejectDuplicates)
	require.NoError(t, err)

	_, err = e.BulkStore(ctx, []storage.MediaFile{{CanonicalPath: "/media/a.mp4", Size: 999}}, storage.Upsert)
	require.NoError(t, err)

	got, err := e.GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, int64(999), got.Size)
}

func TestBulkUpdateChangesExistingRecord(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	ids, err := e.BulkStore(ctx, []storage.MediaFile{{CanonicalPath: "/media/a.mp4", Size: 1}}, storage.RejectDuplicates)
	require.NoError(t, err)

	err = e.BulkUpdate(ctx, []storage.MediaFile{{ID: ids[0], CanonicalPath: "/media/a.mp4", Size: 42}})
	require.NoError(t, err)

	got, err := e.GetByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Size)
}

func TestBulkRemoveDeletesRecord(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	_, err := e.BulkStore(ctx, []storage.MediaFile{{CanonicalPath: "/media/a.mp4"}}, storage.RejectDuplicates)
	require.NoError(t, err)

	n, err := e.BulkRemove(ctx, []string{"/media/a.mp4"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := e.GetByPath(ctx, "/media/a.mp4")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBulkGetByPathsReturnsNilForMissing(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	_, err := e.BulkStore(ctx, []storage.MediaFile{{CanonicalPath: "/media/a.mp4"}}, storage.RejectDuplicates)
	require.NoError(t, err)

	results, err := e.BulkGetByPaths(ctx, []string{"/media/a.mp4", "/media/missing.mp4"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])
}

func TestGetDirectoryListingReturnsDirectChildrenOnly(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	_, err := e.BulkStore(ctx, []storage.MediaFile{
		{CanonicalPath: "/media/movies/inception.mkv", MimeType: "video/x-matroska"},
		{CanonicalPath: "/media/movies/sub/extra.mkv", MimeType: "video/x-matroska"},
		{CanonicalPath: "/media/music/track.flac", MimeType: "audio/flac"},
	}, storage.RejectDuplicates)
	require.NoError(t, err)

	listing, err := e.GetDirectoryListing(ctx, "/media", "")
	require.NoError(t, err)

	assert.Contains(t, listing.Subdirectories, "movies")
	assert.Contains(t, listing.Subdirectories, "music")
	assert.Empty(t, listing.Files, "no files live directly under /media")

	moviesListing, err := e.GetDirectoryListing(ctx, "/media/movies", "")
	require.NoError(t, err)
	assert.Len(t, moviesListing.Files, 1)
	assert.Contains(t, moviesListing.Subdirectories, "sub")
}

func TestBulkUpdateDoesNotDuplicateDirectoryListingEntry(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	ids, err := e.BulkStore(ctx, []storage.MediaFile{
		{CanonicalPath: "/media/movies/inception.mkv", MimeType: "video/x-matroska", Size: 100},
	}, storage.RejectDuplicates)
	require.NoError(t, err)

	err = e.BulkUpdate(ctx, []storage.MediaFile{
		{ID: ids[0], CanonicalPath: "/media/movies/inception.mkv", MimeType: "video/x-matroska", Size: 200},
	})
	require.NoError(t, err)

	listing, err := e.GetDirectoryListing(ctx, "/media/movies", "")
	require.NoError(t, err)
	require.Len(t, listing.Files, 1, "an mtime-bump update must replace, not duplicate, the dir_index entry")
	assert.Equal(t, int64(200), listing.Files[0].Size)
}

func TestBulkUpdateDoesNotDuplicateMusicIndexEntry(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	artist := "Test Artist"
	year2001 := int32(2001)
	year2002 := int32(2002)

	ids, err := e.BulkStore(ctx, []storage.MediaFile{
		{CanonicalPath: "/media/music/song.flac", MimeType: "audio/flac", Artist: &artist, Year: &year2001},
	}, storage.RejectDuplicates)
	require.NoError(t, err)

	err = e.BulkUpdate(ctx, []storage.MediaFile{
		{ID: ids[0], CanonicalPath: "/media/music/song.flac", MimeType: "audio/flac", Artist: &artist, Year: &year2002},
	})
	require.NoError(t, err)

	byArtist, err := e.GetMusicByArtist(ctx, artist)
	require.NoError(t, err)
	assert.Len(t, byArtist, 1, "an update must not leave the id registered twice under the same artist")

	artists, err := e.GetArtists(ctx)
	require.NoError(t, err)
	require.Len(t, artists, 1)
	assert.Equal(t, 1, artists[0].Count)
}

func TestMusicCategoryQueries(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	artist := "Test Artist"
	album := "Test Album"
	genre := "Rock"
	year := int32(2001)

	_, err := e.BulkStore(ctx, []storage.MediaFile{
		{CanonicalPath: "/media/music/song1.flac", MimeType: "audio/flac", Artist: &artist, Album: &album, Genre: &genre, Year: &year},
		{CanonicalPath: "/media/music/song2.flac", MimeType: "audio/flac", Artist: &artist, Album: &album, Genre: &genre, Year: &year},
	}, storage.RejectDuplicates)
	require.NoError(t, err)

	artists, err := e.GetArtists(ctx)
	require.NoError(t, err)
	require.Len(t, artists, 1)
	assert.Equal(t, artist, artists[0].Key)
	assert.Equal(t, 2, artists[0].Count)

	tracks, err := e.GetMusicByArtist(ctx, artist)
	require.NoError(t, err)
	assert.Len(t, tracks, 2)
}

func TestPlaylistLifecycle(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	ids, err := e.BulkStore(ctx, []storage.MediaFile{
		{CanonicalPath: "/media/music/a.flac"},
		{CanonicalPath: "/media/music/b.flac"},
	}, storage.RejectDuplicates)
	require.NoError(t, err)

	pl, err := e.CreatePlaylist(ctx, "My Mix", "a test playlist")
	require.NoError(t, err)
	require.NotNil(t, pl)

	require.NoError(t, e.BulkAddToPlaylist(ctx, pl.ID, ids))

	tracks, err := e.GetPlaylistTracks(ctx, pl.ID)
	require.NoError(t, err)
	assert.Len(t, tracks, 2)

	require.NoError(t, e.BulkRemoveFromPlaylist(ctx, pl.ID, []int64{ids[0]}))

	tracks, err = e.GetPlaylistTracks(ctx, pl.ID)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, ids[1], tracks[0].ID)
}

func TestBulkRemoveScrubsPlaylistEntries(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	ids, err := e.BulkStore(ctx, []storage.MediaFile{
		{CanonicalPath: "/media/music/a.flac"},
		{CanonicalPath: "/media/music/b.flac"},
	}, storage.RejectDuplicates)
	require.NoError(t, err)

	pl, err := e.CreatePlaylist(ctx, "My Mix", "a test playlist")
	require.NoError(t, err)
	require.NoError(t, e.BulkAddToPlaylist(ctx, pl.ID, ids))

	n, err := e.BulkRemove(ctx, []string{"/media/music/a.flac"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tracks, err := e.GetPlaylistTracks(ctx, pl.ID)
	require.NoError(t, err)
	require.Len(t, tracks, 1, "removing a MediaFile must scrub any PlaylistEntry referencing it")
	assert.Equal(t, ids[1], tracks[0].ID)
}

func TestStatsReflectsStoredFileCount(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	_, err := e.BulkStore(ctx, []storage.MediaFile{
		{CanonicalPath: "/media/a.mp4"},
		{CanonicalPath: "/media/b.mp4"},
	}, storage.RejectDuplicates)
	require.NoError(t, err)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalFiles)
}

func TestStreamAllMediaFilesYieldsEveryRecord(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	_, err := e.BulkStore(ctx, []storage.MediaFile{
		{CanonicalPath: "/media/a.mp4"},
		{CanonicalPath: "/media/b.mp4"},
		{CanonicalPath: "/media/c.mp4"},
	}, storage.RejectDuplicates)
	require.NoError(t, err)

	ch, err := e.StreamAllMediaFiles(ctx)
	require.NoError(t, err)

	seen := map[string]bool{}
	for f := range ch {
		seen[f.CanonicalPath] = true
	}
	assert.Len(t, seen, 3)
}

func TestCleanupMissingRemovesRecordsNotInExistingSet(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	_, err := e.BulkStore(ctx, []storage.MediaFile{
		{CanonicalPath: "/media/keep.mp4"},
		{CanonicalPath: "/media/gone.mp4"},
	}, storage.RejectDuplicates)
	require.NoError(t, err)

	n, err := e.CleanupMissing(ctx, map[string]struct{}{"/media/keep.mp4": {}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := e.GetByPath(ctx, "/media/gone.mp4")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = e.GetByPath(ctx, "/media/keep.mp4")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestEngineRecoversStateAfterReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := engineconfig.Defaults()

	e1, err := Open(dir, cfg)
	require.NoError(t, err)

	ids, err := e1.BulkStore(context.Background(), []storage.MediaFile{
		{CanonicalPath: "/media/a.mp4", Size: 123},
	}, storage.RejectDuplicates)
	require.NoError(t, err)
	require.NoError(t, e1.Close())

	e2, err := Open(dir, cfg)
	require.NoError(t, err)
	defer e2.Close()

	got, err := e2.GetByID(context.Background(), ids[0])
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(123), got.Size)
}

// TestEngineRecoversFromWALWhenSnapshotMissing simulates an unclean
// shutdown (no snapshot on disk, just data + WAL) by closing the region
// and WAL directly instead of going through Close, which always writes a
// fresh snapshot. recover() must fall back to WAL replay per spec.md §7.
func TestEngineRecoversFromWALWhenSnapshotMissing(t *testing.T) {
	dir := t.TempDir()
	cfg := engineconfig.Defaults()

	e1, err := Open(dir, cfg)
	require.NoError(t, err)

	ids, err := e1.BulkStore(context.Background(), []storage.MediaFile{
		{CanonicalPath: "/media/a.mp4", Size: 55},
		{CanonicalPath: "/media/b.mp4", Size: 66},
	}, storage.RejectDuplicates)
	require.NoError(t, err)

	require.NoError(t, e1.BulkUpdate(context.Background(), []storage.MediaFile{
		{ID: ids[0], CanonicalPath: "/media/a.mp4", Size: 77},
	}))

	n, err := e1.BulkRemove(context.Background(), []string{"/media/b.mp4"})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, e1.region.Sync())
	require.NoError(t, e1.region.Close())
	require.NoError(t, e1.walLog.Close())

	_, statErr := os.Stat(filepath.Join(dir, indexFileName))
	require.True(t, os.IsNotExist(statErr), "no snapshot should exist for this test to be meaningful")

	e2, err := Open(dir, cfg)
	require.NoError(t, err)
	defer e2.Close()

	got, err := e2.GetByID(context.Background(), ids[0])
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(77), got.Size, "update replayed from WAL should win over the original insert")

	removed, err := e2.GetByID(context.Background(), ids[1])
	require.NoError(t, err)
	assert.Nil(t, removed, "removed record must not reappear after WAL replay")

	stats, err := e2.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalFiles)
}

// TestEngineOpensDegradedOnNonTailCorruption damages the first of two
// committed batches (non-tail) in media.fb in place, so the WAL itself
// replays two structurally valid records but the first one's batch fails
// to decode. Per spec.md §7 this must leave the catalog open but
// degraded, rejecting further mutating ops with Corrupt, rather than
// failing Open or silently tolerating the corruption as a torn tail.
func TestEngineOpensDegradedOnNonTailCorruption(t *testing.T) {
	dir := t.TempDir()
	cfg := engineconfig.Defaults()

	e1, err := Open(dir, cfg)
	require.NoError(t, err)

	_, err = e1.BulkStore(context.Background(), []storage.MediaFile{
		{CanonicalPath: "/media/a.mp4", Size: 1},
	}, storage.RejectDuplicates)
	require.NoError(t, err)

	_, err = e1.BulkStore(context.Background(), []storage.MediaFile{
		{CanonicalPath: "/media/b.mp4", Size: 2},
	}, storage.RejectDuplicates)
	require.NoError(t, err)

	require.NoError(t, e1.region.Sync())
	require.NoError(t, e1.region.Close())
	require.NoError(t, e1.walLog.Close())

	_, statErr := os.Stat(filepath.Join(dir, indexFileName))
	require.True(t, os.IsNotExist(statErr), "no snapshot should exist for this test to be meaningful")

	// Flip a byte inside the first batch's payload, just past the region
	// header and the 40-byte batch header — this is not the final batch
	// in the file, so it is non-tail corruption.
	dataPath := filepath.Join(dir, dataFileName)
	data, err := os.ReadFile(dataPath)
	require.NoError(t, err)
	corruptAt := mmapfile.HeaderSize + 40
	require.Greater(t, len(data), corruptAt)
	data[corruptAt] ^= 0xFF
	require.NoError(t, os.WriteFile(dataPath, data, 0o644))

	e2, err := Open(dir, cfg)
	require.NoError(t, err)
	defer e2.Close()

	assert.True(t, e2.Degraded(), "non-tail batch corruption must leave the engine degraded")

	_, err = e2.BulkStore(context.Background(), []storage.MediaFile{
		{CanonicalPath: "/media/c.mp4"},
	}, storage.RejectDuplicates)
	require.Error(t, err)
	assert.ErrorIs(t, err, storageerr.Corrupt.Sentinel())
}
