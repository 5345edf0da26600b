package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinTDCT/mediacat/internal/storage/codec"
)

func newTestManager() *Manager {
	return NewManager(4, 1<<20, 1<<20, 1<<20)
}

func TestPutThenLookupIDAndLocation(t *testing.T) {
	m := newTestManager()
	loc := Location{BatchOffset: 64, BatchLength: 128, RecordIndex: 0}
	m.Put("/media/a.mp4", 1, loc)

	id, ok := m.LookupID("/media/a.mp4")
	require.True(t, ok)
	assert.Equal(t, int64(1), id)

	got, ok := m.LookupLocation(1)
	require.True(t, ok)
	assert.Equal(t, loc, got)
}

func TestRemoveDropsBothMapsAndCache(t *testing.T) {
	m := newTestManager()
	m.Put("/media/a.mp4", 1, Location{})
	m.CachePut(codec.MediaFile{ID: 1, CanonicalPath: "/media/a.mp4"})

	m.Remove("/media/a.mp4", 1)

	_, ok := m.LookupID("/media/a.mp4")
	assert.False(t, ok)
	_, ok = m.LookupLocation(1)
	assert.False(t, ok)
	_, ok = m.CacheGet(1)
	assert.False(t, ok)
}

func TestDirEntriesStaySortedByFilename(t *testing.T) {
	m := newTestManager()
	m.PutDirEntry("/media", "c.mp4", 3)
	m.PutDirEntry("/media", "a.mp4", 1)
	m.PutDirEntry("/media", "b.mp4", 2)

	ids := m.DirectFiles("/media")
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestRemoveDirEntryDropsOnlyThatID(t *testing.T) {
	m := newTestManager()
	m.PutDirEntry("/media", "a.mp4", 1)
	m.PutDirEntry("/media", "b.mp4", 2)

	m.RemoveDirEntry("/media", 1)

	assert.Equal(t, []int64{2}, m.DirectFiles("/media"))
}

func TestDirectSubdirectoriesAreSortedAndDeduplicated(t *testing.T) {
	m := newTestManager()
	m.RegisterDirectoryChain("/media", "movies")
	m.RegisterDirectoryChain("/media", "music")
	m.RegisterDirectoryChain("/media", "movies")

	assert.Equal(t, []string{"movies", "music"}, m.DirectSubdirectories("/media"))
}

func TestAllPathsReturnsEveryLivePath(t *testing.T) {
	m := newTestManager()
	m.Put("/a", 1, Location{})
	m.Put("/b", 2, Location{})
	m.Put("/c", 3, Location{})

	paths := m.AllPaths()
	assert.ElementsMatch(t, []string{"/a", "/b", "/c"}, paths)
}

func TestSnapshotEntriesRoundTripsThroughLoadEntries(t *testing.T) {
	m1 := newTestManager()
	m1.Put("/a", 1, Location{BatchOffset: 10, BatchLength: 20, RecordIndex: 0})
	m1.Put("/b", 2, Location{BatchOffset: 30, BatchLength: 40, RecordIndex: 1})

	entries := m1.SnapshotEntries()
	require.Len(t, entries, 2)

	m2 := newTestManager()
	m2.LoadEntries(entries)

	id, ok := m2.LookupID("/a")
	require.True(t, ok)
	assert.Equal(t, int64(1), id)

	loc, ok := m2.LookupLocation(2)
	require.True(t, ok)
	assert.Equal(t, int64(30), loc.BatchOffset)
}
