package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinTDCT/mediacat/internal/storage/codec"
)

func TestLRUGetMissIncrementsCounter(t *testing.T) {
	counters := &Counters{}
	c := newLRU(1<<20, counters)

	_, ok := c.get(1)
	assert.False(t, ok)
	assert.Equal(t, int64(1), counters.CacheMisses.Load())
	assert.Equal(t, int64(0), counters.CacheHits.Load())
}

func TestLRUPutThenGetHits(t *testing.T) {
	counters := &Counters{}
	c := newLRU(1<<20, counters)

	f := codec.MediaFile{ID: 1, CanonicalPath: "/media/a.mp4"}
	c.put(f)

	got, ok := c.get(1)
	require.True(t, ok)
	assert.Equal(t, f.CanonicalPath, got.CanonicalPath)
	assert.Equal(t, int64(1), counters.CacheHits.Load())
}

func TestLRUUpdateExistingEntryAdjustsMemoryBytes(t *testing.T) {
	counters := &Counters{}
	c := newLRU(1<<20, counters)

	c.put(codec.MediaFile{ID: 1, CanonicalPath: "/a"})
	before := counters.MemoryBytes.Load()

	c.put(codec.MediaFile{ID: 1, CanonicalPath: "/a-much-longer-canonical-path-than-before"})
	after := counters.MemoryBytes.Load()

	assert.Greater(t, after, before)
}

func TestLRUEvictsLeastRecentlyUsedWhenOverLimit(t *testing.T) {
	counters := &Counters{}
	// A tiny limit forces eviction as soon as a second entry is inserted.
	small := estimatedRecordBytes(codec.MediaFile{ID: 1, CanonicalPath: "/a"}) + 10
	c := newLRU(small, counters)

	c.put(codec.MediaFile{ID: 1, CanonicalPath: "/a"})
	c.put(codec.MediaFile{ID: 2, CanonicalPath: "/b"})

	_, ok := c.get(1)
	assert.False(t, ok, "oldest entry should have been evicted")

	got, ok := c.get(2)
	assert.True(t, ok)
	assert.Equal(t, "/b", got.CanonicalPath)
}

func TestLRUTouchingEntryProtectsItFromEviction(t *testing.T) {
	counters := &Counters{}
	budget := estimatedRecordBytes(codec.MediaFile{ID: 1, CanonicalPath: "/a"}) * 2
	c := newLRU(budget, counters)

	c.put(codec.MediaFile{ID: 1, CanonicalPath: "/a"})
	c.put(codec.MediaFile{ID: 2, CanonicalPath: "/b"})
	_, _ = c.get(1) // touch 1, making 2 the least-recently-used

	c.put(codec.MediaFile{ID: 3, CanonicalPath: "/c"})

	_, ok := c.get(2)
	assert.False(t, ok, "2 should have been evicted, not 1")

	_, ok = c.get(1)
	assert.True(t, ok)
}

func TestLRURemove(t *testing.T) {
	counters := &Counters{}
	c := newLRU(1<<20, counters)

	c.put(codec.MediaFile{ID: 1, CanonicalPath: "/a"})
	c.remove(1)

	_, ok := c.get(1)
	assert.False(t, ok)
	assert.Equal(t, int64(0), counters.MemoryBytes.Load())
}

func TestLRUTracksPeakMemoryBytes(t *testing.T) {
	counters := &Counters{}
	c := newLRU(1<<20, counters)

	c.put(codec.MediaFile{ID: 1, CanonicalPath: "/a-long-enough-path"})
	peak := counters.PeakMemoryBytes.Load()
	c.remove(1)

	assert.Equal(t, peak, counters.PeakMemoryBytes.Load(), "peak must not decrease on removal")
	assert.Equal(t, int64(0), counters.MemoryBytes.Load())
}
