package index

import (
	"container/list"
	"sync"

	"github.com/JustinTDCT/mediacat/internal/storage/codec"
)

// estimatedRecordBytes approximates a decoded MediaFile's resident size
// for cache accounting, since Go gives no cheap exact figure. Mirrors the
// rough per-row budgeting style of ram_cache_limit_mb in spec.md §6.3.
func estimatedRecordBytes(f codec.MediaFile) int64 {
	size := int64(200) // struct overhead + fixed fields
	size += int64(len(f.Path) + len(f.CanonicalPath) + len(f.CanonicalParentPath) + len(f.Filename) + len(f.MimeType))
	if f.Title != nil {
		size += int64(len(*f.Title))
	}
	if f.Artist != nil {
		size += int64(len(*f.Artist))
	}
	if f.Album != nil {
		size += int64(len(*f.Album))
	}
	if f.Genre != nil {
		size += int64(len(*f.Genre))
	}
	if f.AlbumArtist != nil {
		size += int64(len(*f.AlbumArtist))
	}
	return size
}

type lruEntry struct {
	id    int64
	value codec.MediaFile
	bytes int64
}

// lru is the bounded, atomically-accounted record cache of spec.md §4.4.
// Hits/misses/evictions update the shared Counters; eviction is
// cooperative, triggered on insert, per spec.md §5's "eviction is
// cooperative (triggered on insert)".
type lru struct {
	mu       sync.Mutex
	limit    int64
	elements map[int64]*list.Element
	order    *list.List // front = most recently used
	counters *Counters
}

func newLRU(limitBytes int64, counters *Counters) *lru {
	return &lru{
		limit:    limitBytes,
		elements: make(map[int64]*list.Element),
		order:    list.New(),
		counters: counters,
	}
}

func (c *lru) get(id int64) (codec.MediaFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.elements[id]
	if !ok {
		c.counters.CacheMisses.Add(1)
		return codec.MediaFile{}, false
	}
	c.order.MoveToFront(el)
	c.counters.CacheHits.Add(1)
	return el.Value.(*lruEntry).value, true
}

func (c *lru) put(f codec.MediaFile) {
	bytes := estimatedRecordBytes(f)
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.elements[f.ID]; ok {
		old := el.Value.(*lruEntry)
		c.counters.MemoryBytes.Add(bytes - old.bytes)
		old.value = f
		old.bytes = bytes
		c.order.MoveToFront(el)
	} else {
		el := c.order.PushFront(&lruEntry{id: f.ID, value: f, bytes: bytes})
		c.elements[f.ID] = el
		c.counters.MemoryBytes.Add(bytes)
	}

	c.evictLocked()

	if cur := c.counters.MemoryBytes.Load(); cur > c.counters.PeakMemoryBytes.Load() {
		c.counters.PeakMemoryBytes.Store(cur)
	}
}

func (c *lru) evictLocked() {
	for c.counters.MemoryBytes.Load() > c.limit {
		tail := c.order.Back()
		if tail == nil {
			return
		}
		entry := tail.Value.(*lruEntry)
		c.order.Remove(tail)
		delete(c.elements, entry.id)
		c.counters.MemoryBytes.Add(-entry.bytes)
	}
}

func (c *lru) remove(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.elements[id]
	if !ok {
		return
	}
	entry := el.Value.(*lruEntry)
	c.order.Remove(el)
	delete(c.elements, id)
	c.counters.MemoryBytes.Add(-entry.bytes)
}
