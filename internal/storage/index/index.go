package index

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/JustinTDCT/mediacat/internal/storage/codec"
)

// Location is id_to_location's value: the batch containing the latest
// record for an id, plus the record's position within that batch's
// FlatBuffer vector. spec.md §4.4 phrases this as "the id's byte offset
// within the batch's FlatBuffer"; this engine stores the vector index
// instead of a raw byte offset, since codec.Batch.Record already does
// bounds-checked, zero-copy lookup by index — functionally identical,
// cheaper to validate. Recorded in DESIGN.md.
type Location struct {
	BatchOffset int64 // offset of the (header+payload) unit in media.fb
	BatchLength int64 // total length of (header+payload)
	RecordIndex int   // index of this record within the batch's vector
}

// dirEntry is one entry of dir_index: an id with its filename cached for
// sort order, so re-sorting never needs to go back to the cache or disk.
type dirEntry struct {
	id       int64
	filename string
}

// Counters are the engine-wide atomic counters spec.md §4.5 and §6.2
// require (total_files, cache_hits, etc.), owned by the index manager
// since cache hit/miss accounting lives here.
type Counters struct {
	TotalFiles          atomic.Int64
	TotalOperations     atomic.Int64
	BulkOperations      atomic.Int64
	TotalFilesProcessed atomic.Int64
	CacheHits           atomic.Int64
	CacheMisses         atomic.Int64
	MemoryBytes         atomic.Int64
	PeakMemoryBytes     atomic.Int64

	currentThroughputBits atomic.Uint64 // math.Float64bits of EWMA
	peakThroughputBits    atomic.Uint64
}

// Manager owns the four in-memory indexes and the record cache. All
// mutation happens only through the bulk op engine (internal/storage/engine);
// Manager itself does no I/O.
type Manager struct {
	Counters Counters

	shardCount int
	ring       *shardRing
	paths      []*pathShard
	locations  []*locationShard

	dirMu          sync.RWMutex
	dirIndex       map[string][]dirEntry      // parent -> sorted-by-filename entries
	dirChildrenSet map[string]map[string]bool // parent -> set of immediate subdir tokens

	musicMu  sync.RWMutex
	byArtist map[string][]int64
	byAlbum  map[string][]int64 // key: artist + "\x00" + album
	byGenre  map[string][]int64
	byYear   map[string][]int64

	cache *lru

	cacheLimitBytes    int64
	indexLimitBytes    int64
	metadataLimitBytes int64
}

// NewManager constructs an index manager with shardCount shards and the
// given memory caps (all in bytes).
func NewManager(shardCount int, cacheLimitBytes, indexLimitBytes, metadataLimitBytes int64) *Manager {
	if shardCount < 1 {
		shardCount = 1
	}
	m := &Manager{
		shardCount:         shardCount,
		ring:               newShardRing(shardCount),
		paths:              make([]*pathShard, shardCount),
		locations:          make([]*locationShard, shardCount),
		dirIndex:           make(map[string][]dirEntry),
		dirChildrenSet:     make(map[string]map[string]bool),
		byArtist:           make(map[string][]int64),
		byAlbum:            make(map[string][]int64),
		byGenre:            make(map[string][]int64),
		byYear:             make(map[string][]int64),
		cacheLimitBytes:    cacheLimitBytes,
		indexLimitBytes:    indexLimitBytes,
		metadataLimitBytes: metadataLimitBytes,
	}
	for i := range m.paths {
		m.paths[i] = &pathShard{m: make(map[string]int64)}
		m.locations[i] = &locationShard{m: make(map[int64]Location)}
	}
	m.cache = newLRU(cacheLimitBytes, &m.Counters)
	return m
}

func idKey(id int64) string {
	// decimal string, stable across shard-ring changes.
	var buf [20]byte
	n := len(buf)
	neg := id < 0
	u := uint64(id)
	if neg {
		u = uint64(-id)
	}
	if u == 0 {
		n--
		buf[n] = '0'
	}
	for u > 0 {
		n--
		buf[n] = byte('0' + u%10)
		u /= 10
	}
	if neg {
		n--
		buf[n] = '-'
	}
	return string(buf[n:])
}

func (m *Manager) pathShardFor(path string) *pathShard {
	return m.paths[m.ring.shardFor(path)]
}

func (m *Manager) locationShardFor(id int64) *locationShard {
	return m.locations[m.ring.shardFor(idKey(id))]
}

// LookupID returns the id for a canonical path, if live.
func (m *Manager) LookupID(canonicalPath string) (int64, bool) {
	s := m.pathShardFor(canonicalPath)
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.m[canonicalPath]
	return id, ok
}

// LookupLocation returns the on-disk location for a live id.
func (m *Manager) LookupLocation(id int64) (Location, bool) {
	s := m.locationShardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.m[id]
	return loc, ok
}

// Put installs/overwrites path->id and id->location atomically with
// respect to readers of either map (each map's own shard mutex serializes
// with readers; spec.md §5's ordering guarantee — mmap append before the
// WAL entry before path_to_id before id_to_location before dir_index
// before music_indexes — is enforced by bulk engine call order, not by
// this method).
func (m *Manager) Put(canonicalPath string, id int64, loc Location) {
	ps := m.pathShardFor(canonicalPath)
	ps.mu.Lock()
	ps.m[canonicalPath] = id
	ps.mu.Unlock()

	ls := m.locationShardFor(id)
	ls.mu.Lock()
	ls.m[id] = loc
	ls.mu.Unlock()
}

// Remove drops canonicalPath/id from path_to_id and id_to_location.
func (m *Manager) Remove(canonicalPath string, id int64) {
	ps := m.pathShardFor(canonicalPath)
	ps.mu.Lock()
	delete(ps.m, canonicalPath)
	ps.mu.Unlock()

	ls := m.locationShardFor(id)
	ls.mu.Lock()
	delete(ls.m, id)
	ls.mu.Unlock()

	m.cache.remove(id)
}

// PutDirEntry inserts id (sorted by filename) under parent's direct-child
// list, per spec.md §4.4.
func (m *Manager) PutDirEntry(parent, filename string, id int64) {
	m.dirMu.Lock()
	defer m.dirMu.Unlock()

	entries := m.dirIndex[parent]
	idx := sort.Search(len(entries), func(i int) bool {
		return entries[i].filename >= filename
	})
	entries = append(entries, dirEntry{})
	copy(entries[idx+1:], entries[idx:])
	entries[idx] = dirEntry{id: id, filename: filename}
	m.dirIndex[parent] = entries
}

// RegisterDirectoryChain records that childToken is an immediate
// subdirectory of parent (parent a canonical path, childToken a single
// path component), maintaining dir_children_dirs.
func (m *Manager) RegisterDirectoryChain(parent, childToken string) {
	m.dirMu.Lock()
	defer m.dirMu.Unlock()
	set, ok := m.dirChildrenSet[parent]
	if !ok {
		set = make(map[string]bool)
		m.dirChildrenSet[parent] = set
	}
	set[childToken] = true
}

// RemoveDirEntry removes id from parent's direct-child list.
func (m *Manager) RemoveDirEntry(parent string, id int64) {
	m.dirMu.Lock()
	defer m.dirMu.Unlock()
	entries := m.dirIndex[parent]
	for i, existing := range entries {
		if existing.id == id {
			m.dirIndex[parent] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
}

// DirectFiles returns the direct-child ids of parent, in filename order.
func (m *Manager) DirectFiles(parent string) []int64 {
	m.dirMu.RLock()
	defer m.dirMu.RUnlock()
	entries := m.dirIndex[parent]
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.id
	}
	return out
}

// DirectSubdirectories returns the sorted set of immediate subdirectory
// tokens under parent.
func (m *Manager) DirectSubdirectories(parent string) []string {
	m.dirMu.RLock()
	defer m.dirMu.RUnlock()
	set := m.dirChildrenSet[parent]
	out := make([]string, 0, len(set))
	for token := range set {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

// CacheGet consults the record cache.
func (m *Manager) CacheGet(id int64) (codec.MediaFile, bool) {
	return m.cache.get(id)
}

// CachePut inserts a decoded record into the cache, evicting LRU entries
// as needed to respect cacheLimitBytes.
func (m *Manager) CachePut(f codec.MediaFile) {
	m.cache.put(f)
}

// AllPaths returns every live canonical path, in no particular order, for
// streaming consumers (StreamAllMediaFiles, StreamByPrefix, CleanupMissing).
func (m *Manager) AllPaths() []string {
	out := make([]string, 0, m.Counters.TotalFiles.Load())
	for _, shard := range m.paths {
		shard.mu.RLock()
		for path := range shard.m {
			out = append(out, path)
		}
		shard.mu.RUnlock()
	}
	return out
}

// SnapshotEntries dumps path_to_id + id_to_location as a flat list
// suitable for WriteSnapshot.
func (m *Manager) SnapshotEntries() []SnapshotEntry {
	out := make([]SnapshotEntry, 0, m.Counters.TotalFiles.Load())
	for _, shard := range m.paths {
		shard.mu.RLock()
		for path, id := range shard.m {
			if loc, ok := m.LookupLocation(id); ok {
				out = append(out, SnapshotEntry{
					CanonicalPath: path,
					ID:            id,
					BatchOffset:   loc.BatchOffset,
					BatchLength:   loc.BatchLength,
					RecordIndex:   int32(loc.RecordIndex),
				})
			}
		}
		shard.mu.RUnlock()
	}
	return out
}

// LoadEntries installs path_to_id/id_to_location from a snapshot or WAL
// replay, without touching dir_index/music_indexes — the caller
// (internal/storage/engine) rebuilds those by re-decoding each entry's
// record once every entry is loaded.
func (m *Manager) LoadEntries(entries []SnapshotEntry) {
	for _, e := range entries {
		m.Put(e.CanonicalPath, e.ID, Location{
			BatchOffset: e.BatchOffset,
			BatchLength: e.BatchLength,
			RecordIndex: int(e.RecordIndex),
		})
	}
}
