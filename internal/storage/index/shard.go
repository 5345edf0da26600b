// Package index holds the four in-memory indexes plus the LRU record
// cache described in spec.md §4.4: path_to_id, id_to_location, dir_index
// (+ its dir_children_dirs companion set), the four music categorical
// indexes, and the bounded record cache.
//
// path_to_id and id_to_location are sharded to cut lock contention under
// concurrent bulk ops, assigning each key to one of N shards via rendezvous
// hashing (github.com/dgryski/go-rendezvous) keyed by an xxhash digest
// (github.com/cespare/xxhash/v2) of the lookup key — both teacher go.mod
// dependencies the teacher's own source never exercised. Rendezvous
// hashing is used (rather than a plain modulo) so a future shard-count
// change during a config reload remaps the minimum possible number of
// keys, rather than nearly all of them.
package index

import (
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	rendezvous "github.com/dgryski/go-rendezvous"
)

func xxhashString(s string) uint64 {
	return xxhash.Sum64String(s)
}

// shardRing picks one of N named shards for a string key via rendezvous
// hashing.
type shardRing struct {
	names []string
	r     *rendezvous.Rendezvous
}

func newShardRing(n int) *shardRing {
	if n < 1 {
		n = 1
	}
	names := make([]string, n)
	for i := range names {
		names[i] = strconv.Itoa(i)
	}
	return &shardRing{
		names: names,
		r:     rendezvous.New(names, xxhashString),
	}
}

func (s *shardRing) shardFor(key string) int {
	name := s.r.Lookup(key)
	i, _ := strconv.Atoi(name)
	return i
}

// pathShard is one shard of the path_to_id index.
type pathShard struct {
	mu sync.RWMutex
	m  map[string]int64
}

// locationShard is one shard of the id_to_location index.
type locationShard struct {
	mu sync.RWMutex
	m  map[int64]Location
}
