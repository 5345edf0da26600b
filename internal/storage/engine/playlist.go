package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JustinTDCT/mediacat/internal/storage"
	"github.com/JustinTDCT/mediacat/internal/storage/storageerr"
)

const playlistFileName = "playlists.json"

// playlistStore is the "separate parallel structure" spec.md §4.8
// describes: an in-memory id -> Playlist map. Playlists are small,
// metadata-only records (no zero-copy hot path the way media records
// are), so persistence here is a flat JSON snapshot file rather than a
// second FlatBuffer region — documented as a deliberate simplification.
type playlistStore struct {
	mu        sync.RWMutex
	playlists map[uuid.UUID]*storage.Playlist
}

func newPlaylistStore() *playlistStore {
	return &playlistStore{playlists: make(map[uuid.UUID]*storage.Playlist)}
}

func (s *playlistStore) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var list []*storage.Playlist
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range list {
		s.playlists[p.ID] = p
	}
	return nil
}

func (s *playlistStore) save(path string) error {
	s.mu.RLock()
	list := make([]*storage.Playlist, 0, len(s.playlists))
	for _, p := range s.playlists {
		list = append(list, p)
	}
	s.mu.RUnlock()

	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *playlistStore) get(id uuid.UUID) (*storage.Playlist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.playlists[id]
	return p, ok
}

func (e *Engine) playlistPath() string { return filepath.Join(e.dir, playlistFileName) }

// CreatePlaylist allocates a new empty playlist.
func (e *Engine) CreatePlaylist(ctx context.Context, name, description string) (*storage.Playlist, error) {
	now := time.Now().Unix()
	p := &storage.Playlist{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Entries:     nil,
	}
	e.playlists.mu.Lock()
	e.playlists.playlists[p.ID] = p
	e.playlists.mu.Unlock()
	return p, nil
}

// BulkAddToPlaylist validates every media id exists, then appends them in
// input order at the next available position, per spec.md §4.8: "a
// single bulk op that validates all media ids exist, allocates positions
// (default: append)".
func (e *Engine) BulkAddToPlaylist(ctx context.Context, playlistID uuid.UUID, mediaFileIDs []int64) error {
	for _, id := range mediaFileIDs {
		if _, ok := e.idx.LookupLocation(id); !ok {
			return storageerr.New(storageerr.NotFound, "engine.BulkAddToPlaylist", "media file id does not exist")
		}
	}

	e.playlists.mu.Lock()
	defer e.playlists.mu.Unlock()
	p, ok := e.playlists.playlists[playlistID]
	if !ok {
		return storageerr.New(storageerr.NotFound, "engine.BulkAddToPlaylist", "unknown playlist")
	}
	next := len(p.Entries)
	for _, id := range mediaFileIDs {
		p.Entries = append(p.Entries, storage.PlaylistEntry{MediaFileID: id, Position: next})
		next++
	}
	p.UpdatedAt = time.Now().Unix()
	return nil
}

// BulkRemoveFromPlaylist drops the given media ids from the playlist and
// compacts remaining positions so they stay dense and ordered.
func (e *Engine) BulkRemoveFromPlaylist(ctx context.Context, playlistID uuid.UUID, mediaFileIDs []int64) error {
	remove := make(map[int64]bool, len(mediaFileIDs))
	for _, id := range mediaFileIDs {
		remove[id] = true
	}

	e.playlists.mu.Lock()
	defer e.playlists.mu.Unlock()
	p, ok := e.playlists.playlists[playlistID]
	if !ok {
		return storageerr.New(storageerr.NotFound, "engine.BulkRemoveFromPlaylist", "unknown playlist")
	}
	kept := p.Entries[:0]
	for _, entry := range p.Entries {
		if !remove[entry.MediaFileID] {
			kept = append(kept, entry)
		}
	}
	for i := range kept {
		kept[i].Position = i
	}
	p.Entries = kept
	p.UpdatedAt = time.Now().Unix()
	return nil
}

// scrubMediaFiles drops every entry referencing one of ids from every
// playlist and recompacts remaining positions, per spec.md §3's Lifecycle
// rule that "removing a MediaFile removes any PlaylistEntry referencing
// it". Called from BulkRemove so a deleted media file never leaves a
// dangling reference behind in a playlist nobody is actively editing.
func (s *playlistStore) scrubMediaFiles(ids []int64) {
	if len(ids) == 0 {
		return
	}
	remove := make(map[int64]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.playlists {
		kept := p.Entries[:0]
		changed := false
		for _, entry := range p.Entries {
			if remove[entry.MediaFileID] {
				changed = true
				continue
			}
			kept = append(kept, entry)
		}
		if !changed {
			continue
		}
		for i := range kept {
			kept[i].Position = i
		}
		p.Entries = kept
		p.UpdatedAt = time.Now().Unix()
	}
}

// GetPlaylistTracks resolves a playlist's entries, in position order, to
// materialized MediaFile records.
func (e *Engine) GetPlaylistTracks(ctx context.Context, playlistID uuid.UUID) ([]storage.MediaFile, error) {
	p, ok := e.playlists.get(playlistID)
	if !ok {
		return nil, storageerr.New(storageerr.NotFound, "engine.GetPlaylistTracks", "unknown playlist")
	}
	out := make([]storage.MediaFile, 0, len(p.Entries))
	for _, entry := range p.Entries {
		if f, ok := e.getMaterialized(entry.MediaFileID); ok {
			out = append(out, f)
		}
	}
	return out, nil
}
