package index

import "sort"

// albumKey qualifies an album by its artist, per spec.md §4.4 ("album
// (optionally qualified by artist)").
func albumKey(artist, album string) string {
	return artist + "\x00" + album
}

func insertSorted(ids []int64, id int64) []int64 {
	idx := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if idx < len(ids) && ids[idx] == id {
		return ids
	}
	ids = append(ids, 0)
	copy(ids[idx+1:], ids[idx:])
	ids[idx] = id
	return ids
}

func removeSorted(ids []int64, id int64) []int64 {
	idx := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if idx < len(ids) && ids[idx] == id {
		return append(ids[:idx], ids[idx+1:]...)
	}
	return ids
}

// PutMusic registers id under every populated music categorical index,
// per spec.md §4.4 "music_indexes". Callers pass empty strings for unset
// fields; empty keys are simply not indexed.
func (m *Manager) PutMusic(artist, album, genre, year string, id int64) {
	m.musicMu.Lock()
	defer m.musicMu.Unlock()
	if artist != "" {
		m.byArtist[artist] = insertSorted(m.byArtist[artist], id)
	}
	if album != "" {
		m.byAlbum[albumKey(artist, album)] = insertSorted(m.byAlbum[albumKey(artist, album)], id)
	}
	if genre != "" {
		m.byGenre[genre] = insertSorted(m.byGenre[genre], id)
	}
	if year != "" {
		m.byYear[year] = insertSorted(m.byYear[year], id)
	}
}

// RemoveMusic unregisters id from every music categorical index it may
// have been filed under.
func (m *Manager) RemoveMusic(artist, album, genre, year string, id int64) {
	m.musicMu.Lock()
	defer m.musicMu.Unlock()
	if artist != "" {
		m.byArtist[artist] = removeSorted(m.byArtist[artist], id)
	}
	if album != "" {
		m.byAlbum[albumKey(artist, album)] = removeSorted(m.byAlbum[albumKey(artist, album)], id)
	}
	if genre != "" {
		m.byGenre[genre] = removeSorted(m.byGenre[genre], id)
	}
	if year != "" {
		m.byYear[year] = removeSorted(m.byYear[year], id)
	}
}

// Artists returns every distinct artist name with a count of its tracks.
func (m *Manager) Artists() map[string]int {
	m.musicMu.RLock()
	defer m.musicMu.RUnlock()
	out := make(map[string]int, len(m.byArtist))
	for k, v := range m.byArtist {
		out[k] = len(v)
	}
	return out
}

// Albums returns every distinct album, optionally filtered to one artist,
// with track counts. Each key is the pair [2]string{artist, album}.
func (m *Manager) Albums(artist string) map[[2]string]int {
	m.musicMu.RLock()
	defer m.musicMu.RUnlock()
	out := make(map[[2]string]int)
	for k, v := range m.byAlbum {
		a, album := splitAlbumKey(k)
		if artist != "" && a != artist {
			continue
		}
		out[[2]string{a, album}] = len(v)
	}
	return out
}

func splitAlbumKey(k string) (artist, album string) {
	for i := 0; i < len(k); i++ {
		if k[i] == 0 {
			return k[:i], k[i+1:]
		}
	}
	return "", k
}

// Genres returns every distinct genre with track counts.
func (m *Manager) Genres() map[string]int {
	m.musicMu.RLock()
	defer m.musicMu.RUnlock()
	out := make(map[string]int, len(m.byGenre))
	for k, v := range m.byGenre {
		out[k] = len(v)
	}
	return out
}

// Years returns every distinct year with track counts.
func (m *Manager) Years() map[string]int {
	m.musicMu.RLock()
	defer m.musicMu.RUnlock()
	out := make(map[string]int, len(m.byYear))
	for k, v := range m.byYear {
		out[k] = len(v)
	}
	return out
}

// ByArtist returns the sorted ids filed under artist.
func (m *Manager) ByArtist(artist string) []int64 { return m.copyIDs(m.byArtist, artist) }

// ByGenre returns the sorted ids filed under genre.
func (m *Manager) ByGenre(genre string) []int64 { return m.copyIDs(m.byGenre, genre) }

// ByYear returns the sorted ids filed under year.
func (m *Manager) ByYear(year string) []int64 { return m.copyIDs(m.byYear, year) }

// ByAlbum returns the sorted ids filed under (artist, album).
func (m *Manager) ByAlbum(artist, album string) []int64 {
	m.musicMu.RLock()
	defer m.musicMu.RUnlock()
	ids := m.byAlbum[albumKey(artist, album)]
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}

func (m *Manager) copyIDs(idx map[string][]int64, key string) []int64 {
	m.musicMu.RLock()
	defer m.musicMu.RUnlock()
	ids := idx[key]
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}
