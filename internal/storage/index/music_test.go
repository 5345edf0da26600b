package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPutMusicIndexesEveryPopulatedField(t *testing.T) {
	m := newTestManager()
	m.PutMusic("Artist A", "Album X", "Rock", "2001", 1)
	m.PutMusic("Artist A", "Album X", "Rock", "2001", 2)

	assert.Equal(t, map[string]int{"Artist A": 2}, m.Artists())
	assert.Equal(t, []int64{1, 2}, m.ByArtist("Artist A"))
	assert.Equal(t, []int64{1, 2}, m.ByAlbum("Artist A", "Album X"))
	assert.Equal(t, []int64{1, 2}, m.ByGenre("Rock"))
	assert.Equal(t, []int64{1, 2}, m.ByYear("2001"))
}

func TestPutMusicSkipsEmptyFields(t *testing.T) {
	m := newTestManager()
	m.PutMusic("", "", "", "", 1)

	assert.Empty(t, m.Artists())
	assert.Empty(t, m.Genres())
	assert.Empty(t, m.Years())
}

func TestRemoveMusicUnregistersFromEveryIndex(t *testing.T) {
	m := newTestManager()
	m.PutMusic("Artist A", "Album X", "Rock", "2001", 1)
	m.PutMusic("Artist A", "Album X", "Rock", "2001", 2)

	m.RemoveMusic("Artist A", "Album X", "Rock", "2001", 1)

	assert.Equal(t, []int64{2}, m.ByArtist("Artist A"))
	assert.Equal(t, []int64{2}, m.ByAlbum("Artist A", "Album X"))
	assert.Equal(t, []int64{2}, m.ByGenre("Rock"))
	assert.Equal(t, []int64{2}, m.ByYear("2001"))
}

func TestAlbumKeyIsQualifiedByArtist(t *testing.T) {
	m := newTestManager()
	m.PutMusic("Artist A", "Greatest Hits", "", "", 1)
	m.PutMusic("Artist B", "Greatest Hits", "", "", 2)

	assert.Equal(t, []int64{1}, m.ByAlbum("Artist A", "Greatest Hits"))
	assert.Equal(t, []int64{2}, m.ByAlbum("Artist B", "Greatest Hits"))
}

func TestAlbumsFiltersByArtist(t *testing.T) {
	m := newTestManager()
	m.PutMusic("Artist A", "Album X", "", "", 1)
	m.PutMusic("Artist B", "Album Y", "", "", 2)

	all := m.Albums("")
	assert.Len(t, all, 2)

	onlyA := m.Albums("Artist A")
	assert.Len(t, onlyA, 1)
	assert.Equal(t, 1, onlyA[[2]string{"Artist A", "Album X"}])
}

func TestInsertSortedIsIdempotent(t *testing.T) {
	ids := insertSorted(nil, 5)
	ids = insertSorted(ids, 3)
	ids = insertSorted(ids, 5)

	assert.Equal(t, []int64{3, 5}, ids)
}

func TestRemoveSortedOnMissingIDIsNoOp(t *testing.T) {
	ids := []int64{1, 2, 3}
	got := removeSorted(ids, 99)
	assert.Equal(t, []int64{1, 2, 3}, got)
}
