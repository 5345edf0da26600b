package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "media.idx")
	entries := []SnapshotEntry{
		{CanonicalPath: "/media/a.mp4", ID: 1, BatchOffset: 64, BatchLength: 128, RecordIndex: 0},
		{CanonicalPath: "/media/movies/b.mkv", ID: 2, BatchOffset: 192, BatchLength: 256, RecordIndex: 1},
	}

	require.NoError(t, WriteSnapshot(path, entries))

	got, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestReadSnapshotMissingFileReturnsNilNil(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.idx")
	got, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReadSnapshotDetectsChecksumCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "media.idx")
	require.NoError(t, WriteSnapshot(path, []SnapshotEntry{
		{CanonicalPath: "/a", ID: 1, BatchOffset: 1, BatchLength: 2, RecordIndex: 0},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[40] ^= 0xFF // flip a byte inside the body, past the 32-byte checksum
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = ReadSnapshot(path)
	assert.Error(t, err)
}

func TestReadSnapshotRejectsShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "media.idx")
	require.NoError(t, os.WriteFile(path, []byte("too short"), 0o644))

	_, err := ReadSnapshot(path)
	assert.Error(t, err)
}

func TestWriteSnapshotIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "media.idx")

	require.NoError(t, WriteSnapshot(path, []SnapshotEntry{{CanonicalPath: "/a", ID: 1}}))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away, not left behind")
}
