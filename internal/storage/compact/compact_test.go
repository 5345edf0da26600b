package compact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinTDCT/mediacat/internal/storage/codec"
	"github.com/JustinTDCT/mediacat/internal/storage/index"
	"github.com/JustinTDCT/mediacat/internal/storage/mmapfile"
)

// buildFixture writes a media.fb containing two batches — an original
// insert batch and a superseded update batch for the same record — plus
// a media.idx snapshot whose only live entry points at the surviving
// (second) batch, mimicking what bulk_update leaves behind per spec.md
// §4.5's "old batch remains (garbage)" note.
func buildFixture(t *testing.T, dir string) {
	t.Helper()

	dataPath := filepath.Join(dir, dataFileName)
	region, err := mmapfile.Open(dataPath, 1<<16, 1<<16)
	require.NoError(t, err)

	stale := codec.EncodeBatchWithHeader(1, 1700000000, []codec.MediaFile{
		{ID: 1, CanonicalPath: "/media/a.mp4", MimeType: "video/mp4", Size: 10},
	})
	_, err = region.Append(stale)
	require.NoError(t, err)

	live := []codec.MediaFile{
		{ID: 1, CanonicalPath: "/media/a.mp4", MimeType: "video/mp4", Size: 20},
	}
	liveUnit := codec.EncodeBatchWithHeader(2, 1700000100, live)
	offset, err := region.Append(liveUnit)
	require.NoError(t, err)
	require.NoError(t, region.Sync())
	require.NoError(t, region.Close())

	entries := []index.SnapshotEntry{
		{CanonicalPath: "/media/a.mp4", ID: 1, BatchOffset: offset, BatchLength: int64(len(liveUnit)), RecordIndex: 0},
	}
	require.NoError(t, index.WriteSnapshot(filepath.Join(dir, indexFileName), entries))
}

func TestCompactDropsSupersededBatchesAndKeepsLiveRecords(t *testing.T) {
	dir := t.TempDir()
	buildFixture(t, dir)

	before, err := os.Stat(filepath.Join(dir, dataFileName))
	require.NoError(t, err)

	report, err := Compact(dir)
	require.NoError(t, err)

	assert.Equal(t, int64(1), report.RecordsKept)
	assert.Less(t, report.BytesAfter, before.Size())

	entries, err := index.ReadSnapshot(filepath.Join(dir, indexFileName))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/media/a.mp4", entries[0].CanonicalPath)

	region, err := mmapfile.Open(filepath.Join(dir, dataFileName), report.BytesAfter, 1<<16)
	require.NoError(t, err)
	defer region.Close()

	buf, err := region.Read(entries[0].BatchOffset, entries[0].BatchLength)
	require.NoError(t, err)
	_, batch, err := codec.VerifyAndDecode(buf)
	require.NoError(t, err)
	require.Equal(t, 1, batch.Len())

	rec, err := batch.Record(0)
	require.NoError(t, err)
	assert.Equal(t, int64(20), rec.Size(), "compacted record should be the live (updated) copy, not the stale one")
}

func TestCompactRequiresCleanSnapshot(t *testing.T) {
	dir := t.TempDir()

	dataPath := filepath.Join(dir, dataFileName)
	region, err := mmapfile.Open(dataPath, 1<<16, 1<<16)
	require.NoError(t, err)
	require.NoError(t, region.Close())

	// No media.idx written at all: ReadSnapshot returns (nil, nil) for a
	// missing file, which Compact must treat as "not compactable yet".
	_, err = Compact(dir)
	assert.Error(t, err)
}

func TestCompactFreshWALAfterRun(t *testing.T) {
	dir := t.TempDir()
	buildFixture(t, dir)

	_, err := Compact(dir)
	require.NoError(t, err)

	walPath := filepath.Join(dir, walFileName)
	info, err := os.Stat(walPath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}
