package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }
func i64p(v int64) *int64   { return &v }
func i32p(v int32) *int32   { return &v }

func TestEncodeDecodeBatchRoundTrip(t *testing.T) {
	files := []MediaFile{
		{
			ID:                  1,
			Path:                "/mnt/media/movies/inception.mkv",
			CanonicalPath:       "/media/movies/inception.mkv",
			CanonicalParentPath: "/media/movies",
			Filename:            "inception.mkv",
			Size:                123456,
			Modified:            1700000000,
			MimeType:            "video/x-matroska",
			CreatedAt:           1700000001,
			UpdatedAt:           1700000002,
		},
		{
			ID:                  2,
			Path:                "/mnt/media/music/track.flac",
			CanonicalPath:       "/media/music/track.flac",
			CanonicalParentPath: "/media/music",
			Filename:            "track.flac",
			Size:                999,
			Modified:            1700000500,
			MimeType:            "audio/flac",
			DurationMs:          i64p(240000),
			Title:               strp("A Song"),
			Artist:              strp("An Artist"),
			Album:               strp("An Album"),
			Genre:               strp("Rock"),
			TrackNumber:         i32p(4),
			Year:                i32p(1999),
			AlbumArtist:         strp("Various Artists"),
			CreatedAt:           1700000501,
			UpdatedAt:           1700000502,
		},
	}

	payload := EncodeBatch(files)
	batch, err := DecodeBatch(payload)
	require.NoError(t, err)
	require.Equal(t, len(files), batch.Len())

	v0, err := batch.Record(0)
	require.NoError(t, err)
	assert.Equal(t, files[0].ID, v0.ID())
	assert.Equal(t, files[0].Path, v0.Path())
	assert.Equal(t, files[0].CanonicalPath, v0.CanonicalPath())
	assert.Equal(t, files[0].Filename, v0.Filename())
	assert.Equal(t, files[0].Size, v0.Size())
	assert.Equal(t, files[0].MimeType, v0.MimeType())
	if _, ok := v0.Title(); ok {
		t.Fatal("expected no title for record 0")
	}

	v1, err := batch.Record(1)
	require.NoError(t, err)
	assert.Equal(t, files[1].ID, v1.ID())

	dur, ok := v1.DurationMs()
	require.True(t, ok)
	assert.Equal(t, int64(240000), dur)

	title, ok := v1.Title()
	require.True(t, ok)
	assert.Equal(t, "A Song", title)

	track, ok := v1.TrackNumber()
	require.True(t, ok)
	assert.Equal(t, int32(4), track)

	materialized := v1.Materialize()
	assert.Equal(t, files[1].ID, materialized.ID)
	assert.Equal(t, files[1].CanonicalPath, materialized.CanonicalPath)
	require.NotNil(t, materialized.Artist)
	assert.Equal(t, "An Artist", *materialized.Artist)
	require.NotNil(t, materialized.Year)
	assert.Equal(t, int32(1999), *materialized.Year)
}

func TestDecodeEmptyBatch(t *testing.T) {
	payload := EncodeBatch(nil)
	batch, err := DecodeBatch(payload)
	require.NoError(t, err)
	assert.Equal(t, 0, batch.Len())
}

func TestBatchRecordRejectsOutOfRangeIndex(t *testing.T) {
	payload := EncodeBatch([]MediaFile{{ID: 1, CanonicalPath: "/a"}})
	batch, err := DecodeBatch(payload)
	require.NoError(t, err)

	_, err = batch.Record(5)
	assert.Error(t, err)
}

func TestDecodeBatchRejectsTruncatedPayload(t *testing.T) {
	_, err := DecodeBatch([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestCRC32IsDeterministic(t *testing.T) {
	payload := EncodeBatch([]MediaFile{{ID: 1, CanonicalPath: "/a"}})
	assert.Equal(t, CRC32(payload), CRC32(payload))
}

func TestUint32LERoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	PutUint32LE(buf, 0xDEADBEEF)
	assert.Equal(t, uint32(0xDEADBEEF), GetUint32LE(buf))
}
