package wal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReplayRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "media.wal")
	l, err := Open(path, true)
	require.NoError(t, err)

	require.NoError(t, l.Append(OpBatchInsert, []byte("payload-1")))
	require.NoError(t, l.Append(OpBatchRemove, []byte("payload-2")))
	require.NoError(t, l.Close())

	var got []Record
	err = Replay(path, func(r Record) error {
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, OpBatchInsert, got[0].Op)
	assert.Equal(t, []byte("payload-1"), got[0].Payload)
	assert.Equal(t, OpBatchRemove, got[1].Op)
	assert.Equal(t, []byte("payload-2"), got[1].Payload)
}

func TestDisabledLogIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "media.wal")
	l, err := Open(path, false)
	require.NoError(t, err)

	require.NoError(t, l.Append(OpBatchInsert, []byte("x")))
	require.NoError(t, l.Sync())
	require.NoError(t, l.Close())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "disabled WAL must never create a file")
}

func TestReplayMissingFileReturnsNoError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.wal")
	called := false
	err := Replay(path, func(Record) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestReplayStopsAtTornTailRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "media.wal")
	l, err := Open(path, true)
	require.NoError(t, err)
	require.NoError(t, l.Append(OpBatchInsert, []byte("complete")))
	require.NoError(t, l.Close())

	// Append a truncated trailing record by hand: a header claiming a
	// payload length longer than what actually follows.
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0o644)
	require.NoError(t, err)
	hdr := make([]byte, 13)
	hdr[8] = byte(OpBatchUpdate)
	hdr[9] = 0xFF // bogus large length
	hdr[10] = 0xFF
	hdr[11] = 0xFF
	hdr[12] = 0x00
	_, err = f.Write(hdr)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var got []Record
	err = Replay(path, func(r Record) error {
		got = append(got, r)
		return nil
	})
	require.NoError(t, err, "a torn tail record must not surface as an error")
	require.Len(t, got, 1, "only the complete record before the torn tail should replay")
	assert.Equal(t, OpBatchInsert, got[0].Op)
}

func TestReplayStopsOnCRCMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "media.wal")
	l, err := Open(path, true)
	require.NoError(t, err)
	require.NoError(t, l.Append(OpBatchInsert, []byte("good")))
	require.NoError(t, l.Append(OpBatchInsert, []byte("corrupted")))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Flip a byte inside the second record's payload, after the first
	// record's header(13) + payload(4 "good") + crc(4) = 21 bytes, plus
	// the second record's 13-byte header.
	corruptAt := 21 + 13
	data[corruptAt] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	var got []Record
	err = Replay(path, func(r Record) error {
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1, "the corrupt second record must stop replay without erroring")
	assert.Equal(t, []byte("good"), got[0].Payload)
}

func TestCheckpointAppendsMarkerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "media.wal")
	l, err := Open(path, true)
	require.NoError(t, err)

	id, err := l.Checkpoint()
	require.NoError(t, err)
	require.NoError(t, l.Close())

	var got []Record
	require.NoError(t, Replay(path, func(r Record) error {
		got = append(got, r)
		return nil
	}))
	require.Len(t, got, 1)
	assert.Equal(t, OpCheckpoint, got[0].Op)
	assert.Equal(t, id[:], got[0].Payload)
}

func TestReplayPropagatesCallbackError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "media.wal")
	l, err := Open(path, true)
	require.NoError(t, err)
	require.NoError(t, l.Append(OpBatchInsert, []byte("x")))
	require.NoError(t, l.Close())

	sentinel := assert.AnError
	err = Replay(path, func(Record) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}
