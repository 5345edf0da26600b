// snapshot.go persists a compact, rebuildable index snapshot (media.idx),
// per spec.md §4.4 "Persistence" and §6.1. The snapshot only needs to
// cover path_to_id + id_to_location: dir_index, dir_children_dirs and the
// music categorical indexes are cheap to rebuild from those locations by
// re-decoding each live record (internal/storage/engine does this right
// after a snapshot load), so there is no reason to duplicate them on
// disk.
//
// Format: blake2b-256 checksum (32B) over everything that follows, then a
// little-endian uint64 entry count, then that many fixed-width entries.
// The whole-file blake2b checksum is a second integrity layer alongside
// the per-batch CRC32 spec.md mandates for media.fb — grounded on
// golang.org/x/crypto (a teacher go.mod dependency otherwise unused).
package index

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"

	"github.com/JustinTDCT/mediacat/internal/storage/storageerr"
)

// SnapshotEntry is one live record's index-rebuilding data.
type SnapshotEntry struct {
	CanonicalPath string
	ID            int64
	BatchOffset   int64
	BatchLength   int64
	RecordIndex   int32
}

const snapshotEntryFixedSize = 8 + 8 + 8 + 4 // id, offset, length, recordIndex (path length+bytes follow)

// WriteSnapshot writes entries to path atomically (write to a temp file,
// then rename over the target).
func WriteSnapshot(path string, entries []SnapshotEntry) error {
	var body bytes.Buffer
	var countBuf [8]byte
	binary.LittleEndian.PutUint64(countBuf[:], uint64(len(entries)))
	body.Write(countBuf[:])

	for _, e := range entries {
		var fixed [snapshotEntryFixedSize]byte
		binary.LittleEndian.PutUint64(fixed[0:8], uint64(e.ID))
		binary.LittleEndian.PutUint64(fixed[8:16], uint64(e.BatchOffset))
		binary.LittleEndian.PutUint64(fixed[16:24], uint64(e.BatchLength))
		binary.LittleEndian.PutUint32(fixed[24:28], uint32(e.RecordIndex))
		body.Write(fixed[:])

		var pathLen [4]byte
		binary.LittleEndian.PutUint32(pathLen[:], uint32(len(e.CanonicalPath)))
		body.Write(pathLen[:])
		body.WriteString(e.CanonicalPath)
	}

	sum := blake2b.Sum256(body.Bytes())

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return storageerr.Wrap(storageerr.TransactionFailed, "index.WriteSnapshot", err)
	}
	w := bufio.NewWriter(f)
	if _, err := w.Write(sum[:]); err != nil {
		f.Close()
		return storageerr.Wrap(storageerr.TransactionFailed, "index.WriteSnapshot", err)
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		f.Close()
		return storageerr.Wrap(storageerr.TransactionFailed, "index.WriteSnapshot", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return storageerr.Wrap(storageerr.TransactionFailed, "index.WriteSnapshot", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return storageerr.Wrap(storageerr.TransactionFailed, "index.WriteSnapshot", err)
	}
	if err := f.Close(); err != nil {
		return storageerr.Wrap(storageerr.TransactionFailed, "index.WriteSnapshot", err)
	}
	return os.Rename(tmp, path)
}

// ReadSnapshot loads entries from path. A missing file returns (nil, nil)
// so callers can fall back to a full batch replay (dirty start, spec.md
// §4.4).
func ReadSnapshot(path string) ([]SnapshotEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, storageerr.Wrap(storageerr.TransactionFailed, "index.ReadSnapshot", err)
	}
	if len(data) < 32+8 {
		return nil, storageerr.New(storageerr.Corrupt, "index.ReadSnapshot", "short snapshot")
	}
	sum := data[:32]
	body := data[32:]
	want := blake2b.Sum256(body)
	if !bytes.Equal(sum, want[:]) {
		return nil, storageerr.New(storageerr.Corrupt, "index.ReadSnapshot", "blake2b mismatch")
	}

	r := bytes.NewReader(body)
	var countBuf [8]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, storageerr.Wrap(storageerr.Corrupt, "index.ReadSnapshot", err)
	}
	count := binary.LittleEndian.Uint64(countBuf[:])

	entries := make([]SnapshotEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		var fixed [snapshotEntryFixedSize]byte
		if _, err := io.ReadFull(r, fixed[:]); err != nil {
			return nil, storageerr.Wrap(storageerr.Corrupt, "index.ReadSnapshot", err)
		}
		var pathLen [4]byte
		if _, err := io.ReadFull(r, pathLen[:]); err != nil {
			return nil, storageerr.Wrap(storageerr.Corrupt, "index.ReadSnapshot", err)
		}
		n := binary.LittleEndian.Uint32(pathLen[:])
		pathBytes := make([]byte, n)
		if _, err := io.ReadFull(r, pathBytes); err != nil {
			return nil, storageerr.Wrap(storageerr.Corrupt, "index.ReadSnapshot", err)
		}
		entries = append(entries, SnapshotEntry{
			ID:            int64(binary.LittleEndian.Uint64(fixed[0:8])),
			BatchOffset:   int64(binary.LittleEndian.Uint64(fixed[8:16])),
			BatchLength:   int64(binary.LittleEndian.Uint64(fixed[16:24])),
			RecordIndex:   int32(binary.LittleEndian.Uint32(fixed[24:28])),
			CanonicalPath: string(pathBytes),
		})
	}
	return entries, nil
}
