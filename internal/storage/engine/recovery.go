package engine

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/JustinTDCT/mediacat/internal/storage/codec"
	"github.com/JustinTDCT/mediacat/internal/storage/index"
	"github.com/JustinTDCT/mediacat/internal/storage/pathnorm"
	"github.com/JustinTDCT/mediacat/internal/storage/wal"
)

func defaultNowSeconds() int64 { return time.Now().Unix() }

// recover rebuilds the index manager either from a clean-shutdown
// snapshot or, on a dirty start, by replaying the WAL against media.fb,
// per spec.md §4.4 "Persistence" and §7. Returns the highest id seen, so
// Open can resume the id counter.
func (e *Engine) recover() (int64, error) {
	entries, err := index.ReadSnapshot(e.indexPath())
	if err != nil {
		e.log.Printf("snapshot unreadable, falling back to WAL replay: %v", err)
		entries = nil
	}

	var maxID int64
	if entries != nil {
		e.idx.LoadEntries(entries)
		maxID = e.rebuildDerivedIndexes(entries)
		return maxID, nil
	}

	maxID, err = e.replayWAL()
	if err != nil {
		return 0, err
	}
	return maxID, nil
}

// rebuildDerivedIndexes re-decodes each snapshot entry's record to
// populate dir_index, dir_children_dirs and the music categorical
// indexes, which the snapshot itself does not carry (see
// index/snapshot.go's doc comment). Returns the highest id seen.
//
// A snapshot entry that fails to decode is not tail corruption — the
// snapshot itself was written durably at a clean checkpoint, so every
// entry it lists is expected to resolve. A failure here means media.fb
// was damaged somewhere the snapshot still references; per spec.md §7
// that's fatal, so the engine is marked degraded rather than silently
// continuing with a hole in the indexes.
func (e *Engine) rebuildDerivedIndexes(entries []index.SnapshotEntry) int64 {
	var maxID int64
	for _, ent := range entries {
		rec, err := e.decodeRecordAt(ent.BatchOffset, ent.BatchLength, int(ent.RecordIndex))
		if err != nil {
			e.markDegraded("engine.rebuildDerivedIndexes", fmt.Sprintf("unreadable record id=%d offset=%d: %v", ent.ID, ent.BatchOffset, err))
			continue
		}
		e.indexDerivedFor(rec)
		if ent.ID > maxID {
			maxID = ent.ID
		}
	}
	return maxID
}

func (e *Engine) decodeRecordAt(offset, length int64, recordIndex int) (codec.MediaFile, error) {
	buf, err := e.region.Read(offset, length)
	if err != nil {
		return codec.MediaFile{}, err
	}
	_, batch, err := codec.VerifyAndDecode(buf)
	if err != nil {
		return codec.MediaFile{}, err
	}
	view, err := batch.Record(recordIndex)
	if err != nil {
		return codec.MediaFile{}, err
	}
	return view.Materialize(), nil
}

func (e *Engine) indexDerivedFor(rec codec.MediaFile) {
	parent := rec.CanonicalParentPath
	e.idx.PutDirEntry(parent, rec.Filename, rec.ID)
	e.registerAncestry(rec.CanonicalPath, parent)
	e.indexMusicFor(rec)
}

// registerAncestry walks up from canonicalPath's parent chain, registering
// each level's immediate subdirectory token in dir_children_dirs, per
// spec.md §4.4.
func (e *Engine) registerAncestry(canonicalPath, parent string) {
	child := parent
	parent = pathnorm.ParentOf(parent)
	for parent != "" {
		if token, ok := pathnorm.ImmediateSubdirToken(parent, child); ok {
			e.idx.RegisterDirectoryChain(parent, token)
		}
		child = parent
		parent = pathnorm.ParentOf(parent)
	}
}

func (e *Engine) indexMusicFor(rec codec.MediaFile) {
	artist := derefOr(rec.Artist, "")
	album := derefOr(rec.Album, "")
	genre := derefOr(rec.Genre, "")
	year := ""
	if rec.Year != nil {
		year = itoa32(*rec.Year)
	}
	if artist == "" && album == "" && genre == "" && year == "" {
		return
	}
	e.idx.PutMusic(artist, album, genre, year, rec.ID)
}

// removeMusicFor mirrors indexMusicFor, unregistering rec's id from
// whichever music categorical indexes it was filed under. Used to scrub
// the stale artist/album/genre/year entries a changed record leaves
// behind before the new values are re-indexed.
func (e *Engine) removeMusicFor(rec codec.MediaFile) {
	artist := derefOr(rec.Artist, "")
	album := derefOr(rec.Album, "")
	genre := derefOr(rec.Genre, "")
	year := ""
	if rec.Year != nil {
		year = itoa32(*rec.Year)
	}
	if artist == "" && album == "" && genre == "" && year == "" {
		return
	}
	e.idx.RemoveMusic(artist, album, genre, year, rec.ID)
}

func derefOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func itoa32(v int32) string {
	neg := v < 0
	u := uint32(v)
	if neg {
		u = uint32(-v)
	}
	var buf [11]byte
	i := len(buf)
	if u == 0 {
		i--
		buf[i] = '0'
	}
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// replayWAL reconstructs path_to_id/id_to_location/dir_index/music_indexes
// purely from the write-ahead log, in log order, for a dirty start. A
// BatchRemove entry needs each removed id's canonical path, which is only
// known from having already replayed that id's insert/update earlier in
// the same (chronological) log — tracked in a scratch map for the
// duration of replay.
//
// wal.Replay itself already drops a torn/corrupt trailing WAL record
// (spec.md §7), so every Record reaching the loop below is a structurally
// valid WAL entry. But each insert/update record only points at a batch
// in media.fb — that batch can still fail to decode, and whether that's
// tolerable tail corruption or fatal corruption depends on whether it's
// the very last record replay has. So every record is materialized into
// a slice first (bounded by WAL size, not a concern for a recovery-time
// pass) and walked with lookahead instead of reacting inside the
// streaming callback.
//
// Non-tail corruption marks the engine degraded and stops replay where
// it stands rather than failing Open outright: spec.md §7 has the engine
// "open read-only" on this condition, not refuse to open, so mutating
// ops are the ones that reject with Corrupt (see failIfDegraded), not
// Open itself.
func (e *Engine) replayWAL() (int64, error) {
	var records []wal.Record
	if err := wal.Replay(e.walPath(), func(rec wal.Record) error {
		records = append(records, rec)
		return nil
	}); err != nil {
		return 0, err
	}

	var maxID int64
	pathByID := make(map[int64]string)

replayLoop:
	for i, rec := range records {
		isTail := i == len(records)-1
		switch rec.Op {
		case wal.OpBatchInsert, wal.OpBatchUpdate:
			offset, length, ok := decodeOffsetLength(rec.Payload)
			if !ok {
				if isTail {
					e.log.Printf("replay: malformed tail insert/update payload, stopping")
				} else {
					e.markDegraded("engine.replayWAL", "malformed insert/update payload mid-log")
				}
				break replayLoop
			}
			buf, err := e.region.Read(offset, length)
			if err != nil {
				if isTail {
					e.log.Printf("replay: unreadable tail batch at %d: %v", offset, err)
				} else {
					e.markDegraded("engine.replayWAL", fmt.Sprintf("unreadable batch at offset=%d: %v", offset, err))
				}
				break replayLoop
			}
			_, batch, err := codec.VerifyAndDecode(buf)
			if err != nil {
				if isTail {
					e.log.Printf("replay: corrupt tail batch at %d: %v", offset, err)
				} else {
					e.markDegraded("engine.replayWAL", fmt.Sprintf("corrupt batch at offset=%d: %v", offset, err))
				}
				break replayLoop
			}
			for ri := 0; ri < batch.Len(); ri++ {
				view, err := batch.Record(ri)
				if err != nil {
					continue
				}
				f := view.Materialize()
				if rec.Op == wal.OpBatchUpdate {
					if oldLoc, ok := e.idx.LookupLocation(f.ID); ok {
						if old, err := e.decodeRecordAt(oldLoc.BatchOffset, oldLoc.BatchLength, oldLoc.RecordIndex); err == nil {
							e.idx.RemoveDirEntry(old.CanonicalParentPath, old.ID)
							e.removeMusicFor(old)
						}
					}
				}
				e.idx.Put(f.CanonicalPath, f.ID, index.Location{BatchOffset: offset, BatchLength: length, RecordIndex: ri})
				e.indexDerivedFor(f)
				pathByID[f.ID] = f.CanonicalPath
				if f.ID > maxID {
					maxID = f.ID
				}
			}
		case wal.OpBatchRemove:
			ids := decodeIDList(rec.Payload)
			for _, id := range ids {
				if p, ok := pathByID[id]; ok {
					if loc, ok := e.idx.LookupLocation(id); ok {
						if old, err := e.decodeRecordAt(loc.BatchOffset, loc.BatchLength, loc.RecordIndex); err == nil {
							e.removeMusicFor(old)
						}
					}
					e.idx.Remove(p, id)
					e.idx.RemoveDirEntry(pathnorm.ParentOf(p), id)
					delete(pathByID, id)
				}
			}
		}
	}

	e.idx.Counters.TotalFiles.Store(int64(len(pathByID)))
	return maxID, nil
}

func decodeOffsetLength(payload []byte) (int64, int64, bool) {
	if len(payload) < 16 {
		return 0, 0, false
	}
	return int64(binary.LittleEndian.Uint64(payload[0:8])), int64(binary.LittleEndian.Uint64(payload[8:16])), true
}

func encodeOffsetLength(offset, length int64) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(offset))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(length))
	return buf
}

func decodeIDList(payload []byte) []int64 {
	n := len(payload) / 8
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		out[i] = int64(binary.LittleEndian.Uint64(payload[i*8 : i*8+8]))
	}
	return out
}

func encodeIDList(ids []int64) []byte {
	buf := make([]byte, len(ids)*8)
	for i, id := range ids {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], uint64(id))
	}
	return buf
}
