package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/JustinTDCT/mediacat/internal/storage"
	"github.com/JustinTDCT/mediacat/internal/storage/codec"
	"github.com/JustinTDCT/mediacat/internal/storage/pathnorm"
	"github.com/JustinTDCT/mediacat/internal/storage/storageerr"
	"github.com/JustinTDCT/mediacat/internal/storage/wal"
)

// BulkStore implements spec.md §4.5's bulk_store: canonicalize, reject or
// upsert duplicates per-item, assign ids, serialize one batch, append it,
// swing the indexes, and append one WAL entry.
func (e *Engine) BulkStore(ctx context.Context, files []storage.MediaFile, mode storage.UpsertMode) ([]int64, error) {
	if e.closed.Load() {
		return nil, storageerr.New(storageerr.TransactionFailed, "engine.BulkStore", "catalog closed")
	}
	if err := e.failIfDegraded("engine.BulkStore"); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	ids := make([]int64, len(files))
	toInsert := make([]codec.MediaFile, 0, len(files))
	toUpdate := make([]codec.MediaFile, 0)
	toUpdateSlots := make([]int, 0)

	now := nowSeconds()
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, storageerr.Wrap(storageerr.Timeout, "engine.BulkStore", err)
		}
		f.CanonicalPath = canonicalOrSelf(f.CanonicalPath, f.Path)
		f.CanonicalParentPath = pathnorm.ParentOf(f.CanonicalPath)
		f.Filename = pathnorm.FilenameOf(f.CanonicalPath)

		if existingID, live := e.idx.LookupID(f.CanonicalPath); live {
			if mode == storage.RejectDuplicates {
				ids[i] = 0
				continue
			}
			f.ID = existingID
			toUpdate = append(toUpdate, f)
			toUpdateSlots = append(toUpdateSlots, i)
			continue
		}

		f.ID = e.nextID.Add(1) - 1
		f.CreatedAt = now
		f.UpdatedAt = now
		toInsert = append(toInsert, f)
		ids[i] = f.ID
	}

	if len(toInsert) > 0 {
		if err := e.commitBatch(toInsert, wal.OpBatchInsert); err != nil {
			return nil, err
		}
	}
	if len(toUpdate) > 0 {
		if err := e.commitBatch(toUpdate, wal.OpBatchUpdate); err != nil {
			return nil, err
		}
		for j, slot := range toUpdateSlots {
			ids[slot] = toUpdate[j].ID
		}
	}

	e.idx.Counters.BulkOperations.Add(1)
	e.idx.Counters.TotalOperations.Add(1)
	e.idx.Counters.TotalFilesProcessed.Add(int64(len(files)))
	e.maybeThrottle()
	e.maybeSync()
	return ids, nil
}

// BulkUpdate implements spec.md §4.5's bulk_update: every record must
// already resolve via path_to_id. created_at is preserved; updated_at is
// stamped fresh. The prior batch's bytes become garbage, reclaimable only
// by an offline compaction pass (internal/storage/compact).
func (e *Engine) BulkUpdate(ctx context.Context, files []storage.MediaFile) error {
	if e.closed.Load() {
		return storageerr.New(storageerr.TransactionFailed, "engine.BulkUpdate", "catalog closed")
	}
	if err := e.failIfDegraded("engine.BulkUpdate"); err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	now := nowSeconds()
	resolved := make([]codec.MediaFile, len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return storageerr.Wrap(storageerr.Timeout, "engine.BulkUpdate", err)
		}
		f.CanonicalPath = canonicalOrSelf(f.CanonicalPath, f.Path)
		f.CanonicalParentPath = pathnorm.ParentOf(f.CanonicalPath)
		f.Filename = pathnorm.FilenameOf(f.CanonicalPath)

		existingID, live := e.idx.LookupID(f.CanonicalPath)
		if !live {
			return storageerr.New(storageerr.NotFound, "engine.BulkUpdate", "no live id for "+f.CanonicalPath)
		}
		if existing, ok := e.getMaterialized(existingID); ok {
			f.CreatedAt = existing.CreatedAt
		} else {
			f.CreatedAt = now
		}
		f.ID = existingID
		f.UpdatedAt = now
		resolved[i] = f
	}

	if err := e.commitBatch(resolved, wal.OpBatchUpdate); err != nil {
		return err
	}

	e.idx.Counters.BulkOperations.Add(1)
	e.idx.Counters.TotalOperations.Add(1)
	e.idx.Counters.TotalFilesProcessed.Add(int64(len(files)))
	e.maybeThrottle()
	e.maybeSync()
	return nil
}

// BulkRemove implements spec.md §4.5's bulk_remove: resolve each path,
// drop from every index, and append one WAL {BatchRemove, [ids]} entry.
// On-disk bytes in media.fb are left untouched; they become unreferenced.
func (e *Engine) BulkRemove(ctx context.Context, canonicalPaths []string) (int, error) {
	if e.closed.Load() {
		return 0, storageerr.New(storageerr.TransactionFailed, "engine.BulkRemove", "catalog closed")
	}
	if err := e.failIfDegraded("engine.BulkRemove"); err != nil {
		return 0, err
	}
	if len(canonicalPaths) == 0 {
		return 0, nil
	}

	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	ids := make([]int64, 0, len(canonicalPaths))
	paths := make([]string, 0, len(canonicalPaths))
	for _, p := range canonicalPaths {
		if err := ctx.Err(); err != nil {
			return 0, storageerr.Wrap(storageerr.Timeout, "engine.BulkRemove", err)
		}
		cp := canonicalOrSelf(p, p)
		id, live := e.idx.LookupID(cp)
		if !live {
			continue
		}
		ids = append(ids, id)
		paths = append(paths, cp)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := e.walLog.Append(wal.OpBatchRemove, encodeIDList(ids)); err != nil {
		return 0, storageerr.Wrap(storageerr.TransactionFailed, "engine.BulkRemove", err)
	}

	for i, cp := range paths {
		id := ids[i]
		if old, ok := e.getMaterialized(id); ok {
			e.removeMusicFor(old)
		}
		e.idx.Remove(cp, id)
		e.idx.RemoveDirEntry(pathnorm.ParentOf(cp), id)
	}
	e.playlists.scrubMediaFiles(ids)
	e.idx.Counters.TotalFiles.Add(-int64(len(ids)))
	e.idx.Counters.BulkOperations.Add(1)
	e.idx.Counters.TotalOperations.Add(1)
	e.idx.Counters.TotalFilesProcessed.Add(int64(len(ids)))
	e.maybeSync()
	return len(ids), nil
}

// BulkGetByPaths implements spec.md §4.5's bulk_get_by_paths: preserves
// input order, yields nil for a miss, consults the cache before the mmap
// region.
func (e *Engine) BulkGetByPaths(ctx context.Context, canonicalPaths []string) ([]*storage.MediaFile, error) {
	out := make([]*storage.MediaFile, len(canonicalPaths))
	for i, p := range canonicalPaths {
		if err := ctx.Err(); err != nil {
			return nil, storageerr.Wrap(storageerr.Timeout, "engine.BulkGetByPaths", err)
		}
		cp := canonicalOrSelf(p, p)
		id, live := e.idx.LookupID(cp)
		if !live {
			continue
		}
		f, ok := e.getMaterialized(id)
		if !ok {
			continue
		}
		rec := f
		out[i] = &rec
	}
	return out, nil
}

func (e *Engine) getMaterialized(id int64) (codec.MediaFile, bool) {
	if f, ok := e.idx.CacheGet(id); ok {
		return f, true
	}
	loc, ok := e.idx.LookupLocation(id)
	if !ok {
		return codec.MediaFile{}, false
	}
	f, err := e.decodeRecordAt(loc.BatchOffset, loc.BatchLength, loc.RecordIndex)
	if err != nil {
		e.markDegraded("engine.getMaterialized", fmt.Sprintf("id=%d offset=%d: %v", id, loc.BatchOffset, err))
		return codec.MediaFile{}, false
	}
	e.idx.CachePut(f)
	return f, true
}

// commitBatch performs the ordered commit sequence spec.md §5 requires:
// mmap append, then the WAL entry, then path_to_id, then id_to_location,
// then dir_index, then music_indexes. The WAL entry lands before any
// index mutation so that a WAL append failure can be undone with just a
// frontier rollback — no index mutation has happened yet to undo, per
// spec.md §4.5's "committed (durable on disk, indexes updated, WAL
// appended) or rolled back (no index mutation, no frontier advance)".
// Caller holds commitMu, so the whole sequence is one serialized commit.
func (e *Engine) commitBatch(files []codec.MediaFile, op wal.Op) error {
	start := time.Now()
	priorFrontier := e.region.Frontier()

	_, locs, err := e.encodeAndAppend(files)
	if err != nil {
		return err
	}

	payload := encodeOffsetLength(locs[0].BatchOffset, locs[0].BatchLength)
	if err := e.walLog.Append(op, payload); err != nil {
		e.region.TruncateLogicalSize(priorFrontier)
		e.nextBatchID.Add(-1)
		return storageerr.Wrap(storageerr.TransactionFailed, "engine.commitBatch", err)
	}

	for i, f := range files {
		if op == wal.OpBatchUpdate {
			if old, ok := e.getMaterialized(f.ID); ok {
				e.idx.RemoveDirEntry(old.CanonicalParentPath, old.ID)
				e.removeMusicFor(old)
			}
		}
		e.idx.Put(f.CanonicalPath, f.ID, locs[i])
		e.idx.PutDirEntry(f.CanonicalParentPath, f.Filename, f.ID)
		e.registerAncestry(f.CanonicalPath, f.CanonicalParentPath)
		e.indexMusicFor(f)
		e.idx.CachePut(f)
	}

	if op == wal.OpBatchInsert {
		e.idx.Counters.TotalFiles.Add(int64(len(files)))
	}

	if elapsed := time.Since(start).Seconds(); elapsed > 0 {
		e.idx.Counters.RecordThroughput(float64(len(files)) / elapsed)
	}
	return nil
}

func canonicalOrSelf(canonical, fallback string) string {
	if canonical != "" {
		return canonical
	}
	norm, err := pathnorm.Normalize(fallback, pathnorm.Options{})
	if err != nil {
		return fallback
	}
	return norm
}
