package engine

import (
	"context"

	"github.com/JustinTDCT/mediacat/internal/storage"
	"github.com/JustinTDCT/mediacat/internal/storage/storageerr"
)

// Store, Update, Remove and GetByPath are single-item bulk calls per
// spec.md §4.6 — each wrapper here just slices one element through the
// corresponding Bulk* method. GetByID has no bulk counterpart and reads
// the record directly through the cache and the mmap region.

func (e *Engine) Store(ctx context.Context, file storage.MediaFile) (int64, error) {
	ids, err := e.BulkStore(ctx, []storage.MediaFile{file}, storage.RejectDuplicates)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 || ids[0] == 0 {
		return 0, storageerr.New(storageerr.TransactionFailed, "engine.Store", "path already has a live id")
	}
	return ids[0], nil
}

func (e *Engine) Update(ctx context.Context, file storage.MediaFile) error {
	return e.BulkUpdate(ctx, []storage.MediaFile{file})
}

func (e *Engine) Remove(ctx context.Context, canonicalPath string) error {
	n, err := e.BulkRemove(ctx, []string{canonicalPath})
	if err != nil {
		return err
	}
	if n == 0 {
		return storageerr.New(storageerr.NotFound, "engine.Remove", canonicalPath)
	}
	return nil
}

func (e *Engine) GetByPath(ctx context.Context, canonicalPath string) (*storage.MediaFile, error) {
	results, err := e.BulkGetByPaths(ctx, []string{canonicalPath})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

func (e *Engine) GetByID(ctx context.Context, id int64) (*storage.MediaFile, error) {
	f, ok := e.getMaterialized(id)
	if !ok {
		return nil, nil
	}
	return &f, nil
}
