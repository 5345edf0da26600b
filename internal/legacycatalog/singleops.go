package legacycatalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/JustinTDCT/mediacat/internal/storage"
	"github.com/JustinTDCT/mediacat/internal/storage/storageerr"
)

// Store, Update, Remove and GetByPath are single-item bulk calls, per
// spec.md §4.6 — no separate code path from the Postgres variant's bulk
// primitives either. GetByID is a direct SELECT by id.

func (c *Catalog) Store(ctx context.Context, file storage.MediaFile) (int64, error) {
	ids, err := c.BulkStore(ctx, []storage.MediaFile{file}, storage.RejectDuplicates)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 || ids[0] == 0 {
		return 0, storageerr.New(storageerr.TransactionFailed, "legacycatalog.Store", "path already has a live id")
	}
	return ids[0], nil
}

func (c *Catalog) Update(ctx context.Context, file storage.MediaFile) error {
	return c.BulkUpdate(ctx, []storage.MediaFile{file})
}

func (c *Catalog) Remove(ctx context.Context, canonicalPath string) error {
	n, err := c.BulkRemove(ctx, []string{canonicalPath})
	if err != nil {
		return err
	}
	if n == 0 {
		return storageerr.New(storageerr.NotFound, "legacycatalog.Remove", canonicalPath)
	}
	return nil
}

func (c *Catalog) GetByPath(ctx context.Context, canonicalPath string) (*storage.MediaFile, error) {
	results, err := c.BulkGetByPaths(ctx, []string{canonicalPath})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

func (c *Catalog) GetByID(ctx context.Context, id int64) (*storage.MediaFile, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM media_files WHERE id = $1`, id)
	f, err := scanRowToFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.GetByID", err)
	}
	return &f, nil
}
