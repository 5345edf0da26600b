package legacycatalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/JustinTDCT/mediacat/internal/storage"
	"github.com/JustinTDCT/mediacat/internal/storage/storageerr"
)

// CreatePlaylist, BulkAddToPlaylist, BulkRemoveFromPlaylist and
// GetPlaylistTracks implement spec.md §4.8 against the playlists /
// playlist_entries tables created in migrate(). Unlike the zero-copy
// engine's JSON snapshot (internal/storage/engine/playlist.go), this
// variant keeps playlists as ordinary rows since Postgres already gives
// durability and transactional updates for free.
func (c *Catalog) CreatePlaylist(ctx context.Context, name, description string) (*storage.Playlist, error) {
	id := uuid.New()
	now := nowSeconds()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO playlists (id, name, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, name, description, now, now)
	if err != nil {
		return nil, storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.CreatePlaylist", err)
	}
	return &storage.Playlist{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (c *Catalog) BulkAddToPlaylist(ctx context.Context, playlistID uuid.UUID, mediaIDs []int64) error {
	if len(mediaIDs) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkAddToPlaylist", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM playlists WHERE id = $1)`, playlistID).Scan(&exists); err != nil {
		return storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkAddToPlaylist", err)
	}
	if !exists {
		return storageerr.New(storageerr.NotFound, "legacycatalog.BulkAddToPlaylist", playlistID.String())
	}

	var nextPos int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM playlist_entries WHERE playlist_id = $1`, playlistID).Scan(&nextPos); err != nil {
		return storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkAddToPlaylist", err)
	}

	for _, mediaID := range mediaIDs {
		var liveID int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM media_files WHERE id = $1`, mediaID).Scan(&liveID)
		if errors.Is(err, sql.ErrNoRows) {
			return storageerr.New(storageerr.NotFound, "legacycatalog.BulkAddToPlaylist", "no such media id")
		}
		if err != nil {
			return storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkAddToPlaylist", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO playlist_entries (playlist_id, media_file_id, position) VALUES ($1, $2, $3)
			 ON CONFLICT (playlist_id, media_file_id) DO UPDATE SET position = EXCLUDED.position`,
			playlistID, mediaID, nextPos)
		if err != nil {
			return storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkAddToPlaylist", err)
		}
		nextPos++
	}

	_, err = tx.ExecContext(ctx, `UPDATE playlists SET updated_at = $1 WHERE id = $2`, nowSeconds(), playlistID)
	if err != nil {
		return storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkAddToPlaylist", err)
	}
	return tx.Commit()
}

func (c *Catalog) BulkRemoveFromPlaylist(ctx context.Context, playlistID uuid.UUID, mediaIDs []int64) error {
	if len(mediaIDs) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkRemoveFromPlaylist", err)
	}
	defer tx.Rollback()

	for _, mediaID := range mediaIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_entries WHERE playlist_id = $1 AND media_file_id = $2`, playlistID, mediaID); err != nil {
			return storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkRemoveFromPlaylist", err)
		}
	}

	rows, err := tx.QueryContext(ctx, `SELECT media_file_id FROM playlist_entries WHERE playlist_id = $1 ORDER BY position`, playlistID)
	if err != nil {
		return storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkRemoveFromPlaylist", err)
	}
	var remaining []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkRemoveFromPlaylist", err)
		}
		remaining = append(remaining, id)
	}
	rows.Close()

	for pos, id := range remaining {
		if _, err := tx.ExecContext(ctx, `UPDATE playlist_entries SET position = $1 WHERE playlist_id = $2 AND media_file_id = $3`, pos, playlistID, id); err != nil {
			return storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkRemoveFromPlaylist", err)
		}
	}

	_, err = tx.ExecContext(ctx, `UPDATE playlists SET updated_at = $1 WHERE id = $2`, nowSeconds(), playlistID)
	if err != nil {
		return storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.BulkRemoveFromPlaylist", err)
	}
	return tx.Commit()
}

func (c *Catalog) GetPlaylistTracks(ctx context.Context, playlistID uuid.UUID) ([]storage.MediaFile, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM media_files m
		JOIN playlist_entries pe ON pe.media_file_id = m.id
		WHERE pe.playlist_id = $1 ORDER BY pe.position`, playlistID)
	if err != nil {
		return nil, storageerr.Wrap(storageerr.TransactionFailed, "legacycatalog.GetPlaylistTracks", err)
	}
	return scanRowsToFiles(rows)
}
