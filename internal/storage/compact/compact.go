// Package compact implements the offline compaction pass spec.md §4.5
// alludes to in bulk_update's commentary ("Old batch remains (garbage —
// reclaimable by an offline compaction pass, not specified here)"): a
// supplemented feature this engine needs since bulk_update and
// bulk_remove never rewrite media.fb in place.
//
// Grounded on the snapshot/rotate shape of
// ClusterCockpit-cc-backend/pkg/metricstore/walCheckpoint.go's
// ToCheckpointWAL + toCheckpointBinary (write-to-temp, atomic rename,
// then drop the superseded file) from the example pack, adapted from a
// per-host binary snapshot rotation to a whole-catalog media.fb rewrite.
package compact

import (
	"os"
	"path/filepath"
	"time"

	"github.com/JustinTDCT/mediacat/internal/storage/codec"
	"github.com/JustinTDCT/mediacat/internal/storage/engineconfig"
	"github.com/JustinTDCT/mediacat/internal/storage/enginelog"
	"github.com/JustinTDCT/mediacat/internal/storage/index"
	"github.com/JustinTDCT/mediacat/internal/storage/mmapfile"
	"github.com/JustinTDCT/mediacat/internal/storage/storageerr"
	"github.com/JustinTDCT/mediacat/internal/storage/wal"
)

const (
	dataFileName  = "media.fb"
	indexFileName = "media.idx"
	walFileName   = "media.wal"
)

// Report summarizes one compaction run.
type Report struct {
	RecordsKept int64
	BytesBefore int64
	BytesAfter  int64
	Duration    time.Duration
}

// Compact rewrites dir's media.fb to contain only records reachable from
// the last clean-shutdown snapshot, dropping every superseded bulk_update
// batch and every bulk_remove'd record's bytes. It requires the catalog
// to be closed (no engine.Engine holding dir open) and a readable
// media.idx snapshot; a dirty catalog (snapshot missing) is not
// compactable without first opening and cleanly closing it, since
// compaction trusts the snapshot's notion of "live" rather than
// replaying the WAL itself.
func Compact(dir string) (Report, error) {
	log := enginelog.New("compact")
	start := time.Now()

	oldDataPath := filepath.Join(dir, dataFileName)
	oldIndexPath := filepath.Join(dir, indexFileName)

	beforeInfo, err := os.Stat(oldDataPath)
	if err != nil {
		return Report{}, storageerr.Wrap(storageerr.TransactionFailed, "compact.Compact", err)
	}

	entries, err := index.ReadSnapshot(oldIndexPath)
	if err != nil {
		return Report{}, storageerr.Wrap(storageerr.TransactionFailed, "compact.Compact", err)
	}
	if entries == nil {
		return Report{}, storageerr.New(storageerr.NotFound, "compact.Compact", "no clean snapshot to compact from; open+close the catalog first")
	}

	oldRegion, err := mmapfile.Open(oldDataPath, beforeInfo.Size(), engineconfig.Defaults().FileGrowthIncrementBytes())
	if err != nil {
		return Report{}, err
	}
	defer oldRegion.Close()

	records := make([]codec.MediaFile, 0, len(entries))
	for _, ent := range entries {
		buf, err := oldRegion.Read(ent.BatchOffset, ent.BatchLength)
		if err != nil {
			log.Printf("skipping unreadable entry id=%d: %v", ent.ID, err)
			continue
		}
		_, batch, err := codec.VerifyAndDecode(buf)
		if err != nil {
			log.Printf("skipping corrupt entry id=%d: %v", ent.ID, err)
			continue
		}
		view, err := batch.Record(int(ent.RecordIndex))
		if err != nil {
			log.Printf("skipping missing record id=%d: %v", ent.ID, err)
			continue
		}
		records = append(records, view.Materialize())
	}

	tmpDir, err := os.MkdirTemp(dir, ".compact-*")
	if err != nil {
		return Report{}, storageerr.Wrap(storageerr.TransactionFailed, "compact.Compact", err)
	}
	defer os.RemoveAll(tmpDir)

	newDataPath := filepath.Join(tmpDir, dataFileName)
	var unit []byte
	initialSize := int64(mmapfile.HeaderSize)
	if len(records) > 0 {
		unit = codec.EncodeBatchWithHeader(1, uint64(time.Now().Unix()), records)
		initialSize += int64(len(unit))
	}
	newRegion, err := mmapfile.Open(newDataPath, initialSize, engineconfig.Defaults().FileGrowthIncrementBytes())
	if err != nil {
		return Report{}, err
	}

	newEntries := make([]index.SnapshotEntry, 0, len(records))
	if len(records) > 0 {
		offset, err := newRegion.Append(unit)
		if err != nil {
			newRegion.Close()
			return Report{}, err
		}
		for i, rec := range records {
			newEntries = append(newEntries, index.SnapshotEntry{
				CanonicalPath: rec.CanonicalPath,
				ID:            rec.ID,
				BatchOffset:   offset,
				BatchLength:   int64(len(unit)),
				RecordIndex:   int32(i),
			})
		}
	}

	if err := newRegion.Sync(); err != nil {
		newRegion.Close()
		return Report{}, err
	}
	if err := newRegion.Close(); err != nil {
		return Report{}, err
	}

	newIndexPath := filepath.Join(tmpDir, indexFileName)
	if err := index.WriteSnapshot(newIndexPath, newEntries); err != nil {
		return Report{}, err
	}

	afterInfo, err := os.Stat(newDataPath)
	if err != nil {
		return Report{}, storageerr.Wrap(storageerr.TransactionFailed, "compact.Compact", err)
	}

	if err := oldRegion.Close(); err != nil {
		log.Printf("close of old region before swap failed: %v", err)
	}

	if err := os.Rename(newDataPath, oldDataPath); err != nil {
		return Report{}, storageerr.Wrap(storageerr.TransactionFailed, "compact.Compact", err)
	}
	if err := os.Rename(newIndexPath, oldIndexPath); err != nil {
		return Report{}, storageerr.Wrap(storageerr.TransactionFailed, "compact.Compact", err)
	}

	// A fresh WAL, since every live record is now reachable directly from
	// the rewritten snapshot; the old WAL's insert/update/remove history
	// is now entirely superseded.
	walPath := filepath.Join(dir, walFileName)
	if err := os.Remove(walPath); err != nil && !os.IsNotExist(err) {
		log.Printf("stale WAL removal failed: %v", err)
	}
	if fresh, err := wal.Open(walPath, true); err == nil {
		fresh.Close()
	}

	log.Printf("compacted %s: %d records kept, %d -> %d bytes, took %s",
		dir, len(records), beforeInfo.Size(), afterInfo.Size(), time.Since(start))

	return Report{
		RecordsKept: int64(len(records)),
		BytesBefore: beforeInfo.Size(),
		BytesAfter:  afterInfo.Size(),
		Duration:    time.Since(start),
	}, nil
}
