// Package engine implements the bulk operation engine (spec.md §4.5),
// its single-op wrappers (§4.6), browse queries (§4.7), playlists (§4.8),
// and stats/stream/cleanup surface (§6.2) — the "ZeroCopy" variant of the
// storage.Catalog capability set named in spec.md §9's Design Notes.
//
// The commit path's ordering (mmap append -> WAL entry -> path_to_id ->
// id_to_location -> dir_index -> music_indexes) and the
// single-writer-serializes-commits rule are spec.md §5's contract; engine
// enforces both with one commitMu held across a whole bulk op. The WAL
// entry is durable before any in-memory index mutation, so a WAL append
// failure can be undone with a frontier rollback and zero index
// mutations ever observed, per spec.md §4.5's "committed... or rolled
// back" guarantee.
//
// Recovery distinguishes torn-tail corruption (the last WAL/media.fb
// record never finished writing before a crash — silently dropped,
// spec.md §7) from corruption anywhere else, which is fatal: the engine
// sets itself degraded and every mutating op returns storageerr.Corrupt
// until the process is restarted against a repaired catalog.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/JustinTDCT/mediacat/internal/storage"
	"github.com/JustinTDCT/mediacat/internal/storage/codec"
	"github.com/JustinTDCT/mediacat/internal/storage/enginelog"
	"github.com/JustinTDCT/mediacat/internal/storage/engineconfig"
	"github.com/JustinTDCT/mediacat/internal/storage/index"
	"github.com/JustinTDCT/mediacat/internal/storage/mmapfile"
	"github.com/JustinTDCT/mediacat/internal/storage/storageerr"
	"github.com/JustinTDCT/mediacat/internal/storage/wal"
)

const (
	dataFileName     = "media.fb"
	indexFileName    = "media.idx"
	walFileName      = "media.wal"
	maxBatchPayload  = 2 << 30 // 2 GiB, spec.md §4.5 BatchTooLarge
	minSplitBatch    = 1
)

var _ storage.Catalog = (*Engine)(nil)

// Engine is the ZeroCopy storage.Catalog implementation.
type Engine struct {
	dir    string
	cfg    engineconfig.Options
	log    *enginelog.Logger
	region *mmapfile.Region
	walLog *wal.Log
	idx    *index.Manager

	nextID      atomic.Int64
	nextBatchID atomic.Int64

	commitMu sync.Mutex // single-writer: serializes bulk op commits

	limiter *rate.Limiter // throttles commit rate when auto_scale_performance is set

	playlists *playlistStore

	closed   atomic.Bool
	degraded atomic.Bool
}

// Open opens or creates a catalog rooted at dir, replaying WAL/snapshot
// state per spec.md §6.2's open(dir) -> engine.
func Open(dir string, cfg engineconfig.Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, storageerr.Wrap(storageerr.InvalidFormat, "engine.Open", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, storageerr.Wrap(storageerr.TransactionFailed, "engine.Open", err)
	}

	region, err := mmapfile.Open(
		filepath.Join(dir, dataFileName),
		cfg.InitialDataFileBytes(),
		cfg.FileGrowthIncrementBytes(),
	)
	if err != nil {
		return nil, err
	}

	walLog, err := wal.Open(filepath.Join(dir, walFileName), cfg.EnableWAL)
	if err != nil {
		region.Close()
		return nil, err
	}

	idxMgr := index.NewManager(cfg.IndexShardCount, cfg.CacheLimitBytes(), cfg.IndexLimitBytes(), cfg.MetadataLimitBytes())

	e := &Engine{
		dir:       dir,
		cfg:       cfg,
		log:       enginelog.New("engine"),
		region:    region,
		walLog:    walLog,
		idx:       idxMgr,
		playlists: newPlaylistStore(),
	}

	if cfg.AutoScalePerformance {
		e.limiter = rate.NewLimiter(rate.Limit(1000), 1000)
	}

	maxID, err := e.recover()
	if err != nil {
		region.Close()
		walLog.Close()
		return nil, err
	}
	if e.degraded.Load() {
		e.log.Printf("opened in degraded read-only mode: non-tail corruption detected during recovery")
	}
	e.nextID.Store(maxID + 1)
	e.nextBatchID.Store(region.BatchCount() + 1)

	if err := e.playlists.load(e.playlistPath()); err != nil {
		e.log.Printf("playlist snapshot unreadable, starting empty: %v", err)
	}

	return e, nil
}

// Close checkpoints, fsyncs, writes a fresh snapshot, and releases the
// mapping, per spec.md §6.2's close(engine).
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	if err := e.region.Sync(); err != nil {
		e.log.Printf("sync failed on close: %v", err)
	}
	if _, err := e.walLog.Checkpoint(); err != nil {
		e.log.Printf("checkpoint failed on close: %v", err)
	}
	if err := index.WriteSnapshot(filepath.Join(e.dir, indexFileName), e.idx.SnapshotEntries()); err != nil {
		e.log.Printf("snapshot write failed on close: %v", err)
	}
	if err := e.playlists.save(e.playlistPath()); err != nil {
		e.log.Printf("playlist snapshot write failed on close: %v", err)
	}
	if err := e.walLog.Close(); err != nil {
		e.log.Printf("wal close failed: %v", err)
	}
	return e.region.Close()
}

// Degraded reports whether the engine detected non-tail corruption (a
// decode failure on a record the index or WAL claims is already
// committed, as opposed to a torn/unreadable final record). Per spec.md
// §7 this is permanent for the life of the open catalog: every mutating
// op fails with Corrupt and the catalog only still serves browse reads.
func (e *Engine) Degraded() bool { return e.degraded.Load() }

// markDegraded flips the engine into read-only mode and logs a single
// structured entry naming the offending component and detail, per
// spec.md §7's "every fatal condition produces a single structured log
// entry with the offending offset/id/path".
func (e *Engine) markDegraded(component, detail string) {
	if e.degraded.CompareAndSwap(false, true) {
		e.log.Printf("degraded: component=%s detail=%s", component, detail)
	}
}

func (e *Engine) failIfDegraded(op string) error {
	if e.degraded.Load() {
		return storageerr.New(storageerr.Corrupt, op, "engine is in degraded read-only mode")
	}
	return nil
}

// nowSeconds is overridable in tests.
var nowSeconds = defaultNowSeconds

func (e *Engine) dataPath() string  { return filepath.Join(e.dir, dataFileName) }
func (e *Engine) indexPath() string { return filepath.Join(e.dir, indexFileName) }
func (e *Engine) walPath() string   { return filepath.Join(e.dir, walFileName) }

// encodeAndAppend serializes files into one batch, appends header+payload
// to the mmap region, and returns the batch's on-disk location alongside
// the per-record index within the batch. Caller holds commitMu.
func (e *Engine) encodeAndAppend(files []codec.MediaFile) (index.Location, []index.Location, error) {
	unit := codec.EncodeBatchWithHeader(uint64(e.nextBatchID.Add(1)-1), uint64(nowSeconds()), files)
	if len(unit)-codec.BatchHeaderSize > maxBatchPayload {
		return index.Location{}, nil, storageerr.New(storageerr.BatchTooLarge, "engine.encodeAndAppend", "payload exceeds 2GiB")
	}
	offset, err := e.region.Append(unit)
	if err != nil {
		return index.Location{}, nil, storageerr.Wrap(storageerr.TransactionFailed, "engine.encodeAndAppend", err)
	}
	locs := make([]index.Location, len(files))
	for i := range files {
		locs[i] = index.Location{
			BatchOffset: offset,
			BatchLength: int64(len(unit)),
			RecordIndex: i,
		}
	}
	return locs[0], locs, nil
}

func (e *Engine) maybeThrottle() {
	if e.limiter != nil {
		_ = e.limiter.Wait(context.Background())
	}
}

func (e *Engine) maybeSync() {
	// sync_frequency_seconds governs a background fsync cadence in a long
	// running process; bulk ops themselves always durably append WAL
	// entries immediately, matching spec.md §4.5 step 7's "fsync per the
	// sync_frequency policy" for the WAL, while media.fb catches up on
	// Close or an explicit Sync call.
	_ = e.walLog.Sync()
}
