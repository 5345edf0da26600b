// Package mmapfile owns the append-only, memory-mapped data file described
// in spec.md §4.2 and §6.1: a fixed 64-byte header followed by a sequence
// of (batch_header, payload) records, growable in increments, with a
// single-writer reserve-then-copy append path and many concurrent
// zero-copy readers.
//
// Grounded on golang.org/x/sys/unix (already in the teacher's go.mod,
// unused by the teacher's source) for the Mmap/Munmap/Msync syscalls; the
// reserve-then-copy / atomic frontier pattern is original to this engine
// since nothing in the pack implements a raw mmap store, but the
// single-writer-many-readers shape mirrors the teacher's
// internal/jobs.Queue split between one asynq.Server and many callers of
// the shared *asynq.Client.
package mmapfile

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/JustinTDCT/mediacat/internal/storage/storageerr"
)

const (
	// HeaderSize is the fixed size of the region header, spec.md §6.1.
	HeaderSize = 64

	magic = "MEDIADB1"

	formatVersion = uint32(1)

	// DefaultGrowthIncrement is file_growth_increment_mb's default, 10 MiB.
	DefaultGrowthIncrement = 10 * 1024 * 1024
)

// Header is the fixed 64-byte prefix of media.fb.
type Header struct {
	Magic       [8]byte
	Version     uint32
	LogicalSize uint64
	IndexOffset uint64
	BatchCount  uint64
	// Reserved pads the header out to 64 bytes total.
	Reserved [28]byte
}

func (h *Header) encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:8], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[8:12], h.Version)
	binary.LittleEndian.PutUint64(buf[12:20], h.LogicalSize)
	binary.LittleEndian.PutUint64(buf[20:28], h.IndexOffset)
	binary.LittleEndian.PutUint64(buf[28:36], h.BatchCount)
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	var h Header
	if len(buf) < HeaderSize {
		return h, storageerr.New(storageerr.Corrupt, "mmapfile.decodeHeader", "short header")
	}
	copy(h.Magic[:], buf[0:8])
	if string(h.Magic[:]) != magic {
		return h, storageerr.New(storageerr.Corrupt, "mmapfile.decodeHeader", "bad magic")
	}
	h.Version = binary.LittleEndian.Uint32(buf[8:12])
	h.LogicalSize = binary.LittleEndian.Uint64(buf[12:20])
	h.IndexOffset = binary.LittleEndian.Uint64(buf[20:28])
	h.BatchCount = binary.LittleEndian.Uint64(buf[28:36])
	return h, nil
}

// Region is the mmap-backed append-only data file.
type Region struct {
	f    *os.File
	path string

	growMu sync.Mutex // exclusive during remap; growth blocks appenders only
	data   atomic.Pointer[[]byte]
	size   atomic.Int64 // current mapped size

	frontier   atomic.Int64 // next append offset (logical size)
	batchCount atomic.Int64

	growthIncrement int64
}

// Open opens or creates path as an append-only mmap region, sized to at
// least initialSize bytes, growing by growthIncrement when the frontier
// approaches the mapped size.
func Open(path string, initialSize, growthIncrement int64) (*Region, error) {
	if growthIncrement <= 0 {
		growthIncrement = DefaultGrowthIncrement
	}
	if initialSize < HeaderSize {
		initialSize = HeaderSize
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, storageerr.Wrap(storageerr.TransactionFailed, "mmapfile.Open", err)
	}

	r := &Region{f: f, path: path, growthIncrement: growthIncrement}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, storageerr.Wrap(storageerr.TransactionFailed, "mmapfile.Open", err)
	}

	fresh := info.Size() == 0
	mapSize := info.Size()
	if mapSize < initialSize {
		mapSize = initialSize
	}
	if err := f.Truncate(mapSize); err != nil {
		f.Close()
		return nil, storageerr.Wrap(storageerr.TransactionFailed, "mmapfile.Open", err)
	}

	if err := r.remap(mapSize); err != nil {
		f.Close()
		return nil, err
	}

	if fresh {
		h := Header{Version: formatVersion}
		copy(h.Magic[:], magic)
		h.LogicalSize = HeaderSize
		r.writeHeaderLocked(h)
		r.frontier.Store(HeaderSize)
	} else {
		buf := *r.data.Load()
		h, err := decodeHeader(buf)
		if err != nil {
			f.Close()
			return nil, err
		}
		r.frontier.Store(int64(h.LogicalSize))
		r.batchCount.Store(int64(h.BatchCount))
	}

	return r, nil
}

func (r *Region) remap(size int64) error {
	r.growMu.Lock()
	defer r.growMu.Unlock()

	if old := r.data.Load(); old != nil {
		if err := unix.Munmap(*old); err != nil {
			return storageerr.Wrap(storageerr.TransactionFailed, "mmapfile.remap", err)
		}
	}
	mapped, err := unix.Mmap(int(r.f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return storageerr.Wrap(storageerr.TransactionFailed, "mmapfile.remap", err)
	}
	r.data.Store(&mapped)
	r.size.Store(size)
	return nil
}

func (r *Region) writeHeaderLocked(h Header) {
	copy(h.Magic[:], magic)
	buf := *r.data.Load()
	copy(buf[0:HeaderSize], h.encode())
}

// Frontier returns the current logical end-of-data offset.
func (r *Region) Frontier() int64 { return r.frontier.Load() }

// BatchCount returns the number of batches committed so far.
func (r *Region) BatchCount() int64 { return r.batchCount.Load() }

// Append atomically reserves len(payload) bytes at the current frontier,
// copies payload into the mapping, advances the batch count, and returns
// the pre-reservation offset. Single-writer: callers must serialize
// Append among themselves (the bulk op engine does this).
func (r *Region) Append(payload []byte) (int64, error) {
	if int64(len(payload)) > r.size.Load() {
		// extreme case: a single payload bigger than the whole mapping
		if err := r.Grow(int64(len(payload))); err != nil {
			return 0, err
		}
	}
	for {
		cur := r.frontier.Load()
		next := cur + int64(len(payload))
		if next > r.size.Load() {
			if err := r.Grow(next - r.size.Load()); err != nil {
				return 0, err
			}
			continue
		}
		if r.frontier.CompareAndSwap(cur, next) {
			buf := *r.data.Load()
			copy(buf[cur:next], payload)
			r.batchCount.Add(1)
			r.writeHeaderLocked(Header{
				Version:     formatVersion,
				LogicalSize: uint64(next),
				BatchCount:  uint64(r.batchCount.Load()),
			})
			return cur, nil
		}
	}
}

// Read returns a zero-copy view of [offset, offset+length) within the
// mapping. Bounds-checked against the current logical frontier.
func (r *Region) Read(offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > r.frontier.Load() {
		return nil, storageerr.New(storageerr.Corrupt, "mmapfile.Read", fmt.Sprintf("out of bounds [%d,%d)", offset, offset+length))
	}
	buf := *r.data.Load()
	return buf[offset : offset+length], nil
}

// Grow remaps the region to accommodate at least `additional` more bytes
// beyond the current mapped size, rounding up to growthIncrement. Holds an
// exclusive lock: other appenders block, readers are unaffected because
// they only ever hold immutable slices into the prior, still-valid
// mapping prefix (taken before calling Grow).
func (r *Region) Grow(additional int64) error {
	cur := r.size.Load()
	need := cur + additional
	steps := (need - cur + r.growthIncrement - 1) / r.growthIncrement
	newSize := cur + steps*r.growthIncrement
	if err := r.f.Truncate(newSize); err != nil {
		return storageerr.Wrap(storageerr.TransactionFailed, "mmapfile.Grow", err)
	}
	return r.remap(newSize)
}

// Sync durably flushes the mapping (and the header) to disk.
func (r *Region) Sync() error {
	buf := *r.data.Load()
	if err := unix.Msync(buf, unix.MS_SYNC); err != nil {
		return storageerr.Wrap(storageerr.TransactionFailed, "mmapfile.Sync", err)
	}
	return r.f.Sync()
}

// TruncateLogicalSize forcibly rewinds the frontier, used by crash
// recovery to drop a corrupt tail batch (spec.md §7).
func (r *Region) TruncateLogicalSize(offset int64) {
	r.frontier.Store(offset)
	r.writeHeaderLocked(Header{
		Version:     formatVersion,
		LogicalSize: uint64(offset),
		BatchCount:  uint64(r.batchCount.Load()),
	})
}

// Close unmaps and closes the underlying file.
func (r *Region) Close() error {
	if d := r.data.Load(); d != nil {
		_ = unix.Munmap(*d)
	}
	return r.f.Close()
}
