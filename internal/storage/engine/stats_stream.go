package engine

import (
	"context"
	"strings"

	"github.com/JustinTDCT/mediacat/internal/storage"
	"github.com/JustinTDCT/mediacat/internal/storage/pathnorm"
)

// Stats reports the atomic counters spec.md §4.5/§6.2 name.
func (e *Engine) Stats(ctx context.Context) (storage.Stats, error) {
	c := &e.idx.Counters
	return storage.Stats{
		TotalFiles:      c.TotalFiles.Load(),
		TotalOperations: c.TotalOperations.Load(),
		CacheHitRate:    c.CacheHitRate(),
		Throughput:      c.CurrentThroughput(),
		MemoryBytes:     c.MemoryBytes.Load(),
		PeakMemoryBytes: c.PeakMemoryBytes.Load(),
	}, nil
}

// StreamAllMediaFiles walks every live path->id entry and streams
// materialized records on a channel, for callers (e.g. a scanner's
// "known" projection) that must not load the whole catalog into memory
// at once.
func (e *Engine) StreamAllMediaFiles(ctx context.Context) (<-chan storage.MediaFile, error) {
	return e.streamFiltered(ctx, func(string) bool { return true }), nil
}

// StreamByPrefix streams only records whose canonical path begins with
// canonicalPrefix, per spec.md §4.9 step 3's "prefix query on canonical
// path; streamed, not loaded whole".
func (e *Engine) StreamByPrefix(ctx context.Context, canonicalPrefix string) (<-chan storage.MediaFile, error) {
	prefix := canonicalPrefix
	if norm, err := pathnorm.Normalize(canonicalPrefix, pathnorm.Options{}); err == nil {
		prefix = norm
	}
	return e.streamFiltered(ctx, func(p string) bool { return strings.HasPrefix(p, prefix) }), nil
}

func (e *Engine) streamFiltered(ctx context.Context, keep func(string) bool) <-chan storage.MediaFile {
	out := make(chan storage.MediaFile, 256)
	go func() {
		defer close(out)
		for _, path := range e.idx.AllPaths() {
			if !keep(path) {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			id, ok := e.idx.LookupID(path)
			if !ok {
				continue
			}
			f, ok := e.getMaterialized(id)
			if !ok {
				continue
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// CleanupMissing removes every catalog entry whose canonical path is not
// present in existing, supporting a scanner's to_remove computation
// without re-deriving it here (the scanner itself performs the
// current/known diff per spec.md §4.9; this is the convenience path for a
// caller that already has the full existing-set in hand).
func (e *Engine) CleanupMissing(ctx context.Context, existing map[string]struct{}) (int, error) {
	var toRemove []string
	for _, path := range e.idx.AllPaths() {
		if _, ok := existing[path]; !ok {
			toRemove = append(toRemove, path)
		}
	}
	if len(toRemove) == 0 {
		return 0, nil
	}
	return e.BulkRemove(ctx, toRemove)
}
