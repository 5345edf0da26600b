package scanner

import (
	"context"
	"os"
	"path/filepath"

	"github.com/JustinTDCT/mediacat/internal/storage/enginelog"
	"github.com/JustinTDCT/mediacat/internal/storage/pathnorm"
)

// WatchEventKind is the per-path classification the watcher package hands
// back; kept as an alias of IncrementalKind rather than watcher.EventKind
// so scanner has no import dependency on its own consumer.
type WatchEventKind = IncrementalKind

// ReconcileBatch classifies each raw path from the watcher's debounced
// batch into a ChangedFile before calling ScanIncremental.
func (s *Scanner) ReconcileBatch(ctx context.Context, root string, rawEvents map[string]WatchEventKind) (Summary, error) {
	log := enginelog.New("scanner.reconcile")
	changed := make([]ChangedFile, 0, len(rawEvents))

	for path, kind := range rawEvents {
		canonical, err := pathnorm.Normalize(path, pathnorm.Options{ResolveSymlinks: s.cfg.ResolveSymlinks})
		if err != nil {
			log.Printf("skip unnormalizable path %s: %v", path, err)
			continue
		}

		if kind == IncRemove {
			changed = append(changed, ChangedFile{CanonicalPath: canonical, Kind: IncRemove})
			continue
		}

		mimeType, ok := mimeForExtension(filepath.Ext(path))
		if !ok {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			// File vanished between the fsnotify event and this stat
			// (common for editors that write-then-rename); treat as a
			// no-op rather than a removal, since the watcher will see
			// its own Remove event separately if this was a real delete.
			continue
		}

		changed = append(changed, ChangedFile{
			CanonicalPath: canonical,
			Kind:          kind,
			Size:          info.Size(),
			Modified:      info.ModTime().Unix(),
			MimeType:      mimeType,
			Path:          path,
		})
	}

	return s.ScanIncremental(ctx, root, changed)
}
