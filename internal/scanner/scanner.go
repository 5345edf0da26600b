// Package scanner implements spec.md §4.9's initial and incremental
// catalog scans: walk a root, diff the walk against the catalog's
// existing view of that root, and issue the three bulk calls
// (remove, update, insert) that bring the catalog in line with the
// filesystem.
//
// Grounded on the teacher's internal/scanner/scanner.go: the staging
// struct (scanFile here, scanFile there), the per-type extension-set
// maps, the WalkDir-plus-worker-pool collection shape and the
// symlink-cycle guard all carry over. Every *repository.XRepo field is
// replaced by one storage.Catalog, and SQL existence checks are replaced
// by the three-set diff against catalog.StreamByPrefix.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/JustinTDCT/mediacat/internal/storage"
	"github.com/JustinTDCT/mediacat/internal/storage/enginelog"
	"github.com/JustinTDCT/mediacat/internal/storage/pathnorm"
)

// Config controls one Scanner instance.
type Config struct {
	// ResolveSymlinks requests filesystem symlink resolution during
	// canonicalization, spec.md §4.1 rule 6.
	ResolveSymlinks bool
	// Workers is the size of the file-processing worker pool; defaults
	// to 8, matching the teacher's numWorkers constant.
	Workers int
	// ExcludePatterns are glob patterns (matched against the basename)
	// that exclude a file or directory from the walk.
	ExcludePatterns []string
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return 8
}

// Scanner walks configured filesystem roots and reconciles them against
// a storage.Catalog.
type Scanner struct {
	catalog storage.Catalog
	cfg     Config
	log     *enginelog.Logger

	progress chan ScanProgress
}

// New builds a Scanner over catalog.
func New(catalog storage.Catalog, cfg Config) *Scanner {
	return &Scanner{
		catalog:  catalog,
		cfg:      cfg,
		log:      enginelog.New("scanner"),
		progress: make(chan ScanProgress, 64),
	}
}

// Progress returns the buffered channel of progress events emitted by
// ScanRoot. The channel is never closed by the scanner; callers read
// what they need and may drop the rest, since it is sized generously
// (64) against a single scan's event volume.
func (s *Scanner) Progress() <-chan ScanProgress {
	return s.progress
}

// ScanProgress mirrors the shape ZaparooProject-zaparoo-core's
// mediascanner/indexing_pipeline.go publishes for its pipeline stages,
// adapted to this scanner's to_insert/to_update/to_remove counters.
type ScanProgress struct {
	Root      string
	Stage     string // "walking", "diffing", "removing", "updating", "inserting", "done"
	Found     int
	Inserted  int
	Updated   int
	Removed   int
	Errors    int
}

func (s *Scanner) emit(p ScanProgress) {
	select {
	case s.progress <- p:
	default:
		// Progress is best-effort; a full channel means nobody is
		// listening closely enough to need backpressure here.
	}
}

// scanFile is the staging struct for one walked file, mirroring the
// teacher's scanFile.
type scanFile struct {
	canonicalPath string
	path          string
	size          int64
	modified      int64
	mimeType      string
}

// ScanRoot implements spec.md §4.9's initial scan for one configured
// root: walk, diff against the catalog, then remove/update/insert in
// that order.
func (s *Scanner) ScanRoot(ctx context.Context, root string) (Summary, error) {
	canonicalRoot, err := pathnorm.Normalize(root, pathnorm.Options{ResolveSymlinks: s.cfg.ResolveSymlinks})
	if err != nil {
		return Summary{}, err
	}

	current, foundErrs := s.walk(ctx, root)
	s.emit(ScanProgress{Root: canonicalRoot, Stage: "walking", Found: len(current), Errors: foundErrs})

	known, err := s.streamKnown(ctx, canonicalRoot)
	if err != nil {
		return Summary{}, err
	}

	toInsert, toUpdate, toRemove := diffSets(current, known)
	s.emit(ScanProgress{Root: canonicalRoot, Stage: "diffing", Found: len(current), Errors: foundErrs})

	summary := Summary{Root: canonicalRoot, FilesWalked: len(current), WalkErrors: foundErrs}

	if len(toRemove) > 0 {
		n, err := retryBulk(ctx, func() (int, error) { return s.catalog.BulkRemove(ctx, toRemove) })
		if err != nil {
			return summary, err
		}
		summary.Removed = n
		s.emit(ScanProgress{Root: canonicalRoot, Stage: "removing", Removed: n})
	}

	if len(toUpdate) > 0 {
		_, err := retryBulk(ctx, func() (int, error) { return 0, s.catalog.BulkUpdate(ctx, toUpdate) })
		if err != nil {
			return summary, err
		}
		summary.Updated = len(toUpdate)
		s.emit(ScanProgress{Root: canonicalRoot, Stage: "updating", Updated: len(toUpdate)})
	}

	if len(toInsert) > 0 {
		ids, err := retryBulkIDs(ctx, func() ([]int64, error) {
			return s.catalog.BulkStore(ctx, toInsert, storage.RejectDuplicates)
		})
		if err != nil {
			return summary, err
		}
		for _, id := range ids {
			if id != 0 {
				summary.Inserted++
			}
		}
		s.emit(ScanProgress{Root: canonicalRoot, Stage: "inserting", Inserted: summary.Inserted})
	}

	s.emit(ScanProgress{Root: canonicalRoot, Stage: "done", Found: len(current),
		Inserted: summary.Inserted, Updated: summary.Updated, Removed: summary.Removed, Errors: foundErrs})
	return summary, nil
}

// Summary is the completion report spec.md §4.9 step 6 requires.
type Summary struct {
	Root        string
	FilesWalked int
	WalkErrors  int
	Inserted    int
	Updated     int
	Removed     int
}

// walk performs the depth-first enumeration of spec.md §4.9 step 1,
// applying the extension allow-list and exclude patterns and
// canonicalizing each surviving path. Per-file I/O errors are counted
// and skipped, never aborting the walk — the failure model in §4.9's
// last paragraph.
func (s *Scanner) walk(ctx context.Context, root string) (map[string]scanFile, int) {
	current := make(map[string]scanFile)
	visitedDirs := make(map[string]bool)
	errCount := 0

	fileCh := make(chan scanFile, s.cfg.workers()*4)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < s.cfg.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range fileCh {
				mu.Lock()
				current[f.canonicalPath] = f
				mu.Unlock()
			}
		}()
	}

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			errCount++
			return nil
		}
		base := filepath.Base(path)
		if s.excluded(base) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			realPath, eerr := filepath.EvalSymlinks(path)
			if eerr != nil {
				return nil
			}
			if visitedDirs[realPath] {
				return filepath.SkipDir
			}
			visitedDirs[realPath] = true
			return nil
		}

		mimeType, ok := mimeForExtension(filepath.Ext(path))
		if !ok {
			return nil
		}
		info, ierr := d.Info()
		if ierr != nil {
			errCount++
			return nil
		}

		canonicalPath, cerr := pathnorm.Normalize(path, pathnorm.Options{ResolveSymlinks: s.cfg.ResolveSymlinks})
		if cerr != nil {
			errCount++
			return nil
		}

		fileCh <- scanFile{
			canonicalPath: canonicalPath,
			path:          path,
			size:          info.Size(),
			modified:      info.ModTime().Unix(),
			mimeType:      mimeType,
		}
		return nil
	})

	close(fileCh)
	wg.Wait()
	return current, errCount
}

func (s *Scanner) excluded(base string) bool {
	for _, pat := range s.cfg.ExcludePatterns {
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
	}
	return false
}

// streamKnown builds the `known` projection of spec.md §4.9 step 3 by
// consuming catalog.StreamByPrefix rather than loading the whole root
// into memory up front.
func (s *Scanner) streamKnown(ctx context.Context, canonicalRoot string) (map[string]storage.MediaFile, error) {
	stream, err := s.catalog.StreamByPrefix(ctx, canonicalRoot)
	if err != nil {
		return nil, err
	}
	known := make(map[string]storage.MediaFile)
	for f := range stream {
		known[f.CanonicalPath] = f
	}
	return known, nil
}

// ChangedFile is one watcher-classified event, already resolved to a
// scanFile shell where the classification needed one (Create/Modify).
type ChangedFile struct {
	CanonicalPath string
	Kind          IncrementalKind
	Size          int64
	Modified      int64
	MimeType      string
	Path          string
}

// IncrementalKind mirrors watcher.EventKind without importing the
// watcher package, keeping scanner free of a dependency on its own
// consumer.
type IncrementalKind int

const (
	IncInsert IncrementalKind = iota
	IncUpdate
	IncRemove
)

// ScanIncremental implements spec.md §4.9's incremental scan: the same
// diff classification as the initial scan, but driven directly by the
// watcher's per-event classification (spec.md §4.10) instead of a fresh
// full-root walk and a known-vs-current set difference — the watcher
// already knows which files were created, modified or removed, so
// nothing outside that explicit set should be touched.
func (s *Scanner) ScanIncremental(ctx context.Context, root string, changed []ChangedFile) (Summary, error) {
	summary := Summary{Root: root, FilesWalked: len(changed)}

	var toRemove []string
	var toUpdate []storage.MediaFile
	var toInsert []storage.MediaFile
	for _, c := range changed {
		switch c.Kind {
		case IncRemove:
			toRemove = append(toRemove, c.CanonicalPath)
		case IncUpdate:
			toUpdate = append(toUpdate, storage.MediaFile{
				CanonicalPath: c.CanonicalPath,
				Path:          c.Path,
				Size:          c.Size,
				Modified:      c.Modified,
				MimeType:      c.MimeType,
			})
		default:
			toInsert = append(toInsert, storage.MediaFile{
				CanonicalPath: c.CanonicalPath,
				Path:          c.Path,
				Size:          c.Size,
				Modified:      c.Modified,
				MimeType:      c.MimeType,
			})
		}
	}

	if len(toRemove) > 0 {
		n, err := retryBulk(ctx, func() (int, error) { return s.catalog.BulkRemove(ctx, toRemove) })
		if err != nil {
			return summary, err
		}
		summary.Removed = n
	}
	if len(toUpdate) > 0 {
		if _, err := retryBulk(ctx, func() (int, error) { return 0, s.catalog.BulkUpdate(ctx, toUpdate) }); err != nil {
			return summary, err
		}
		summary.Updated = len(toUpdate)
	}
	if len(toInsert) > 0 {
		ids, err := retryBulkIDs(ctx, func() ([]int64, error) {
			return s.catalog.BulkStore(ctx, toInsert, storage.Upsert)
		})
		if err != nil {
			return summary, err
		}
		for _, id := range ids {
			if id != 0 {
				summary.Inserted++
			}
		}
	}
	return summary, nil
}

// CleanupMissing reconciles the whole catalog against the live
// filesystem view built from every configured root, per spec.md §6.2's
// cleanup_missing, wired here to the scanner's own walk results.
func (s *Scanner) CleanupMissing(ctx context.Context, roots []string) (int, error) {
	existing := make(map[string]struct{})
	for _, root := range roots {
		if _, err := pathnorm.Normalize(root, pathnorm.Options{ResolveSymlinks: s.cfg.ResolveSymlinks}); err != nil {
			continue
		}
		current, _ := s.walk(ctx, root)
		for p := range current {
			existing[p] = struct{}{}
		}
	}
	return s.catalog.CleanupMissing(ctx, existing)
}
