package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/JustinTDCT/mediacat/internal/scanner"
	"github.com/JustinTDCT/mediacat/internal/storage/compact"
	"github.com/JustinTDCT/mediacat/internal/storage/enginelog"
)

// ScanRootPayload names the configured root to run a full scan against.
type ScanRootPayload struct {
	Root string `json:"root"`
}

// ReconcileWatchRootPayload carries a watcher's already-debounced,
// already-classified event batch for one root. Kind values mirror
// scanner.IncrementalKind (0=insert, 1=update, 2=remove).
type ReconcileWatchRootPayload struct {
	Root   string         `json:"root"`
	Events map[string]int `json:"events"`
}

// CompactPayload names the catalog directory to compact.
type CompactPayload struct {
	Dir string `json:"dir"`
}

// ScanRootHandler adapts the teacher's ScanHandler shape
// (internal/jobs/task_scan.go, since removed) to spec.md §4.9: one
// asynq task per configured root, delegating the actual walk/diff/bulk
// sequence to scanner.Scanner.
type ScanRootHandler struct {
	scanner *scanner.Scanner
	log     *enginelog.Logger
}

func NewScanRootHandler(s *scanner.Scanner) *ScanRootHandler {
	return &ScanRootHandler{scanner: s, log: enginelog.New("jobs.scanroot")}
}

func (h *ScanRootHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ScanRootPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal scan root payload: %w", err)
	}
	summary, err := h.scanner.ScanRoot(ctx, p.Root)
	if err != nil {
		return fmt.Errorf("scan root %s: %w", p.Root, err)
	}
	h.log.Printf("root %s: walked=%d inserted=%d updated=%d removed=%d errors=%d",
		summary.Root, summary.FilesWalked, summary.Inserted, summary.Updated, summary.Removed, summary.WalkErrors)
	return nil
}

// ReconcileWatchRootHandler runs the watcher-driven incremental scan as
// a background task rather than inline in the fsnotify callback, so a
// slow catalog write never blocks the event loop.
type ReconcileWatchRootHandler struct {
	scanner *scanner.Scanner
	log     *enginelog.Logger
}

func NewReconcileWatchRootHandler(s *scanner.Scanner) *ReconcileWatchRootHandler {
	return &ReconcileWatchRootHandler{scanner: s, log: enginelog.New("jobs.reconcile")}
}

func (h *ReconcileWatchRootHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ReconcileWatchRootPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal reconcile payload: %w", err)
	}

	events := make(map[string]scanner.WatchEventKind, len(p.Events))
	for path, kind := range p.Events {
		events[path] = scanner.IncrementalKind(kind)
	}
	summary, err := h.scanner.ReconcileBatch(ctx, p.Root, events)
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", p.Root, err)
	}
	h.log.Printf("root %s: inserted=%d updated=%d removed=%d", summary.Root, summary.Inserted, summary.Updated, summary.Removed)
	return nil
}

// CompactHandler runs internal/storage/compact.Compact as a background
// task, keeping the offline compaction pass off the request path.
type CompactHandler struct {
	log *enginelog.Logger
}

func NewCompactHandler() *CompactHandler {
	return &CompactHandler{log: enginelog.New("jobs.compact")}
}

func (h *CompactHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p CompactPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal compact payload: %w", err)
	}
	report, err := compact.Compact(p.Dir)
	if err != nil {
		return fmt.Errorf("compact %s: %w", p.Dir, err)
	}
	h.log.Printf("compacted %s: kept=%d before=%d after=%d took=%s",
		p.Dir, report.RecordsKept, report.BytesBefore, report.BytesAfter, report.Duration)
	return nil
}
