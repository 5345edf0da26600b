package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/JustinTDCT/mediacat/internal/jobs"
	"github.com/JustinTDCT/mediacat/internal/scanner"
	"github.com/JustinTDCT/mediacat/internal/scheduler"
	"github.com/JustinTDCT/mediacat/internal/storage/engine"
	"github.com/JustinTDCT/mediacat/internal/storage/engineconfig"
	"github.com/JustinTDCT/mediacat/internal/version"
	"github.com/JustinTDCT/mediacat/internal/watcher"
)

const bannerArt = `
  __  __          _ _          _____      _
 |  \/  | ___  __| (_) __ _   / ____|__ _ | |_
 | |\/| |/ _ \/ _` + "`" + ` | |/ _` + "`" + ` | | |   / _` + "`" + ` || __|
 | |  | |  __/ (_| | | (_| | | |__ | (_| || |_
 |_|  |_|\___|\__,_|_|\__,_|  \____|\__,_| \__|
`

func main() {
	strict := flag.Bool("strict", false, "exit non-zero if the catalog opens in degraded (non-tail corruption) mode, per spec.md §7; default is to keep serving reads")
	flag.Parse()

	v := version.Load()
	fmt.Println(bannerArt)
	fmt.Printf("  mediacat zero-copy catalog engine, version %s\n\n", v.Version)

	catalogDir := envOr("ZEROCOPY_CATALOG_DIR", "./catalog-data")
	if err := os.MkdirAll(catalogDir, 0o755); err != nil {
		log.Fatalf("create catalog dir: %v", err)
	}

	cfg := engineconfig.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid engine configuration: %v", err)
	}

	eng, err := engine.Open(catalogDir, cfg)
	if err != nil {
		log.Fatalf("open catalog: %v", err)
	}
	defer eng.Close()
	log.Printf("catalog opened at %s", catalogDir)

	if eng.Degraded() {
		if *strict {
			log.Fatalf("catalog opened in degraded read-only mode and -strict was set; exiting")
		}
		log.Printf("catalog opened in degraded read-only mode; continuing to serve browse reads only (pass -strict to exit instead)")
	}

	roots := splitRoots(envOr("ZEROCOPY_ROOTS", ""))
	if len(roots) == 0 {
		log.Println("no ZEROCOPY_ROOTS configured; scanner and watcher are idle")
	}

	sc := scanner.New(eng, scanner.Config{ResolveSymlinks: true})
	go logProgress(sc)

	redisAddr := envOr("ZEROCOPY_REDIS_ADDR", "localhost:6379")
	queue := jobs.NewQueue(redisAddr)
	queue.RegisterHandler(jobs.TaskScanRoot, jobs.NewScanRootHandler(sc))
	queue.RegisterHandler(jobs.TaskReconcileWatchRoot, jobs.NewReconcileWatchRootHandler(sc))
	queue.RegisterHandler(jobs.TaskCompact, jobs.NewCompactHandler())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := queue.Start(ctx); err != nil {
			log.Printf("job queue worker stopped: %v", err)
		}
	}()
	defer queue.Stop()

	for _, root := range roots {
		if _, err := queue.Enqueue(jobs.TaskScanRoot, jobs.ScanRootPayload{Root: root}, asynq.Queue("default")); err != nil {
			log.Printf("enqueue initial scan for %s failed: %v", root, err)
		}
	}

	w, err := watcher.New(func(root string, events map[string]watcher.EventKind) {
		converted := make(map[string]int, len(events))
		for path, kind := range events {
			converted[path] = int(kind)
		}
		// Unique per root: overlapping debounce windows should not queue
		// duplicate reconcile jobs.
		if _, err := queue.EnqueueUnique(jobs.TaskReconcileWatchRoot, jobs.ReconcileWatchRootPayload{Root: root, Events: converted}, "reconcile:"+root); err != nil {
			log.Printf("enqueue reconcile for %s failed: %v", root, err)
		}
	}, isWatchedExtension, watcher.DefaultDebounce)
	if err != nil {
		log.Fatalf("create watcher: %v", err)
	}
	if len(roots) > 0 {
		w.Start(roots)
	}
	defer w.Stop()

	cronExpr := envOr("ZEROCOPY_RESCAN_CRON", "0 3 * * *")
	sched, err := scheduler.New(cronExpr, roots, func(root string) {
		if _, err := queue.Enqueue(jobs.TaskScanRoot, jobs.ScanRootPayload{Root: root}); err != nil {
			log.Printf("enqueue scheduled scan for %s failed: %v", root, err)
		}
	})
	if err != nil {
		log.Fatalf("create scheduler: %v", err)
	}
	if len(roots) > 0 {
		sched.Start()
	}
	defer sched.Stop()

	log.Println("mediacat running; press Ctrl+C to stop")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("shutting down")
}

func logProgress(sc *scanner.Scanner) {
	for p := range sc.Progress() {
		log.Printf("scan[%s] %s found=%d inserted=%d updated=%d removed=%d errors=%d",
			p.Root, p.Stage, p.Found, p.Inserted, p.Updated, p.Removed, p.Errors)
	}
}

func isWatchedExtension(ext string) bool {
	return scanner.IsEligibleExtension(ext)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitRoots(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
