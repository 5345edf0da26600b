package scanner

import (
	"context"
	"time"

	"github.com/JustinTDCT/mediacat/internal/storage/storageerr"
)

// retryBackoff is spec.md §4.9's failure model: a catalog write failure
// is retried with exponential backoff (100ms, 200ms, ..., capped at 5s),
// up to 5 attempts. Translated from the teacher's asynq.Config retry
// bands (internal/jobs/queue.go) into an explicit loop, since the
// scanner must retry a single bulk call synchronously rather than
// re-enqueue a background task.
var retryBackoff = []time.Duration{
	100 * time.Millisecond,
	200 * time.Millisecond,
	400 * time.Millisecond,
	800 * time.Millisecond,
	5 * time.Second,
}

const maxBulkAttempts = 5

// retryBulk retries a bulk call returning a count, surfacing ScanAborted
// after the final attempt fails.
func retryBulk(ctx context.Context, call func() (int, error)) (int, error) {
	var lastErr error
	for attempt := 0; attempt < maxBulkAttempts; attempt++ {
		n, err := call()
		if err == nil {
			return n, nil
		}
		lastErr = err
		if attempt == maxBulkAttempts-1 {
			break
		}
		select {
		case <-time.After(retryBackoff[attempt]):
		case <-ctx.Done():
			return 0, storageerr.Wrap(storageerr.Timeout, "scanner.retryBulk", ctx.Err())
		}
	}
	return 0, storageerr.Wrap(storageerr.ScanAborted, "scanner.retryBulk", lastErr)
}

// retryBulkIDs is retryBulk's counterpart for bulk_store's []int64 result.
func retryBulkIDs(ctx context.Context, call func() ([]int64, error)) ([]int64, error) {
	var lastErr error
	for attempt := 0; attempt < maxBulkAttempts; attempt++ {
		ids, err := call()
		if err == nil {
			return ids, nil
		}
		lastErr = err
		if attempt == maxBulkAttempts-1 {
			break
		}
		select {
		case <-time.After(retryBackoff[attempt]):
		case <-ctx.Done():
			return nil, storageerr.Wrap(storageerr.Timeout, "scanner.retryBulkIDs", ctx.Err())
		}
	}
	return nil, storageerr.Wrap(storageerr.ScanAborted, "scanner.retryBulkIDs", lastErr)
}
