// Package scheduler runs periodic full rescans on a configurable cron
// expression, supplementing spec.md §4.9's initial/incremental scan pair
// with the recurring trigger a long-running server needs.
//
// Grounded on the teacher's internal/scheduler/scheduler.go: the
// Scheduler struct shape (callback, stop channel, Start/Stop) carries
// over, but the hand-rolled time.Ticker loop is replaced by
// github.com/robfig/cron/v3, since that is the library the rest of the
// example pack reaches for whenever a repo needs more than a fixed
// interval (a real cron expression, not just "every 60s").
package scheduler

import (
	"github.com/robfig/cron/v3"

	"github.com/JustinTDCT/mediacat/internal/storage/enginelog"
)

// OnScanDue is called once per configured root when its cron schedule
// fires.
type OnScanDue func(root string)

// Scheduler drives periodic rescans of a fixed set of roots.
type Scheduler struct {
	cron     *cron.Cron
	callback OnScanDue
	roots    []string
	log      *enginelog.Logger
	entries  []cron.EntryID
}

// New builds a Scheduler that invokes cb for every root in roots each
// time expr fires (standard 5-field cron syntax, local time).
func New(expr string, roots []string, cb OnScanDue) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		callback: cb,
		roots:    roots,
		log:      enginelog.New("scheduler"),
	}
	for _, root := range roots {
		root := root
		id, err := s.cron.AddFunc(expr, func() {
			s.log.Printf("cron fired, rescanning %s", root)
			s.callback(root)
		})
		if err != nil {
			return nil, err
		}
		s.entries = append(s.entries, id)
	}
	return s, nil
}

// Start begins the cron scheduler's background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Printf("scheduled rescans armed for %d root(s)", len(s.roots))
}

// Stop halts the scheduler and waits for any in-flight job to return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
