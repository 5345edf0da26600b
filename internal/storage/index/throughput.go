package index

import "math"

// throughputAlpha weights the EWMA toward recent batches, spec.md §4.5
// "current_throughput (EWMA over last N batches)".
const throughputAlpha = 0.2

// RecordThroughput folds recordsPerSecond into the engine-wide EWMA and
// updates the peak if exceeded.
func (c *Counters) RecordThroughput(recordsPerSecond float64) {
	for {
		oldBits := c.currentThroughputBits.Load()
		old := math.Float64frombits(oldBits)
		var next float64
		if oldBits == 0 {
			next = recordsPerSecond
		} else {
			next = throughputAlpha*recordsPerSecond + (1-throughputAlpha)*old
		}
		if c.currentThroughputBits.CompareAndSwap(oldBits, math.Float64bits(next)) {
			break
		}
	}
	for {
		peakBits := c.peakThroughputBits.Load()
		peak := math.Float64frombits(peakBits)
		cur := math.Float64frombits(c.currentThroughputBits.Load())
		if cur <= peak {
			return
		}
		if c.peakThroughputBits.CompareAndSwap(peakBits, math.Float64bits(cur)) {
			return
		}
	}
}

// CurrentThroughput returns the current EWMA records/sec.
func (c *Counters) CurrentThroughput() float64 {
	return math.Float64frombits(c.currentThroughputBits.Load())
}

// PeakThroughput returns the highest EWMA value observed.
func (c *Counters) PeakThroughput() float64 {
	return math.Float64frombits(c.peakThroughputBits.Load())
}

// CacheHitRate returns cache_hits / (cache_hits + cache_misses), or 0 when
// there have been no lookups yet.
func (c *Counters) CacheHitRate() float64 {
	hits := c.CacheHits.Load()
	misses := c.CacheMisses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
