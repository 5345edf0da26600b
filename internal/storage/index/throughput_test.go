package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordThroughputFirstSampleSetsBaseline(t *testing.T) {
	c := &Counters{}
	c.RecordThroughput(100)
	assert.Equal(t, 100.0, c.CurrentThroughput())
	assert.Equal(t, 100.0, c.PeakThroughput())
}

func TestRecordThroughputAppliesEWMAWeighting(t *testing.T) {
	c := &Counters{}
	c.RecordThroughput(100)
	c.RecordThroughput(200)

	// next = 0.2*200 + 0.8*100 = 120
	assert.InDelta(t, 120.0, c.CurrentThroughput(), 0.0001)
}

func TestRecordThroughputTracksPeakAcrossDips(t *testing.T) {
	c := &Counters{}
	c.RecordThroughput(500)
	peak := c.PeakThroughput()

	c.RecordThroughput(10)
	assert.Less(t, c.CurrentThroughput(), peak)
	assert.Equal(t, peak, c.PeakThroughput(), "peak must not drop when throughput dips")
}

func TestCacheHitRateWithNoLookupsIsZero(t *testing.T) {
	c := &Counters{}
	assert.Equal(t, 0.0, c.CacheHitRate())
}

func TestCacheHitRateComputesRatio(t *testing.T) {
	c := &Counters{}
	c.CacheHits.Store(3)
	c.CacheMisses.Store(1)
	assert.Equal(t, 0.75, c.CacheHitRate())
}
