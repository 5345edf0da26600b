// Package engineconfig implements the configuration surface described in
// spec.md §6.3: typed defaults, ZEROCOPY_* env overrides, and validation.
//
// Shape grounded on the teacher's internal/config/config.go (env()/envInt()
// helpers, a Load() constructor, a derived-predicate method like
// CacheServerEnabled()), but env coercion here goes through
// github.com/spf13/cast instead of hand-rolled strconv calls, giving that
// teacher go.mod dependency (previously unused by the teacher's own
// source) an actual job. TOML file loading and CLI flag parsing are
// explicit non-goals (spec.md §1); Options is meant to be filled in by
// whatever external loader the host application uses, then passed through
// ApplyEnv/Validate.
package engineconfig

import (
	"fmt"
	"os"

	"github.com/spf13/cast"
)

// Options is the full configuration surface, spec.md §6.3.
type Options struct {
	RAMCacheLimitMB    int64
	RAMIndexLimitMB    int64
	RAMMetadataLimitMB int64

	BatchSize int64

	InitialDataFileMB   int64
	FileGrowthIncrement int64

	SyncFrequencySeconds int64
	EnableWAL            bool

	AutoScalePerformance bool
	TargetMemoryMB       int64

	IndexShardCount int
}

// Defaults returns the spec's documented defaults.
func Defaults() Options {
	return Options{
		RAMCacheLimitMB:      4,
		RAMIndexLimitMB:      1,
		RAMMetadataLimitMB:   1,
		BatchSize:            100_000,
		InitialDataFileMB:    1,
		FileGrowthIncrement:  10,
		SyncFrequencySeconds: 5,
		EnableWAL:            true,
		AutoScalePerformance: false,
		TargetMemoryMB:       6,
		IndexShardCount:      16,
	}
}

// Load returns Defaults() with ZEROCOPY_* environment overrides applied.
func Load() Options {
	o := Defaults()
	o.ApplyEnv()
	if o.AutoScalePerformance {
		o.applyAutoScale()
	}
	return o
}

// ApplyEnv overlays recognized ZEROCOPY_* env vars onto o in place.
func (o *Options) ApplyEnv() {
	if v, ok := lookupEnv("ZEROCOPY_CACHE_MB"); ok {
		o.RAMCacheLimitMB = mustInt(v, o.RAMCacheLimitMB)
	}
	if v, ok := lookupEnv("ZEROCOPY_INDEX_SIZE"); ok {
		o.RAMIndexLimitMB = mustInt(v, o.RAMIndexLimitMB)
	}
	if v, ok := lookupEnv("ZEROCOPY_BATCH_SIZE"); ok {
		o.BatchSize = mustInt(v, o.BatchSize)
	}
	if v, ok := lookupEnv("ZEROCOPY_INITIAL_FILE_SIZE_MB"); ok {
		o.InitialDataFileMB = mustInt(v, o.InitialDataFileMB)
	}
	if v, ok := lookupEnv("ZEROCOPY_SYNC_FREQUENCY_SECS"); ok {
		o.SyncFrequencySeconds = mustInt(v, o.SyncFrequencySeconds)
	}
	if v, ok := lookupEnv("ZEROCOPY_ENABLE_WAL"); ok {
		o.EnableWAL = mustBool(v, o.EnableWAL)
	}
	if v, ok := lookupEnv("ZEROCOPY_TARGET_MEMORY_MB"); ok {
		o.TargetMemoryMB = mustInt(v, o.TargetMemoryMB)
	}
}

// applyAutoScale splits TargetMemoryMB 80/15/5 across cache/index/metadata,
// per spec.md §6.3 "auto_scale_performance".
func (o *Options) applyAutoScale() {
	total := o.TargetMemoryMB
	o.RAMCacheLimitMB = total * 80 / 100
	o.RAMIndexLimitMB = total * 15 / 100
	o.RAMMetadataLimitMB = total - o.RAMCacheLimitMB - o.RAMIndexLimitMB
}

// Validate rejects nonsensical configuration before engine.Open uses it.
func (o Options) Validate() error {
	if o.RAMCacheLimitMB <= 0 || o.RAMIndexLimitMB <= 0 || o.RAMMetadataLimitMB <= 0 {
		return fmt.Errorf("engineconfig: memory limits must be positive")
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("engineconfig: batch_size must be positive")
	}
	if o.InitialDataFileMB <= 0 || o.FileGrowthIncrement <= 0 {
		return fmt.Errorf("engineconfig: file sizing must be positive")
	}
	if o.SyncFrequencySeconds <= 0 {
		return fmt.Errorf("engineconfig: sync_frequency_seconds must be positive")
	}
	if o.IndexShardCount <= 0 {
		return fmt.Errorf("engineconfig: index shard count must be positive")
	}
	return nil
}

// CacheLimitBytes, IndexLimitBytes, MetadataLimitBytes convert the MB
// fields to bytes for the index manager.
func (o Options) CacheLimitBytes() int64    { return o.RAMCacheLimitMB * 1024 * 1024 }
func (o Options) IndexLimitBytes() int64    { return o.RAMIndexLimitMB * 1024 * 1024 }
func (o Options) MetadataLimitBytes() int64 { return o.RAMMetadataLimitMB * 1024 * 1024 }
func (o Options) InitialDataFileBytes() int64 {
	return o.InitialDataFileMB * 1024 * 1024
}
func (o Options) FileGrowthIncrementBytes() int64 {
	return o.FileGrowthIncrement * 1024 * 1024
}

func lookupEnv(key string) (string, bool) {
	v := os.Getenv(key)
	if v == "" {
		return "", false
	}
	return v, true
}

func mustInt(v string, fallback int64) int64 {
	i, err := cast.ToInt64E(v)
	if err != nil {
		return fallback
	}
	return i
}

func mustBool(v string, fallback bool) bool {
	b, err := cast.ToBoolE(v)
	if err != nil {
		return fallback
	}
	return b
}
