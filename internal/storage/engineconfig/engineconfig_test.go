package engineconfig

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsPassValidate(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestCacheLimitBytesConvertsMB(t *testing.T) {
	o := Defaults()
	assert.Equal(t, int64(4*1024*1024), o.CacheLimitBytes())
}

func TestApplyEnvOverridesDefaults(t *testing.T) {
	t.Setenv("ZEROCOPY_CACHE_MB", "64")
	t.Setenv("ZEROCOPY_BATCH_SIZE", "5000")
	t.Setenv("ZEROCOPY_ENABLE_WAL", "false")

	o := Defaults()
	o.ApplyEnv()

	assert.Equal(t, int64(64), o.RAMCacheLimitMB)
	assert.Equal(t, int64(5000), o.BatchSize)
	assert.False(t, o.EnableWAL)
}

func TestApplyEnvIgnoresUnsetVars(t *testing.T) {
	os.Unsetenv("ZEROCOPY_CACHE_MB")

	o := Defaults()
	o.ApplyEnv()

	assert.Equal(t, Defaults().RAMCacheLimitMB, o.RAMCacheLimitMB)
}

func TestApplyEnvFallsBackOnUnparsableValue(t *testing.T) {
	t.Setenv("ZEROCOPY_CACHE_MB", "not-a-number")

	o := Defaults()
	o.ApplyEnv()

	assert.Equal(t, Defaults().RAMCacheLimitMB, o.RAMCacheLimitMB)
}

func TestAutoScalePerformanceSplitsBudget80_15_5(t *testing.T) {
	t.Setenv("ZEROCOPY_TARGET_MEMORY_MB", "1000")

	o := Defaults()
	o.AutoScalePerformance = true
	o.ApplyEnv()
	if o.AutoScalePerformance {
		o.applyAutoScale()
	}

	assert.Equal(t, int64(800), o.RAMCacheLimitMB)
	assert.Equal(t, int64(150), o.RAMIndexLimitMB)
	assert.Equal(t, int64(50), o.RAMMetadataLimitMB)
}

func TestValidateRejectsNonPositiveMemoryLimits(t *testing.T) {
	o := Defaults()
	o.RAMCacheLimitMB = 0
	assert.Error(t, o.Validate())
}

func TestValidateRejectsNonPositiveBatchSize(t *testing.T) {
	o := Defaults()
	o.BatchSize = -1
	assert.Error(t, o.Validate())
}

func TestValidateRejectsZeroShardCount(t *testing.T) {
	o := Defaults()
	o.IndexShardCount = 0
	assert.Error(t, o.Validate())
}

func TestLoadSkipsAutoScaleWhenNotRequested(t *testing.T) {
	t.Setenv("ZEROCOPY_TARGET_MEMORY_MB", "2000")
	// Load() only auto-scales if AutoScalePerformance is already true,
	// which has no env override, so this proves Load() leaves defaults
	// in place when auto-scale was never requested.
	o := Load()
	assert.Equal(t, Defaults().RAMCacheLimitMB, o.RAMCacheLimitMB)
}
