package jobs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinTDCT/mediacat/internal/scanner"
)

func TestScanRootPayloadRoundTrip(t *testing.T) {
	p := ScanRootPayload{Root: "/media/movies"}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"root":"/media/movies"}`, string(data))

	var got ScanRootPayload
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, p, got)
}

func TestReconcileWatchRootPayloadRoundTrip(t *testing.T) {
	p := ReconcileWatchRootPayload{
		Root: "/media/tv",
		Events: map[string]int{
			"/media/tv/show.mkv": int(scanner.IncInsert),
			"/media/tv/old.mkv":  int(scanner.IncRemove),
		},
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var got ReconcileWatchRootPayload
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, p, got)
}

func TestReconcileWatchRootPayloadEventKindsConvertToIncrementalKind(t *testing.T) {
	p := ReconcileWatchRootPayload{
		Events: map[string]int{"/media/a.mp4": int(scanner.IncUpdate)},
	}

	events := make(map[string]scanner.WatchEventKind, len(p.Events))
	for path, kind := range p.Events {
		events[path] = scanner.IncrementalKind(kind)
	}

	assert.Equal(t, scanner.IncUpdate, events["/media/a.mp4"])
}

func TestCompactPayloadRoundTrip(t *testing.T) {
	p := CompactPayload{Dir: "/var/lib/mediacat"}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var got CompactPayload
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, p, got)
}
