package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOneEntryPerRoot(t *testing.T) {
	roots := []string{"/media/movies", "/media/tv", "/media/music"}
	s, err := New("0 3 * * *", roots, func(root string) {})
	require.NoError(t, err)
	defer s.Stop()

	assert.Len(t, s.entries, len(roots))
	assert.Equal(t, roots, s.roots)
}

func TestNewRejectsInvalidCronExpression(t *testing.T) {
	_, err := New("not a cron expression", []string{"/media"}, func(root string) {})
	assert.Error(t, err)
}

func TestNewWithNoRootsRegistersNothing(t *testing.T) {
	s, err := New("0 3 * * *", nil, func(root string) {})
	require.NoError(t, err)
	defer s.Stop()

	assert.Empty(t, s.entries)
}

func TestCallbackFiresForCorrectRoot(t *testing.T) {
	fired := make(chan string, 1)
	s, err := New("* * * * *", []string{"/media/movies"}, func(root string) {
		fired <- root
	})
	require.NoError(t, err)
	defer s.Stop()

	// Directly invoke the registered entry's job function rather than
	// waiting out a real minute-granularity cron tick.
	entries := s.cron.Entries()
	require.Len(t, entries, 1)
	entries[0].Job.Run()

	select {
	case root := <-fired:
		assert.Equal(t, "/media/movies", root)
	default:
		t.Fatal("callback did not fire")
	}
}
