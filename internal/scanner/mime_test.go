package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMimeForExtensionRecognizesVideo(t *testing.T) {
	mt, ok := mimeForExtension(".mp4")
	assert.True(t, ok)
	assert.Equal(t, "video/mp4", mt)
}

func TestMimeForExtensionRecognizesAudio(t *testing.T) {
	mt, ok := mimeForExtension(".flac")
	assert.True(t, ok)
	assert.Equal(t, "audio/flac", mt)
}

func TestMimeForExtensionIsCaseInsensitive(t *testing.T) {
	mt, ok := mimeForExtension(".MKV")
	assert.True(t, ok)
	assert.Equal(t, "video/x-matroska", mt)
}

func TestMimeForExtensionRejectsUnknown(t *testing.T) {
	_, ok := mimeForExtension(".nfo")
	assert.False(t, ok)
}

func TestIsEligibleExtension(t *testing.T) {
	assert.True(t, IsEligibleExtension(".mp3"))
	assert.False(t, IsEligibleExtension(".txt"))
}
