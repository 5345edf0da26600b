package scanner

import "strings"

// videoExtensions and audioExtensions mirror the teacher's per-type
// extension-set maps (internal/scanner/scanner.go's videoExtensions /
// musicExtensions), collapsed to the two media kinds this catalog's
// MediaFile.MimeType distinguishes.
var videoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".m4v":  "video/x-m4v",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".ts":   "video/mp2t",
	".m2ts": "video/mp2t",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
}

var audioExtensions = map[string]string{
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".alac": "audio/mp4",
	".wma":  "audio/x-ms-wma",
	".opus": "audio/opus",
}

// mimeForExtension returns the mime type for a lowercased extension
// (including the leading dot) and whether the extension is eligible at
// all — the allow-list spec.md §4.9 step 1 requires.
func mimeForExtension(ext string) (string, bool) {
	ext = strings.ToLower(ext)
	if mt, ok := videoExtensions[ext]; ok {
		return mt, true
	}
	if mt, ok := audioExtensions[ext]; ok {
		return mt, true
	}
	return "", false
}

// IsEligibleExtension reports whether ext (including the leading dot)
// is in the scanner's allow-list. Exposed so the watcher can apply the
// same filter to fsnotify events before they are ever queued.
func IsEligibleExtension(ext string) bool {
	_, ok := mimeForExtension(ext)
	return ok
}
