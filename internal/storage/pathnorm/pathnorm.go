// Package pathnorm implements the canonical path form described in
// spec.md §4.1: any two paths referring to the same filesystem object
// collapse to the same lowercase, forward-slash, absolute string.
//
// Grounded on the filepath.Walk / canonicalization style already present
// in the teacher's internal/scanner/scanner.go, generalized into a
// standalone, side-effect-free normalizer the engine, scanner and watcher
// all share.
package pathnorm

import (
	"path/filepath"
	"strings"

	"github.com/JustinTDCT/mediacat/internal/storage/storageerr"
)

// Options controls optional normalization behavior.
type Options struct {
	// ResolveSymlinks requests filesystem resolution before lower-casing,
	// per spec.md §4.1 rule 6. Used by the scanner, never by pure string
	// normalization of an already-known canonical path.
	ResolveSymlinks bool
}

// Normalize converts an arbitrary platform path into canonical form.
//
// Rules applied in order (spec.md §4.1):
//  1. Resolve symlinks, if requested.
//  2. Resolve to absolute (relative inputs are resolved against the
//     working directory).
//  3. Replace backslashes with forward slashes.
//  4. Lowercase.
//  5. Collapse repeated separators.
//  6. Remove trailing separators (except root).
func Normalize(path string, opts Options) (string, error) {
	if isBlank(path) {
		return "", storageerr.New(storageerr.InvalidFormat, "pathnorm.Normalize", "empty or control-only path")
	}

	p := path
	if opts.ResolveSymlinks {
		resolved, err := filepath.EvalSymlinks(p)
		if err != nil {
			return "", storageerr.Wrap(storageerr.CanonicalizationFailed, "pathnorm.Normalize", err)
		}
		p = resolved
	}

	if !filepath.IsAbs(p) && !isWindowsAbs(p) {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", storageerr.Wrap(storageerr.CanonicalizationFailed, "pathnorm.Normalize", err)
		}
		p = abs
	}

	p = stripUNCPrefix(p)
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.ToLower(p)
	p = collapseSlashes(p)
	p = trimTrailingSlash(p)

	if p == "" {
		p = "/"
	}
	return p, nil
}

// ParentOf returns the canonical form of the directory containing
// canonicalPath: "/" for a root-level entry, and "" for "/" itself (or
// ""), per spec.md §4.1's parent function and §3 invariant 2.
func ParentOf(canonicalPath string) string {
	if canonicalPath == "" || canonicalPath == "/" {
		return ""
	}
	idx := strings.LastIndex(canonicalPath, "/")
	if idx <= 0 {
		return "/"
	}
	return canonicalPath[:idx]
}

// FilenameOf returns the final path component of a canonical path.
func FilenameOf(canonicalPath string) string {
	idx := strings.LastIndex(canonicalPath, "/")
	if idx < 0 {
		return canonicalPath
	}
	return canonicalPath[idx+1:]
}

// IsDirectChild reports whether child's canonical parent path is exactly
// parent, per the GLOSSARY's "Direct child" definition.
func IsDirectChild(parent, childCanonicalPath string) bool {
	return ParentOf(childCanonicalPath) == parent
}

// ImmediateSubdirToken returns the next path component of candidate below
// parent, and true, when candidate lies strictly under parent. Used to
// derive dir_children_dirs per spec.md §4.4.
func ImmediateSubdirToken(parent, candidate string) (string, bool) {
	prefix := parent
	if prefix != "/" {
		prefix += "/"
	} else {
		prefix = "/"
	}
	if !strings.HasPrefix(candidate, prefix) {
		return "", false
	}
	rest := candidate[len(prefix):]
	if rest == "" {
		return "", false // candidate equals parent itself
	}
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return rest[:idx], true
	}
	return rest, true // candidate is an immediate subdirectory, one level down
}

func isBlank(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r >= 0x20 && r != 0x7f {
			return false
		}
	}
	return true
}

func isWindowsAbs(p string) bool {
	if len(p) >= 2 && p[1] == ':' {
		return true
	}
	return strings.HasPrefix(p, `\\`) || strings.HasPrefix(p, "//")
}

func stripUNCPrefix(p string) string {
	// \\?\C:\foo -> C:\foo
	trimmed := strings.TrimPrefix(p, `\\?\`)
	trimmed = strings.TrimPrefix(trimmed, `\\?\UNC\`)
	return trimmed
}

func collapseSlashes(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for i, r := range p {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		_ = i
		b.WriteRune(r)
	}
	return b.String()
}

func trimTrailingSlash(p string) string {
	if len(p) <= 1 {
		return p
	}
	// Keep a single trailing slash only for a bare drive root like "c:/".
	if strings.HasSuffix(p, ":/") {
		return p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = p[:len(p)-1]
	}
	return p
}
