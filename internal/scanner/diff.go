package scanner

import "github.com/JustinTDCT/mediacat/internal/storage"

// diffSets implements spec.md §4.9 step 4: the three-set diff between
// the walked current view and the catalog's known view of the same
// root.
func diffSets(current map[string]scanFile, known map[string]storage.MediaFile) (toInsert []storage.MediaFile, toUpdate []storage.MediaFile, toRemove []string) {
	for path, f := range current {
		k, existed := known[path]
		if !existed {
			toInsert = append(toInsert, toMediaFile(f))
			continue
		}
		if f.size != k.Size || f.modified > k.Modified {
			updated := toMediaFile(f)
			updated.ID = k.ID
			toUpdate = append(toUpdate, updated)
		}
	}
	for path := range known {
		if _, stillThere := current[path]; !stillThere {
			toRemove = append(toRemove, path)
		}
	}
	return toInsert, toUpdate, toRemove
}

func toMediaFile(f scanFile) storage.MediaFile {
	return storage.MediaFile{
		Path:          f.path,
		CanonicalPath: f.canonicalPath,
		Size:          f.size,
		Modified:      f.modified,
		MimeType:      f.mimeType,
	}
}
