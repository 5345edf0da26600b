// Package codec implements spec.md §4.3: encoding a slice of MediaFile
// into a single MediaFileBatch FlatBuffer, and decoding a byte slice back
// into bounds-checked, zero-copy record views (no allocation for string
// fields).
//
// There is no retrieved example of FlatBuffers usage anywhere in the
// example pack, so this is hand-built directly against the
// github.com/google/flatbuffers/go runtime's low-level Builder/Table
// API rather than against flatc-generated accessors — the same technique
// flatc's own generated code reduces to, just written by hand. Field
// layout (vtable slot per field, 0-based) is private to this file; no
// .fbs schema is checked in because nothing else in the repo needs to
// share it across languages.
package codec

import (
	"encoding/binary"
	"hash/crc32"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/JustinTDCT/mediacat/internal/storage/storageerr"
)

// MediaFile mirrors spec.md §3's entity. Optional audio fields use
// pointers so the codec can omit their FlatBuffer vtable slot entirely
// when unset, matching "Optional audio fields" in the spec.
type MediaFile struct {
	ID                  int64
	Path                string
	CanonicalPath       string
	CanonicalParentPath string
	Filename            string
	Size                int64
	Modified            int64
	MimeType            string

	DurationMs  *int64
	Title       *string
	Artist      *string
	Album       *string
	Genre       *string
	TrackNumber *int32
	Year        *int32
	AlbumArtist *string

	CreatedAt int64
	UpdatedAt int64
}

// field slot indices within the MediaFile FlatBuffer table (0-based).
const (
	fID = iota
	fPath
	fCanonicalPath
	fCanonicalParentPath
	fFilename
	fSize
	fModified
	fMimeType
	fDurationMs
	fTitle
	fArtist
	fAlbum
	fGenre
	fTrackNumber
	fYear
	fAlbumArtist
	fCreatedAt
	fUpdatedAt
	mediaFileFieldCount
)

const batchFieldRecords = 0
const batchFieldCount = 1

func vtOffset(fieldIndex int) flatbuffers.VOffsetT {
	return flatbuffers.VOffsetT(4 + 2*fieldIndex)
}

// EncodeBatch serializes files into a single MediaFileBatch FlatBuffer
// payload (not including the 40-byte batch header that precedes it on
// disk — see batchheader.go in this package).
func EncodeBatch(files []MediaFile) []byte {
	b := flatbuffers.NewBuilder(1024 + 256*len(files))

	recordOffsets := make([]flatbuffers.UOffsetT, len(files))
	for i, f := range files {
		recordOffsets[i] = encodeRecord(b, f)
	}

	b.StartVector(flatbuffers.SizeUOffsetT, len(files), flatbuffers.SizeUOffsetT)
	for i := len(files) - 1; i >= 0; i-- {
		b.PrependUOffsetT(recordOffsets[i])
	}
	vec := b.EndVector(len(files))

	b.StartObject(batchFieldCount)
	b.PrependUOffsetTSlot(batchFieldRecords, vec, 0)
	root := b.EndObject()
	b.Finish(root)

	return b.FinishedBytes()
}

func encodeRecord(b *flatbuffers.Builder, f MediaFile) flatbuffers.UOffsetT {
	// Strings and nested offsets must be created before StartObject.
	path := b.CreateString(f.Path)
	canonicalPath := b.CreateString(f.CanonicalPath)
	canonicalParent := b.CreateString(f.CanonicalParentPath)
	filename := b.CreateString(f.Filename)
	mimeType := b.CreateString(f.MimeType)

	var title, artist, album, genre, albumArtist flatbuffers.UOffsetT
	if f.Title != nil {
		title = b.CreateString(*f.Title)
	}
	if f.Artist != nil {
		artist = b.CreateString(*f.Artist)
	}
	if f.Album != nil {
		album = b.CreateString(*f.Album)
	}
	if f.Genre != nil {
		genre = b.CreateString(*f.Genre)
	}
	if f.AlbumArtist != nil {
		albumArtist = b.CreateString(*f.AlbumArtist)
	}

	b.StartObject(mediaFileFieldCount)
	b.PrependInt64Slot(fID, f.ID, 0)
	b.PrependUOffsetTSlot(fPath, path, 0)
	b.PrependUOffsetTSlot(fCanonicalPath, canonicalPath, 0)
	b.PrependUOffsetTSlot(fCanonicalParentPath, canonicalParent, 0)
	b.PrependUOffsetTSlot(fFilename, filename, 0)
	b.PrependInt64Slot(fSize, f.Size, 0)
	b.PrependInt64Slot(fModified, f.Modified, 0)
	b.PrependUOffsetTSlot(fMimeType, mimeType, 0)
	if f.DurationMs != nil {
		b.PrependInt64Slot(fDurationMs, *f.DurationMs, 0)
	}
	if f.Title != nil {
		b.PrependUOffsetTSlot(fTitle, title, 0)
	}
	if f.Artist != nil {
		b.PrependUOffsetTSlot(fArtist, artist, 0)
	}
	if f.Album != nil {
		b.PrependUOffsetTSlot(fAlbum, album, 0)
	}
	if f.Genre != nil {
		b.PrependUOffsetTSlot(fGenre, genre, 0)
	}
	if f.TrackNumber != nil {
		b.PrependInt32Slot(fTrackNumber, *f.TrackNumber, 0)
	}
	if f.Year != nil {
		b.PrependInt32Slot(fYear, *f.Year, 0)
	}
	if f.AlbumArtist != nil {
		b.PrependUOffsetTSlot(fAlbumArtist, albumArtist, 0)
	}
	b.PrependInt64Slot(fCreatedAt, f.CreatedAt, 0)
	b.PrependInt64Slot(fUpdatedAt, f.UpdatedAt, 0)
	return b.EndObject()
}

// RecordView is a bounds-checked, zero-copy reader over a single MediaFile
// table inside a decoded batch: string fields return sub-slices/string
// headers pointing back into the original buffer, never copies.
type RecordView struct {
	tab flatbuffers.Table
}

func (r RecordView) stringField(field int) string {
	o := flatbuffers.UOffsetT(r.tab.Offset(vtOffset(field)))
	if o == 0 {
		return ""
	}
	return r.tab.String(o + r.tab.Pos)
}

func (r RecordView) hasField(field int) bool {
	return r.tab.Offset(vtOffset(field)) != 0
}

func (r RecordView) int64Field(field int) int64 {
	o := flatbuffers.UOffsetT(r.tab.Offset(vtOffset(field)))
	if o == 0 {
		return 0
	}
	return r.tab.GetInt64(o + r.tab.Pos)
}

func (r RecordView) int32Field(field int) int32 {
	o := flatbuffers.UOffsetT(r.tab.Offset(vtOffset(field)))
	if o == 0 {
		return 0
	}
	return r.tab.GetInt32(o + r.tab.Pos)
}

func (r RecordView) ID() int64                  { return r.int64Field(fID) }
func (r RecordView) Path() string                { return r.stringField(fPath) }
func (r RecordView) CanonicalPath() string       { return r.stringField(fCanonicalPath) }
func (r RecordView) CanonicalParentPath() string { return r.stringField(fCanonicalParentPath) }
func (r RecordView) Filename() string            { return r.stringField(fFilename) }
func (r RecordView) Size() int64                 { return r.int64Field(fSize) }
func (r RecordView) Modified() int64             { return r.int64Field(fModified) }
func (r RecordView) MimeType() string            { return r.stringField(fMimeType) }
func (r RecordView) CreatedAt() int64            { return r.int64Field(fCreatedAt) }
func (r RecordView) UpdatedAt() int64            { return r.int64Field(fUpdatedAt) }

func (r RecordView) DurationMs() (int64, bool) {
	if !r.hasField(fDurationMs) {
		return 0, false
	}
	return r.int64Field(fDurationMs), true
}
func (r RecordView) Title() (string, bool)  { return optionalString(r, fTitle) }
func (r RecordView) Artist() (string, bool) { return optionalString(r, fArtist) }
func (r RecordView) Album() (string, bool)  { return optionalString(r, fAlbum) }
func (r RecordView) Genre() (string, bool)  { return optionalString(r, fGenre) }
func (r RecordView) AlbumArtist() (string, bool) {
	return optionalString(r, fAlbumArtist)
}
func (r RecordView) TrackNumber() (int32, bool) {
	if !r.hasField(fTrackNumber) {
		return 0, false
	}
	return r.int32Field(fTrackNumber), true
}
func (r RecordView) Year() (int32, bool) {
	if !r.hasField(fYear) {
		return 0, false
	}
	return r.int32Field(fYear), true
}

func optionalString(r RecordView, field int) (string, bool) {
	if !r.hasField(field) {
		return "", false
	}
	return r.stringField(field), true
}

// Materialize copies a RecordView into a owned MediaFile value; used by
// the record cache, which exclusively owns decoded copies per spec.md §3
// ("Ownership").
func (r RecordView) Materialize() MediaFile {
	f := MediaFile{
		ID:                  r.ID(),
		Path:                r.Path(),
		CanonicalPath:       r.CanonicalPath(),
		CanonicalParentPath: r.CanonicalParentPath(),
		Filename:            r.Filename(),
		Size:                r.Size(),
		Modified:            r.Modified(),
		MimeType:            r.MimeType(),
		CreatedAt:           r.CreatedAt(),
		UpdatedAt:           r.UpdatedAt(),
	}
	if v, ok := r.DurationMs(); ok {
		f.DurationMs = &v
	}
	if v, ok := r.Title(); ok {
		f.Title = &v
	}
	if v, ok := r.Artist(); ok {
		f.Artist = &v
	}
	if v, ok := r.Album(); ok {
		f.Album = &v
	}
	if v, ok := r.Genre(); ok {
		f.Genre = &v
	}
	if v, ok := r.TrackNumber(); ok {
		f.TrackNumber = &v
	}
	if v, ok := r.Year(); ok {
		f.Year = &v
	}
	if v, ok := r.AlbumArtist(); ok {
		f.AlbumArtist = &v
	}
	return f
}

// Batch is a decoded, bounds-checked view over a MediaFileBatch payload.
type Batch struct {
	records flatbuffers.Table
	count   int
}

// DecodeBatch maps a raw FlatBuffer payload (as produced by EncodeBatch)
// to a Batch root, performing FlatBuffers' own bounds checks but no
// allocation beyond the thin Batch/RecordView wrapper values themselves.
func DecodeBatch(payload []byte) (*Batch, error) {
	if len(payload) < flatbuffers.SizeUOffsetT {
		return nil, storageerr.New(storageerr.Corrupt, "codec.DecodeBatch", "payload too short")
	}
	n := flatbuffers.GetUOffsetT(payload)
	root := &flatbuffers.Table{Bytes: payload, Pos: n}

	o := flatbuffers.UOffsetT(root.Offset(vtOffset(batchFieldRecords)))
	if o == 0 {
		return &Batch{count: 0}, nil
	}
	vecPos := o + root.Pos
	vecStart := root.Vector(vecPos)
	count := root.VectorLen(vecPos)

	return &Batch{
		records: flatbuffers.Table{Bytes: payload, Pos: vecStart},
		count:   count,
	}, nil
}

// Len returns the number of records in the batch.
func (b *Batch) Len() int { return b.count }

// Record returns a zero-copy view of the i'th record, bounds-checked
// against the batch's record count.
func (b *Batch) Record(i int) (RecordView, error) {
	if i < 0 || i >= b.count {
		return RecordView{}, storageerr.New(storageerr.Corrupt, "codec.Batch.Record", "index out of range")
	}
	elemPos := b.records.Pos + flatbuffers.UOffsetT(i*flatbuffers.SizeUOffsetT)
	start := b.records.Indirect(elemPos)
	return RecordView{tab: flatbuffers.Table{Bytes: b.records.Bytes, Pos: start}}, nil
}

// CRC32 computes the payload checksum stored in the batch header.
func CRC32(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}

// PutUint32LE / GetUint32LE are small helpers shared with the WAL framing
// to keep little-endian encoding centralized in one place.
func PutUint32LE(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func GetUint32LE(b []byte) uint32    { return binary.LittleEndian.Uint32(b) }
