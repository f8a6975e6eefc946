// Package segment implements the on-disk segment file format: an immutable
// set of files describing postings for a contiguous range of document ids,
// written once by Write and served thereafter by memory-mapped Readers.
package segment

const (
	// TermsFile holds the FST term dictionary.
	TermsFile = "terms.fst"
	// OffsetsFile holds one fixed-size record per FST ordinal.
	OffsetsFile = "offsets.bin"
	// PostingsDocsFile holds concatenated block-encoded doc-id delta streams.
	PostingsDocsFile = "postings_docs.bin"
	// PostingsFreqsFile holds concatenated block-encoded term-frequency streams.
	PostingsFreqsFile = "postings_freqs.bin"
	// ChunksFile holds the doc_id -> book_id mapping.
	ChunksFile = "chunks.bin"
	// DocLengthsFile holds one little-endian uint32 document length per doc_id.
	DocLengthsFile = "doc_lengths.bin"
	// MetaFile is written last and acts as the segment's commit marker.
	MetaFile = "meta.json"
)

// offsetRecordSize is the fixed byte size of one offsets.bin record:
// doc_offset(8) + doc_len(4) + freq_offset(8) + freq_len(4) + doc_count(4).
const offsetRecordSize = 28

// Meta describes a segment's identity within the global doc-id space.
// Persisted as meta.json.
type Meta struct {
	NumDocs     uint32 `json:"num_docs"`
	BaseDocID   uint32 `json:"base_doc_id"`
	TotalLength uint64 `json:"total_length"`
}

// offsetRecord is one term's location within the postings and doc_count.
type offsetRecord struct {
	DocOffset  uint64
	DocLen     uint32
	FreqOffset uint64
	FreqLen    uint32
	DocCount   uint32
}

func encodeOffsetRecord(r offsetRecord) []byte {
	buf := make([]byte, offsetRecordSize)
	putUint64(buf[0:8], r.DocOffset)
	putUint32(buf[8:12], r.DocLen)
	putUint64(buf[12:20], r.FreqOffset)
	putUint32(buf[20:24], r.FreqLen)
	putUint32(buf[24:28], r.DocCount)
	return buf
}

func decodeOffsetRecord(buf []byte) offsetRecord {
	return offsetRecord{
		DocOffset:  getUint64(buf[0:8]),
		DocLen:     getUint32(buf[8:12]),
		FreqOffset: getUint64(buf[12:20]),
		FreqLen:    getUint32(buf[20:24]),
		DocCount:   getUint32(buf[24:28]),
	}
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
