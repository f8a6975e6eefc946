package segment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/ftsearch"
	"github.com/hupe1980/ftsearch/internal/fst"
	"github.com/hupe1980/ftsearch/internal/mmap"
)

// Reader is a memory-mapped, read-only view of one segment directory. It is
// safe for concurrent use by multiple goroutines.
type Reader struct {
	dict *fst.Dictionary

	offsets    *mmap.File
	postDocs   *mmap.File
	postFreqs  *mmap.File
	chunks     *mmap.File
	docLengths *mmap.File
	termsFST   *mmap.File

	meta Meta
}

// Open memory-maps every file of the segment directory dir.
func Open(dir string) (*Reader, error) {
	r := &Reader{}

	var err error
	if r.termsFST, err = mmap.Open(filepath.Join(dir, TermsFile)); err != nil {
		return nil, fmt.Errorf("segment: open %s: %w (%w)", TermsFile, ftsearch.ErrIO, err)
	}
	if r.offsets, err = mmap.Open(filepath.Join(dir, OffsetsFile)); err != nil {
		r.Close()
		return nil, fmt.Errorf("segment: open %s: %w (%w)", OffsetsFile, ftsearch.ErrIO, err)
	}
	if r.postDocs, err = mmap.Open(filepath.Join(dir, PostingsDocsFile)); err != nil {
		r.Close()
		return nil, fmt.Errorf("segment: open %s: %w (%w)", PostingsDocsFile, ftsearch.ErrIO, err)
	}
	if r.postFreqs, err = mmap.Open(filepath.Join(dir, PostingsFreqsFile)); err != nil {
		r.Close()
		return nil, fmt.Errorf("segment: open %s: %w (%w)", PostingsFreqsFile, ftsearch.ErrIO, err)
	}
	if r.chunks, err = mmap.Open(filepath.Join(dir, ChunksFile)); err != nil {
		r.Close()
		return nil, fmt.Errorf("segment: open %s: %w (%w)", ChunksFile, ftsearch.ErrIO, err)
	}
	if r.docLengths, err = mmap.Open(filepath.Join(dir, DocLengthsFile)); err != nil {
		r.Close()
		return nil, fmt.Errorf("segment: open %s: %w (%w)", DocLengthsFile, ftsearch.ErrIO, err)
	}

	metaBytes, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("segment: read %s: %w (%w)", MetaFile, ftsearch.ErrIO, err)
	}
	if err := json.Unmarshal(metaBytes, &r.meta); err != nil {
		r.Close()
		return nil, fmt.Errorf("segment: parse %s: %w (%w)", MetaFile, ftsearch.ErrCorrupt, err)
	}

	if r.dict, err = fst.Open(r.termsFST.Data); err != nil {
		r.Close()
		return nil, fmt.Errorf("segment: %w (%w)", ftsearch.ErrCorrupt, err)
	}

	return r, nil
}

// Close unmaps every file backing the segment.
func (r *Reader) Close() error {
	if r.dict != nil {
		r.dict.Close()
	}
	for _, m := range []*mmap.File{r.termsFST, r.offsets, r.postDocs, r.postFreqs, r.chunks, r.docLengths} {
		if m != nil {
			m.Close()
		}
	}
	return nil
}

// Meta returns the segment's identity within the global doc-id space.
func (r *Reader) Meta() Meta { return r.meta }

// NumDocs returns the number of documents this segment holds.
func (r *Reader) NumDocs() uint32 { return r.meta.NumDocs }

// BaseDocID returns the global doc id this segment's local doc id 0 maps to.
func (r *Reader) BaseDocID() uint32 { return r.meta.BaseDocID }

// GlobalDocID translates a segment-local doc id to the index-wide doc id.
func GlobalDocID(baseDocID, localDocID uint32) uint32 { return baseDocID + localDocID }

// LocalDocID translates an index-wide doc id back to this segment's local
// numbering, reporting ok=false if globalDocID does not belong to the
// segment.
func (r *Reader) LocalDocID(globalDocID uint32) (uint32, bool) {
	if globalDocID < r.meta.BaseDocID {
		return 0, false
	}
	local := globalDocID - r.meta.BaseDocID
	if local >= r.meta.NumDocs {
		return 0, false
	}
	return local, true
}

func (r *Reader) offsetAt(ordinal uint64) (offsetRecord, bool) {
	pos := int(ordinal) * offsetRecordSize
	if pos < 0 || pos+offsetRecordSize > len(r.offsets.Data) {
		return offsetRecord{}, false
	}
	return decodeOffsetRecord(r.offsets.Data[pos : pos+offsetRecordSize]), true
}

// GetDF returns the term's document frequency within this segment.
func (r *Reader) GetDF(term string) (uint32, bool) {
	ordinal, ok := r.dict.Get(term)
	if !ok {
		return 0, false
	}
	rec, ok := r.offsetAt(ordinal)
	if !ok {
		return 0, false
	}
	return rec.DocCount, true
}

// GetPostings returns an iterator over the term's (local doc id, tf) pairs in
// increasing doc-id order, or ok=false if the term is absent from this
// segment.
func (r *Reader) GetPostings(term string) (it *PostingsIterator, ok bool) {
	ordinal, ok := r.dict.Get(term)
	if !ok {
		return nil, false
	}
	rec, ok := r.offsetAt(ordinal)
	if !ok {
		return nil, false
	}
	if rec.DocOffset+uint64(rec.DocLen) > uint64(len(r.postDocs.Data)) ||
		rec.FreqOffset+uint64(rec.FreqLen) > uint64(len(r.postFreqs.Data)) {
		return nil, false
	}
	return newPostingsIterator(
		r.postDocs.Data[rec.DocOffset:rec.DocOffset+uint64(rec.DocLen)],
		r.postFreqs.Data[rec.FreqOffset:rec.FreqOffset+uint64(rec.FreqLen)],
		int(rec.DocCount),
	), true
}

// FuzzyTerms returns every term in this segment within maxDistance edits of
// term.
func (r *Reader) FuzzyTerms(term string, maxDistance int) ([]string, error) {
	return r.dict.FuzzyTerms(term, maxDistance)
}

// DocLength returns the document's token length given its segment-local id.
func (r *Reader) DocLength(localDocID uint32) (uint32, bool) {
	pos := int(localDocID) * 4
	if pos < 0 || pos+4 > len(r.docLengths.Data) {
		return 0, false
	}
	return getUint32(r.docLengths.Data[pos : pos+4]), true
}

// BookID returns the caller-supplied book identifier for the document given
// its segment-local id.
func (r *Reader) BookID(localDocID uint32) (string, bool) {
	n := r.meta.NumDocs
	if localDocID >= n {
		return "", false
	}
	table := r.chunks.Data
	tableSize := 4 * int(n+1)
	if tableSize > len(table) {
		return "", false
	}
	start := getUint32(table[4*localDocID : 4*localDocID+4])
	end := getUint32(table[4*(localDocID+1) : 4*(localDocID+2)])
	strData := table[tableSize:]
	if int(end) > len(strData) || start > end {
		return "", false
	}
	return string(strData[start:end]), true
}

// PostingsIterator streams (local doc id, tf) pairs decoded lazily one block
// at a time out of two fixed-size stack buffers.
type PostingsIterator struct {
	docData, freqData []byte
	docPos, freqPos   int
	remaining         int
	docIDAccum        uint32

	block      [128]uint32
	freqBlock  [128]uint32
	blockPos   int
	blockCount int
}

func newPostingsIterator(docData, freqData []byte, count int) *PostingsIterator {
	return &PostingsIterator{docData: docData, freqData: freqData, remaining: count}
}

// Next advances the iterator, returning ok=false once exhausted.
func (it *PostingsIterator) Next() (docID uint32, tf uint32, ok bool) {
	if it.remaining <= 0 {
		return 0, 0, false
	}
	if it.blockPos >= it.blockCount {
		it.fillBlock()
	}
	it.docIDAccum += it.block[it.blockPos]
	tf = it.freqBlock[it.blockPos]
	it.blockPos++
	it.remaining--
	return it.docIDAccum, tf, true
}

func (it *PostingsIterator) fillBlock() {
	if it.remaining >= 128 {
		width := int(it.docData[it.docPos])
		it.docPos++
		numBytes := 16 * width
		if width == 0 {
			for i := 0; i < 128; i++ {
				it.block[i] = 0
			}
		} else {
			unpackInto(it.docData[it.docPos:it.docPos+numBytes], width, &it.block)
			it.docPos += numBytes
		}

		fwidth := int(it.freqData[it.freqPos])
		it.freqPos++
		fnumBytes := 16 * fwidth
		if fwidth == 0 {
			for i := 0; i < 128; i++ {
				it.freqBlock[i] = 0
			}
		} else {
			unpackInto(it.freqData[it.freqPos:it.freqPos+fnumBytes], fwidth, &it.freqBlock)
			it.freqPos += fnumBytes
		}
		it.blockCount = 128
		it.blockPos = 0
		return
	}

	// Tail: remaining < 128 postings, varint-encoded.
	n := it.remaining
	for i := 0; i < n; i++ {
		var delta, tf uint32
		delta, it.docPos = decodeVarintAt(it.docData, it.docPos)
		tf, it.freqPos = decodeVarintAt(it.freqData, it.freqPos)
		it.block[i] = delta
		it.freqBlock[i] = tf
	}
	it.blockCount = n
	it.blockPos = 0
}

func unpackInto(src []byte, width int, out *[128]uint32) {
	var acc uint64
	var accBits uint
	in := 0
	mask := uint64(1)<<uint(width) - 1
	for i := 0; i < 128; i++ {
		for accBits < uint(width) {
			acc |= uint64(src[in]) << accBits
			in++
			accBits += 8
		}
		out[i] = uint32(acc & mask)
		acc >>= uint(width)
		accBits -= uint(width)
	}
}

func decodeVarintAt(data []byte, pos int) (uint32, int) {
	var result uint32
	var shift uint
	for {
		if pos >= len(data) {
			return result, pos
		}
		b := data[pos]
		pos++
		result |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return result, pos
}
