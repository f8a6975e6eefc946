package segment

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/ftsearch"
	"github.com/hupe1980/ftsearch/codec"
	"github.com/hupe1980/ftsearch/internal/fs"
	"github.com/hupe1980/ftsearch/internal/fst"
)

// Chunk is one document's analyzed content: its token count and its
// term-frequency map.
type Chunk struct {
	Length uint32
	Freqs  map[string]uint32
}

// Batch is a set of processed documents handed to the segment writer.
// Documents are assigned doc ids in order, starting at BaseDocID.
type Batch struct {
	BookIDs   []string
	Chunks    []Chunk
	BaseDocID uint32
}

// Write builds a complete, immutable segment directory from batch. On any
// failure the partially-written directory is removed and the error is
// returned; callers never observe a half-written segment.
func Write(fsys fs.FileSystem, dir string, batch Batch) (Meta, error) {
	if len(batch.BookIDs) != len(batch.Chunks) {
		return Meta{}, fmt.Errorf("segment: mismatched batch: %d book ids, %d chunks: %w", len(batch.BookIDs), len(batch.Chunks), ftsearch.ErrInvalidArgument)
	}

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return Meta{}, fmt.Errorf("segment: mkdir %s: %w (%w)", dir, ftsearch.ErrIO, err)
	}

	numDocs := len(batch.Chunks)
	docLengths := make([]uint32, numDocs)
	var totalLength uint64

	inverted := make(map[string][]codec.Posting)
	for docID, chunk := range batch.Chunks {
		docLengths[docID] = chunk.Length
		totalLength += uint64(chunk.Length)
		for term, tf := range chunk.Freqs {
			inverted[term] = append(inverted[term], codec.Posting{DocID: uint32(docID), TF: tf})
		}
	}

	terms := make([]string, 0, len(inverted))
	for term := range inverted {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	docBlobs := make([][]byte, len(terms))
	freqBlobs := make([][]byte, len(terms))

	g, _ := errgroup.WithContext(context.Background())
	for i, term := range terms {
		i, term := i, term
		g.Go(func() error {
			docBytes, freqBytes := codec.EncodePostingsSeparated(inverted[term])
			docBlobs[i] = docBytes
			freqBlobs[i] = freqBytes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fsys.Remove(dir)
		return Meta{}, err
	}

	builder, err := fst.NewBuilder()
	if err != nil {
		removeAll(fsys, dir)
		return Meta{}, err
	}

	offsetsBuf := make([]byte, 0, len(terms)*offsetRecordSize)
	docsBuf := make([]byte, 0)
	freqsBuf := make([]byte, 0)

	for i, term := range terms {
		rec := offsetRecord{
			DocOffset:  uint64(len(docsBuf)),
			DocLen:     uint32(len(docBlobs[i])),
			FreqOffset: uint64(len(freqsBuf)),
			FreqLen:    uint32(len(freqBlobs[i])),
			DocCount:   uint32(len(inverted[term])),
		}
		docsBuf = append(docsBuf, docBlobs[i]...)
		freqsBuf = append(freqsBuf, freqBlobs[i]...)
		offsetsBuf = append(offsetsBuf, encodeOffsetRecord(rec)...)

		if err := builder.Insert(term, uint64(i)); err != nil {
			removeAll(fsys, dir)
			return Meta{}, err
		}
	}

	fstBytes, err := builder.Close()
	if err != nil {
		removeAll(fsys, dir)
		return Meta{}, err
	}

	chunksBlob := buildChunksBlob(batch.BookIDs)
	lengthsBlob := buildLengthsBlob(docLengths)

	files := []struct {
		name string
		data []byte
	}{
		{PostingsDocsFile, docsBuf},
		{PostingsFreqsFile, freqsBuf},
		{TermsFile, fstBytes},
		{OffsetsFile, offsetsBuf},
		{ChunksFile, chunksBlob},
		{DocLengthsFile, lengthsBlob},
	}
	for _, f := range files {
		if err := writeFile(fsys, filepath.Join(dir, f.name), f.data); err != nil {
			removeAll(fsys, dir)
			return Meta{}, err
		}
	}

	meta := Meta{
		NumDocs:     uint32(numDocs),
		BaseDocID:   batch.BaseDocID,
		TotalLength: totalLength,
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		removeAll(fsys, dir)
		return Meta{}, err
	}
	if err := writeFile(fsys, filepath.Join(dir, MetaFile), metaBytes); err != nil {
		removeAll(fsys, dir)
		return Meta{}, err
	}

	return meta, nil
}

func writeFile(fsys fs.FileSystem, path string, data []byte) error {
	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("segment: open %s: %w (%w)", path, ftsearch.ErrIO, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("segment: write %s: %w (%w)", path, ftsearch.ErrIO, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("segment: sync %s: %w (%w)", path, ftsearch.ErrIO, err)
	}
	return f.Close()
}

func removeAll(fsys fs.FileSystem, dir string) {
	entries, err := fsys.ReadDir(dir)
	if err == nil {
		for _, e := range entries {
			fsys.Remove(filepath.Join(dir, e.Name()))
		}
	}
	fsys.Remove(dir)
}

// buildChunksBlob packs an offset table (num_chunks+1 little-endian uint32
// byte offsets) followed by the concatenated UTF-8 book id bytes, so a reader
// can slice out doc_id's book id without scanning.
func buildChunksBlob(bookIDs []string) []byte {
	n := len(bookIDs)
	offsets := make([]byte, 4*(n+1))
	var strData []byte
	putUint32(offsets[0:4], 0)
	for i, id := range bookIDs {
		strData = append(strData, id...)
		putUint32(offsets[4*(i+1):4*(i+2)], uint32(len(strData)))
	}
	return append(offsets, strData...)
}

func buildLengthsBlob(lengths []uint32) []byte {
	buf := make([]byte, 4*len(lengths))
	for i, l := range lengths {
		putUint32(buf[4*i:4*i+4], l)
	}
	return buf
}
