// Package ramindex implements the mutable, uncompressed inverted index that
// holds documents added since the last flush to disk.
package ramindex

import (
	"math"
	"sync"

	"github.com/hupe1980/ftsearch/analysis"
	"github.com/hupe1980/ftsearch/model"
)

// BM25 constants, unified with the on-disk file searcher (see the module's
// design notes on constant unification across RAM and segment scoring).
const (
	k1 = 1.5
	b  = 0.75
)

type posting struct {
	docID model.DocID
	tf    uint32
}

// Index is a mutable, in-memory inverted index. Safe for concurrent use.
type Index struct {
	mu sync.RWMutex

	inverted    map[string][]posting
	docs        map[model.DocID]model.Document
	totalLength uint64
	nextDocID   model.DocID
}

// New creates an Index whose first assigned doc id is startDocID (normally
// the disk index's current total_docs, so RAM and segment doc-id spaces stay
// disjoint).
func New(startDocID model.DocID) *Index {
	return &Index{
		inverted:  make(map[string][]posting),
		docs:      make(map[model.DocID]model.Document),
		nextDocID: startDocID,
	}
}

// Insert analyzes content, assigns it the next doc id, and indexes it.
func (idx *Index) Insert(content, metadata string) model.DocID {
	tokens := analysis.Analyze(content)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	docID := idx.nextDocID
	idx.nextDocID++

	freqs := make(map[string]uint32, len(tokens))
	for _, t := range tokens {
		freqs[t]++
	}
	length := uint32(len(tokens))

	idx.docs[docID] = model.Document{ID: docID, Content: content, Metadata: metadata, Length: length}
	idx.totalLength += uint64(length)

	for term, tf := range freqs {
		idx.inverted[term] = append(idx.inverted[term], posting{docID: docID, tf: tf})
	}

	return docID
}

// InsertWithID re-inserts a document at a caller-chosen doc id, re-deriving
// its token frequencies from content. Used by WAL replay, which restores each
// document under the doc id recorded in the WAL.
func (idx *Index) InsertWithID(docID model.DocID, content, metadata string) {
	tokens := analysis.Analyze(content)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	freqs := make(map[string]uint32, len(tokens))
	for _, t := range tokens {
		freqs[t]++
	}
	length := uint32(len(tokens))

	idx.docs[docID] = model.Document{ID: docID, Content: content, Metadata: metadata, Length: length}
	idx.totalLength += uint64(length)

	for term, tf := range freqs {
		idx.inverted[term] = append(idx.inverted[term], posting{docID: docID, tf: tf})
	}

	if docID >= idx.nextDocID {
		idx.nextDocID = docID + 1
	}
}

// NumDocs returns the number of documents currently in RAM.
func (idx *Index) NumDocs() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// NextDocID returns the doc id the next Insert will assign.
func (idx *Index) NextDocID() model.DocID {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.nextDocID
}

// Document returns the stored document by id.
func (idx *Index) Document(docID model.DocID) (model.Document, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	d, ok := idx.docs[docID]
	return d, ok
}

// Documents returns every stored document, for segment sealing.
func (idx *Index) Documents() []model.Document {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]model.Document, 0, len(idx.docs))
	for _, d := range idx.docs {
		out = append(out, d)
	}
	return out
}

// Search scores every document containing at least one query token, using
// BM25 against the RAM index's own document count and average length.
// Results are not truncated to top-k; callers do their own selection.
func (idx *Index) Search(query string) map[model.DocID]float32 {
	tokens := analysis.Analyze(query)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.docs) == 0 || len(tokens) == 0 {
		return nil
	}

	avgdl := float64(idx.totalLength) / float64(len(idx.docs))
	n := float64(len(idx.docs))

	scores := make(map[model.DocID]float32)
	for _, token := range tokens {
		postings, ok := idx.inverted[token]
		if !ok {
			continue
		}
		df := float64(len(postings))
		idf := math.Log((n-df+0.5)/(df+0.5) + 1.0)
		for _, p := range postings {
			doc := idx.docs[p.docID]
			dl := float64(doc.Length)
			tf := float64(p.tf)
			denom := tf + k1*(1-b+b*dl/avgdl)
			score := idf * tf * (k1 + 1) / denom
			scores[p.docID] += float32(score)
		}
	}
	return scores
}

// Clear discards all documents and postings but preserves nextDocID, so
// subsequent inserts never collide with already-sealed doc ids.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.inverted = make(map[string][]posting)
	idx.docs = make(map[model.DocID]model.Document)
	idx.totalLength = 0
}
