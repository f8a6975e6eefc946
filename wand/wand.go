// Package wand implements a WAND (Weak AND) top-k accelerator over posting
// lists that are already fully materialized in memory, using per-term BM25
// upper bounds to prune documents that cannot make the top-k without scoring
// them.
package wand

import (
	"container/heap"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/ftsearch/analysis"
	"github.com/hupe1980/ftsearch/codec"
	"github.com/hupe1980/ftsearch/model"
)

// Default BM25 constants, overridable per Searcher instance.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// TermPostings is one query term's document frequency and fully materialized
// posting list, encoded in the interleaved varint wire form
// (codec.EncodePostings).
type TermPostings struct {
	DF   uint32
	Data []byte
}

// ScoredDoc is a single scored candidate.
type ScoredDoc struct {
	DocID model.DocID
	Score float32
}

// Searcher runs WAND top-k selection with configurable BM25 constants and an
// optional stopword filter.
type Searcher struct {
	k1, b     float64
	numDocs   uint32
	avgdl     float64
	stopwords analysis.Stopwords
}

// New creates a Searcher with the default BM25 constants.
func New(numDocs uint32, avgdl float64) *Searcher {
	return &Searcher{k1: DefaultK1, b: DefaultB, numDocs: numDocs, avgdl: avgdl}
}

// SetConstants overrides k1/b.
func (s *Searcher) SetConstants(k1, b float64) { s.k1, s.b = k1, b }

// SetStopwords configures query-time stopword filtering.
func (s *Searcher) SetStopwords(words analysis.Stopwords) { s.stopwords = words }

type termInfo struct {
	term       string
	idf        float64
	upperBound float64
	postings   map[model.DocID]uint32
}

// Search scores termPostings (already resolved to concrete terms by the
// caller) and returns the top-k documents by descending BM25 score.
func (s *Searcher) Search(termPostings map[string]TermPostings, topK int) []ScoredDoc {
	if topK <= 0 || len(termPostings) == 0 {
		return nil
	}

	terms := make([]*termInfo, 0, len(termPostings))
	for term, tp := range termPostings {
		if s.stopwords.Contains(term) {
			continue
		}
		idf := computeIDF(tp.DF, s.numDocs)
		postings := decodeToMap(tp.Data)
		terms = append(terms, &termInfo{
			term:       term,
			idf:        idf,
			upperBound: idf * (s.k1 + 1),
			postings:   postings,
		})
	}
	if len(terms) == 0 {
		return nil
	}

	sort.Slice(terms, func(i, j int) bool { return len(terms[i].postings) < len(terms[j].postings) })

	candidates := s.computeCandidates(terms, topK)
	return s.scoreCandidates(terms, candidates, topK)
}

func decodeToMap(data []byte) map[model.DocID]uint32 {
	postings := codec.DecodePostingsInternal(data)
	m := make(map[model.DocID]uint32, len(postings))
	for _, p := range postings {
		m[p.DocID] = p.TF
	}
	return m
}

// computeCandidates starts from the rarest term's full doc set and combines it
// with each subsequent term's doc set in turn: it adopts the intersection when
// that still retains at least 2*top_k candidates, and otherwise takes the
// union of the two sets.
func (s *Searcher) computeCandidates(terms []*termInfo, topK int) *roaring.Bitmap {
	candidates := roaring.New()
	for docID := range terms[0].postings {
		candidates.Add(docID)
	}

	if len(terms) == 1 {
		return candidates
	}

	for _, t := range terms[1:] {
		termSet := roaring.New()
		for docID := range t.postings {
			termSet.Add(docID)
		}
		intersection := roaring.And(candidates, termSet)
		if int(intersection.GetCardinality()) >= topK*2 {
			candidates = intersection
		} else {
			candidates = roaring.Or(candidates, termSet)
		}
	}
	return candidates
}

func (s *Searcher) scoreCandidates(terms []*termInfo, candidates *roaring.Bitmap, topK int) []ScoredDoc {
	type candidateUpper struct {
		docID model.DocID
		upper float64
	}

	upperByDoc := make([]candidateUpper, 0, candidates.GetCardinality())
	it := candidates.Iterator()
	for it.HasNext() {
		docID := it.Next()
		var upper float64
		var lengthEstimate float64
		for _, t := range terms {
			if tf, ok := t.postings[docID]; ok {
				upper += t.upperBound
				lengthEstimate += float64(tf)
			}
		}
		if lengthEstimate < s.avgdl*0.5 {
			lengthEstimate = s.avgdl
		}
		upperByDoc = append(upperByDoc, candidateUpper{docID: docID, upper: upper})
	}

	sort.Slice(upperByDoc, func(i, j int) bool { return upperByDoc[i].upper > upperByDoc[j].upper })

	h := &minHeap{}
	heap.Init(h)
	threshold := math.Inf(-1)

	for _, c := range upperByDoc {
		if h.Len() >= topK && c.upper <= threshold {
			break
		}

		var lengthEstimate float64
		for _, t := range terms {
			if tf, ok := t.postings[c.docID]; ok {
				lengthEstimate += float64(tf)
			}
		}
		if lengthEstimate < s.avgdl*0.5 {
			lengthEstimate = s.avgdl
		}

		var score float64
		for _, t := range terms {
			if tf, ok := t.postings[c.docID]; ok {
				score += s.bm25Term(float64(tf), t.idf, lengthEstimate)
			}
		}

		heap.Push(h, ScoredDoc{DocID: c.docID, Score: float32(score)})
		if h.Len() > topK {
			heap.Pop(h)
		}
		if h.Len() >= topK {
			threshold = float64((*h)[0].Score)
		}
	}

	results := make([]ScoredDoc, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(h).(ScoredDoc)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})
	return results
}

func (s *Searcher) bm25Term(tf, idf, dl float64) float64 {
	avgdl := s.avgdl
	if avgdl == 0 {
		avgdl = 1
	}
	return idf * tf * (s.k1 + 1) / (tf + s.k1*(1-s.b+s.b*dl/avgdl))
}

func computeIDF(df, n uint32) float64 {
	return math.Log((float64(n)-float64(df)+0.5)/(float64(df)+0.5) + 1.0)
}

// minHeap is a size-bounded min-heap of ScoredDoc by ascending Score (higher
// DocID first among equal scores), so the weakest current top-k member is
// always at the root.
type minHeap []ScoredDoc

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].DocID > h[j].DocID
}
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(ScoredDoc)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
