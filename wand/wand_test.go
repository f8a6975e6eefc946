package wand

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ftsearch/codec"
	"github.com/hupe1980/ftsearch/model"
)

func postingsFor(pairs ...codec.Posting) []byte {
	return codec.EncodePostings(pairs)
}

func TestSearch_ReturnsTopKByScore(t *testing.T) {
	s := New(100, 10)

	termPostings := map[string]TermPostings{
		"fox": {
			DF: 3,
			Data: postingsFor(
				codec.Posting{DocID: 1, TF: 5},
				codec.Posting{DocID: 2, TF: 1},
				codec.Posting{DocID: 3, TF: 2},
			),
		},
	}

	results := s.Search(termPostings, 2)
	require.Len(t, results, 2)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.EqualValues(t, 1, results[0].DocID)
}

func TestSearch_EmptyTermPostings(t *testing.T) {
	s := New(100, 10)
	assert.Empty(t, s.Search(map[string]TermPostings{}, 5))
}

func TestSearch_RejectsNonPositiveTopK(t *testing.T) {
	s := New(100, 10)
	termPostings := map[string]TermPostings{
		"fox": {DF: 1, Data: postingsFor(codec.Posting{DocID: 1, TF: 1})},
	}
	assert.Empty(t, s.Search(termPostings, 0))
}

func TestSearch_MultiTermUnion(t *testing.T) {
	s := New(100, 10)
	termPostings := map[string]TermPostings{
		"fox": {DF: 2, Data: postingsFor(
			codec.Posting{DocID: 1, TF: 3},
			codec.Posting{DocID: 2, TF: 1},
		)},
		"dog": {DF: 2, Data: postingsFor(
			codec.Posting{DocID: 2, TF: 2},
			codec.Posting{DocID: 3, TF: 4},
		)},
	}

	results := s.Search(termPostings, 10)
	require.Len(t, results, 3)

	docIDs := make(map[uint32]bool)
	for _, r := range results {
		docIDs[r.DocID] = true
	}
	assert.True(t, docIDs[1])
	assert.True(t, docIDs[2])
	assert.True(t, docIDs[3])
}

func TestSearch_StopwordTermIsExcluded(t *testing.T) {
	s := New(100, 10)
	s.SetStopwords(map[string]struct{}{"the": {}})

	termPostings := map[string]TermPostings{
		"the": {DF: 5, Data: postingsFor(codec.Posting{DocID: 1, TF: 10})},
	}

	assert.Empty(t, s.Search(termPostings, 5))
}

func TestSetConstants_ChangesScoring(t *testing.T) {
	s := New(100, 10)
	termPostings := map[string]TermPostings{
		"fox": {DF: 1, Data: postingsFor(codec.Posting{DocID: 1, TF: 5})},
	}

	baseline := s.Search(termPostings, 1)
	require.Len(t, baseline, 1)

	s.SetConstants(0, 0)
	adjusted := s.Search(termPostings, 1)
	require.Len(t, adjusted, 1)

	assert.NotEqual(t, baseline[0].Score, adjusted[0].Score)
}

func TestComputeIDF_MonotonicInRarity(t *testing.T) {
	assert.Greater(t, computeIDF(1, 1000), computeIDF(900, 1000))
}

// bruteForceBM25 scores every document appearing in any of termPostings by
// summing s.bm25Term over the terms it contains, with no candidate-set
// restriction and no upper-bound pruning, then returns the top-k sorted by
// descending score with ascending doc id as a tie-break. It exercises the
// same scoring primitives Search uses (bm25Term, computeIDF, decodeToMap) so
// it isolates whether the candidate-selection and heap pruning in Search find
// the true top-k, rather than re-deriving the BM25 formula independently.
func bruteForceBM25(s *Searcher, termPostings map[string]TermPostings, topK int) []ScoredDoc {
	type termData struct {
		idf      float64
		postings map[model.DocID]uint32
	}

	terms := make(map[string]termData)
	docIDs := make(map[model.DocID]struct{})
	for term, tp := range termPostings {
		if s.stopwords.Contains(term) {
			continue
		}
		postings := decodeToMap(tp.Data)
		terms[term] = termData{idf: computeIDF(tp.DF, s.numDocs), postings: postings}
		for id := range postings {
			docIDs[id] = struct{}{}
		}
	}

	scored := make([]ScoredDoc, 0, len(docIDs))
	for docID := range docIDs {
		var lengthEstimate float64
		for _, td := range terms {
			if tf, ok := td.postings[docID]; ok {
				lengthEstimate += float64(tf)
			}
		}
		if lengthEstimate < s.avgdl*0.5 {
			lengthEstimate = s.avgdl
		}

		var score float64
		for _, td := range terms {
			if tf, ok := td.postings[docID]; ok {
				score += s.bm25Term(float64(tf), td.idf, lengthEstimate)
			}
		}
		scored = append(scored, ScoredDoc{DocID: docID, Score: float32(score)})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].DocID < scored[j].DocID
	})
	if topK < len(scored) {
		scored = scored[:topK]
	}
	return scored
}

// TestSearch_MatchesExhaustiveScoring_SkewedTermFrequencies models a term
// occurring 10,000 times against one occurring only 10 times: the rare term's
// 10 documents carry a large enough tf to dominate BM25 scoring over every
// document that only matches the common term, so the true top-10 (by
// exhaustive scoring across all 10,010 candidate documents) lies entirely
// within the rare term's postings. Search must find exactly that top-10
// without ever having to fully score the common term's 10,000 documents.
func TestSearch_MatchesExhaustiveScoring_SkewedTermFrequencies(t *testing.T) {
	s := New(20000, 50)

	rarePairs := make([]codec.Posting, 10)
	for i := range rarePairs {
		rarePairs[i] = codec.Posting{DocID: uint32(100000 + i), TF: uint32(50 + i)}
	}
	commonPairs := make([]codec.Posting, 10000)
	for i := range commonPairs {
		commonPairs[i] = codec.Posting{DocID: uint32(i), TF: 1}
	}

	termPostings := map[string]TermPostings{
		"rare":   {DF: uint32(len(rarePairs)), Data: postingsFor(rarePairs...)},
		"common": {DF: uint32(len(commonPairs)), Data: postingsFor(commonPairs...)},
	}

	const topK = 10
	got := s.Search(termPostings, topK)
	want := bruteForceBM25(s, termPostings, topK)

	require.Len(t, got, topK)
	assert.Equal(t, want, got)
}

// TestSearch_MatchesExhaustiveScoring_SingleTermHighCardinality checks Search
// against bruteForceBM25 for a single term with 10,000 postings and varied tf,
// so the candidate set is the full posting list and the comparison directly
// verifies the heap-based top-k selection rather than any candidate-narrowing
// behavior.
func TestSearch_MatchesExhaustiveScoring_SingleTermHighCardinality(t *testing.T) {
	s := New(50000, 50)

	const n = 10000
	pairs := make([]codec.Posting, n)
	for i := range pairs {
		pairs[i] = codec.Posting{DocID: uint32(i), TF: uint32(1 + (i*37)%97)}
	}
	termPostings := map[string]TermPostings{
		"common": {DF: n, Data: postingsFor(pairs...)},
	}

	const topK = 25
	got := s.Search(termPostings, topK)
	want := bruteForceBM25(s, termPostings, topK)

	require.Len(t, got, topK)
	assert.Equal(t, want, got)
}
