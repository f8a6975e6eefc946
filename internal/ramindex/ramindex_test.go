package ramindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsert_AssignsSequentialDocIDs(t *testing.T) {
	idx := New(0)
	id0 := idx.Insert("the quick brown fox", "book-a")
	id1 := idx.Insert("the lazy dog", "book-b")

	assert.EqualValues(t, 0, id0)
	assert.EqualValues(t, 1, id1)
	assert.Equal(t, 2, idx.NumDocs())
}

func TestInsert_StartDocIDOffset(t *testing.T) {
	idx := New(100)
	id := idx.Insert("running gardens", "book")
	assert.EqualValues(t, 100, id)
}

func TestSearch_ScoresOnlyMatchingDocument(t *testing.T) {
	idx := New(0)
	idx.Insert("fox fox fox running through gardens", "book-a")
	idx.Insert("a dog sleeping quietly", "book-b")

	scores := idx.Search("fox")
	require.Len(t, scores, 1)
	assert.Greater(t, scores[0], float32(0))
}

func TestSearch_NoMatchingTermsReturnsEmpty(t *testing.T) {
	idx := New(0)
	idx.Insert("fox running", "book")

	scores := idx.Search("zzznomatch")
	assert.Empty(t, scores)
}

func TestSearch_EmptyIndex(t *testing.T) {
	idx := New(0)
	assert.Empty(t, idx.Search("anything"))
}

func TestInsertWithID_PreservesGivenIDAndAdvancesCounter(t *testing.T) {
	idx := New(0)
	idx.InsertWithID(5, "gardens running", "book")

	doc, ok := idx.Document(5)
	require.True(t, ok)
	assert.Equal(t, "gardens running", doc.Content)
	assert.EqualValues(t, 6, idx.NextDocID())
}

func TestClear_PreservesNextDocID(t *testing.T) {
	idx := New(0)
	idx.Insert("first document", "a")
	idx.Insert("second document", "b")
	nextBefore := idx.NextDocID()

	idx.Clear()

	assert.Equal(t, 0, idx.NumDocs())
	assert.Equal(t, nextBefore, idx.NextDocID())
	assert.Empty(t, idx.Documents())
}

func TestDocuments_ReturnsAllStoredDocuments(t *testing.T) {
	idx := New(0)
	idx.Insert("first document here", "a")
	idx.Insert("second document here", "b")

	docs := idx.Documents()
	assert.Len(t, docs, 2)
}
