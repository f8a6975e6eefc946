package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ftsearch"
)

func TestAddDocument_IsImmediatelySearchable(t *testing.T) {
	rt, err := New(t.TempDir(), Options{})
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.AddDocument("the quick brown fox jumps over the lazy dog", "fox-book")
	require.NoError(t, err)

	results, err := rt.Search("fox", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "fox-book", results[0].BookID)
}

func TestFlush_SealsRAMIntoSegmentAndClearsWAL(t *testing.T) {
	dir := t.TempDir()
	rt, err := New(dir, Options{})
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.AddDocument("gardens full of blooming roses", "garden-book")
	require.NoError(t, err)

	flushed, err := rt.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, flushed)

	results, err := rt.Search("gardens", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "garden-book", results[0].BookID)
}

func TestFlush_NoOpOnEmptyRAM(t *testing.T) {
	rt, err := New(t.TempDir(), Options{})
	require.NoError(t, err)
	defer rt.Close()

	flushed, err := rt.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, flushed)
}

func TestNew_ReplaysWALOnReopen(t *testing.T) {
	dir := t.TempDir()

	rt, err := New(dir, Options{})
	require.NoError(t, err)
	_, err = rt.AddDocument("running through misty mountains", "mountain-book")
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	rt2, err := New(dir, Options{})
	require.NoError(t, err)
	defer rt2.Close()

	results, err := rt2.Search("mountains", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "mountain-book", results[0].BookID)
}

func TestSearch_MergesDiskAndRAMResults(t *testing.T) {
	dir := t.TempDir()
	rt, err := New(dir, Options{})
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.AddDocument("sailing across the ocean waves", "ocean-book-one")
	require.NoError(t, err)
	_, err = rt.Flush(context.Background())
	require.NoError(t, err)

	_, err = rt.AddDocument("sailing near the ocean shore", "ocean-book-two")
	require.NoError(t, err)

	results, err := rt.Search("ocean sailing", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_RejectsNonPositiveTopK(t *testing.T) {
	rt, err := New(t.TempDir(), Options{})
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.Search("anything", 0)
	assert.ErrorIs(t, err, ftsearch.ErrInvalidArgument)
}
