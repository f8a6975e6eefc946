package wal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ftsearch/internal/fs"
	"github.com/hupe1980/ftsearch/model"
)

func TestAppendReadAll_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.wal")
	w, err := Open(fs.Default, path, DefaultOptions())
	require.NoError(t, err)
	defer w.Close()

	docs := []model.Document{
		{ID: 0, Content: "the quick fox", Metadata: "book-a", Length: 3},
		{ID: 1, Content: "the lazy dog", Metadata: "book-b", Length: 3},
	}
	for _, d := range docs {
		require.NoError(t, w.Append(d))
	}

	got, err := w.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, docs, got)
}

func TestReadAll_SkipsTornTailRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.wal")
	w, err := Open(fs.Default, path, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, w.Append(model.Document{ID: 0, Content: "complete record", Length: 2}))
	require.NoError(t, w.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"id":1,"content":"truncated becau`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w2, err := Open(fs.Default, path, DefaultOptions())
	require.NoError(t, err)
	defer w2.Close()

	docs, err := w2.ReadAll()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.EqualValues(t, 0, docs[0].ID)
}

func TestTruncate_ClearsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.wal")
	w, err := Open(fs.Default, path, DefaultOptions())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(model.Document{ID: 0, Content: "x", Length: 1}))
	require.NoError(t, w.Truncate())

	docs, err := w.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, w.Append(model.Document{ID: 1, Content: "y", Length: 1}))
	docs, err = w.ReadAll()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.EqualValues(t, 1, docs[0].ID)
}

func TestAppend_CompressesLargeMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.wal")
	opts := DefaultOptions()
	opts.CompressMetadata = true
	w, err := Open(fs.Default, path, opts)
	require.NoError(t, err)
	defer w.Close()

	largeMetadata := strings.Repeat("metadata-value-", 64)
	require.NoError(t, w.Append(model.Document{ID: 0, Content: "c", Metadata: largeMetadata, Length: 1}))

	docs, err := w.ReadAll()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, largeMetadata, docs[0].Metadata)
}

func TestAppend_FailsOnDiskFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.wal")
	faulty := fs.NewFaultyFS(fs.Default)
	faulty.AddRule("index.wal", fs.Fault{FailAfterBytes: 0})

	w, err := Open(faulty, path, DefaultOptions())
	require.NoError(t, err)
	defer w.Close()

	err = w.Append(model.Document{ID: 0, Content: "the quick fox", Length: 3})
	require.Error(t, err)
}

func TestAppend_SyncDurability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.wal")
	opts := DefaultOptions()
	opts.Durability = DurabilitySync
	w, err := Open(fs.Default, path, opts)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(model.Document{ID: 0, Content: "c", Length: 1}))
	docs, err := w.ReadAll()
	require.NoError(t, err)
	require.Len(t, docs, 1)
}
