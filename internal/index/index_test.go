package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_EmptyDirectoryYieldsZeroMeta(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Meta{}, s.Meta())
}

func TestAddSegment_AccumulatesAndPersists(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, s.AddSegment("segment_00000000", 10, 500))
	meta := s.Meta()
	assert.Equal(t, []string{"segment_00000000"}, meta.Segments)
	assert.EqualValues(t, 10, meta.TotalDocs)
	assert.EqualValues(t, 500, meta.TotalLength)
	assert.InDelta(t, 50.0, meta.AvgDL, 0.001)

	require.NoError(t, s.AddSegment("segment_00000001", 5, 100))
	meta = s.Meta()
	assert.Equal(t, []string{"segment_00000000", "segment_00000001"}, meta.Segments)
	assert.EqualValues(t, 15, meta.TotalDocs)
	assert.EqualValues(t, 600, meta.TotalLength)
	assert.InDelta(t, 40.0, meta.AvgDL, 0.001)

	_, err = os.Stat(filepath.Join(dir, FileName))
	require.NoError(t, err)
}

func TestOpen_ReloadsPersistedMeta(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.AddSegment("segment_00000000", 3, 30))

	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, s.Meta(), reopened.Meta())
}

func TestMeta_SnapshotIsIndependentOfInternalState(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.AddSegment("segment_00000000", 1, 10))

	snapshot := s.Meta()
	snapshot.Segments[0] = "tampered"

	assert.Equal(t, "segment_00000000", s.Meta().Segments[0])
}
