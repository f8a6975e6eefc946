package pipeline

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTxt_NormalizesWhitespace(t *testing.T) {
	text, ok := ParseTxt([]byte("hello   \n\n  world\t\tagain"))
	require.True(t, ok)
	assert.Equal(t, "hello world again", text)
}

func TestParseTxt_RejectsInvalidUTF8(t *testing.T) {
	_, ok := ParseTxt([]byte{0xff, 0xfe, 0xfd})
	assert.False(t, ok)
}

func buildTestEpub(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestParseEpub_ExtractsBodyText(t *testing.T) {
	data := buildTestEpub(t, map[string]string{
		"OEBPS/chapter1.xhtml": "<html><body><p>The quick brown fox</p></body></html>",
		"OEBPS/toc.xhtml":      "<html><body><p>Table of Contents</p></body></html>",
	})

	text, ok := ParseEpub(data)
	require.True(t, ok)
	assert.Contains(t, text, "quick brown fox")
	assert.NotContains(t, text, "Table of Contents")
}

func TestParseEpub_EmptyArchiveFails(t *testing.T) {
	data := buildTestEpub(t, map[string]string{"mimetype": "application/epub+zip"})
	_, ok := ParseEpub(data)
	assert.False(t, ok)
}

func TestParseEpub_InvalidZipFails(t *testing.T) {
	_, ok := ParseEpub([]byte("not a zip file"))
	assert.False(t, ok)
}

func TestParsePDF_InvalidDataFails(t *testing.T) {
	_, ok := ParsePDF([]byte("not a pdf"))
	assert.False(t, ok)
}

func TestParseBytes_DispatchesByExtension(t *testing.T) {
	text, ok := ParseBytes([]byte("hello world"), "txt")
	require.True(t, ok)
	assert.Equal(t, "hello world", text)

	_, ok = ParseBytes([]byte("data"), "docx")
	assert.False(t, ok)
}

func TestNormalizeWhitespace_CollapsesRuns(t *testing.T) {
	assert.Equal(t, "a b c", normalizeWhitespace("  a\n\nb\t\tc  "))
}
