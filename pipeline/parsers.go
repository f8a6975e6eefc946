package pipeline

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

var epubSkipPatterns = []string{"toc", "nav", "cover", "license", "gutenberg", "copyright", "colophon"}

// ParseFile dispatches to the correct parser by file extension.
func ParseFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return ParseBytes(data, strings.TrimPrefix(filepath.Ext(path), "."))
}

// ParseBytes dispatches to the correct parser by extension, without touching
// the filesystem itself.
func ParseBytes(data []byte, extension string) (string, bool) {
	switch strings.ToLower(extension) {
	case "txt":
		return ParseTxt(data)
	case "epub":
		return ParseEpub(data)
	case "pdf":
		return ParsePDF(data)
	default:
		return "", false
	}
}

// ParseTxt validates UTF-8 and normalizes whitespace.
func ParseTxt(data []byte) (string, bool) {
	if !utf8.Valid(data) {
		return "", false
	}
	return normalizeWhitespace(string(data)), true
}

// ParseEpub extracts visible body text from every non-boilerplate HTML entry
// inside the EPUB zip container.
func ParseEpub(data []byte) (string, bool) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", false
	}

	var parts []string
	for _, f := range r.File {
		name := strings.ToLower(f.Name)
		if !isHTMLFile(name) || shouldSkipEpubEntry(name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		if text := extractTextFromHTML(body); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return normalizeWhitespace(strings.Join(parts, " ")), true
}

func isHTMLFile(name string) bool {
	return strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".xhtml") || strings.HasSuffix(name, ".htm")
}

func shouldSkipEpubEntry(name string) bool {
	for _, p := range epubSkipPatterns {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}

func extractTextFromHTML(data []byte) string {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return ""
	}

	body := findNode(doc, "body")
	if body == nil {
		body = doc
	}

	var sb strings.Builder
	collectText(body, &sb)
	return sb.String()
}

func findNode(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

// ParsePDF extracts plain text from a PDF's content streams.
func ParsePDF(data []byte) (string, bool) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", false
	}

	text, err := r.GetPlainText()
	if err != nil {
		return "", false
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, text); err != nil && sb.Len() == 0 {
		return "", false
	}
	if sb.Len() == 0 {
		return "", false
	}
	return normalizeWhitespace(sb.String()), true
}

// normalizeWhitespace collapses any run of whitespace into a single space and
// trims the result.
func normalizeWhitespace(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !prevSpace {
				sb.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		sb.WriteRune(r)
		prevSpace = false
	}
	return strings.TrimSpace(sb.String())
}
