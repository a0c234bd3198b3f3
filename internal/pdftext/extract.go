// Package pdftext turns stored reports into cleaned per-page text.
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedType is returned for files that are neither PDF nor plain text.
var ErrUnsupportedType = errors.New("unsupported file type")

// Page is the cleaned text of one page, numbered from 1.
type Page struct {
	Number int
	Text   string
}

var (
	whitespace = regexp.MustCompile(`\s+`)
	// keeps letters, digits, punctuation used in prose and figures
	disallowed = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:\-()\[\]{}$%]`)
)

// CleanText collapses whitespace and strips characters that carry no meaning for retrieval.
func CleanText(s string) string {
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), " ")
	return disallowed.ReplaceAllString(s, "")
}

// Extract reads the file at path. PDFs yield one Page per non-empty page; .txt files
// yield a single page. Pages with no text after cleaning are dropped.
func Extract(ctx context.Context, path string) ([]Page, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(ctx, path)
	case ".txt":
		return extractText(path)
	default:
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedType)
	}
}

func extractText(path string) ([]Page, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	text := CleanText(string(data))
	if text == "" {
		return nil, nil
	}
	return []Page{{Number: 1, Text: text}}, nil
}

func extractPDF(ctx context.Context, path string) (pages []Page, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("parse %s: %v", filepath.Base(path), r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	n := r.NumPage()
	pages = make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		raw, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d of %s: %w", i, filepath.Base(path), err)
		}
		if text := CleanText(raw); text != "" {
			pages = append(pages, Page{Number: i, Text: text})
		}
	}
	return pages, nil
}
