// Package textsplit breaks page text into overlapping chunks, preferring to cut
// at paragraph, line, sentence and word boundaries in that order.
package textsplit

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order. The empty separator splits into characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter is a recursive character splitter. Sizes are counted in characters.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// New validates sizes and returns a splitter using DefaultSeparators.
func New(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, errors.New("chunk size must be positive")
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, errors.New("chunk overlap must be in [0, chunk size)")
	}
	return &Splitter{ChunkSize: chunkSize, ChunkOverlap: overlap, Separators: DefaultSeparators}, nil
}

// Split returns the non-empty chunks of text, in order.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.Separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := ""
	var rest []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var out, fitting []string
	for _, part := range strings.Split(text, sep) {
		if part == "" {
			continue
		}
		if runeLen(part) <= s.ChunkSize {
			fitting = append(fitting, part)
			continue
		}
		if len(fitting) > 0 {
			out = append(out, s.merge(fitting, sep)...)
			fitting = nil
		}
		if len(rest) == 0 {
			out = append(out, part)
			continue
		}
		out = append(out, s.split(part, rest)...)
	}
	if len(fitting) > 0 {
		out = append(out, s.merge(fitting, sep)...)
	}
	return out
}

// merge packs parts into chunks of at most ChunkSize, carrying up to ChunkOverlap
// characters of trailing parts into the next chunk.
func (s *Splitter) merge(parts []string, sep string) []string {
	sepLen := runeLen(sep)
	var (
		out     []string
		current []string
		total   int
	)

	joinedLen := func(n int) int {
		if len(current) > 0 {
			return total + n + sepLen
		}
		return total + n
	}

	for _, p := range parts {
		n := runeLen(p)
		if joinedLen(n) > s.ChunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
				out = append(out, doc)
			}
			for len(current) > 0 && (total > s.ChunkOverlap || joinedLen(n) > s.ChunkSize) {
				total -= runeLen(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		total = joinedLen(n)
		current = append(current, p)
	}

	if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
		out = append(out, doc)
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
