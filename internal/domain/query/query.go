// Package query validates natural-language questions submitted to the QA service.
package query

import (
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/reportqa/internal/domain"
	"github.com/kailas-cloud/reportqa/internal/domain/report"
)

// Length limits for question text, in characters.
const (
	MinLength = 3
	MaxLength = 1000
)

var stripChars = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "")

// Query is a validated question (immutable value object).
type Query struct {
	text     string
	year     int
	allYears bool
}

// New sanitizes text and validates the year requirement of the chosen search mode.
// year may be nil when allYears is set.
func New(text string, year *int, allYears bool) (Query, error) {
	if strings.TrimSpace(text) == "" {
		return Query{}, domain.NewValidationError("query cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxLength {
		return Query{}, domain.NewValidationError("query must be at most %d characters", MaxLength)
	}

	clean := Sanitize(text)
	if utf8.RuneCountInString(clean) < MinLength {
		return Query{}, domain.NewValidationError("query must be at least %d characters long", MinLength)
	}

	q := Query{text: clean, allYears: allYears}
	if year != nil {
		if !report.ValidYear(*year) {
			return Query{}, domain.NewValidationError(
				"year must be between %d and %d", report.MinYear, report.MaxYear)
		}
		q.year = *year
	}
	if !allYears && year == nil {
		return Query{}, domain.NewValidationError("year is required when not searching all years")
	}

	return q, nil
}

// Sanitize trims whitespace, removes markup-prone characters and caps the length.
func Sanitize(text string) string {
	text = strings.TrimSpace(stripChars.Replace(text))
	if utf8.RuneCountInString(text) > MaxLength {
		text = string([]rune(text)[:MaxLength])
	}
	return text
}

// Text returns the sanitized question.
func (q Query) Text() string { return q.text }

// Year returns the requested year (0 when unset).
func (q Query) Year() int { return q.year }

// AllYears reports whether every processed year should be searched.
func (q Query) AllYears() bool { return q.allYears }
