// Package report holds annual report file naming rules and per-year metadata.
package report

import (
	"fmt"
	"regexp"
	"strconv"
)

// Supported report year range, inclusive.
const (
	MinYear = 2000
	MaxYear = 2030
)

var digitRuns = regexp.MustCompile(`[0-9]+`)

// ValidYear reports whether year lies within the supported range.
func ValidYear(year int) bool {
	return year >= MinYear && year <= MaxYear
}

// YearFromFilename returns the first standalone 4-digit number within range, or 0.
func YearFromFilename(name string) int {
	for _, run := range digitRuns.FindAllString(name, -1) {
		if len(run) != 4 {
			continue
		}
		y, err := strconv.Atoi(run)
		if err == nil && ValidYear(y) {
			return y
		}
	}
	return 0
}

// SourceLabel is the citation source shown for a year's report.
func SourceLabel(year int) string {
	return fmt.Sprintf("apple_annual_report_%d.pdf", year)
}
