package query

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/reportqa/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestNew_SingleYear(t *testing.T) {
	q, err := New("  What was revenue?  ", intPtr(2023), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Text() != "What was revenue?" {
		t.Errorf("Text() = %q", q.Text())
	}
	if q.Year() != 2023 || q.AllYears() {
		t.Errorf("unexpected mode: year=%d all=%v", q.Year(), q.AllYears())
	}
}

func TestNew_AllYearsWithoutYear(t *testing.T) {
	q, err := New("revenue", nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.AllYears() || q.Year() != 0 {
		t.Errorf("unexpected mode: year=%d all=%v", q.Year(), q.AllYears())
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		year     *int
		allYears bool
		wantMsg  string
	}{
		{"empty", "   ", intPtr(2023), false, "query cannot be empty"},
		{"too short after sanitize", `<'a'>`, intPtr(2023), false, "at least 3"},
		{"too long", strings.Repeat("a", MaxLength+1), intPtr(2023), false, "at most"},
		{"missing year", "revenue", nil, false, "year is required"},
		{"year too old", "revenue", intPtr(1999), false, "between 2000 and 2030"},
		{"year too new", "revenue", intPtr(2031), true, "between 2000 and 2030"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.text, tc.year, tc.allYears)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tc.wantMsg)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	if got := Sanitize(` <b>"Apple's" revenue</b> `); got != "bApples revenue/b" {
		t.Errorf("Sanitize() = %q", got)
	}
}
