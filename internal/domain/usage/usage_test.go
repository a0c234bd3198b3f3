package usage

import (
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/reportqa/internal/domain"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{"", PeriodDay, false},
		{"day", PeriodDay, false},
		{"month", PeriodMonth, false},
		{"week", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePeriod(tt.in)
		if tt.wantErr {
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("ParsePeriod(%q): expected validation error, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParsePeriod(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestBounds(t *testing.T) {
	at := time.Date(2024, 2, 29, 15, 4, 5, 0, time.UTC)

	start, end := PeriodDay.Bounds(at)
	if !start.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("day bounds = %v..%v", start, end)
	}

	start, end = PeriodMonth.Bounds(at)
	if !start.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("month bounds = %v..%v", start, end)
	}
}

func TestExhausted(t *testing.T) {
	if (Report{Limit: 0, Remaining: -1}).Exhausted() {
		t.Error("unlimited budget is never exhausted")
	}
	if !(Report{Limit: 100, Remaining: 0}).Exhausted() {
		t.Error("expected exhausted")
	}
	if (Report{Limit: 100, Remaining: 1}).Exhausted() {
		t.Error("expected not exhausted")
	}
}
