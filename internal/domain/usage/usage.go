// Package usage describes provider token consumption over a budget window.
package usage

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/reportqa/internal/domain"
)

// Period is the budget window.
type Period string

// Budget windows.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod validates a period name. Empty means PeriodDay.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", domain.NewValidationError("period must be %q or %q, got %q", PeriodDay, PeriodMonth, s)
	}
}

// Bounds returns the UTC window containing t.
func (p Period) Bounds(t time.Time) (start, end time.Time) {
	t = t.UTC()
	switch p {
	case PeriodMonth:
		start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	default:
		start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1)
	}
}

// Report is the token usage of one window. Limit 0 means unlimited, in which case
// Remaining is -1.
type Report struct {
	Period    Period
	Start     time.Time
	End       time.Time
	Used      int64
	Limit     int64
	Remaining int64
	Action    string
}

// Exhausted reports whether a limited budget has nothing left.
func (r Report) Exhausted() bool {
	return r.Limit > 0 && r.Remaining <= 0
}

// String is used in log lines.
func (r Report) String() string {
	if r.Limit == 0 {
		return fmt.Sprintf("%s: %d tokens used (unlimited)", r.Period, r.Used)
	}
	return fmt.Sprintf("%s: %d/%d tokens used", r.Period, r.Used, r.Limit)
}
