// Package usage reports provider token consumption against the configured budget.
package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/reportqa/internal/domain/usage"
)

// Service handles usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil, which reports zero usage without limits.
func New(br BudgetReader) *Service {
	return &Service{br: br, now: time.Now}
}

// Report builds the usage report of the window named by period ("day" or "month",
// empty means "day").
func (s *Service) Report(_ context.Context, period string) (domusage.Report, error) {
	p, err := domusage.ParsePeriod(period)
	if err != nil {
		return domusage.Report{}, err
	}

	start, end := p.Bounds(s.now())
	r := domusage.Report{
		Period:    p,
		Start:     start,
		End:       end,
		Remaining: -1,
	}
	if s.br == nil {
		return r, nil
	}

	r.Used = s.br.Used(p)
	r.Limit = s.br.Limit(p)
	r.Remaining = s.br.Remaining(p)
	r.Action = s.br.Action()
	return r, nil
}
