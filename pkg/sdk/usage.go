package reportqa

import (
	"context"
	"fmt"
	"time"
)

// UsagePeriod is the window of a usage report.
type UsagePeriod string

// UsagePeriod constants.
const (
	PeriodDay   UsagePeriod = "day"
	PeriodMonth UsagePeriod = "month"
)

// UsageReport contains provider token consumption for a UTC day or month.
type UsageReport struct {
	Period      UsagePeriod
	PeriodStart time.Time
	PeriodEnd   time.Time
	Tokens      int64
	Budget      BudgetStatus
}

// BudgetStatus tracks token quota state. TokensLimit 0 means unlimited and
// TokensRemaining is then -1.
type BudgetStatus struct {
	TokensLimit     int64
	TokensRemaining int64
	IsExhausted     bool
	ResetsAt        time.Time
}

// Usage returns the token usage report for period. Any period other than
// PeriodDay or PeriodMonth fails with ErrValidation.
func (c *Client) Usage(ctx context.Context, period UsagePeriod) (_ UsageReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, err) }()

	r, err := c.usageSvc.Report(ctx, string(period))
	if err != nil {
		return UsageReport{}, fmt.Errorf("usage: %w", err)
	}
	return UsageReport{
		Period:      UsagePeriod(r.Period),
		PeriodStart: r.Start,
		PeriodEnd:   r.End,
		Tokens:      r.Used,
		Budget: BudgetStatus{
			TokensLimit:     r.Limit,
			TokensRemaining: r.Remaining,
			IsExhausted:     r.Exhausted(),
			ResetsAt:        r.End,
		},
	}, nil
}
