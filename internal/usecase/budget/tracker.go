// Package budget caps and accounts the tokens spent at LLM providers.
package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reportqa/internal/domain"
	"github.com/kailas-cloud/reportqa/internal/domain/usage"
	"github.com/kailas-cloud/reportqa/internal/metrics"
)

// Action defines behavior when the token budget is exceeded.
type Action string

const (
	// ActionWarn logs a warning but allows the request.
	ActionWarn Action = "warn"
	// ActionReject blocks the request with domain.ErrBudgetExceeded.
	ActionReject Action = "reject"
)

// Store persists budget counters. IncrBy may be called repeatedly for one key.
type Store interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// Tracker is an in-memory token budget with optional write-behind persistence.
// Check never leaves the process.
type Tracker struct {
	mu           sync.Mutex
	dailyUsed    int64
	monthlyUsed  int64
	dailyLimit   int64
	monthlyLimit int64
	action       Action
	scope        string
	dayStart     time.Time
	monthStart   time.Time
	store        Store
	keyPrefix    string
	logger       *zap.Logger
	now          func() time.Time
}

// NewTracker creates a tracker for scope (e.g. "openai"). A zero limit is unlimited.
func NewTracker(scope string, dailyLimit, monthlyLimit int64, action Action, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		dailyLimit:   dailyLimit,
		monthlyLimit: monthlyLimit,
		action:       action,
		scope:        scope,
		keyPrefix:    domain.KeyPrefix,
		logger:       logger,
		now:          time.Now,
	}
	t.dayStart, _ = usage.PeriodDay.Bounds(t.now())
	t.monthStart, _ = usage.PeriodMonth.Bounds(t.now())
	return t
}

// WithStore attaches persistence under keyPrefix and loads the current counters.
func (t *Tracker) WithStore(ctx context.Context, store Store, keyPrefix string) *Tracker {
	t.store = store
	if keyPrefix != "" {
		t.keyPrefix = keyPrefix
	}
	t.load(ctx)
	return t
}

func (t *Tracker) load(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().UTC()
	if val, err := t.store.Get(ctx, t.key(usage.PeriodDay, now)); err == nil {
		t.dailyUsed = val
	} else {
		t.logger.Warn("Failed to load daily budget from store", zap.Error(err))
	}
	if val, err := t.store.Get(ctx, t.key(usage.PeriodMonth, now)); err == nil {
		t.monthlyUsed = val
	} else {
		t.logger.Warn("Failed to load monthly budget from store", zap.Error(err))
	}

	t.logger.Info("Budget loaded from store",
		zap.String("scope", t.scope),
		zap.Int64("daily_used", t.dailyUsed),
		zap.Int64("monthly_used", t.monthlyUsed),
	)
}

func (t *Tracker) key(p usage.Period, at time.Time) string {
	if p == usage.PeriodMonth {
		return fmt.Sprintf("%sbudget:%s:monthly:%s", t.keyPrefix, t.scope, at.Format("2006-01"))
	}
	return fmt.Sprintf("%sbudget:%s:daily:%s", t.keyPrefix, t.scope, at.Format("2006-01-02"))
}

// Check verifies the budget allows a new request.
func (t *Tracker) Check(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()

	dailyExceeded := t.dailyLimit > 0 && t.dailyUsed >= t.dailyLimit
	monthlyExceeded := t.monthlyLimit > 0 && t.monthlyUsed >= t.monthlyLimit
	if !dailyExceeded && !monthlyExceeded {
		return nil
	}

	if t.action == ActionReject {
		return domain.ErrBudgetExceeded
	}

	t.logger.Warn("Token budget exceeded",
		zap.String("scope", t.scope),
		zap.Int64("daily_used", t.dailyUsed),
		zap.Int64("daily_limit", t.dailyLimit),
		zap.Int64("monthly_used", t.monthlyUsed),
		zap.Int64("monthly_limit", t.monthlyLimit),
	)
	return nil
}

// Record adds consumed tokens, then persists them when a store is attached.
func (t *Tracker) Record(tokens int64) {
	if tokens <= 0 {
		return
	}

	t.mu.Lock()
	t.rollover()
	t.dailyUsed += tokens
	t.monthlyUsed += tokens
	now := t.now().UTC()
	dailyKey := t.key(usage.PeriodDay, now)
	monthlyKey := t.key(usage.PeriodMonth, now)
	store := t.store
	daily, monthly := t.remainingLocked(usage.PeriodDay), t.remainingLocked(usage.PeriodMonth)
	t.mu.Unlock()

	metrics.BudgetTokensRemaining.WithLabelValues(t.scope, string(usage.PeriodDay)).Set(float64(daily))
	metrics.BudgetTokensRemaining.WithLabelValues(t.scope, string(usage.PeriodMonth)).Set(float64(monthly))

	if store == nil {
		return
	}

	// detached from the request so a cancelled caller still gets counted
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := store.IncrBy(ctx, dailyKey, tokens); err != nil {
		t.logger.Warn("Failed to persist daily budget", zap.String("key", dailyKey), zap.Error(err))
	}
	if err := store.IncrBy(ctx, monthlyKey, tokens); err != nil {
		t.logger.Warn("Failed to persist monthly budget", zap.String("key", monthlyKey), zap.Error(err))
	}
}

// Used returns the tokens consumed in the current window.
func (t *Tracker) Used(p usage.Period) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	if p == usage.PeriodMonth {
		return t.monthlyUsed
	}
	return t.dailyUsed
}

// Limit returns the cap of the window, 0 when unlimited.
func (t *Tracker) Limit(p usage.Period) int64 {
	if p == usage.PeriodMonth {
		return t.monthlyLimit
	}
	return t.dailyLimit
}

// Remaining returns the tokens left in the window, -1 when unlimited.
func (t *Tracker) Remaining(p usage.Period) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()
	return t.remainingLocked(p)
}

// Action returns the configured over-budget behavior.
func (t *Tracker) Action() string { return string(t.action) }

func (t *Tracker) remainingLocked(p usage.Period) int64 {
	limit, used := t.dailyLimit, t.dailyUsed
	if p == usage.PeriodMonth {
		limit, used = t.monthlyLimit, t.monthlyUsed
	}
	if limit == 0 {
		return -1
	}
	return max(limit-used, 0)
}

// rollover zeroes counters when the day or month changes.
func (t *Tracker) rollover() {
	now := t.now()
	day, _ := usage.PeriodDay.Bounds(now)
	month, _ := usage.PeriodMonth.Bounds(now)
	if day.After(t.dayStart) {
		t.dailyUsed = 0
		t.dayStart = day
	}
	if month.After(t.monthStart) {
		t.monthlyUsed = 0
		t.monthStart = month
	}
}
