package usage

import domusage "github.com/kailas-cloud/reportqa/internal/domain/usage"

// BudgetReader provides read-only access to token budget state.
type BudgetReader interface {
	Used(p domusage.Period) int64
	Limit(p domusage.Period) int64
	Remaining(p domusage.Period) int64
	Action() string
}
