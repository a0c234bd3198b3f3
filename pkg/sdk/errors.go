package reportqa

import "github.com/kailas-cloud/reportqa/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation       = domain.ErrValidation
	ErrNotFound         = domain.ErrNotFound
	ErrExternalService  = domain.ErrExternalService
	ErrBudgetExceeded   = domain.ErrBudgetExceeded
	ErrIngestInProgress = domain.ErrIngestInProgress
)
