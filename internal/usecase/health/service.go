package health

import (
	"context"
	"errors"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "healthy"
	// Degraded indicates a failing optional component.
	Degraded Status = "degraded"
	// Unhealthy indicates the database or the upload directory is unusable.
	Unhealthy Status = "unhealthy"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

var errStorageMissing = errors.New("upload directory does not exist")

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db         DBPinger
	storage    StorageInspector
	embedding  EmbeddingChecker
	completion CompletionChecker
}

// New creates a Service. embedding can be nil.
func New(db DBPinger, storage StorageInspector, embedding EmbeddingChecker) *Service {
	return &Service{db: db, storage: storage, embedding: embedding}
}

// WithCompletion adds an optional "completion" check.
func (s *Service) WithCompletion(c CompletionChecker) *Service {
	s.completion = c
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
		status = Unhealthy
	} else {
		checks["database"] = CheckOK
	}

	if err := s.checkStorage(); err != nil {
		checks["storage"] = CheckError
		status = Unhealthy
	} else {
		checks["storage"] = CheckOK
	}

	if s.embedding != nil {
		status = optional(ctx, checks, "embedding", s.embedding, status)
	}
	if s.completion != nil {
		status = optional(ctx, checks, "completion", s.completion, status)
	}

	return Report{Status: status, Checks: checks}
}

// optional records a check whose failure degrades but never fails the service.
func optional(ctx context.Context, checks map[string]CheckResult, name string,
	c interface{ HealthCheck(context.Context) error }, status Status,
) Status {
	if err := c.HealthCheck(ctx); err != nil {
		checks[name] = CheckError
		if status == Healthy {
			return Degraded
		}
		return status
	}
	checks[name] = CheckOK
	return status
}

func (s *Service) checkStorage() error {
	info, err := s.storage.Info()
	if err != nil {
		return err
	}
	if !info.Exists {
		return errStorageMissing
	}
	return nil
}
