// Package health aggregates component availability checks.
package health

import "context"

// Status is the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component is failing; recommendations
	// still work, possibly without enrichment.
	Degraded Status = "degraded"
	// Unhealthy indicates the service cannot serve requests.
	Unhealthy Status = "error"
)

// CheckResult is one component's health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db         DBPinger
	summarizer SummarizerChecker
}

// New creates a Service. summarizer can be nil.
func New(db DBPinger, summarizer SummarizerChecker) *Service {
	return &Service{db: db, summarizer: summarizer}
}

// Check runs health checks against all components. The database is required:
// without it, profiles and history are unreachable and the service is down.
// The summarizer only degrades.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
		status = Unhealthy
	} else {
		checks["database"] = CheckOK
	}

	if s.summarizer != nil {
		if err := s.summarizer.HealthCheck(ctx); err != nil {
			checks["summarizer"] = CheckError
			if status == Healthy {
				status = Degraded
			}
		} else {
			checks["summarizer"] = CheckOK
		}
	}

	return Report{Status: status, Checks: checks}
}
