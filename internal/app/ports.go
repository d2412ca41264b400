package app

import (
	"context"

	"caseboard-service/internal/domain"
)

// ConfigStore persists case configurations.
type ConfigStore interface {
	// LoadCaseConfig returns domain.ErrCaseNotFound when nothing is stored for the case.
	LoadCaseConfig(ctx context.Context, caseID string) (domain.CaseConfig, error)
	SaveCaseConfig(ctx context.Context, cfg domain.CaseConfig) error
}

// StateStore persists one SessionState per scope. UpdateSessionState applies the
// transition atomically and bumps the version only when the transition is accepted.
type StateStore interface {
	EnsureSessionStates(ctx context.Context, caseID string, sessionIDs []string) ([]domain.SessionState, error)
	GetSessionState(ctx context.Context, scope domain.Scope) (domain.SessionState, error)
	UpdateSessionState(ctx context.Context, scope domain.Scope, fn domain.Transition) (domain.SessionState, bool, error)
}

// ResponseStore persists responses. InsertResponse enforces uniqueness of the
// (case, session, step, student) tuple and returns domain.ErrDuplicateSubmission on conflict.
// ListResponses orders by creation time, then id.
type ResponseStore interface {
	FindResponse(ctx context.Context, key domain.ResponseKey) (domain.Response, bool, error)
	InsertResponse(ctx context.Context, r domain.Response) (domain.Response, error)
	ListResponses(ctx context.Context, filter domain.ResponseFilter) ([]domain.Response, error)
	DeleteResponses(ctx context.Context, scope domain.Scope) (int, error)
}

// ConfigRepository serves resolved case configurations, typically from a cache.
type ConfigRepository interface {
	GetCaseConfig(ctx context.Context, caseID string) (domain.CaseConfig, error)
	Invalidate(ctx context.Context, caseID string)
}

// Publisher fans a change event out to every subscriber of the event's case.
type Publisher interface {
	Publish(ctx context.Context, ev domain.ChangeEvent) error
}

// Store is implemented by the memory and postgres backends.
type Store interface {
	ConfigStore
	StateStore
	ResponseStore
}
