package realtime

import (
	"context"
	"fmt"
	"slices"

	"caseboard-service/internal/domain"
)

// Source answers the bootstrap queries of a replica.
type Source interface {
	CaseConfig(ctx context.Context, caseID string) (domain.CaseConfig, error)
	SessionState(ctx context.Context, scope domain.Scope) (domain.SessionState, error)
	Responses(ctx context.Context, scope domain.Scope) ([]domain.Response, error)
	// HasResponse reports whether the store still holds the row. Change events are
	// published after their write commits, so a row confirmed here is either current or
	// its delete event is still on its way.
	HasResponse(ctx context.Context, row domain.Response) (bool, error)
	InvalidateConfig(ctx context.Context, caseID string)
}

// Feed delivers the change events of one case until cancel is called. The channel is
// closed when the stream ends.
type Feed interface {
	Subscribe(ctx context.Context, caseID string) (<-chan domain.ChangeEvent, func(), error)
}

// Snapshot is the synchronized view of one scope. State is nil until the first bootstrap
// succeeds. Err wraps domain.ErrConnection when the last bootstrap failed.
type Snapshot struct {
	Scope     domain.Scope
	Config    domain.CaseConfig
	State     *domain.SessionState
	Responses []domain.Response
	Connected bool
	Err       error
}

// Loading reports whether the snapshot has no data and no error yet.
func (s Snapshot) Loading() bool {
	return s.State == nil && s.Err == nil
}

// Fetch runs the bootstrap queries of a scope once.
func Fetch(ctx context.Context, source Source, scope domain.Scope) (Snapshot, error) {
	cfg, err := source.CaseConfig(ctx, scope.CaseID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load config: %w", err)
	}
	state, err := source.SessionState(ctx, scope)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load state: %w", err)
	}
	responses, err := source.Responses(ctx, scope)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load responses: %w", err)
	}
	return Snapshot{Scope: scope, Config: cfg, State: &state, Responses: responses}, nil
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.State != nil {
		state := *s.State
		out.State = &state
	}
	out.Responses = slices.Clone(s.Responses)
	if out.Responses == nil {
		out.Responses = []domain.Response{}
	}
	return out
}
