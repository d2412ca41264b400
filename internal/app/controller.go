package app

import (
	"context"
	"errors"
	"fmt"

	"caseboard-service/internal/domain"
	"github.com/rs/zerolog/log"
)

// Controller runs the instructor's transitions of the session state machine.
type Controller struct {
	states    StateStore
	responses ResponseStore
	configs   ConfigRepository
	events    Publisher
}

func NewController(states StateStore, responses ResponseStore, configs ConfigRepository, events Publisher) *Controller {
	return &Controller{states: states, responses: responses, configs: configs, events: events}
}

// State returns the current state of a scope. A session listed in the case config but
// without a state row (a case still on its defaults) is registered on first access.
func (c *Controller) State(ctx context.Context, scope domain.Scope) (domain.SessionState, error) {
	if _, err := c.config(ctx, scope); err != nil {
		return domain.SessionState{}, err
	}
	state, err := c.states.GetSessionState(ctx, scope)
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return state, err
	}
	created, err := c.states.EnsureSessionStates(ctx, scope.CaseID, []string{scope.SessionID})
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("register session %s: %w", scope, err)
	}
	for _, s := range created {
		ev := domain.StateChanged(s)
		ev.Type = domain.EventInsert
		publish(ctx, c.events, ev)
	}
	return c.states.GetSessionState(ctx, scope)
}

// Advance moves to the next step; a no-op at the last step.
func (c *Controller) Advance(ctx context.Context, scope domain.Scope) (domain.SessionState, error) {
	cfg, err := c.config(ctx, scope)
	if err != nil {
		return domain.SessionState{}, err
	}
	return c.apply(ctx, scope, domain.Advance(cfg.LastStep()))
}

// GoBack moves to the previous step; a no-op at step 0.
func (c *Controller) GoBack(ctx context.Context, scope domain.Scope) (domain.SessionState, error) {
	return c.transition(ctx, scope, domain.GoBack())
}

// Reveal shows one more step on the board; a no-op once the current step is revealed.
func (c *Controller) Reveal(ctx context.Context, scope domain.Scope) (domain.SessionState, error) {
	return c.transition(ctx, scope, domain.Reveal())
}

// ToggleMode flips between controlled and live display.
func (c *Controller) ToggleMode(ctx context.Context, scope domain.Scope) (domain.SessionState, error) {
	return c.transition(ctx, scope, domain.ToggleMode())
}

// Reset deletes every response of the scope, then reinitializes its state.
// The two writes are not atomic: a failure in between leaves responses deleted and the
// state untouched.
func (c *Controller) Reset(ctx context.Context, scope domain.Scope) (domain.SessionState, error) {
	if _, err := c.config(ctx, scope); err != nil {
		return domain.SessionState{}, err
	}
	n, err := c.responses.DeleteResponses(ctx, scope)
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("reset %s: delete responses: %w", scope, err)
	}
	publish(ctx, c.events, domain.ResponsesDeleted(scope))

	state, err := c.apply(ctx, scope, domain.ResetState())
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("reset %s: reinitialize state: %w", scope, err)
	}
	log.Info().Str("case", scope.CaseID).Str("session", scope.SessionID).Int("deleted", n).Msg("session reset")
	return state, nil
}

// RegisterSessions creates default state rows for sessions that have none.
func (c *Controller) RegisterSessions(ctx context.Context, cfg domain.CaseConfig) error {
	ids := make([]string, 0, len(cfg.Sessions))
	for _, s := range cfg.Sessions {
		ids = append(ids, s.ID)
	}
	created, err := c.states.EnsureSessionStates(ctx, cfg.ID, ids)
	if err != nil {
		return fmt.Errorf("register sessions for %s: %w", cfg.ID, err)
	}
	for _, state := range created {
		ev := domain.StateChanged(state)
		ev.Type = domain.EventInsert
		publish(ctx, c.events, ev)
	}
	return nil
}

func (c *Controller) transition(ctx context.Context, scope domain.Scope, fn domain.Transition) (domain.SessionState, error) {
	if _, err := c.config(ctx, scope); err != nil {
		return domain.SessionState{}, err
	}
	return c.apply(ctx, scope, fn)
}

func (c *Controller) apply(ctx context.Context, scope domain.Scope, fn domain.Transition) (domain.SessionState, error) {
	state, changed, err := c.states.UpdateSessionState(ctx, scope, fn)
	if errors.Is(err, domain.ErrSessionNotFound) {
		if _, err := c.State(ctx, scope); err != nil {
			return domain.SessionState{}, err
		}
		state, changed, err = c.states.UpdateSessionState(ctx, scope, fn)
	}
	if err != nil {
		return domain.SessionState{}, err
	}
	if changed {
		publish(ctx, c.events, domain.StateChanged(state))
	}
	return state, nil
}

func (c *Controller) config(ctx context.Context, scope domain.Scope) (domain.CaseConfig, error) {
	cfg, err := c.configs.GetCaseConfig(ctx, scope.CaseID)
	if err != nil {
		return domain.CaseConfig{}, err
	}
	if _, ok := cfg.Session(scope.SessionID); !ok {
		return domain.CaseConfig{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, scope)
	}
	return cfg, nil
}
