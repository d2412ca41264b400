package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"caseboard-service/internal/domain"
)

// Store is an in-memory implementation of app.Store. Every write holds one lock, so
// uniqueness checks and state transitions are atomic.
type Store struct {
	mu        sync.RWMutex
	clock     func() time.Time
	configs   map[string]domain.CaseConfig
	states    map[domain.Scope]domain.SessionState
	responses []domain.Response
	keys      map[domain.ResponseKey]int64
	seq       int64
}

func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock builds a store stamping rows with clock.
func NewStoreWithClock(clock func() time.Time) *Store {
	return &Store{
		clock:   clock,
		configs: make(map[string]domain.CaseConfig),
		states:  make(map[domain.Scope]domain.SessionState),
		keys:    make(map[domain.ResponseKey]int64),
	}
}

func (s *Store) LoadCaseConfig(_ context.Context, caseID string) (domain.CaseConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[caseID]
	if !ok {
		return domain.CaseConfig{}, domain.ErrCaseNotFound
	}
	return cfg, nil
}

func (s *Store) SaveCaseConfig(_ context.Context, cfg domain.CaseConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.ID] = cfg
	return nil
}

// EnsureSessionStates creates initial rows for the sessions that have none and returns them.
func (s *Store) EnsureSessionStates(_ context.Context, caseID string, sessionIDs []string) ([]domain.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var created []domain.SessionState
	for _, id := range sessionIDs {
		scope := domain.NewScope(caseID, id)
		if _, ok := s.states[scope]; ok {
			continue
		}
		state := domain.InitialState(scope)
		state.Version = 1
		state.UpdatedAt = s.clock()
		s.states[scope] = state
		created = append(created, state)
	}
	return created, nil
}

func (s *Store) GetSessionState(_ context.Context, scope domain.Scope) (domain.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[scope]
	if !ok {
		return domain.SessionState{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, scope)
	}
	return state, nil
}

func (s *Store) UpdateSessionState(_ context.Context, scope domain.Scope, fn domain.Transition) (domain.SessionState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.states[scope]
	if !ok {
		return domain.SessionState{}, false, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, scope)
	}
	next, changed := fn(current)
	if !changed {
		return current, false, nil
	}
	next.CaseID, next.SessionID = scope.CaseID, scope.SessionID
	next.Version = current.Version + 1
	next.UpdatedAt = s.clock()
	s.states[scope] = next
	return next, true, nil
}

func (s *Store) FindResponse(_ context.Context, key domain.ResponseKey) (domain.Response, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.keys[key]
	if !ok {
		return domain.Response{}, false, nil
	}
	for _, r := range s.responses {
		if r.ID == id {
			return r, true, nil
		}
	}
	return domain.Response{}, false, nil
}

func (s *Store) InsertResponse(_ context.Context, r domain.Response) (domain.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keys[r.Key()]; exists {
		return domain.Response{}, domain.ErrDuplicateSubmission
	}
	s.seq++
	r.ID = s.seq
	r.CreatedAt = s.clock()
	s.responses = append(s.responses, r)
	s.keys[r.Key()] = r.ID
	return r, nil
}

func (s *Store) ListResponses(_ context.Context, filter domain.ResponseFilter) ([]domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Response, 0)
	for _, r := range s.responses {
		if r.CaseID != filter.CaseID {
			continue
		}
		if filter.SessionID != "" && r.SessionID != filter.SessionID {
			continue
		}
		out = append(out, r)
	}
	// an injected clock may run backwards
	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *Store) DeleteResponses(_ context.Context, scope domain.Scope) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.responses[:0]
	deleted := 0
	for _, r := range s.responses {
		if r.CaseID == scope.CaseID && r.SessionID == scope.SessionID {
			delete(s.keys, r.Key())
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.responses = kept
	return deleted, nil
}
