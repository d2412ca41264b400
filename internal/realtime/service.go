package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"caseboard-service/internal/domain"
)

// Options tune replicas.
type Options struct {
	ReconnectDelay time.Duration
	Buffer         int
}

func (o Options) withDefaults() Options {
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 2 * time.Second
	}
	if o.Buffer <= 0 {
		o.Buffer = 8
	}
	return o
}

// Service shares one replica per scope between every local subscriber. A replica starts
// with its first subscriber and stops with its last.
type Service struct {
	source Source
	feed   Feed
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	replicas map[domain.Scope]*replica
}

func NewService(source Source, feed Feed, opts Options) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		source:   source,
		feed:     feed,
		opts:     opts.withDefaults(),
		ctx:      ctx,
		cancel:   cancel,
		replicas: make(map[domain.Scope]*replica),
	}
}

// Subscribe returns a channel of snapshots for a scope, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Service) Subscribe(ctx context.Context, scope domain.Scope) (<-chan Snapshot, func(), error) {
	cfg, err := s.source.CaseConfig(ctx, scope.CaseID)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := cfg.Session(scope.SessionID); !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, scope)
	}

	s.mu.Lock()
	rep, ok := s.replicas[scope]
	if !ok {
		rep = newReplica(scope, s.source, s.feed, s.opts)
		s.replicas[scope] = rep
		rep.start(s.ctx)
	}
	rep.refs++
	s.mu.Unlock()

	ch, unsubscribe := rep.subscribe()
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			unsubscribe()
			s.release(scope, rep)
		})
	}
	return ch, cancel, nil
}

// Replicas returns the number of running replicas.
func (s *Service) Replicas() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replicas)
}

// Close stops every replica.
func (s *Service) Close() {
	s.cancel()
	s.mu.Lock()
	replicas := s.replicas
	s.replicas = make(map[domain.Scope]*replica)
	s.mu.Unlock()
	for _, rep := range replicas {
		rep.stop()
	}
}

func (s *Service) release(scope domain.Scope, rep *replica) {
	s.mu.Lock()
	rep.refs--
	last := rep.refs == 0 && s.replicas[scope] == rep
	if last {
		delete(s.replicas, scope)
	}
	s.mu.Unlock()
	if last {
		rep.stop()
	}
}
