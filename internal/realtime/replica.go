package realtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"caseboard-service/internal/domain"
	"github.com/rs/zerolog/log"
)

var errStreamClosed = errors.New("change stream closed")

// replica keeps one scope's cache in step with the store and fans snapshots out to
// every local subscriber.
type replica struct {
	scope  domain.Scope
	source Source
	feed   Feed
	opts   Options

	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	snap        Snapshot
	subscribers map[chan Snapshot]struct{}
	refs        int
}

func newReplica(scope domain.Scope, source Source, feed Feed, opts Options) *replica {
	return &replica{
		scope:       scope,
		source:      source,
		feed:        feed,
		opts:        opts,
		done:        make(chan struct{}),
		snap:        Snapshot{Scope: scope, Responses: []domain.Response{}},
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

func (r *replica) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	go r.run(ctx)
}

func (r *replica) stop() {
	r.cancel()
	<-r.done
}

func (r *replica) run(ctx context.Context) {
	defer close(r.done)
	for {
		err := r.sync(ctx)
		if ctx.Err() != nil {
			return
		}
		r.mu.Lock()
		r.snap.Connected = false
		r.broadcastLocked()
		r.mu.Unlock()
		log.Warn().Err(err).Str("case", r.scope.CaseID).Str("session", r.scope.SessionID).
			Dur("retry_in", r.opts.ReconnectDelay).Msg("replica disconnected")

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.opts.ReconnectDelay):
		}
	}
}

// sync subscribes before bootstrapping so that events raised during the bootstrap queries
// are buffered and merged afterwards. Merging is idempotent.
func (r *replica) sync(ctx context.Context) error {
	events, unsubscribe, err := r.feed.Subscribe(ctx, r.scope.CaseID)
	if err != nil {
		r.fail(err)
		return fmt.Errorf("subscribe: %w", err)
	}
	defer unsubscribe()

	if err := r.bootstrap(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return errStreamClosed
			}
			if err := r.apply(ctx, ev); err != nil {
				return err
			}
		}
	}
}

func (r *replica) bootstrap(ctx context.Context) error {
	fresh, err := Fetch(ctx, r.source, r.scope)
	if err != nil {
		r.fail(err)
		return err
	}
	fresh.Connected = true

	r.mu.Lock()
	r.snap = fresh
	r.broadcastLocked()
	r.mu.Unlock()
	log.Info().Str("case", r.scope.CaseID).Str("session", r.scope.SessionID).
		Int("responses", len(fresh.Responses)).Msg("replica bootstrapped")
	return nil
}

func (r *replica) fail(err error) {
	r.mu.Lock()
	r.snap.Connected = false
	r.snap.Err = fmt.Errorf("%w: %v", domain.ErrConnection, err)
	r.broadcastLocked()
	r.mu.Unlock()
}

func (r *replica) apply(ctx context.Context, ev domain.ChangeEvent) error {
	switch ev.Table {
	case domain.TableSessionState:
		if ev.SessionID != r.scope.SessionID {
			return nil
		}
		if ev.State == nil {
			state, err := r.source.SessionState(ctx, r.scope)
			if err != nil {
				return fmt.Errorf("refetch state: %w", err)
			}
			ev.State = &state
		}
		r.applyState(*ev.State)
	case domain.TableResponses:
		if ev.SessionID != r.scope.SessionID {
			return nil
		}
		// events without row detail (bulk deletes, truncated payloads) force a refetch
		if ev.Type == domain.EventInsert && ev.Response != nil {
			return r.confirmInsert(ctx, *ev.Response)
		}
		return r.resyncResponses(ctx)
	case domain.TableCaseConfig:
		return r.reloadConfig(ctx)
	}
	return nil
}

// applyState replaces the local state unless the event is older than what is cached.
func (r *replica) applyState(state domain.SessionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snap.State != nil && state.Version < r.snap.State.Version {
		return
	}
	r.snap.State = &state
	r.broadcastLocked()
}

// confirmInsert merges row only if the store still has it. An insert event can trail the
// delete event of a reset that removed the row.
func (r *replica) confirmInsert(ctx context.Context, row domain.Response) error {
	if r.cached(row.ID) {
		return nil
	}
	ok, err := r.source.HasResponse(ctx, row)
	if err != nil {
		return fmt.Errorf("confirm response %d: %w", row.ID, err)
	}
	if !ok {
		log.Debug().Str("case", r.scope.CaseID).Str("session", r.scope.SessionID).
			Int64("response", row.ID).Msg("dropped insert of removed response")
		return nil
	}
	r.applyInsert(row)
	return nil
}

func (r *replica) cached(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.snap.Responses {
		if existing.ID == id {
			return true
		}
	}
	return false
}

func (r *replica) applyInsert(row domain.Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.snap.Responses {
		if existing.ID == row.ID {
			return
		}
	}
	rows := r.snap.Responses
	i := sort.Search(len(rows), func(i int) bool { return row.Before(rows[i]) })
	rows = append(rows, domain.Response{})
	copy(rows[i+1:], rows[i:])
	rows[i] = row
	r.snap.Responses = rows
	r.broadcastLocked()
}

// resyncResponses drops the cached responses and refetches them. Delete events carry no
// row identity.
func (r *replica) resyncResponses(ctx context.Context) error {
	rows, err := r.source.Responses(ctx, r.scope)
	if err != nil {
		return fmt.Errorf("resync responses: %w", err)
	}
	r.mu.Lock()
	r.snap.Responses = rows
	r.broadcastLocked()
	r.mu.Unlock()
	log.Info().Str("case", r.scope.CaseID).Str("session", r.scope.SessionID).
		Int("responses", len(rows)).Msg("responses resynced")
	return nil
}

func (r *replica) reloadConfig(ctx context.Context) error {
	r.source.InvalidateConfig(ctx, r.scope.CaseID)
	cfg, err := r.source.CaseConfig(ctx, r.scope.CaseID)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	r.mu.Lock()
	r.snap.Config = cfg
	r.broadcastLocked()
	r.mu.Unlock()
	return nil
}

func (r *replica) subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, r.opts.Buffer)

	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	ch <- r.snap.clone()
	r.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			if _, ok := r.subscribers[ch]; ok {
				delete(r.subscribers, ch)
				close(ch)
			}
			r.mu.Unlock()
		})
	}
	return ch, cancel
}

// broadcastLocked never blocks: a subscriber that has not drained its channel loses
// its oldest pending snapshot.
func (r *replica) broadcastLocked() {
	for ch := range r.subscribers {
		snap := r.snap.clone()
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
