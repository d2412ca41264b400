package memory

import (
	"context"
	"sync"

	"caseboard-service/internal/domain"
	"github.com/rs/zerolog/log"
)

// Hub fans change events out to in-process subscribers, keyed by case.
// A subscriber whose buffer is full is evicted: its channel is closed and it must resync.
type Hub struct {
	mu     sync.Mutex
	buffer int
	subs   map[string]map[*hubSubscriber]struct{}
}

type hubSubscriber struct {
	ch   chan domain.ChangeEvent
	done chan struct{}
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{buffer: buffer, subs: make(map[string]map[*hubSubscriber]struct{})}
}

func (h *Hub) Publish(_ context.Context, ev domain.ChangeEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[ev.CaseID] {
		select {
		case sub.ch <- ev:
		default:
			log.Warn().Str("case", ev.CaseID).Msg("evicting slow feed subscriber")
			h.removeLocked(ev.CaseID, sub)
		}
	}
	return nil
}

// Subscribe registers for every event of a case until cancel is called or ctx ends.
func (h *Hub) Subscribe(ctx context.Context, caseID string) (<-chan domain.ChangeEvent, func(), error) {
	sub := &hubSubscriber{
		ch:   make(chan domain.ChangeEvent, h.buffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	if h.subs[caseID] == nil {
		h.subs[caseID] = make(map[*hubSubscriber]struct{})
	}
	h.subs[caseID][sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		h.removeLocked(caseID, sub)
		h.mu.Unlock()
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-sub.done:
		}
	}()
	return sub.ch, cancel, nil
}

func (h *Hub) removeLocked(caseID string, sub *hubSubscriber) {
	subs, ok := h.subs[caseID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.subs, caseID)
	}
	close(sub.ch)
	close(sub.done)
}
