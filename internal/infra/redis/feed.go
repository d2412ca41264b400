package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"caseboard-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Feed carries change events between instances over Redis pub/sub, one channel per case:
// PUBLISH case:{caseID}:changes {json}
type Feed struct {
	client *redis.Client
	buffer int
}

func NewFeed(client *redis.Client, buffer int) *Feed {
	if buffer <= 0 {
		buffer = 64
	}
	return &Feed{client: client, buffer: buffer}
}

func (f *Feed) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel(ev.CaseID), payload).Err(); err != nil {
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// Subscribe returns once the subscription is confirmed by the server, so events
// published after it returns are delivered.
func (f *Feed) Subscribe(ctx context.Context, caseID string) (<-chan domain.ChangeEvent, func(), error) {
	pubsub := f.client.Subscribe(ctx, f.channel(caseID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", caseID, err)
	}

	out := make(chan domain.ChangeEvent, f.buffer)
	done := make(chan struct{})
	go func() {
		defer close(out)
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var ev domain.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Warn().Err(err).Str("case", caseID).Msg("decode change event")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				case <-done:
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}
	return out, cancel, nil
}

func (f *Feed) channel(caseID string) string {
	return "case:" + caseID + ":changes"
}
