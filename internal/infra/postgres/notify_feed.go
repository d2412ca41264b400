package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"caseboard-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
)

// ChangesChannel is the NOTIFY channel every instance listens on.
const ChangesChannel = "caseboard_changes"

// maxPayload stays below the 8000 byte NOTIFY payload limit.
const maxPayload = 7900

// NotifyFeed carries change events over LISTEN/NOTIFY. Each subscription holds one
// pooled connection for its lifetime.
type NotifyFeed struct {
	pool   *pgxpool.Pool
	buffer int
}

func NewNotifyFeed(pool *pgxpool.Pool, buffer int) *NotifyFeed {
	if buffer <= 0 {
		buffer = 64
	}
	return &NotifyFeed{pool: pool, buffer: buffer}
}

// Publish sends ev on the changes channel. An event too large for a NOTIFY payload is sent
// without its rows; subscribers refetch instead.
func (f *NotifyFeed) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	if len(payload) > maxPayload {
		ev.State, ev.Response, ev.OldResponse = nil, nil, nil
		if payload, err = json.Marshal(ev); err != nil {
			return fmt.Errorf("encode change event: %w", err)
		}
	}
	if _, err := f.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, ChangesChannel, string(payload)); err != nil {
		return fmt.Errorf("notify change event: %w", err)
	}
	return nil
}

// Subscribe returns once LISTEN has been issued, so notifications committed after it
// returns are delivered. Events of other cases are filtered out.
func (f *NotifyFeed) Subscribe(ctx context.Context, caseID string) (<-chan domain.ChangeEvent, func(), error) {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ChangesChannel}.Sanitize()); err != nil {
		conn.Release()
		return nil, nil, fmt.Errorf("listen: %w", err)
	}

	listenCtx, stop := context.WithCancel(ctx)
	out := make(chan domain.ChangeEvent, f.buffer)
	go func() {
		defer close(out)
		defer func() {
			// the connection may be unusable after a cancelled wait; the pool discards it then
			_, _ = conn.Exec(context.Background(), "UNLISTEN *")
			conn.Release()
		}()
		for {
			n, err := conn.Conn().WaitForNotification(listenCtx)
			if err != nil {
				if listenCtx.Err() == nil {
					log.Warn().Err(err).Str("case", caseID).Msg("wait for notification")
				}
				return
			}
			var ev domain.ChangeEvent
			if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
				log.Warn().Err(err).Str("case", caseID).Msg("decode change event")
				continue
			}
			if ev.CaseID != caseID {
				continue
			}
			select {
			case out <- ev:
			case <-listenCtx.Done():
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() { once.Do(stop) }
	return out, cancel, nil
}
