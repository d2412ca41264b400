package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"caseboard-service/internal/caseconfig"
	"caseboard-service/internal/domain"
	"caseboard-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestConfigRepositoryCachesInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := newClient(mr)

	loader := &countingLoader{
		Loader: memory.NewStaticLoader(map[string]domain.CaseConfig{
			"case-1": caseconfig.Default("case-1"),
		}),
	}
	repo := NewConfigRepository(client, loader, time.Minute)

	cfg, err := repo.GetCaseConfig(context.Background(), "case-1")
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls.Load())
	}
	if !mr.Exists("case:case-1:config") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("case:case-1:config"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("unexpected ttl %s", ttl)
	}

	// Second call should hit cache, loader not incremented.
	cached, _ := repo.GetCaseConfig(context.Background(), "case-1")
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls.Load())
	}
	if len(cached.Steps) != len(cfg.Steps) || cached.Steps[4].PollOptions[1] != "Option B" {
		t.Fatalf("cached config differs: %+v", cached)
	}

	repo.Invalidate(context.Background(), "case-1")
	if mr.Exists("case:case-1:config") {
		t.Fatalf("expected redis key to be removed")
	}
	_, _ = repo.GetCaseConfig(context.Background(), "case-1")
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls.Load())
	}
}

func TestConfigRepositoryPropagatesNotFound(t *testing.T) {
	mr := miniredis.RunT(t)
	repo := NewConfigRepository(newClient(mr), memory.NewStaticLoader(nil), time.Minute)
	if _, err := repo.GetCaseConfig(context.Background(), "missing"); !errors.Is(err, domain.ErrCaseNotFound) {
		t.Fatalf("expected case not found, got %v", err)
	}
	if mr.Exists("case:missing:config") {
		t.Fatalf("misses must not be cached")
	}
}

func TestFeedRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := newClient(mr)
	feed := NewFeed(client, 8)
	ctx := context.Background()

	events, cancel, err := feed.Subscribe(ctx, "case-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	answer := "hello"
	row := domain.Response{ID: 7, CaseID: "case-1", SessionID: "A", Step: 1, StudentName: "ana", Answer: &answer}
	if err := feed.Publish(ctx, domain.CaseConfigChanged("case-2")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := feed.Publish(ctx, domain.ResponseInserted(row)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Table != domain.TableResponses || ev.Type != domain.EventInsert || ev.Response == nil {
			t.Fatalf("unexpected event %+v", ev)
		}
		if ev.Response.ID != 7 || *ev.Response.Answer != "hello" || ev.SessionID != "A" {
			t.Fatalf("unexpected payload %+v", ev.Response)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}

	cancel()
	select {
	case _, ok := <-events:
		if ok {
			t.Fatalf("expected closed stream after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stream not closed after cancel")
	}
}

func TestPresenceCountsViewers(t *testing.T) {
	mr := miniredis.RunT(t)
	presence := NewPresence(newClient(mr), time.Minute)
	ctx := context.Background()
	scope := domain.NewScope("case-1", "a")

	if n, _ := presence.Heartbeat(ctx, scope, "conn-1"); n != 1 {
		t.Fatalf("expected 1 viewer, got %d", n)
	}
	if n, _ := presence.Heartbeat(ctx, scope, "conn-2"); n != 2 {
		t.Fatalf("expected 2 viewers, got %d", n)
	}
	if n, _ := presence.Heartbeat(ctx, scope, "conn-1"); n != 2 {
		t.Fatalf("repeated heartbeat must not add a viewer, got %d", n)
	}
	if !mr.Exists("case:case-1:session:A:viewers") {
		t.Fatalf("expected redis key to be set")
	}
	_ = presence.Leave(ctx, scope, "conn-1")
	if n, _ := presence.Viewers(ctx, scope); n != 1 {
		t.Fatalf("expected 1 viewer left, got %d", n)
	}
	_ = presence.Leave(ctx, scope, "conn-2")
	if n, err := presence.Viewers(ctx, scope); err != nil || n != 0 {
		t.Fatalf("expected zero viewers, got %d %v", n, err)
	}
	// leaving twice never drives the count negative
	_ = presence.Leave(ctx, scope, "conn-2")
	if n, _ := presence.Heartbeat(ctx, scope, "conn-3"); n != 1 {
		t.Fatalf("expected 1 viewer after rejoin, got %d", n)
	}
}

func TestPresenceExpiresSilentViewers(t *testing.T) {
	mr := miniredis.RunT(t)
	presence := NewPresence(newClient(mr), time.Minute)
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	presence.now = func() time.Time { return clock }
	ctx := context.Background()
	scope := domain.NewScope("case-1", "B")

	_, _ = presence.Heartbeat(ctx, scope, "crashed")
	_, _ = presence.Heartbeat(ctx, scope, "alive")

	for i := 0; i < 4; i++ {
		clock = clock.Add(presence.HeartbeatEvery())
		if _, err := presence.Heartbeat(ctx, scope, "alive"); err != nil {
			t.Fatalf("heartbeat: %v", err)
		}
	}
	clock = clock.Add(time.Second)
	if n, _ := presence.Viewers(ctx, scope); n != 1 {
		t.Fatalf("expected only the live connection to count, got %d", n)
	}
	if n, _ := presence.Heartbeat(ctx, scope, "alive"); n != 1 {
		t.Fatalf("expected silent member pruned, got %d", n)
	}
}

type countingLoader struct {
	caseconfig.Loader
	calls atomic.Int32
}

func (l *countingLoader) LoadCaseConfig(ctx context.Context, caseID string) (domain.CaseConfig, error) {
	l.calls.Add(1)
	return l.Loader.LoadCaseConfig(ctx, caseID)
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
