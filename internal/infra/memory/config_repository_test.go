package memory

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"caseboard-service/internal/caseconfig"
	"caseboard-service/internal/domain"
)

func TestConfigRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		Loader: NewStaticLoader(map[string]domain.CaseConfig{
			"case-1": caseconfig.Default("case-1"),
		}),
	}
	repo := NewConfigRepository(loader, time.Minute)

	if _, err := repo.GetCaseConfig(context.Background(), "case-1"); err != nil {
		t.Fatalf("get config: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls.Load())
	}

	if _, err := repo.GetCaseConfig(context.Background(), "case-1"); err != nil {
		t.Fatalf("get config 2: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls.Load())
	}

	repo.Invalidate(context.Background(), "case-1")
	if _, err := repo.GetCaseConfig(context.Background(), "case-1"); err != nil {
		t.Fatalf("get config 3: %v", err)
	}
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.calls.Load())
	}
}

func TestConfigRepositoryFallsBackToDefaults(t *testing.T) {
	repo := NewConfigRepository(caseconfig.WithDefaults{Loader: NewStaticLoader(nil)}, time.Minute)
	cfg, err := repo.GetCaseConfig(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("expected defaults, got %v", err)
	}
	if cfg.ID != "unknown" || len(cfg.Steps) == 0 {
		t.Fatalf("unexpected fallback config %+v", cfg)
	}
}

func TestConfigRepositoryExpires(t *testing.T) {
	loader := &countingLoader{Loader: NewStaticLoader(map[string]domain.CaseConfig{"c": caseconfig.Default("c")})}
	repo := NewConfigRepository(loader, time.Minute)
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetCaseConfig(context.Background(), "c")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetCaseConfig(context.Background(), "c")
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls.Load())
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
