package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"caseboard-service/internal/caseconfig"
	"caseboard-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ConfigRepository caches case configurations with TTL to avoid repeated store hits.
type ConfigRepository struct {
	loader caseconfig.Loader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedConfig
}

type cachedConfig struct {
	cfg       domain.CaseConfig
	expiresAt time.Time
}

func NewConfigRepository(loader caseconfig.Loader, ttl time.Duration) *ConfigRepository {
	return &ConfigRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedConfig),
	}
}

func (r *ConfigRepository) GetCaseConfig(ctx context.Context, caseID string) (domain.CaseConfig, error) {
	if cfg, ok := r.cached(caseID); ok {
		return cfg, nil
	}

	result, err, _ := r.sf.Do(caseID, func() (interface{}, error) {
		if cfg, ok := r.cached(caseID); ok {
			return cfg, nil
		}

		cfg, err := r.loader.LoadCaseConfig(ctx, caseID)
		if err != nil {
			return domain.CaseConfig{}, err
		}

		r.mu.Lock()
		r.cache[caseID] = cachedConfig{
			cfg:       cfg,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return cfg, nil
	})
	if err != nil {
		return domain.CaseConfig{}, err
	}
	return result.(domain.CaseConfig), nil
}

// Invalidate drops the cached entry so the next read reloads it.
func (r *ConfigRepository) Invalidate(_ context.Context, caseID string) {
	r.mu.Lock()
	delete(r.cache, caseID)
	r.mu.Unlock()
}

func (r *ConfigRepository) cached(caseID string) (domain.CaseConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[caseID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.CaseConfig{}, false
	}
	return entry.cfg, true
}

// StaticLoader is a loader backed by an in-memory map (useful for tests/demos).
type StaticLoader struct {
	configs map[string]domain.CaseConfig
}

func NewStaticLoader(configs map[string]domain.CaseConfig) *StaticLoader {
	return &StaticLoader{configs: configs}
}

func (l *StaticLoader) LoadCaseConfig(_ context.Context, caseID string) (domain.CaseConfig, error) {
	if cfg, ok := l.configs[caseID]; ok {
		return cfg, nil
	}
	return domain.CaseConfig{}, domain.ErrCaseNotFound
}

func (r *ConfigRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
