package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"caseboard-service/internal/caseconfig"
	"caseboard-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ConfigRepository caches resolved case configurations in Redis and falls back to a loader
// on cache miss. Entries are stored as: SET case:{caseID}:config {json}
type ConfigRepository struct {
	client *redis.Client
	loader caseconfig.Loader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewConfigRepository(client *redis.Client, loader caseconfig.Loader, ttl time.Duration) *ConfigRepository {
	return &ConfigRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ConfigRepository) GetCaseConfig(ctx context.Context, caseID string) (domain.CaseConfig, error) {
	if cfg, ok := r.cached(ctx, caseID); ok {
		return cfg, nil
	}

	result, err, _ := r.sf.Do(caseID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if cfg, ok := r.cached(ctx, caseID); ok {
			return cfg, nil
		}

		cfg, err := r.loader.LoadCaseConfig(ctx, caseID)
		if err != nil {
			return domain.CaseConfig{}, err
		}

		raw, err := json.Marshal(cfg)
		if err == nil {
			err = r.client.Set(ctx, r.key(caseID), raw, r.ttlWithJitter()).Err()
		}
		if err != nil {
			log.Warn().Err(err).Str("case", caseID).Msg("cache case config")
		}
		return cfg, nil
	})
	if err != nil {
		return domain.CaseConfig{}, err
	}
	return result.(domain.CaseConfig), nil
}

// Invalidate deletes the cached entry; every instance sees the next read miss.
func (r *ConfigRepository) Invalidate(ctx context.Context, caseID string) {
	if err := r.client.Del(ctx, r.key(caseID)).Err(); err != nil {
		log.Warn().Err(err).Str("case", caseID).Msg("invalidate case config")
	}
}

func (r *ConfigRepository) cached(ctx context.Context, caseID string) (domain.CaseConfig, bool) {
	raw, err := r.client.Get(ctx, r.key(caseID)).Bytes()
	if err != nil {
		return domain.CaseConfig{}, false
	}
	var cfg domain.CaseConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return domain.CaseConfig{}, false
	}
	return cfg, true
}

func (r *ConfigRepository) key(caseID string) string {
	return "case:" + caseID + ":config"
}

func (r *ConfigRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
