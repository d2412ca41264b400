package redis

import (
	"context"
	"strconv"
	"time"

	"caseboard-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const minPresenceTTL = time.Minute

// Presence counts connected viewers per scope across instances.
// Each connection is a member of the sorted set case:{caseID}:session:{sessionID}:viewers
// scored by its last heartbeat in unix milliseconds. Members silent for longer than ttl
// no longer count, so a crashed instance cannot leave the count inflated.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewPresence(client *redis.Client, ttl time.Duration) *Presence {
	if ttl < minPresenceTTL {
		ttl = minPresenceTTL
	}
	return &Presence{client: client, ttl: ttl, now: time.Now}
}

// HeartbeatEvery is how often a connected viewer must call Heartbeat to keep counting.
func (p *Presence) HeartbeatEvery() time.Duration {
	return p.ttl / 4
}

// Heartbeat records conn as connected and returns the live viewer count of the scope.
func (p *Presence) Heartbeat(ctx context.Context, scope domain.Scope, conn string) (int64, error) {
	now := p.now()
	key := p.key(scope)
	pipe := p.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: conn})
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+p.cutoff(now))
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return count.Val(), nil
}

// Leave removes conn from the scope.
func (p *Presence) Leave(ctx context.Context, scope domain.Scope, conn string) error {
	return p.client.ZRem(ctx, p.key(scope), conn).Err()
}

// Viewers returns the number of connections with a recent heartbeat.
func (p *Presence) Viewers(ctx context.Context, scope domain.Scope) (int64, error) {
	return p.client.ZCount(ctx, p.key(scope), p.cutoff(p.now()), "+inf").Result()
}

func (p *Presence) cutoff(now time.Time) string {
	return strconv.FormatInt(now.Add(-p.ttl).UnixMilli(), 10)
}

func (p *Presence) key(scope domain.Scope) string {
	return "case:" + scope.CaseID + ":session:" + scope.SessionID + ":viewers"
}
