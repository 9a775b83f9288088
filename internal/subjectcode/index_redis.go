package subjectcode

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// indexKey is the Redis set holding every code ever observed as assigned.
const indexKey = "cohort:subject_codes"

// RedisIndex accelerates allocation probing with a Redis set of assigned
// codes. Membership is a fast positive: a hit means taken, a miss falls
// through to the authoritative store lookup. The index is advisory only;
// uniqueness is still enforced by the store's constraint at commit time, so a
// stale or unavailable index can cost extra probes but never a duplicate.
type RedisIndex struct {
	client   *redis.Client
	fallback ExistsFunc
	logger   *slog.Logger
}

func NewRedisIndex(client *redis.Client, fallback ExistsFunc, logger *slog.Logger) *RedisIndex {
	return &RedisIndex{client: client, fallback: fallback, logger: logger}
}

// Exists satisfies ExistsFunc.
func (i *RedisIndex) Exists(ctx context.Context, code string) (bool, error) {
	member, err := i.client.SIsMember(ctx, indexKey, code).Result()
	if err != nil {
		// Degrade to the store lookup; the index is an optimization.
		i.logger.WarnContext(ctx, "subject code index unavailable, falling back to store", "error", err)
		return i.fallback(ctx, code)
	}
	if member {
		return true, nil
	}
	return i.fallback(ctx, code)
}

// Observe records a successfully claimed code so later probes short-circuit.
// Best effort: a failed write only loses the optimization.
func (i *RedisIndex) Observe(ctx context.Context, code string) {
	if err := i.client.SAdd(ctx, indexKey, code).Err(); err != nil {
		i.logger.WarnContext(ctx, "failed to index subject code", "code", code, "error", err)
	}
}
