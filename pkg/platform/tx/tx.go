// Package tx provides the transactional boundary shared by the volunteer and
// audit stores. A business mutation and its audit record must commit together
// or not at all; Runner is the collaborator the workflow uses to get that
// guarantee without knowing the persistence technology.
package tx

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner executes fn inside one atomic boundary. Implementations either wrap
// a database transaction or, in memory, a coarse lock.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner runs fn inside a *sql.Tx placed in the context, so stores built on
// database/sql pick it up via From.
type SQLRunner struct {
	DB *sql.DB
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	sqlTx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// numShards spreads in-memory transactions across mutexes hashed by entity
// key, reducing contention under concurrent load.
const numShards = 128

// defaultTimeout bounds how long a single in-memory transaction may run.
const defaultTimeout = 5 * time.Second

// ShardedRunner provides the in-memory transactional boundary. Operations for
// the same entity serialize on one shard; unrelated entities proceed in
// parallel.
type ShardedRunner struct {
	shards  [numShards]sync.Mutex
	Timeout time.Duration
}

func (r *ShardedRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := r.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := r.selectShard(ctx)
	r.shards[shard].Lock()
	defer r.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// selectShard picks a shard based on the entity key from context, or defaults
// to shard 0.
func (r *ShardedRunner) selectShard(ctx context.Context) int {
	if key, ok := ctx.Value(entityKeyCtx).(string); ok && key != "" {
		return int(fnvHash(key) % numShards)
	}
	return 0
}

type entityKey struct{}

var entityKeyCtx = entityKey{}

// WithEntityKey tags the context with the entity a transaction is scoped to,
// so ShardedRunner can pick a stable shard.
func WithEntityKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, entityKeyCtx, key)
}

// fnvHash is FNV-1a over the entity key.
func fnvHash(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
