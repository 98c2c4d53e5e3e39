package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"qiyana_splitledger/internal/models"

	"github.com/redis/go-redis/v9"
)

// Gate publishes the cutoff of an in-flight netting pass so that expenses
// dated on or before it are turned away until the pass finishes.
type Gate interface {
	// Open publishes cutoff. The returned func withdraws it.
	Open(ctx context.Context, cutoff time.Time) (func(), error)
	// Admit reports whether an expense dated date may be written now. When
	// it may, the returned func must be called once the write is done.
	Admit(ctx context.Context, date time.Time) (bool, func(), error)
}

// LocalGate is an in-process Gate. Open waits for admitted writes to finish
// before publishing the cutoff, so no admitted write can land inside a pass.
type LocalGate struct {
	mu     sync.RWMutex
	cutoff *time.Time
}

func NewLocalGate() *LocalGate { return &LocalGate{} }

func (g *LocalGate) Open(_ context.Context, cutoff time.Time) (func(), error) {
	day := models.Day(cutoff)
	g.mu.Lock()
	g.cutoff = &day
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		g.cutoff = nil
		g.mu.Unlock()
	}, nil
}

func (g *LocalGate) Admit(_ context.Context, date time.Time) (bool, func(), error) {
	g.mu.RLock()
	if g.cutoff != nil && !models.Day(date).After(*g.cutoff) {
		g.mu.RUnlock()
		return false, nil, nil
	}
	return true, g.mu.RUnlock, nil
}

// RedisGate shares the cutoff across instances. Admission is a point-in-time
// check; writes that slip in during a pass survive it because netting only
// deletes the entries it read.
type RedisGate struct {
	local  *LocalGate
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisGate(client *redis.Client, ttl time.Duration) *RedisGate {
	return &RedisGate{local: NewLocalGate(), client: client, key: "ledger:netting:cutoff", ttl: ttl}
}

func (g *RedisGate) Open(ctx context.Context, cutoff time.Time) (func(), error) {
	closeLocal, _ := g.local.Open(ctx, cutoff)
	if err := g.client.Set(ctx, g.key, models.Day(cutoff).Format(time.DateOnly), g.ttl).Err(); err != nil {
		closeLocal()
		return nil, fmt.Errorf("publish netting cutoff: %w", err)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		g.client.Del(ctx, g.key)
		closeLocal()
	}, nil
}

func (g *RedisGate) Admit(ctx context.Context, date time.Time) (bool, func(), error) {
	ok, done, err := g.local.Admit(ctx, date)
	if err != nil || !ok {
		return ok, done, err
	}

	raw, err := g.client.Get(ctx, g.key).Result()
	if err == redis.Nil {
		return true, done, nil
	}
	if err != nil {
		done()
		return false, nil, fmt.Errorf("read netting cutoff: %w", err)
	}

	cutoff, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		done()
		return false, nil, fmt.Errorf("parse netting cutoff %q: %w", raw, err)
	}
	if !models.Day(date).After(cutoff) {
		done()
		return false, nil, nil
	}
	return true, done, nil
}
