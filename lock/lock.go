// lock/lock.go
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when another process holds the lock.
var ErrHeld = errors.New("run lock held by another process")

// Locker serialises vendor runs across processes.
type Locker interface {
	// Acquire takes key for ttl and returns the function that releases it.
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (release func(context.Context) error, err error)
}

// Nop always grants the lock.
type Nop struct{}

func (Nop) Acquire(context.Context, string, string, time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// releaseScript deletes the key only while it still belongs to the owner,
// so an expired lock retaken by another run is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis implements Locker with SET NX and an expiry.
type Redis struct {
	client redis.Cmdable
	prefix string
}

func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis at %s is unreachable: %w", addr, err)
	}
	return rdb, nil
}

func (r *Redis) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (func(context.Context) error, error) {
	full := r.prefix + key
	ok, err := r.client.SetNX(ctx, full, owner, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", full, err)
	}
	if !ok {
		holder, _ := r.client.Get(ctx, full).Result()
		return nil, fmt.Errorf("%w: %s (holder %s)", ErrHeld, full, holder)
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, r.client, []string{full}, owner).Err(); err != nil {
			return fmt.Errorf("failed to release lock %s: %w", full, err)
		}
		return nil
	}, nil
}
