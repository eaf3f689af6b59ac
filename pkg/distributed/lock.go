package distributed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock is held by someone else.
var ErrNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the key only when this holder still owns it, so a
// slow holder cannot release a lock already taken over after expiry.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Lock is a Redis-backed mutex. The value identifies the holder; the TTL
// bounds how long a crashed holder can keep others out.
type Lock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

func NewLock(client *redis.Client, key string, ttl time.Duration) *Lock {
	b := make([]byte, 16)
	rand.Read(b)
	return &Lock{
		client: client,
		key:    key,
		value:  hex.EncodeToString(b),
		ttl:    ttl,
	}
}

// TryAcquire attempts to take the lock once.
func (l *Lock) TryAcquire(ctx context.Context) error {
	acquired, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return err
	}
	if !acquired {
		return ErrNotAcquired
	}
	return nil
}

// Acquire polls until the lock is taken or ctx expires.
func (l *Lock) Acquire(ctx context.Context) error {
	for {
		err := l.TryAcquire(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotAcquired) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Release frees the lock if this holder still owns it.
func (l *Lock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}
