package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes work on one conversation. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker is a SET NX lock with a TTL so a crashed holder cannot block a
// user forever. Only the holder's token can release it.
type RedisLocker struct {
	redis *redis.Client
	ttl   time.Duration
	wait  time.Duration
	poll  time.Duration
}

// NewRedisLocker holds locks for at most ttl and waits at most wait for a
// busy lock before giving up with a ConflictError.
func NewRedisLocker(redisClient *redis.Client, ttl, wait time.Duration) *RedisLocker {
	if wait <= 0 || wait > ttl {
		wait = ttl
	}
	return &RedisLocker{
		redis: redisClient,
		ttl:   ttl,
		wait:  wait,
		poll:  100 * time.Millisecond,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}

		if time.Now().After(deadline) {
			return nil, &ConflictError{Message: "Another request for this conversation is still running"}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}

func (l *RedisLocker) release(key, token string) {
	// The request context may already be cancelled here.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.redis, []string{key}, token).Err(); err != nil {
		log.Printf("WARNING: failed to release lock %s: %v", key, err)
	}
}

func chatLockKey(userID uuid.UUID) string {
	return "chat_lock:" + userID.String()
}
