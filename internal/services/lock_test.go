package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestLocker(t *testing.T, ttl, wait time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	l := NewRedisLocker(client, ttl, wait)
	l.poll = 5 * time.Millisecond
	return l, mr
}

func TestRedisLocker_BusyKeyConflicts(t *testing.T) {
	l, mr := newTestLocker(t, time.Minute, 50*time.Millisecond)
	ctx := context.Background()
	key := chatLockKey(uuid.New())

	unlock, err := l.Lock(ctx, key)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if !mr.Exists(key) {
		t.Fatalf("expected %s to be set", key)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected lock TTL set, got %s", ttl)
	}

	_, err = l.Lock(ctx, key)
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError for held lock, got %v", err)
	}

	unlock()
	if mr.Exists(key) {
		t.Fatalf("expected release to delete the key")
	}

	unlockAgain, err := l.Lock(ctx, key)
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	unlockAgain()
}

func TestRedisLocker_WaitsForRelease(t *testing.T) {
	l, _ := newTestLocker(t, time.Minute, time.Second)
	ctx := context.Background()
	key := chatLockKey(uuid.New())

	unlock, err := l.Lock(ctx, key)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	go func() {
		time.Sleep(30 * time.Millisecond)
		unlock()
	}()

	start := time.Now()
	unlockSecond, err := l.Lock(ctx, key)
	if err != nil {
		t.Fatalf("expected second lock once the first is released, got %v", err)
	}
	defer unlockSecond()

	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("second lock should have waited for the first")
	}
}

func TestRedisLocker_ContextCancelledWhileWaiting(t *testing.T) {
	l, _ := newTestLocker(t, time.Minute, time.Minute)
	key := chatLockKey(uuid.New())

	unlock, err := l.Lock(context.Background(), key)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = l.Lock(ctx, key)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestRedisLocker_StaleHolderCannotRelease(t *testing.T) {
	l, mr := newTestLocker(t, time.Second, 50*time.Millisecond)
	ctx := context.Background()
	key := chatLockKey(uuid.New())

	staleUnlock, err := l.Lock(ctx, key)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}

	// The first holder overruns its TTL and someone else takes the lock.
	mr.FastForward(2 * time.Second)
	currentUnlock, err := l.Lock(ctx, key)
	if err != nil {
		t.Fatalf("lock after expiry: %v", err)
	}
	current, _ := mr.Get(key)

	staleUnlock()
	if got, _ := mr.Get(key); got != current {
		t.Fatalf("stale release removed the current holder's lock (have %q, want %q)", got, current)
	}

	currentUnlock()
	if mr.Exists(key) {
		t.Fatalf("expected current holder to release the lock")
	}
}

func TestNewRedisLocker_WaitBoundedByTTL(t *testing.T) {
	l := NewRedisLocker(nil, 10*time.Second, time.Minute)
	if l.wait != 10*time.Second {
		t.Fatalf("expected wait capped at TTL, got %s", l.wait)
	}
	l = NewRedisLocker(nil, 10*time.Second, 0)
	if l.wait != 10*time.Second {
		t.Fatalf("expected wait to default to TTL, got %s", l.wait)
	}
}

func TestRedisTokenStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedisTokenStore(client)
	ctx := context.Background()

	if _, err := store.Get(ctx, "refresh:missing"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}

	if err := store.Set(ctx, "refresh:abc", "user-1", refreshTokenTTL); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, err := store.Get(ctx, "refresh:abc"); err != nil || got != "user-1" {
		t.Fatalf("get: %q, %v", got, err)
	}
	if ttl := mr.TTL("refresh:abc"); ttl != refreshTokenTTL {
		t.Fatalf("expected %s TTL, got %s", refreshTokenTTL, ttl)
	}

	if err := store.Del(ctx, "refresh:abc"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if mr.Exists("refresh:abc") {
		t.Fatalf("expected token deleted")
	}
}
