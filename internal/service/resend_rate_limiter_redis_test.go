package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisEvaler struct {
	lastKeys []string
	lastArgs []interface{}
	count    int64
	err      error
}

func (m *mockRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	m.count++
	cmd.SetVal(m.count)
	return cmd
}

func TestRedisResendRateLimiter_Allow(t *testing.T) {
	mock := &mockRedisEvaler{}
	limiter := &redisResendRateLimiter{
		client: mock,
		window: 10 * time.Minute,
		max:    2,
		prefix: "verify:rl:",
	}

	if !limiter.Allow("User@Example.com ") {
		t.Fatalf("expected first attempt allowed")
	}
	if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "verify:rl:user@example.com" {
		t.Fatalf("unexpected redis key: %+v", mock.lastKeys)
	}
	if len(mock.lastArgs) != 1 || mock.lastArgs[0] != 600 {
		t.Fatalf("unexpected window seconds: %+v", mock.lastArgs)
	}

	if !limiter.Allow("user@example.com") {
		t.Fatalf("expected second attempt allowed")
	}
	if limiter.Allow("user@example.com") {
		t.Fatalf("expected third attempt denied")
	}
}

func TestRedisResendRateLimiter_FailOpen(t *testing.T) {
	mock := &mockRedisEvaler{err: errors.New("redis down")}
	limiter := &redisResendRateLimiter{
		client: mock,
		window: time.Minute,
		max:    1,
		prefix: "verify:rl:",
	}

	// Si redis falla, el reenvio no se bloquea.
	if !limiter.Allow("user@example.com") {
		t.Fatalf("expected fail-open on redis error")
	}
}

func TestRedisResendRateLimiter_EmptyKey(t *testing.T) {
	limiter := &redisResendRateLimiter{
		client: &mockRedisEvaler{},
		window: time.Minute,
		max:    1,
		prefix: "verify:rl:",
	}

	if limiter.Allow("   ") {
		t.Fatalf("expected empty key denied")
	}
}
