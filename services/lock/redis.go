// Package locksvc serialises save batches across API instances with Redis.
package locksvc

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/edit"
)

const (
	keyPrefix  = "ceria:save-lock:"
	defaultTTL = 30 * time.Second
	retryEvery = 50 * time.Millisecond
)

// release deletes the lock only if it still holds our token.
var release = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// extend pushes the expiry back only if the lock still holds our token.
var extend = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger core.Logger
}

var _ edit.Locker = (*redisLocker)(nil)

// NewRedisLocker returns an edit.Locker backed by SET NX PX. ttl bounds how long a crashed holder blocks a scope;
// a live holder keeps extending it every ttl/3 until it unlocks.
func NewRedisLocker(client *redis.Client, ttl time.Duration, logger core.Logger) edit.Locker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &redisLocker{client: client, ttl: ttl, logger: logger}
}

// NewClient connects to the configured Redis server.
func NewClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	rkey := keyPrefix + key
	token := uuid.New().String()

	ticker := time.NewTicker(retryEvery)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, rkey, token, l.ttl).Result()
		if err != nil {
			return nil, errors.Wrap(err, "acquiring save lock")
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(rkey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// the batch may have been cancelled; releasing must not depend on its context
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := release.Run(rctx, l.client, []string{rkey}, token).Err(); err != nil && err != redis.Nil {
				l.logger.Error("locksvc: releasing save lock", err, map[string]interface{}{"key": key})
			}
		})
	}, nil
}

// keepAlive extends the lock until stop is closed or the lock is lost.
func (l *redisLocker) keepAlive(rkey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
		n, err := extend.Run(ctx, l.client, []string{rkey}, token, l.ttl.Milliseconds()).Int()
		cancel()
		if err != nil {
			l.logger.Warn("locksvc: extending save lock", err, map[string]interface{}{"key": rkey})
			continue
		}
		if n == 0 {
			l.logger.Warn("locksvc: save lock lost", map[string]interface{}{"key": rkey})
			return
		}
	}
}
