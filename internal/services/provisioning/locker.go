package provisioning

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sylonai/sylon-voice-service/pkg/logger"
	"github.com/sylonai/sylon-voice-service/pkg/redis"
	"go.uber.org/zap"
)

// Locker serializes provisioning runs per location. Lock never blocks: a held lock
// returns ErrLocationBusy.
type Locker interface {
	Lock(ctx context.Context, locationID string) (unlock func(), err error)
}

// LocalLocker is an in-process keyed try-lock, used when redis is not configured.
type LocalLocker struct {
	mutex sync.Mutex
	held  map[string]struct{}
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// Lock implements Locker
func (l *LocalLocker) Lock(_ context.Context, locationID string) (func(), error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, busy := l.held[locationID]; busy {
		return nil, ErrLocationBusy
	}
	l.held[locationID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mutex.Lock()
			delete(l.held, locationID)
			l.mutex.Unlock()
		})
	}, nil
}

type lockStore interface {
	GenerateKey(keyType redis.KeyType, identifier string) string
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
}

// RedisLocker is a cross-instance lock: SET NX PX with a random token, released only by the
// holder. The TTL bounds how long a crashed instance can block a location.
type RedisLocker struct {
	store lockStore
	ttl   time.Duration
}

// NewRedisLocker creates a redis-backed locker
func NewRedisLocker(store lockStore, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{store: store, ttl: ttl}
}

// Lock implements Locker
func (l *RedisLocker) Lock(ctx context.Context, locationID string) (func(), error) {
	key := l.store.GenerateKey(redis.LOCATION_LOCK, locationID)
	token := uuid.New().String()

	ok, err := l.store.AcquireLock(ctx, key, token, l.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocationBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()

			released, err := l.store.ReleaseLock(releaseCtx, key, token)
			if err != nil {
				logger.Error(ctx, "Failed to release location lock", zap.String("key", key), zap.Error(err))
				return
			}
			if !released {
				logger.Warn(ctx, "Location lock expired before release", zap.String("key", key), zap.Duration("ttl", l.ttl))
			}
		})
	}, nil
}
