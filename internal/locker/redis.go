package locker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/corpnet/helpdesk/pkg/util/errorutil"
)

const retryInterval = 25 * time.Millisecond

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a multi-node Locker built on SET NX PX with token-checked release.
type RedisLocker struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	wait   time.Duration
	logger *zap.Logger
}

// NewRedisLocker constructs the locker. ttl bounds how long a crashed holder
// blocks others; wait bounds how long Acquire retries.
func NewRedisLocker(client redis.Cmdable, ttl, wait time.Duration, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: client, prefix: "helpdesk:lock:", ttl: ttl, wait: wait, logger: logger}
}

func (r *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	if r.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.wait)
		defer cancel()
	}
	redisKey := r.prefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, apperrors.NewInternalError(err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, apperrors.NewConflict("ticket is being modified, retry later", map[string]any{"key": key})
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err(); err != nil {
				r.logger.Warn("release ticket lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

var _ Locker = (*RedisLocker)(nil)
