package locker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/corpnet/helpdesk/pkg/util/errorutil"
)

// fakeRedis implements the SET NX and compare-and-delete commands the locker
// issues. Any other command panics through the nil embedded interface.
type fakeRedis struct {
	redis.Cmdable

	mu       sync.Mutex
	values   map[string]string
	setErr   error
	attempts int
	releases int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	if err := ctx.Err(); err != nil {
		return redis.NewBoolResult(false, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, held := f.values[key]; held {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

func (f *fakeRedis) set(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
}

func TestRedisLockerTimesOutWhileHeld(t *testing.T) {
	client := newFakeRedis()
	locks := NewRedisLocker(client, time.Minute, 60*time.Millisecond, nil)
	ctx := context.Background()

	release, err := locks.Acquire(ctx, TicketKey("t1"))
	require.NoError(t, err)
	_, held := client.get("helpdesk:lock:ticket:t1")
	assert.True(t, held)

	_, err = locks.Acquire(ctx, TicketKey("t1"))
	assert.True(t, apperrors.IsConflict(err))

	other, err := locks.Acquire(ctx, TicketKey("t2"))
	require.NoError(t, err)
	other()

	release()
	_, held = client.get("helpdesk:lock:ticket:t1")
	assert.False(t, held)

	again, err := locks.Acquire(ctx, TicketKey("t1"))
	require.NoError(t, err)
	again()
}

func TestRedisLockerRetriesUntilReleased(t *testing.T) {
	client := newFakeRedis()
	locks := NewRedisLocker(client, time.Minute, time.Second, nil)
	ctx := context.Background()

	release, err := locks.Acquire(ctx, TicketKey("t1"))
	require.NoError(t, err)
	go func() {
		time.Sleep(4 * retryInterval)
		release()
	}()

	second, err := locks.Acquire(ctx, TicketKey("t1"))
	require.NoError(t, err)
	defer second()

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Greater(t, client.attempts, 2)
}

func TestRedisLockerReleaseChecksToken(t *testing.T) {
	client := newFakeRedis()
	locks := NewRedisLocker(client, time.Minute, 0, nil)

	release, err := locks.Acquire(context.Background(), TicketKey("t1"))
	require.NoError(t, err)

	// the lock expired and another node took it over
	client.set("helpdesk:lock:ticket:t1", "someone-else")
	release()
	release()

	owner, held := client.get("helpdesk:lock:ticket:t1")
	assert.True(t, held)
	assert.Equal(t, "someone-else", owner)
	assert.Equal(t, 1, client.releases)
}

func TestRedisLockerSurfacesRedisErrors(t *testing.T) {
	client := newFakeRedis()
	client.setErr = errors.New("connection refused")
	locks := NewRedisLocker(client, time.Minute, time.Second, nil)

	_, err := locks.Acquire(context.Background(), TicketKey("t1"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternalError))

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, 1, client.attempts)
}
