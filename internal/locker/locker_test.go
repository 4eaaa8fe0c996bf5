package locker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/corpnet/helpdesk/pkg/util/errorutil"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	locks := NewKeyedMutex(0)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locks.Acquire(ctx, TicketKey("t1"))
			require.NoError(t, err)
			defer release()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, locks.locks)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	locks := NewKeyedMutex(50 * time.Millisecond)
	ctx := context.Background()

	release, err := locks.Acquire(ctx, "a")
	require.NoError(t, err)
	defer release()

	other, err := locks.Acquire(ctx, "b")
	require.NoError(t, err)
	other()
}

func TestKeyedMutexTimeoutIsConflict(t *testing.T) {
	locks := NewKeyedMutex(10 * time.Millisecond)
	ctx := context.Background()

	release, err := locks.Acquire(ctx, "a")
	require.NoError(t, err)

	_, err = locks.Acquire(ctx, "a")
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	release()
	release()

	again, err := locks.Acquire(ctx, "a")
	require.NoError(t, err)
	again()
}
