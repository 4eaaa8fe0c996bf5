// Package locker serializes mutations of one ticket across goroutines or nodes.
package locker

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/corpnet/helpdesk/pkg/util/errorutil"
)

// Release frees a held lock. It is safe to call more than once.
type Release func()

// Locker grants exclusive access to a key until the returned Release is called.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// TicketKey returns the lock key used for a ticket's mutation unit.
func TicketKey(ticketID string) string {
	return "ticket:" + ticketID
}

// KeyedMutex is a single-node Locker holding one mutex per key.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
	wait  time.Duration
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex returns a Locker that waits at most wait for a key; zero waits
// until the context is done.
func NewKeyedMutex(wait time.Duration) *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock), wait: wait}
}

func (k *KeyedMutex) Acquire(ctx context.Context, key string) (Release, error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	if k.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.wait)
		defer cancel()
	}

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		k.unref(key, l)
		return nil, apperrors.NewConflict("ticket is being modified, retry later", map[string]any{"key": key})
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			k.unref(key, l)
		})
	}, nil
}

func (k *KeyedMutex) unref(key string, l *keyLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

var _ Locker = (*KeyedMutex)(nil)
