package repository

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// KeyedLock is a set of mutexes addressed by key, each a weight-1 semaphore
// so acquisition can honour a context and a timeout. Entries are reference
// counted and dropped once nobody holds or waits on them.
type KeyedLock struct {
	mu    sync.Mutex
	slots map[string]*keyedSlot
}

type keyedSlot struct {
	sem  *semaphore.Weighted
	refs int
}

// NewKeyedLock returns an empty KeyedLock.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{slots: make(map[string]*keyedSlot)}
}

// Lock blocks until key is free, timeout elapses or ctx is done. On timeout
// it returns ErrLockTimeout; on cancellation, ctx.Err(). The returned
// function releases the lock and must be called exactly once.
func (l *KeyedLock) Lock(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	slot := l.acquireSlot(key)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	err := slot.sem.Acquire(waitCtx, 1)
	cancel()
	if err != nil {
		l.releaseSlot(key)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, ErrLockTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			slot.sem.Release(1)
			l.releaseSlot(key)
		})
	}, nil
}

// Len returns the number of keys currently held or awaited.
func (l *KeyedLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *KeyedLock) acquireSlot(key string) *keyedSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[key]
	if !ok {
		slot = &keyedSlot{sem: semaphore.NewWeighted(1)}
		l.slots[key] = slot
	}
	slot.refs++
	return slot
}

func (l *KeyedLock) releaseSlot(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[key]
	if !ok {
		return
	}
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}
