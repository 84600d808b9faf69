package repositories

import (
	"context"
	"fmt"
	"sync"
)

type keyLock struct {
	ch   chan struct{}
	refs int
}

// MemoryKeyLocker serializes work per key inside one process.
type MemoryKeyLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

func NewMemoryKeyLocker() *MemoryKeyLocker {
	return &MemoryKeyLocker{locks: make(map[string]*keyLock)}
}

func (m *MemoryKeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	kl, ok := m.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		m.locks[key] = kl
	}
	kl.refs++
	m.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-kl.ch
				m.drop(key, kl)
			})
		}, nil
	case <-ctx.Done():
		m.drop(key, kl)
		return nil, fmt.Errorf("%w: %q: %w", ErrLockNotAcquired, key, ctx.Err())
	}
}

func (m *MemoryKeyLocker) drop(key string, kl *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(m.locks, key)
	}
}

// Len reports how many keys are currently locked or awaited.
func (m *MemoryKeyLocker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
