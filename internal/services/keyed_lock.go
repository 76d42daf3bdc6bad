package services

import "sync"

// keyedLock serializes lifecycle operations per (tenant, entity) key so
// concurrent requests for the same entity cannot interleave DDL, while
// different entities proceed in parallel. Mutexes are retained for the
// process lifetime; the key space is bounded by declared entities.
type keyedLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLock() *keyedLock {
	return &keyedLock{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the mutex for key and returns it for the caller to unlock.
func (l *keyedLock) Acquire(key string) *sync.Mutex {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m
}
