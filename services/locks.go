package services

import (
	"sync"
)

// keyedLocks serializes intents per session code: one writer at a time per
// code, no ordering guarantees across codes.
type keyedLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{m: make(map[string]*sync.Mutex)}
}

func (k *keyedLocks) acquire(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	mu, ok := k.m[key]
	if !ok {
		mu = &sync.Mutex{}
		k.m[key] = mu
	}
	return mu
}

func (k *keyedLocks) drop(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.m, key)
}
