package tasks

import (
	"sync"

	"github.com/desertthunder/goose/internal/models"
)

// keyedLocks hands out one mutex per key, dropping it once nobody holds or waits on it.
// The zero value is ready to use.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

// lock blocks until key is free and returns its unlock func.
func (k *keyedLocks) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*keyLock{}
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// lockSource serializes store reconciliation for one provider id.
func (k *keyedLocks) lockSource(kind models.SourceKind, id string) func() {
	return k.lock(string(kind) + ":" + id)
}
