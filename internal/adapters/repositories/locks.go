package repositories

import "sync"

// keyedLocker hands out one mutex per key. An entry lives only while
// someone holds or waits for it, so arbitrary client-chosen IDs do not
// accumulate.
type keyedLocker struct {
	disabled bool

	mu    sync.Mutex
	locks map[int]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocker(enabled bool) *keyedLocker {
	return &keyedLocker{
		disabled: !enabled,
		locks:    make(map[int]*keyedLock),
	}
}

// Lock blocks until key is held and returns the matching unlock func.
// When locking is disabled both are no-ops.
func (k *keyedLocker) Lock(key int) func() {
	if k == nil || k.disabled {
		return func() {}
	}

	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
