package engine

import "sync"

// keyedLocks provides one mutex per (account, instrument) pair so that
// executions on the same pair serialize while executions on different pairs
// proceed independently. Entries are reference-counted and removed once the
// last holder releases, so the table stays proportional to in-flight work.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[lockKey]*lockEntry
}

type lockKey struct {
	accountID  string
	instrument string
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[lockKey]*lockEntry)}
}

// acquire blocks until the lock for key is held and returns the release
// function.
func (k *keyedLocks) acquire(accountID, instrument string) func() {
	key := lockKey{accountID, instrument}

	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
