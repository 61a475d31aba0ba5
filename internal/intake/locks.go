package intake

import "sync"

// identityLocks serializes message handling per sender identity. The lock
// is held across load, decision and persist so concurrent deliveries for
// the same identity observe sequential state.
type identityLocks struct {
	mu    sync.Mutex
	locks map[string]*identityLock
}

type identityLock struct {
	mu   sync.Mutex
	refs int
}

func newIdentityLocks() *identityLocks {
	return &identityLocks{locks: make(map[string]*identityLock)}
}

// Lock acquires the identity's lock and returns its release func. Entries
// are reference counted and removed when the last holder releases, so the
// map does not grow with the number of senders ever seen.
func (l *identityLocks) Lock(identity string) func() {
	l.mu.Lock()
	entry, ok := l.locks[identity]
	if !ok {
		entry = &identityLock{}
		l.locks[identity] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, identity)
		}
		l.mu.Unlock()
	}
}
