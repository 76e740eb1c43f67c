package prompts

import "sync"

// promptLocks serializes version writes per prompt within one process.
// Entries are dropped once no caller holds or waits on them.
type promptLocks struct {
	mu    sync.Mutex
	locks map[string]*promptLock
}

type promptLock struct {
	sync.Mutex
	refs int
}

// lock blocks until the caller owns id and returns the release func.
func (l *promptLocks) lock(id string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*promptLock)
	}
	pl, ok := l.locks[id]
	if !ok {
		pl = &promptLock{}
		l.locks[id] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.Lock()
	return func() {
		pl.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
