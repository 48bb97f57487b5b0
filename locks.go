package warrant

import "sync"

// userLocks hands out one RWMutex per user id. Entries are reference
// counted and dropped when the last holder releases them.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sync.RWMutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

func (l *userLocks) acquire(userID string) *userLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	return ul
}

func (l *userLocks) release(userID string, ul *userLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ul.refs--
	if ul.refs == 0 {
		delete(l.locks, userID)
	}
}

// lock takes the writer side for userID and returns its release func.
func (l *userLocks) lock(userID string) func() {
	ul := l.acquire(userID)
	ul.Lock()
	return func() {
		ul.Unlock()
		l.release(userID, ul)
	}
}

// rlock takes the reader side for userID and returns its release func.
func (l *userLocks) rlock(userID string) func() {
	ul := l.acquire(userID)
	ul.RLock()
	return func() {
		ul.RUnlock()
		l.release(userID, ul)
	}
}

// size reports the number of live entries.
func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
