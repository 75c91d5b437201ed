package archiver

import (
	"sync"
)

// idlock hands out one mutex per SIP id. The zero value is ready to use.
// Entries are dropped once no goroutine holds or waits for them.
type idlock struct {
	mu    sync.Mutex          // controls everything below
	locks map[string]*idmutex // ids currently locked
}

type idmutex struct {
	sync.Mutex
	refs int
}

// Lock blocks until the caller holds the lock for id.
func (l *idlock) Lock(id string) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*idmutex)
	}
	m, ok := l.locks[id]
	if !ok {
		m = &idmutex{}
		l.locks[id] = m
	}
	m.refs++
	l.mu.Unlock()
	m.Lock()
}

// Unlock releases the lock for id, which must be held by the caller.
func (l *idlock) Unlock(id string) {
	l.mu.Lock()
	m := l.locks[id]
	m.refs--
	if m.refs == 0 {
		delete(l.locks, id)
	}
	l.mu.Unlock()
	m.Unlock()
}
