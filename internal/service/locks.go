package service

import (
	"sync"

	"github.com/google/uuid"
)

// personaLocks serialises stance mutations per persona. Entries are reference
// counted and removed once no goroutine holds or waits on them.
type personaLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*personaLock
}

type personaLock struct {
	mu   sync.Mutex
	refs int
}

func newPersonaLocks() *personaLocks {
	return &personaLocks{locks: make(map[uuid.UUID]*personaLock)}
}

// Lock blocks until the persona's lock is held and returns its release func.
func (l *personaLocks) Lock(personaID uuid.UUID) func() {
	l.mu.Lock()
	pl, ok := l.locks[personaID]
	if !ok {
		pl = &personaLock{}
		l.locks[personaID] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()
	return func() {
		pl.mu.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, personaID)
		}
		l.mu.Unlock()
	}
}

func (l *personaLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
