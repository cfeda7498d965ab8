package handlers

import (
	"sync"

	"github.com/google/uuid"
)

// profileLocks serializes receipt writes per profile within one process.
type profileLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*profileLock
}

type profileLock struct {
	mu   sync.Mutex
	refs int
}

// lock блокирует профиль и возвращает функцию разблокировки.
func (l *profileLocks) lock(profileID uuid.UUID) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[uuid.UUID]*profileLock)
	}
	entry, ok := l.locks[profileID]
	if !ok {
		entry = &profileLock{}
		l.locks[profileID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, profileID)
		}
		l.mu.Unlock()
	}
}
