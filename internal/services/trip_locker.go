package services

import (
	"sync"

	"github.com/google/uuid"
)

// TripLocker serializes seat mutations per trip. Locks for different trips
// never contend; entries are dropped once no goroutine holds or waits on them.
type TripLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*tripLock
}

type tripLock struct {
	mu   sync.Mutex
	refs int
}

// NewTripLocker creates an empty locker
func NewTripLocker() *TripLocker {
	return &TripLocker{locks: make(map[uuid.UUID]*tripLock)}
}

// Lock blocks until the trip's lock is held and returns its release func
func (l *TripLocker) Lock(tripID uuid.UUID) func() {
	l.mu.Lock()
	lock, ok := l.locks[tripID]
	if !ok {
		lock = &tripLock{}
		l.locks[tripID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, tripID)
		}
		l.mu.Unlock()
	}
}

func (l *TripLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
