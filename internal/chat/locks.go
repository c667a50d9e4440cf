package chat

import "sync"

// userLocks serializes turns per user id. Two inbound events for the same
// user (e.g. a duplicate webhook delivery) must not interleave their
// read-session, mutate, persist-session sequences; events for different
// users proceed concurrently.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*sync.Mutex)}
}

// Lock acquires the mutex for userID, creating it on first use, and
// returns the unlock function.
func (u *userLocks) Lock(userID int64) func() {
	u.mu.Lock()
	l, ok := u.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		u.locks[userID] = l
	}
	u.mu.Unlock()

	l.Lock()
	return l.Unlock
}
