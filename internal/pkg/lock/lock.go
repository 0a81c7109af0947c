// Package lock provides user-level locking for concurrent balance operations.
package lock

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrLockTimeout is returned when a lock cannot be acquired within the timeout period.
var ErrLockTimeout = errors.New("lock acquisition timeout")

// userSlot is a one-token semaphore with a reference count so idle slots
// can be dropped from the map.
type userSlot struct {
	sem  chan struct{}
	refs int
}

// UserLock serializes balance-affecting work per user within one process.
// It complements, and never replaces, the row-level guarantees of the store.
type UserLock struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*userSlot
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{slots: make(map[uuid.UUID]*userSlot)}
}

func (ul *UserLock) acquireSlot(userID uuid.UUID) *userSlot {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	s, ok := ul.slots[userID]
	if !ok {
		s = &userSlot{sem: make(chan struct{}, 1)}
		ul.slots[userID] = s
	}
	s.refs++
	return s
}

func (ul *UserLock) releaseSlot(userID uuid.UUID, s *userSlot) {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(ul.slots, userID)
	}
}

// Unlock releases the lock for a user.
func (ul *UserLock) Unlock(userID uuid.UUID) {
	ul.mu.Lock()
	s, ok := ul.slots[userID]
	ul.mu.Unlock()
	if !ok {
		return
	}
	<-s.sem
	ul.releaseSlot(userID, s)
}

// LockContext acquires the lock, giving up when ctx is done or timeout
// elapses. A zero timeout waits for ctx only.
func (ul *UserLock) LockContext(ctx context.Context, userID uuid.UUID, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	s := ul.acquireSlot(userID)
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		ul.releaseSlot(userID, s)
		if ctx.Err() == context.DeadlineExceeded {
			return ErrLockTimeout
		}
		return ctx.Err()
	}
}

// WithLock executes fn while holding the locks of every given user.
// Locks are taken in ascending id order so two callers locking the same
// pair can never deadlock. Duplicate ids are locked once.
func (ul *UserLock) WithLock(ctx context.Context, timeout time.Duration, fn func() error, userIDs ...uuid.UUID) error {
	ids := orderedUnique(userIDs)

	held := make([]uuid.UUID, 0, len(ids))
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			ul.Unlock(held[i])
		}
	}()

	for _, id := range ids {
		if err := ul.LockContext(ctx, id, timeout); err != nil {
			return err
		}
		held = append(held, id)
	}

	return fn()
}

func orderedUnique(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
