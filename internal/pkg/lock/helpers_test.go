package lock

import "github.com/google/uuid"

// lock acquires the user's lock, blocking until it is available.
func (ul *UserLock) lock(userID uuid.UUID) {
	s := ul.acquireSlot(userID)
	s.sem <- struct{}{}
}

// tryLock acquires the user's lock only if it is free.
func (ul *UserLock) tryLock(userID uuid.UUID) bool {
	s := ul.acquireSlot(userID)
	select {
	case s.sem <- struct{}{}:
		return true
	default:
		ul.releaseSlot(userID, s)
		return false
	}
}

func (ul *UserLock) isLocked(userID uuid.UUID) bool {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	s, ok := ul.slots[userID]
	return ok && len(s.sem) > 0
}

// slotCount returns the number of users with live lock slots.
func (ul *UserLock) slotCount() int {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return len(ul.slots)
}
