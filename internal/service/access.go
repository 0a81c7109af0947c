package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"token-economy/internal/model"
	"token-economy/internal/repository"
)

// Clock returns the current time. Every day boundary and cooldown in the
// ledger is derived from one Clock, in UTC.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time { return time.Now().UTC() }

// Access answers role questions about a caller.
type Access struct {
	profiles *repository.ProfileRepository
	ownerIDs map[uuid.UUID]struct{}
}

// NewAccess creates an Access. ownerIDs are treated as owners in addition
// to users holding the owner role; ids that do not parse are ignored.
func NewAccess(profiles *repository.ProfileRepository, ownerIDs []string) *Access {
	owners := make(map[uuid.UUID]struct{}, len(ownerIDs))
	for _, s := range ownerIDs {
		if id, err := uuid.Parse(s); err == nil {
			owners[id] = struct{}{}
		}
	}
	return &Access{profiles: profiles, ownerIDs: owners}
}

// IsOwner reports whether the user is an owner.
func (a *Access) IsOwner(ctx context.Context, userID uuid.UUID) (bool, error) {
	if _, ok := a.ownerIDs[userID]; ok {
		return true, nil
	}
	ok, err := a.profiles.HasAnyRole(ctx, userID, model.RoleOwner)
	if err != nil {
		return false, fmt.Errorf("failed to check owner role: %w", err)
	}
	return ok, nil
}

// IsStaff reports whether the user is an admin or an owner.
func (a *Access) IsStaff(ctx context.Context, userID uuid.UUID) (bool, error) {
	if _, ok := a.ownerIDs[userID]; ok {
		return true, nil
	}
	ok, err := a.profiles.HasAnyRole(ctx, userID, model.RoleAdmin, model.RoleOwner)
	if err != nil {
		return false, fmt.Errorf("failed to check staff role: %w", err)
	}
	return ok, nil
}
