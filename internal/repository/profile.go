package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"token-economy/internal/model"
	"token-economy/internal/pkg/db"
)

// ProfileRepository reads the identity tables owned by the hosted auth
// backend. Writes exist only for seeding standalone databases.
type ProfileRepository struct {
	db db.DBTX
}

// NewProfileRepository creates a new ProfileRepository instance.
func NewProfileRepository(conn db.DBTX) *ProfileRepository {
	return &ProfileRepository{db: conn}
}

// Upsert creates or updates a profile.
func (r *ProfileRepository) Upsert(ctx context.Context, p model.Identity) error {
	const query = `
		INSERT INTO profiles (user_id, discord_id, display_name, avatar_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET discord_id = EXCLUDED.discord_id,
			display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url
	`
	if _, err := r.db.Exec(ctx, query, p.UserID, p.DiscordID, p.DisplayName, p.AvatarURL); err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// Get returns a user's public identity.
func (r *ProfileRepository) Get(ctx context.Context, userID uuid.UUID) (*model.Identity, error) {
	const query = `SELECT user_id, discord_id, display_name, avatar_url FROM profiles WHERE user_id = $1`
	return r.get(ctx, query, userID)
}

// ResolveDiscordID maps a Discord id to the user's profile.
// Returns ErrProfileNotFound when no profile is linked to it.
func (r *ProfileRepository) ResolveDiscordID(ctx context.Context, discordID string) (*model.Identity, error) {
	const query = `SELECT user_id, discord_id, display_name, avatar_url FROM profiles WHERE discord_id = $1`
	return r.get(ctx, query, discordID)
}

func (r *ProfileRepository) get(ctx context.Context, query string, arg any) (*model.Identity, error) {
	var p model.Identity
	err := r.db.QueryRow(ctx, query, arg).Scan(&p.UserID, &p.DiscordID, &p.DisplayName, &p.AvatarURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// GrantRole gives the user a role.
func (r *ProfileRepository) GrantRole(ctx context.Context, userID uuid.UUID, role string) error {
	const query = `INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.Exec(ctx, query, userID, role); err != nil {
		return fmt.Errorf("failed to grant role: %w", err)
	}
	return nil
}

// HasAnyRole reports whether the user holds at least one of roles.
func (r *ProfileRepository) HasAnyRole(ctx context.Context, userID uuid.UUID, roles ...string) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}
	const query = `SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1 AND role = ANY($2))`
	var ok bool
	if err := r.db.QueryRow(ctx, query, userID, roles).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check roles: %w", err)
	}
	return ok, nil
}
