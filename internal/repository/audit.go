package repository

import (
	"context"
	"fmt"
	"time"

	"token-economy/internal/model"
	"token-economy/internal/pkg/db"
)

// AuditRepository stores mini-game abuse-monitoring records.
type AuditRepository struct {
	db db.DBTX
}

// NewAuditRepository creates a new AuditRepository instance.
func NewAuditRepository(conn db.DBTX) *AuditRepository {
	return &AuditRepository{db: conn}
}

// InsertMiniGame records one mini-game payout request.
func (r *AuditRepository) InsertMiniGame(ctx context.Context, a model.MiniGameAudit) error {
	const query = `
		INSERT INTO mini_game_audit (user_id, game_type, score, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
	`
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.Exec(ctx, query, a.UserID, a.GameType, a.Score, a.IPAddress, a.UserAgent, a.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert mini game audit: %w", err)
	}
	return nil
}

// PruneBefore deletes audit records older than cutoff.
func (r *AuditRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM mini_game_audit WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune mini game audit: %w", err)
	}
	return tag.RowsAffected(), nil
}
