package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"token-economy/internal/model"
	"token-economy/internal/pkg/db"
)

// TransferRepository records peer-to-peer transfers.
type TransferRepository struct {
	db db.DBTX
}

// NewTransferRepository creates a new TransferRepository instance.
func NewTransferRepository(conn db.DBTX) *TransferRepository {
	return &TransferRepository{db: conn}
}

// Create stores a transfer. A zero ID is replaced by a fresh one so the
// caller can use it as the reference of the matching log entries.
func (r *TransferRepository) Create(ctx context.Context, t model.Transfer) (*model.Transfer, error) {
	const query = `
		INSERT INTO transfers (id, sender_id, receiver_id, amount, tax_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
		RETURNING created_at
	`
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	var createdAt any
	if !t.CreatedAt.IsZero() {
		createdAt = t.CreatedAt
	}

	err := r.db.QueryRow(ctx, query, t.ID, t.SenderID, t.ReceiverID, t.Amount, t.TaxAmount, createdAt).Scan(&t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer: %w", err)
	}
	return &t, nil
}
