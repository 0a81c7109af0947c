package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"token-economy/internal/model"
	"token-economy/internal/pkg/db"
	"token-economy/internal/shop"
)

// CatalogRepository handles shop items, user inventory and the equipped
// cosmetics projection.
type CatalogRepository struct {
	db db.DBTX
}

// NewCatalogRepository creates a new CatalogRepository instance.
func NewCatalogRepository(conn db.DBTX) *CatalogRepository {
	return &CatalogRepository{db: conn}
}

const itemColumns = `id, name, description, category, price, is_limited, max_quantity, sold_count, is_active, item_data`

func scanItem(row pgx.Row) (*model.ShopItem, error) {
	var it model.ShopItem
	err := row.Scan(
		&it.ID,
		&it.Name,
		&it.Description,
		&it.Category,
		&it.Price,
		&it.IsLimited,
		&it.MaxQuantity,
		&it.SoldCount,
		&it.IsActive,
		&it.ItemData,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// CreateItem inserts a catalog entry.
func (r *CatalogRepository) CreateItem(ctx context.Context, it model.ShopItem) (*model.ShopItem, error) {
	query := `
		INSERT INTO shop_items (name, description, category, price, is_limited, max_quantity, sold_count, is_active, item_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9::JSONB, '{}'::JSONB))
		RETURNING ` + itemColumns

	var data *string
	if len(it.ItemData) > 0 {
		s := string(it.ItemData)
		data = &s
	}

	out, err := scanItem(r.db.QueryRow(ctx, query,
		it.Name,
		it.Description,
		it.Category,
		it.Price,
		it.IsLimited,
		it.MaxQuantity,
		it.SoldCount,
		it.IsActive,
		data,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create shop item: %w", err)
	}
	return out, nil
}

// GetItem returns a catalog entry by id.
func (r *CatalogRepository) GetItem(ctx context.Context, id uuid.UUID) (*model.ShopItem, error) {
	return r.getItem(ctx, `SELECT `+itemColumns+` FROM shop_items WHERE id = $1`, id)
}

// GetItemForUpdate returns a catalog entry and holds its row lock until
// the transaction ends, so stock checks on it are serialized.
func (r *CatalogRepository) GetItemForUpdate(ctx context.Context, id uuid.UUID) (*model.ShopItem, error) {
	return r.getItem(ctx, `SELECT `+itemColumns+` FROM shop_items WHERE id = $1 FOR UPDATE`, id)
}

func (r *CatalogRepository) getItem(ctx context.Context, query string, id uuid.UUID) (*model.ShopItem, error) {
	it, err := scanItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get shop item: %w", err)
	}
	return it, nil
}

// IncrementSold records one more unit sold. For limited items the update is
// refused with ErrSoldOut once max_quantity is reached.
func (r *CatalogRepository) IncrementSold(ctx context.Context, id uuid.UUID) (int64, error) {
	const query = `
		UPDATE shop_items
		SET sold_count = sold_count + 1
		WHERE id = $1
			AND (NOT is_limited OR max_quantity IS NULL OR sold_count < max_quantity)
		RETURNING sold_count
	`
	var sold int64
	err := r.db.QueryRow(ctx, query, id).Scan(&sold)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrSoldOut
		}
		return 0, fmt.Errorf("failed to increment sold count: %w", err)
	}
	return sold, nil
}

// Owns reports whether the user has the item in their inventory.
func (r *CatalogRepository) Owns(ctx context.Context, userID, itemID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM user_inventory WHERE user_id = $1 AND item_id = $2)`
	var owned bool
	if err := r.db.QueryRow(ctx, query, userID, itemID).Scan(&owned); err != nil {
		return false, fmt.Errorf("failed to check ownership: %w", err)
	}
	return owned, nil
}

// AddToInventory grants the item to the user. A second grant of the same
// item fails with ErrAlreadyOwned.
func (r *CatalogRepository) AddToInventory(ctx context.Context, userID, itemID uuid.UUID) error {
	const query = `INSERT INTO user_inventory (user_id, item_id) VALUES ($1, $2)`
	if _, err := r.db.Exec(ctx, query, userID, itemID); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAlreadyOwned
		}
		return fmt.Errorf("failed to add inventory entry: %w", err)
	}
	return nil
}

// Inventory returns every item the user owns.
func (r *CatalogRepository) Inventory(ctx context.Context, userID uuid.UUID) ([]model.InventoryEntry, error) {
	const query = `
		SELECT ui.user_id, ui.item_id, si.category, ui.is_equipped, ui.purchased_at
		FROM user_inventory ui
		JOIN shop_items si ON si.id = ui.item_id
		WHERE ui.user_id = $1
		ORDER BY ui.purchased_at, ui.item_id
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	defer rows.Close()

	entries := make([]model.InventoryEntry, 0)
	for rows.Next() {
		var e model.InventoryEntry
		if err := rows.Scan(&e.UserID, &e.ItemID, &e.Category, &e.IsEquipped, &e.PurchasedAt); err != nil {
			return nil, fmt.Errorf("failed to scan inventory entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inventory: %w", err)
	}
	return entries, nil
}

// Equip marks itemID as the only equipped item of its category for the
// user. Every owned item of the category is rewritten by one statement,
// so no interleaving can leave two of them equipped.
func (r *CatalogRepository) Equip(ctx context.Context, userID, itemID uuid.UUID, category shop.Category) error {
	const query = `
		UPDATE user_inventory ui
		SET is_equipped = (ui.item_id = $2)
		FROM shop_items si
		WHERE si.id = ui.item_id
			AND ui.user_id = $1
			AND si.category = $3
			AND (ui.is_equipped OR ui.item_id = $2)
	`
	if _, err := r.db.Exec(ctx, query, userID, itemID, string(category)); err != nil {
		return fmt.Errorf("failed to equip item: %w", err)
	}
	return nil
}

// SetCustomization writes value into the projection column of category.
func (r *CatalogRepository) SetCustomization(ctx context.Context, userID uuid.UUID, category shop.CategoryConfig, value string) error {
	col := pgx.Identifier{category.Column}.Sanitize()
	query := fmt.Sprintf(`
		INSERT INTO profile_customizations (user_id, %[1]s, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET %[1]s = EXCLUDED.%[1]s, updated_at = NOW()
	`, col)

	if _, err := r.db.Exec(ctx, query, userID, value); err != nil {
		return fmt.Errorf("failed to update profile customization: %w", err)
	}
	return nil
}

// GetCustomization returns the user's projection row, or an empty one.
func (r *CatalogRepository) GetCustomization(ctx context.Context, userID uuid.UUID) (*model.ProfileCustomization, error) {
	const query = `
		SELECT user_id, username_color, badge_id, frame_id, bio_effect, updated_at
		FROM profile_customizations
		WHERE user_id = $1
	`
	var c model.ProfileCustomization
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&c.UserID,
		&c.UsernameColor,
		&c.BadgeID,
		&c.FrameID,
		&c.BioEffect,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.ProfileCustomization{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to get profile customization: %w", err)
	}
	return &c, nil
}
