// Package shop defines the closed set of cosmetic item categories and how
// each one is projected onto a user's profile customization.
package shop

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownCategory is returned for a category outside the catalog enum.
	ErrUnknownCategory = errors.New("unknown item category")
	// ErrNotEquippable is returned when an item lacks the data its
	// category projects onto the profile.
	ErrNotEquippable = errors.New("item cannot be equipped")
)

// Category governs which items are mutually exclusive when equipped.
type Category string

// Item categories. Adding one requires a projection column below.
const (
	CategoryNameColor Category = "name_color"
	CategoryBadge     Category = "badge"
	CategoryFrame     Category = "frame"
	CategoryBioEffect Category = "bio_effect"
)

// CategoryConfig describes how an equipped item of a category is mirrored
// into the profile_customizations projection.
type CategoryConfig struct {
	Category Category
	Name     string
	// Column is the profile_customizations column holding the choice.
	Column string
	// DataKey names the item_data field copied into Column. Empty means the
	// item id itself is stored.
	DataKey string
}

// Categories contains every known category.
var Categories = map[Category]CategoryConfig{
	CategoryNameColor: {
		Category: CategoryNameColor,
		Name:     "Username color",
		Column:   "username_color",
		DataKey:  "color",
	},
	CategoryBadge: {
		Category: CategoryBadge,
		Name:     "Badge",
		Column:   "badge_id",
	},
	CategoryFrame: {
		Category: CategoryFrame,
		Name:     "Avatar frame",
		Column:   "frame_id",
	},
	CategoryBioEffect: {
		Category: CategoryBioEffect,
		Name:     "Bio effect",
		Column:   "bio_effect",
		DataKey:  "effect",
	},
}

// GetAllCategories returns all categories in display order.
func GetAllCategories() []CategoryConfig {
	order := []Category{
		CategoryNameColor,
		CategoryBadge,
		CategoryFrame,
		CategoryBioEffect,
	}

	out := make([]CategoryConfig, 0, len(order))
	for _, c := range order {
		if cfg, ok := Categories[c]; ok {
			out = append(out, cfg)
		}
	}
	return out
}

// ParseCategory validates a raw category string.
func ParseCategory(s string) (CategoryConfig, error) {
	cfg, ok := Categories[Category(s)]
	if !ok {
		return CategoryConfig{}, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return cfg, nil
}

// UsesItemID reports whether the projection stores the item id rather than
// a value taken from item_data.
func (c CategoryConfig) UsesItemID() bool {
	return c.DataKey == ""
}

// ProjectionValue extracts the value stored in the projection column for an
// item. itemID is used for id-backed categories; otherwise the DataKey field
// of itemData must be a non-empty string.
func (c CategoryConfig) ProjectionValue(itemID string, itemData json.RawMessage) (string, error) {
	if c.UsesItemID() {
		return itemID, nil
	}

	var data map[string]any
	if len(itemData) > 0 {
		if err := json.Unmarshal(itemData, &data); err != nil {
			return "", fmt.Errorf("%w: invalid item data: %v", ErrNotEquippable, err)
		}
	}
	v, ok := data[c.DataKey].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s item has no %q", ErrNotEquippable, c.Category, c.DataKey)
	}
	return v, nil
}
