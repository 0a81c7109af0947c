package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"token-economy/internal/model"
	"token-economy/internal/pkg/lock"
	"token-economy/internal/repository"
	"token-economy/internal/shop"
)

// PurchaseResult is the outcome of a purchase.
type PurchaseResult struct {
	NewBalance int64           `json:"newBalance"`
	Item       *model.ShopItem `json:"item"`
}

// ShopService handles purchases and equipping of cosmetic items.
type ShopService struct {
	store       *repository.Store
	userLock    *lock.UserLock
	lockTimeout time.Duration
	now         Clock
}

// NewShopService creates a new ShopService instance.
func NewShopService(store *repository.Store, userLock *lock.UserLock, lockTimeout time.Duration, now Clock) *ShopService {
	if now == nil {
		now = SystemClock
	}
	return &ShopService{
		store:       store,
		userLock:    userLock,
		lockTimeout: lockTimeout,
		now:         now,
	}
}

// PurchaseItem buys one unit of an item. The checks run in a fixed order
// (not found, inactive, sold out, already owned, insufficient balance) and
// every write happens in one transaction with the item row locked.
func (s *ShopService) PurchaseItem(ctx context.Context, userID, itemID uuid.UUID) (*PurchaseResult, error) {
	var res *PurchaseResult

	err := s.userLock.WithLock(ctx, s.lockTimeout, func() error {
		return s.store.InTx(ctx, func(tx *repository.Store) error {
			item, err := tx.Catalog.GetItemForUpdate(ctx, itemID)
			if err != nil {
				return err
			}
			if !item.IsActive {
				return ErrItemInactive
			}
			if item.SoldOut() {
				return ErrSoldOut
			}

			owned, err := tx.Catalog.Owns(ctx, userID, itemID)
			if err != nil {
				return err
			}
			if owned {
				return ErrAlreadyOwned
			}

			wallet, err := tx.Wallets.Debit(ctx, userID, item.Price)
			if err != nil {
				return err
			}
			if err := tx.Catalog.AddToInventory(ctx, userID, itemID); err != nil {
				return err
			}
			sold, err := tx.Catalog.IncrementSold(ctx, itemID)
			if err != nil {
				return err
			}
			item.SoldCount = sold

			ref := itemID.String()
			if _, err := tx.Transactions.Append(ctx, model.Transaction{
				UserID:      userID,
				Amount:      -item.Price,
				Type:        model.TxTypeSpend,
				Source:      model.SourcePurchase,
				Description: "Purchased " + item.Name,
				ReferenceID: &ref,
				CreatedAt:   s.now(),
			}); err != nil {
				return err
			}

			res = &PurchaseResult{NewBalance: wallet.Balance, Item: item}
			return nil
		})
	}, userID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("item_id", itemID.String()).
		Int64("price", res.Item.Price).
		Msg("Item purchased")

	return res, nil
}

// EquipItem makes an owned item the active choice of its category and
// mirrors it into the profile customization projection.
func (s *ShopService) EquipItem(ctx context.Context, userID, itemID uuid.UUID, category string) error {
	cat, err := shop.ParseCategory(category)
	if err != nil {
		return invalid(err)
	}

	return s.userLock.WithLock(ctx, s.lockTimeout, func() error {
		return s.store.InTx(ctx, func(tx *repository.Store) error {
			owned, err := tx.Catalog.Owns(ctx, userID, itemID)
			if err != nil {
				return err
			}
			if !owned {
				return ErrItemNotOwned
			}

			item, err := tx.Catalog.GetItem(ctx, itemID)
			if err != nil {
				return err
			}
			if item.Category != string(cat.Category) {
				return invalidf("item is a %s, not a %s", item.Category, cat.Category)
			}

			value, err := cat.ProjectionValue(item.ID.String(), item.ItemData)
			if err != nil {
				return err
			}

			if err := tx.Catalog.Equip(ctx, userID, itemID, cat.Category); err != nil {
				return err
			}
			return tx.Catalog.SetCustomization(ctx, userID, cat, value)
		})
	}, userID)
}
