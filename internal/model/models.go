// Package model defines the data models for the token economy ledger.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Wallet holds a user's spendable balance and lifetime counters.
type Wallet struct {
	UserID         uuid.UUID `db:"user_id" json:"userId"`
	Balance        int64     `db:"balance" json:"balance"`
	LifetimeEarned int64     `db:"lifetime_earned" json:"lifetimeEarned"`
	LifetimeSpent  int64     `db:"lifetime_spent" json:"lifetimeSpent"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// LoginStreak tracks consecutive daily claims for a user.
// LastClaimDate and MonthlyResetDate are UTC calendar days.
type LoginStreak struct {
	UserID           uuid.UUID  `db:"user_id" json:"userId"`
	CurrentStreak    int        `db:"current_streak" json:"currentStreak"`
	LongestStreak    int        `db:"longest_streak" json:"longestStreak"`
	LastClaimDate    *time.Time `db:"last_claim_date" json:"lastClaimDate"`
	MonthlyClaims    int        `db:"monthly_claims" json:"monthlyClaims"`
	MonthlyResetDate *time.Time `db:"monthly_reset_date" json:"monthlyResetDate"`
}

// SeasonalCurrency is a time-limited secondary currency fed by a multiplier
// on every earn event while it is active.
type SeasonalCurrency struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Name       string     `db:"name" json:"name"`
	Icon       string     `db:"icon" json:"icon"`
	Multiplier float64    `db:"multiplier" json:"multiplier"`
	IsActive   bool       `db:"is_active" json:"isActive"`
	StartsAt   *time.Time `db:"starts_at" json:"startsAt,omitempty"`
	EndsAt     *time.Time `db:"ends_at" json:"endsAt,omitempty"`
}

// SeasonalBalance is a user's balance in one seasonal currency, joined with
// the currency metadata for display.
type SeasonalBalance struct {
	UserID   uuid.UUID        `db:"user_id" json:"userId"`
	Balance  int64            `db:"balance" json:"balance"`
	Currency SeasonalCurrency `json:"currency"`
}

// Transaction is an immutable ledger entry. Positive amounts are credits.
type Transaction struct {
	ID          int64     `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"userId"`
	Amount      int64     `db:"amount" json:"amount"`
	Type        TxType    `db:"transaction_type" json:"transactionType"`
	Source      TxSource  `db:"source" json:"source"`
	Description string    `db:"description" json:"description"`
	ReferenceID *string   `db:"reference_id" json:"referenceId,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	User        *Identity `json:"user,omitempty"`
}

// TxType categorizes the direction of a balance change.
type TxType string

// Transaction types.
const (
	TxTypeEarn        TxType = "earn"
	TxTypeSpend       TxType = "spend"
	TxTypeTransferIn  TxType = "transfer_in"
	TxTypeTransferOut TxType = "transfer_out"
)

// TxSource records what caused a balance change.
type TxSource string

// Transaction sources.
const (
	SourceDailyLogin      TxSource = "daily_login"
	SourceMiniGame        TxSource = "mini_game"
	SourceGalleryApproved TxSource = "gallery_approved"
	SourcePurchase        TxSource = "purchase"
	SourceTransfer        TxSource = "transfer"
	SourceSeasonalConvert TxSource = "seasonal_convert"
)

// ShopItem is a catalog entry.
type ShopItem struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Category    string          `db:"category" json:"category"`
	Price       int64           `db:"price" json:"price"`
	IsLimited   bool            `db:"is_limited" json:"isLimited"`
	MaxQuantity *int64          `db:"max_quantity" json:"maxQuantity"`
	SoldCount   int64           `db:"sold_count" json:"soldCount"`
	IsActive    bool            `db:"is_active" json:"isActive"`
	ItemData    json.RawMessage `db:"item_data" json:"itemData"`
}

// SoldOut reports whether a limited item has no units left.
func (i *ShopItem) SoldOut() bool {
	return i.IsLimited && i.MaxQuantity != nil && i.SoldCount >= *i.MaxQuantity
}

// InventoryEntry records ownership of one item by one user.
type InventoryEntry struct {
	UserID      uuid.UUID `db:"user_id" json:"userId"`
	ItemID      uuid.UUID `db:"item_id" json:"itemId"`
	Category    string    `db:"category" json:"category"`
	IsEquipped  bool      `db:"is_equipped" json:"isEquipped"`
	PurchasedAt time.Time `db:"purchased_at" json:"purchasedAt"`
}

// ProfileCustomization is the read-optimized projection of a user's
// equipped cosmetics. It is derived from user_inventory and rewritten on
// every equip.
type ProfileCustomization struct {
	UserID        uuid.UUID  `db:"user_id" json:"userId"`
	UsernameColor *string    `db:"username_color" json:"usernameColor"`
	BadgeID       *uuid.UUID `db:"badge_id" json:"badgeId"`
	FrameID       *uuid.UUID `db:"frame_id" json:"frameId"`
	BioEffect     *string    `db:"bio_effect" json:"bioEffect"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// MiniGameAudit is an abuse-monitoring record of one mini-game payout request.
type MiniGameAudit struct {
	UserID    uuid.UUID
	GameType  string
	Score     int64
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// Transfer records a peer-to-peer move. Amount is what the receiver got;
// the sender paid Amount + TaxAmount.
type Transfer struct {
	ID         uuid.UUID `db:"id" json:"id"`
	SenderID   uuid.UUID `db:"sender_id" json:"senderId"`
	ReceiverID uuid.UUID `db:"receiver_id" json:"receiverId"`
	Amount     int64     `db:"amount" json:"amount"`
	TaxAmount  int64     `db:"tax_amount" json:"taxAmount"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Identity is the public display identity of a user, owned by the hosted
// backend's profiles table.
type Identity struct {
	UserID      uuid.UUID `db:"user_id" json:"userId"`
	DiscordID   *string   `db:"discord_id" json:"discordId,omitempty"`
	DisplayName string    `db:"display_name" json:"displayName"`
	AvatarURL   *string   `db:"avatar_url" json:"avatarUrl,omitempty"`
}

// LeaderboardEntry is one ranked row of a leaderboard.
type LeaderboardEntry struct {
	Rank  int      `json:"rank"`
	Value int64    `json:"value"`
	User  Identity `json:"user"`
}

// EconomyTotals aggregates all wallets.
type EconomyTotals struct {
	Circulation int64 `db:"circulation"`
	Earned      int64 `db:"earned"`
	Spent       int64 `db:"spent"`
	Users       int64 `db:"users"`
}

// Roles that grant privileged access.
const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
)
