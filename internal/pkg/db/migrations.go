package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

type migration struct {
	name string
	sql  string
}

// migrations are applied in order on every start; each statement is idempotent.
var migrations = []migration{
	{
		// profiles and user_roles belong to the hosted auth backend. They are
		// created here only so a standalone database has the same shape.
		name: "identity tables",
		sql: `
			CREATE TABLE IF NOT EXISTS profiles (
				user_id UUID PRIMARY KEY,
				discord_id TEXT UNIQUE,
				display_name TEXT NOT NULL DEFAULT '',
				avatar_url TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE TABLE IF NOT EXISTS user_roles (
				user_id UUID NOT NULL,
				role TEXT NOT NULL,
				PRIMARY KEY (user_id, role)
			);
		`,
	},
	{
		name: "wallets",
		sql: `
			CREATE TABLE IF NOT EXISTS wallets (
				user_id UUID PRIMARY KEY,
				balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
				lifetime_earned BIGINT NOT NULL DEFAULT 0 CHECK (lifetime_earned >= 0),
				lifetime_spent BIGINT NOT NULL DEFAULT 0 CHECK (lifetime_spent >= 0),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_wallets_balance ON wallets(balance DESC);
			CREATE INDEX IF NOT EXISTS idx_wallets_spent ON wallets(lifetime_spent DESC);
		`,
	},
	{
		name: "daily earning caps",
		sql: `
			CREATE TABLE IF NOT EXISTS daily_earning_caps (
				user_id UUID NOT NULL,
				earn_date DATE NOT NULL,
				total_earned BIGINT NOT NULL DEFAULT 0 CHECK (total_earned >= 0),
				PRIMARY KEY (user_id, earn_date)
			);
		`,
	},
	{
		name: "login streaks",
		sql: `
			CREATE TABLE IF NOT EXISTS login_streaks (
				user_id UUID PRIMARY KEY,
				current_streak INT NOT NULL DEFAULT 0,
				longest_streak INT NOT NULL DEFAULT 0,
				last_claim_date DATE,
				monthly_claims INT NOT NULL DEFAULT 0,
				monthly_reset_date DATE,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_login_streaks_longest ON login_streaks(longest_streak DESC);
		`,
	},
	{
		name: "seasonal currencies",
		sql: `
			CREATE TABLE IF NOT EXISTS seasonal_currencies (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				name TEXT NOT NULL,
				icon TEXT NOT NULL DEFAULT '',
				multiplier DOUBLE PRECISION NOT NULL CHECK (multiplier >= 0),
				is_active BOOLEAN NOT NULL DEFAULT FALSE,
				starts_at TIMESTAMPTZ,
				ends_at TIMESTAMPTZ
			);
			CREATE TABLE IF NOT EXISTS seasonal_balances (
				user_id UUID NOT NULL,
				currency_id UUID NOT NULL REFERENCES seasonal_currencies(id) ON DELETE CASCADE,
				balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (user_id, currency_id)
			);
		`,
	},
	{
		name: "transactions",
		sql: `
			CREATE TABLE IF NOT EXISTS transactions (
				id BIGSERIAL PRIMARY KEY,
				user_id UUID NOT NULL,
				amount BIGINT NOT NULL,
				transaction_type TEXT NOT NULL
					CHECK (transaction_type IN ('earn', 'spend', 'transfer_in', 'transfer_out')),
				source TEXT NOT NULL
					CHECK (source IN ('daily_login', 'mini_game', 'gallery_approved', 'purchase', 'transfer', 'seasonal_convert')),
				description TEXT NOT NULL DEFAULT '',
				reference_id TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions(user_id, created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_transactions_user_source_time ON transactions(user_id, source, created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_transactions_type_time ON transactions(transaction_type, created_at DESC);
		`,
	},
	{
		name: "shop catalog and inventory",
		sql: `
			CREATE TABLE IF NOT EXISTS shop_items (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL,
				price BIGINT NOT NULL CHECK (price > 0),
				is_limited BOOLEAN NOT NULL DEFAULT FALSE,
				max_quantity BIGINT,
				sold_count BIGINT NOT NULL DEFAULT 0,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				item_data JSONB NOT NULL DEFAULT '{}'::jsonb,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CHECK (NOT is_limited OR max_quantity IS NULL OR sold_count <= max_quantity)
			);
			CREATE TABLE IF NOT EXISTS user_inventory (
				user_id UUID NOT NULL,
				item_id UUID NOT NULL REFERENCES shop_items(id),
				is_equipped BOOLEAN NOT NULL DEFAULT FALSE,
				purchased_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (user_id, item_id)
			);
			CREATE TABLE IF NOT EXISTS profile_customizations (
				user_id UUID PRIMARY KEY,
				username_color TEXT,
				badge_id UUID,
				frame_id UUID,
				bio_effect TEXT,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`,
	},
	{
		name: "transfers",
		sql: `
			CREATE TABLE IF NOT EXISTS transfers (
				id UUID PRIMARY KEY,
				sender_id UUID NOT NULL,
				receiver_id UUID NOT NULL,
				amount BIGINT NOT NULL CHECK (amount > 0),
				tax_amount BIGINT NOT NULL CHECK (tax_amount >= 0),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CHECK (sender_id <> receiver_id)
			);
			CREATE INDEX IF NOT EXISTS idx_transfers_sender ON transfers(sender_id, created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_transfers_receiver ON transfers(receiver_id, created_at DESC);
		`,
	},
	{
		name: "mini game audit",
		sql: `
			CREATE TABLE IF NOT EXISTS mini_game_audit (
				id BIGSERIAL PRIMARY KEY,
				user_id UUID NOT NULL,
				game_type TEXT NOT NULL,
				score BIGINT NOT NULL,
				ip_address TEXT,
				user_agent TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_mini_game_audit_user ON mini_game_audit(user_id, created_at DESC);
		`,
	},
}

// Migrate executes database migrations.
func Migrate(ctx context.Context, conn DBTX) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := conn.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Int("step", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
