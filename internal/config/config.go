// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Economy   EconomyConfig   `mapstructure:"economy"`
	MiniGames []MiniGame      `mapstructure:"mini_games"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Path            string        `mapstructure:"path"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string   `mapstructure:"jwt_secret"`
	Issuer    string   `mapstructure:"issuer"`
	Audience  string   `mapstructure:"audience"`
	OwnerIDs  []string `mapstructure:"owner_ids"`
}

// EconomyConfig holds the ledger's tunable constants.
type EconomyConfig struct {
	DailyEarnCap           int64         `mapstructure:"daily_earn_cap"`
	DailyBaseReward        int64         `mapstructure:"daily_base_reward"`
	WeeklyStreakBonus      int64         `mapstructure:"weekly_streak_bonus"`
	WeeklyStreakInterval   int           `mapstructure:"weekly_streak_interval"`
	MonthlyBonus           int64         `mapstructure:"monthly_bonus"`
	MonthlyClaimsThreshold int           `mapstructure:"monthly_claims_threshold"`
	MiniGameReward         int64         `mapstructure:"mini_game_reward"`
	MiniGameCooldown       time.Duration `mapstructure:"mini_game_cooldown"`
	GalleryReward          int64         `mapstructure:"gallery_reward"`
	GalleryCooldown        time.Duration `mapstructure:"gallery_cooldown"`
	TransferTaxBasisPoints int64         `mapstructure:"transfer_tax_bps"`
	LeaderboardSize        int           `mapstructure:"leaderboard_size"`
	TopEarnersWindow       time.Duration `mapstructure:"top_earners_window"`
	WalletRecentTx         int           `mapstructure:"wallet_recent_tx"`
	StatsRecentTx          int           `mapstructure:"stats_recent_tx"`
	LockTimeout            time.Duration `mapstructure:"lock_timeout"`
}

// MiniGame registers a mini-game type that may pay out tokens.
type MiniGame struct {
	Type     string `mapstructure:"type"`
	Name     string `mapstructure:"name"`
	MaxScore int64  `mapstructure:"max_score"`
}

// JobsConfig holds background job schedules.
type JobsConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	SeasonalSyncSpec   string `mapstructure:"seasonal_sync_spec"`
	CapPruneSpec       string `mapstructure:"cap_prune_spec"`
	CapRetentionDays   int    `mapstructure:"cap_retention_days"`
	AuditPruneSpec     string `mapstructure:"audit_prune_spec"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
}

// TelemetryConfig holds OpenTelemetry tracing configuration.
// Tracing is disabled when Endpoint is empty.
type TelemetryConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. AUTH_JWT_SECRET, DATABASE_HOST, ECONOMY_DAILY_EARN_CAP
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.path", "/token-economy")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.request_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.max_body_bytes", 64*1024)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "ledger")
	v.SetDefault("database.name", "ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("database.password", "")

	// Keys without a meaningful default are still registered so that
	// AutomaticEnv picks them up during Unmarshal.
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "authenticated")
	v.SetDefault("auth.owner_ids", []string{})

	v.SetDefault("economy.daily_earn_cap", 250)
	v.SetDefault("economy.daily_base_reward", 25)
	v.SetDefault("economy.weekly_streak_bonus", 100)
	v.SetDefault("economy.weekly_streak_interval", 7)
	v.SetDefault("economy.monthly_bonus", 500)
	v.SetDefault("economy.monthly_claims_threshold", 28)
	v.SetDefault("economy.mini_game_reward", 50)
	v.SetDefault("economy.mini_game_cooldown", "60s")
	v.SetDefault("economy.gallery_reward", 20)
	v.SetDefault("economy.gallery_cooldown", "5m")
	v.SetDefault("economy.transfer_tax_bps", 500)
	v.SetDefault("economy.leaderboard_size", 10)
	v.SetDefault("economy.top_earners_window", "720h")
	v.SetDefault("economy.wallet_recent_tx", 20)
	v.SetDefault("economy.stats_recent_tx", 50)
	v.SetDefault("economy.lock_timeout", "5s")

	v.SetDefault("mini_games", []map[string]any{
		{"type": "trivia", "name": "Lore Trivia", "max_score": 100},
		{"type": "memory", "name": "Memory Match", "max_score": 10000},
		{"type": "reaction", "name": "Quick Draw", "max_score": 1000},
		{"type": "word_scramble", "name": "Word Scramble", "max_score": 500},
	})

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.seasonal_sync_spec", "@every 1h")
	v.SetDefault("jobs.cap_prune_spec", "10 0 * * *")
	v.SetDefault("jobs.cap_retention_days", 30)
	v.SetDefault("jobs.audit_prune_spec", "20 0 * * *")
	v.SetDefault("jobs.audit_retention_days", 90)

	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.service_name", "token-economy")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Validate checks invariants that the ledger depends on.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	e := c.Economy
	if e.DailyEarnCap <= 0 {
		return fmt.Errorf("economy.daily_earn_cap must be positive, got %d", e.DailyEarnCap)
	}
	if e.WeeklyStreakInterval <= 0 {
		return fmt.Errorf("economy.weekly_streak_interval must be positive, got %d", e.WeeklyStreakInterval)
	}
	if e.TransferTaxBasisPoints < 0 || e.TransferTaxBasisPoints > 10000 {
		return fmt.Errorf("economy.transfer_tax_bps must be within [0, 10000], got %d", e.TransferTaxBasisPoints)
	}
	for _, g := range c.MiniGames {
		if g.Type == "" {
			return fmt.Errorf("mini_games: type cannot be empty")
		}
	}
	return nil
}
