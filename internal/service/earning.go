package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"token-economy/internal/config"
	"token-economy/internal/economy"
	"token-economy/internal/game"
	"token-economy/internal/model"
	"token-economy/internal/pkg/lock"
	"token-economy/internal/repository"
)

const auditTimeout = 5 * time.Second

// ClaimResult is the outcome of a daily claim.
type ClaimResult struct {
	Amount        int64 `json:"amount"`
	NewBalance    int64 `json:"newBalance"`
	Streak        int   `json:"streak"`
	Reward        int64 `json:"reward"`
	MonthlyClaims int   `json:"monthlyClaims"`
}

// EarnResult is the outcome of a fixed-amount award.
type EarnResult struct {
	Amount     int64 `json:"amount"`
	NewBalance int64 `json:"newBalance"`
}

// ClientInfo identifies the device a request came from.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// EarningService pays out tokens. Every payout goes through one award
// routine that applies the daily cap, credits the wallet, logs the
// transaction and feeds active seasonal currencies.
type EarningService struct {
	store    *repository.Store
	userLock *lock.UserLock
	access   *Access
	games    *game.Registry
	cfg      config.EconomyConfig
	schedule economy.RewardSchedule
	now      Clock

	audits sync.WaitGroup
}

// NewEarningService creates a new EarningService instance.
func NewEarningService(
	store *repository.Store,
	userLock *lock.UserLock,
	access *Access,
	games *game.Registry,
	cfg config.EconomyConfig,
	now Clock,
) *EarningService {
	if now == nil {
		now = SystemClock
	}
	return &EarningService{
		store:    store,
		userLock: userLock,
		access:   access,
		games:    games,
		cfg:      cfg,
		schedule: economy.RewardSchedule{
			Base:             cfg.DailyBaseReward,
			WeeklyBonus:      cfg.WeeklyStreakBonus,
			WeeklyInterval:   cfg.WeeklyStreakInterval,
			MonthlyBonus:     cfg.MonthlyBonus,
			MonthlyThreshold: cfg.MonthlyClaimsThreshold,
		},
		now: now,
	}
}

// awardRequest describes one payout through the award routine.
type awardRequest struct {
	UserID      uuid.UUID
	Amount      int64
	Source      model.TxSource
	Description string
	ReferenceID *string
	// Cooldown, when set, is the minimum time since the user's last
	// transaction from Source.
	Cooldown time.Duration
	Now      time.Time
}

type awardResult struct {
	Granted   int64
	Remaining int64
	Wallet    *model.Wallet
}

// award runs inside tx. The (user, day) cap row is locked first, which
// also serializes the cooldown check for concurrent requests of one user.
func (s *EarningService) award(ctx context.Context, tx *repository.Store, req awardRequest) (*awardResult, error) {
	day := economy.Day(req.Now)

	earned, err := tx.DailyCaps.Lock(ctx, req.UserID, day)
	if err != nil {
		return nil, err
	}

	if req.Cooldown > 0 {
		last, err := tx.Transactions.LastBySource(ctx, req.UserID, req.Source)
		if err != nil {
			return nil, err
		}
		if left := economy.CooldownRemaining(last, req.Now, req.Cooldown); left > 0 {
			return nil, fmt.Errorf("%w. Try again in %d seconds", ErrCooldownActive, economy.CeilSeconds(left))
		}
	}

	check := economy.CheckCap(earned, req.Amount, s.cfg.DailyEarnCap)
	granted := check.Grant(req.Amount)
	if granted <= 0 {
		return nil, fmt.Errorf("%w. Remaining: %d tokens", ErrDailyCapReached, check.Remaining)
	}

	if _, err := tx.DailyCaps.Add(ctx, req.UserID, day, granted, s.cfg.DailyEarnCap); err != nil {
		if errors.Is(err, repository.ErrDailyCapExceeded) {
			return nil, fmt.Errorf("%w. Remaining: %d tokens", ErrDailyCapReached, check.Remaining)
		}
		return nil, err
	}

	wallet, err := tx.Wallets.Credit(ctx, req.UserID, granted)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Transactions.Append(ctx, model.Transaction{
		UserID:      req.UserID,
		Amount:      granted,
		Type:        model.TxTypeEarn,
		Source:      req.Source,
		Description: req.Description,
		ReferenceID: req.ReferenceID,
		CreatedAt:   req.Now,
	}); err != nil {
		return nil, err
	}

	if err := s.feedSeasonal(ctx, tx, req.UserID, granted); err != nil {
		return nil, err
	}

	return &awardResult{Granted: granted, Remaining: check.Remaining - granted, Wallet: wallet}, nil
}

// feedSeasonal credits every active seasonal currency with its multiple of
// the granted amount.
func (s *EarningService) feedSeasonal(ctx context.Context, tx *repository.Store, userID uuid.UUID, granted int64) error {
	currencies, err := tx.Seasonal.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, c := range currencies {
		bonus := economy.SeasonalAward(granted, c.Multiplier)
		if bonus <= 0 {
			continue
		}
		if _, err := tx.Seasonal.AddBalance(ctx, userID, c.ID, bonus); err != nil {
			return err
		}
	}
	return nil
}

// ClaimDaily grants the daily login reward. It can succeed once per UTC day.
// A claim rejected by the daily cap leaves the streak untouched.
func (s *EarningService) ClaimDaily(ctx context.Context, userID uuid.UUID) (*ClaimResult, error) {
	var res *ClaimResult

	err := s.userLock.WithLock(ctx, s.cfg.LockTimeout, func() error {
		return s.store.InTx(ctx, func(tx *repository.Store) error {
			now := s.now()

			streak, err := tx.Streaks.GetForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			next, err := economy.AdvanceStreak(*streak, now)
			if err != nil {
				return err
			}

			reward := s.schedule.Reward(next.CurrentStreak, next.MonthlyClaims)
			a, err := s.award(ctx, tx, awardRequest{
				UserID:      userID,
				Amount:      reward,
				Source:      model.SourceDailyLogin,
				Description: fmt.Sprintf("Daily login reward (day %d streak)", next.CurrentStreak),
				Now:         now,
			})
			if err != nil {
				return err
			}

			if err := tx.Streaks.Save(ctx, &next); err != nil {
				return err
			}

			res = &ClaimResult{
				Amount:        a.Granted,
				NewBalance:    a.Wallet.Balance,
				Streak:        next.CurrentStreak,
				Reward:        reward,
				MonthlyClaims: next.MonthlyClaims,
			}
			return nil
		})
	}, userID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Int64("amount", res.Amount).
		Int64("reward", res.Reward).
		Int("streak", res.Streak).
		Msg("Daily reward claimed")

	return res, nil
}

// EarnMiniGame pays the mini-game reward for a reported score. Every
// validated attempt is recorded for abuse monitoring in the background.
func (s *EarningService) EarnMiniGame(ctx context.Context, userID uuid.UUID, gameType string, score int64, client ClientInfo) (*EarnResult, error) {
	if err := s.games.Validate(gameType, score); err != nil {
		return nil, invalid(err)
	}

	s.recordMiniGame(model.MiniGameAudit{
		UserID:    userID,
		GameType:  gameType,
		Score:     score,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		CreatedAt: s.now(),
	})

	res, err := s.earnFixed(ctx, awardRequest{
		UserID:      userID,
		Amount:      s.cfg.MiniGameReward,
		Source:      model.SourceMiniGame,
		Description: fmt.Sprintf("Mini-game reward: %s (score %d)", gameType, score),
		Cooldown:    s.cfg.MiniGameCooldown,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("game_type", gameType).
		Int64("score", score).
		Int64("amount", res.Amount).
		Msg("Mini-game reward paid")

	return res, nil
}

// EarnGallery pays the gallery reward to submissionUserID, or to the caller
// when it is nil. Paying someone else requires a staff role.
func (s *EarningService) EarnGallery(ctx context.Context, callerID uuid.UUID, submissionUserID *uuid.UUID) (*EarnResult, error) {
	target := callerID
	if submissionUserID != nil && *submissionUserID != callerID {
		staff, err := s.access.IsStaff(ctx, callerID)
		if err != nil {
			return nil, err
		}
		if !staff {
			return nil, ErrForbidden
		}
		target = *submissionUserID
	}

	ref := callerID.String()
	res, err := s.earnFixed(ctx, awardRequest{
		UserID:      target,
		Amount:      s.cfg.GalleryReward,
		Source:      model.SourceGalleryApproved,
		Description: "Gallery submission approved",
		ReferenceID: &ref,
		Cooldown:    s.cfg.GalleryCooldown,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", target.String()).
		Str("approved_by", callerID.String()).
		Int64("amount", res.Amount).
		Msg("Gallery reward paid")

	return res, nil
}

func (s *EarningService) earnFixed(ctx context.Context, req awardRequest) (*EarnResult, error) {
	var res *EarnResult
	err := s.userLock.WithLock(ctx, s.cfg.LockTimeout, func() error {
		return s.store.InTx(ctx, func(tx *repository.Store) error {
			req.Now = s.now()
			a, err := s.award(ctx, tx, req)
			if err != nil {
				return err
			}
			res = &EarnResult{Amount: a.Granted, NewBalance: a.Wallet.Balance}
			return nil
		})
	}, req.UserID)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// recordMiniGame writes the audit record without blocking the request.
// Failures are logged and otherwise ignored.
func (s *EarningService) recordMiniGame(a model.MiniGameAudit) {
	s.audits.Add(1)
	go func() {
		defer s.audits.Done()

		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()

		if err := s.store.Audit.InsertMiniGame(ctx, a); err != nil {
			log.Warn().Err(err).Str("user_id", a.UserID.String()).Msg("Failed to record mini-game audit")
		}
	}()
}

// Wait blocks until pending background audit writes have finished.
func (s *EarningService) Wait() {
	s.audits.Wait()
}
