package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"token-economy/internal/economy"
	"token-economy/internal/model"
	"token-economy/internal/pkg/lock"
	"token-economy/internal/repository"
)

// TransferResult is the outcome of a transfer.
type TransferResult struct {
	Sent       int64          `json:"sent"`
	Tax        int64          `json:"tax"`
	NewBalance int64          `json:"newBalance"`
	Receiver   model.Identity `json:"receiver"`
}

// TransferService handles user-to-user transfers. The receiver gets the
// full amount; the sender additionally pays a tax that is burned.
type TransferService struct {
	store       *repository.Store
	userLock    *lock.UserLock
	taxBps      int64
	lockTimeout time.Duration
	now         Clock
}

// NewTransferService creates a new TransferService instance.
func NewTransferService(store *repository.Store, userLock *lock.UserLock, taxBps int64, lockTimeout time.Duration, now Clock) *TransferService {
	if now == nil {
		now = SystemClock
	}
	return &TransferService{
		store:       store,
		userLock:    userLock,
		taxBps:      taxBps,
		lockTimeout: lockTimeout,
		now:         now,
	}
}

// Transfer moves amount tokens from senderID to the user linked to
// receiverDiscordID.
func (s *TransferService) Transfer(ctx context.Context, senderID uuid.UUID, receiverDiscordID string, amount int64) (*TransferResult, error) {
	if amount <= 0 || amount > economy.MaxAmount {
		return nil, invalidf("amount must be a positive integer no greater than %d", economy.MaxAmount)
	}
	receiverDiscordID = strings.TrimSpace(receiverDiscordID)
	if receiverDiscordID == "" {
		return nil, invalidf("receiverDiscordId is required")
	}

	receiver, err := s.store.Profiles.ResolveDiscordID(ctx, receiverDiscordID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrReceiverNotFound
		}
		return nil, err
	}
	if receiver.UserID == senderID {
		return nil, ErrSelfTransfer
	}

	tax := economy.TransferTax(amount, s.taxBps)
	total := amount + tax

	var res *TransferResult
	err = s.userLock.WithLock(ctx, s.lockTimeout, func() error {
		return s.store.InTx(ctx, func(tx *repository.Store) error {
			now := s.now()

			if err := tx.Wallets.EnsureExists(ctx, receiver.UserID); err != nil {
				return err
			}
			if err := tx.Wallets.LockPair(ctx, senderID, receiver.UserID); err != nil {
				return err
			}

			wallet, err := tx.Wallets.Debit(ctx, senderID, total)
			if err != nil {
				return err
			}
			if _, err := tx.Wallets.Credit(ctx, receiver.UserID, amount); err != nil {
				return err
			}

			tr, err := tx.Transfers.Create(ctx, model.Transfer{
				SenderID:   senderID,
				ReceiverID: receiver.UserID,
				Amount:     amount,
				TaxAmount:  tax,
				CreatedAt:  now,
			})
			if err != nil {
				return err
			}

			ref := tr.ID.String()
			if _, err := tx.Transactions.Append(ctx, model.Transaction{
				UserID:      senderID,
				Amount:      -total,
				Type:        model.TxTypeTransferOut,
				Source:      model.SourceTransfer,
				Description: fmt.Sprintf("Sent %d tokens to %s (tax %d)", amount, displayName(receiver), tax),
				ReferenceID: &ref,
				CreatedAt:   now,
			}); err != nil {
				return err
			}
			if _, err := tx.Transactions.Append(ctx, model.Transaction{
				UserID:      receiver.UserID,
				Amount:      amount,
				Type:        model.TxTypeTransferIn,
				Source:      model.SourceTransfer,
				Description: fmt.Sprintf("Received %d tokens", amount),
				ReferenceID: &ref,
				CreatedAt:   now,
			}); err != nil {
				return err
			}

			res = &TransferResult{Sent: amount, Tax: tax, NewBalance: wallet.Balance, Receiver: *receiver}
			return nil
		})
	}, senderID, receiver.UserID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("sender_id", senderID.String()).
		Str("receiver_id", receiver.UserID.String()).
		Int64("amount", amount).
		Int64("tax", tax).
		Msg("Transfer completed")

	return res, nil
}

func displayName(p *model.Identity) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.UserID.String()
}
