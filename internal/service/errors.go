// Package service provides business logic implementations.
package service

import (
	"errors"
	"fmt"

	"token-economy/internal/economy"
	"token-economy/internal/pkg/lock"
	"token-economy/internal/repository"
	"token-economy/internal/shop"
)

// Business rule violations. They are expected outcomes of a well-formed
// request and carry a message fit for the caller.
var (
	ErrDailyCapReached             = errors.New("daily earning cap reached")
	ErrAlreadyClaimed              = economy.ErrAlreadyClaimed
	ErrCooldownActive              = errors.New("cooldown active")
	ErrInsufficientBalance         = repository.ErrInsufficientBalance
	ErrItemNotFound                = repository.ErrItemNotFound
	ErrItemInactive                = errors.New("item is not available")
	ErrSoldOut                     = repository.ErrSoldOut
	ErrAlreadyOwned                = repository.ErrAlreadyOwned
	ErrItemNotOwned                = repository.ErrItemNotOwned
	ErrItemNotEquippable           = shop.ErrNotEquippable
	ErrReceiverNotFound            = errors.New("receiver not found")
	ErrSelfTransfer                = errors.New("cannot transfer to yourself")
	ErrSeasonalCurrencyNotFound    = repository.ErrSeasonalCurrencyNotFound
	ErrInsufficientSeasonalBalance = repository.ErrInsufficientSeasonalBalance
	ErrBusy                        = lock.ErrLockTimeout
)

// ErrForbidden is returned when the caller lacks the role an operation needs.
var ErrForbidden = errors.New("forbidden")

// BusinessErrors lists every business rule violation.
var BusinessErrors = []error{
	ErrDailyCapReached,
	ErrAlreadyClaimed,
	ErrCooldownActive,
	ErrInsufficientBalance,
	ErrItemNotFound,
	ErrItemInactive,
	ErrSoldOut,
	ErrAlreadyOwned,
	ErrItemNotOwned,
	ErrItemNotEquippable,
	ErrReceiverNotFound,
	ErrSelfTransfer,
	ErrSeasonalCurrencyNotFound,
	ErrInsufficientSeasonalBalance,
	ErrBusy,
}

// IsBusinessError reports whether err is a business rule violation.
func IsBusinessError(err error) bool {
	for _, target := range BusinessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error) error {
	return &ValidationError{Err: err}
}

func invalidf(format string, args ...any) error {
	return &ValidationError{Err: fmt.Errorf(format, args...)}
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
