// Package handler dispatches token economy actions received over the
// single RPC endpoint to the services.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"token-economy/internal/model"
	"token-economy/internal/service"
)

// Action names one RPC operation.
type Action string

// Supported actions.
const (
	ActionClaimDaily      Action = "claim_daily"
	ActionEarnMiniGame    Action = "earn_mini_game"
	ActionEarnGallery     Action = "earn_gallery"
	ActionPurchaseItem    Action = "purchase_item"
	ActionEquipItem       Action = "equip_item"
	ActionTransfer        Action = "transfer"
	ActionConvertSeasonal Action = "convert_seasonal"
	ActionGetWallet       Action = "get_wallet"
	ActionGetLeaderboard  Action = "get_leaderboard"
	ActionGetEconomyStats Action = "get_economy_stats"
)

// ErrUnknownAction is returned for an action outside the supported set.
var ErrUnknownAction = errors.New("unknown action")

// Earner pays out tokens.
type Earner interface {
	ClaimDaily(ctx context.Context, userID uuid.UUID) (*service.ClaimResult, error)
	EarnMiniGame(ctx context.Context, userID uuid.UUID, gameType string, score int64, client service.ClientInfo) (*service.EarnResult, error)
	EarnGallery(ctx context.Context, callerID uuid.UUID, submissionUserID *uuid.UUID) (*service.EarnResult, error)
}

// Shop sells and equips items.
type Shop interface {
	PurchaseItem(ctx context.Context, userID, itemID uuid.UUID) (*service.PurchaseResult, error)
	EquipItem(ctx context.Context, userID, itemID uuid.UUID, category string) error
}

// Transferer moves tokens between users.
type Transferer interface {
	Transfer(ctx context.Context, senderID uuid.UUID, receiverDiscordID string, amount int64) (*service.TransferResult, error)
}

// Converter turns seasonal currency into tokens.
type Converter interface {
	Convert(ctx context.Context, userID, currencyID uuid.UUID, amount int64) (*service.ConvertResult, error)
}

// WalletReader serves the caller's wallet view.
type WalletReader interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*service.WalletView, error)
}

// Ranker serves leaderboards and owner statistics.
type Ranker interface {
	Leaderboard(ctx context.Context, typ string) ([]model.LeaderboardEntry, error)
	Stats(ctx context.Context, callerID uuid.UUID) (*service.EconomyStats, error)
}

// Services bundles the dependencies of a Dispatcher.
type Services struct {
	Earning  Earner
	Shop     Shop
	Transfer Transferer
	Seasonal Converter
	Wallet   WalletReader
	Ranking  Ranker
}

// Caller is the authenticated user behind a request.
type Caller struct {
	UserID uuid.UUID
	Client service.ClientInfo
}

type actionFunc func(ctx context.Context, caller Caller, body []byte) (any, error)

// Dispatcher routes actions to typed handler functions.
type Dispatcher struct {
	svc     Services
	actions map[Action]actionFunc
}

// NewDispatcher creates a Dispatcher over svc.
func NewDispatcher(svc Services) *Dispatcher {
	d := &Dispatcher{svc: svc}
	d.actions = map[Action]actionFunc{
		ActionClaimDaily:      d.claimDaily,
		ActionEarnMiniGame:    d.earnMiniGame,
		ActionEarnGallery:     d.earnGallery,
		ActionPurchaseItem:    d.purchaseItem,
		ActionEquipItem:       d.equipItem,
		ActionTransfer:        d.transfer,
		ActionConvertSeasonal: d.convertSeasonal,
		ActionGetWallet:       d.getWallet,
		ActionGetLeaderboard:  d.getLeaderboard,
		ActionGetEconomyStats: d.getEconomyStats,
	}
	return d
}

// Actions lists every action the dispatcher accepts, sorted.
func (d *Dispatcher) Actions() []Action {
	out := make([]Action, 0, len(d.actions))
	for a := range d.actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dispatch runs action with the parameters in body, which is the full
// request object including the action field.
func (d *Dispatcher) Dispatch(ctx context.Context, caller Caller, action Action, body []byte) (any, error) {
	fn, ok := d.actions[action]
	if !ok {
		return nil, &service.ValidationError{Err: fmt.Errorf("%w: %q", ErrUnknownAction, action)}
	}
	return fn(ctx, caller, body)
}

// success marks a mutation response.
type success struct {
	Success bool `json:"success"`
}

var succeeded = success{Success: true}

type claimDailyResponse struct {
	success
	*service.ClaimResult
}

func (d *Dispatcher) claimDaily(ctx context.Context, caller Caller, _ []byte) (any, error) {
	res, err := d.svc.Earning.ClaimDaily(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	return claimDailyResponse{succeeded, res}, nil
}

type earnMiniGameParams struct {
	GameType string `json:"gameType"`
	Score    *int64 `json:"score"`
}

type earnResponse struct {
	success
	*service.EarnResult
}

func (d *Dispatcher) earnMiniGame(ctx context.Context, caller Caller, body []byte) (any, error) {
	var p earnMiniGameParams
	if err := decodeParams(body, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.GameType) == "" {
		return nil, invalidParam("gameType is required")
	}
	if p.Score == nil {
		return nil, invalidParam("score is required")
	}

	res, err := d.svc.Earning.EarnMiniGame(ctx, caller.UserID, p.GameType, *p.Score, caller.Client)
	if err != nil {
		return nil, err
	}
	return earnResponse{succeeded, res}, nil
}

type earnGalleryParams struct {
	SubmissionUserID *string `json:"submissionUserId"`
}

func (d *Dispatcher) earnGallery(ctx context.Context, caller Caller, body []byte) (any, error) {
	var p earnGalleryParams
	if err := decodeParams(body, &p); err != nil {
		return nil, err
	}

	var target *uuid.UUID
	if p.SubmissionUserID != nil && *p.SubmissionUserID != "" {
		id, err := parseID("submissionUserId", *p.SubmissionUserID)
		if err != nil {
			return nil, err
		}
		target = &id
	}

	res, err := d.svc.Earning.EarnGallery(ctx, caller.UserID, target)
	if err != nil {
		return nil, err
	}
	return earnResponse{succeeded, res}, nil
}

type itemParams struct {
	ItemID   string `json:"itemId"`
	Category string `json:"category"`
}

type purchaseResponse struct {
	success
	*service.PurchaseResult
}

func (d *Dispatcher) purchaseItem(ctx context.Context, caller Caller, body []byte) (any, error) {
	var p itemParams
	if err := decodeParams(body, &p); err != nil {
		return nil, err
	}
	itemID, err := parseID("itemId", p.ItemID)
	if err != nil {
		return nil, err
	}

	res, err := d.svc.Shop.PurchaseItem(ctx, caller.UserID, itemID)
	if err != nil {
		return nil, err
	}
	return purchaseResponse{succeeded, res}, nil
}

func (d *Dispatcher) equipItem(ctx context.Context, caller Caller, body []byte) (any, error) {
	var p itemParams
	if err := decodeParams(body, &p); err != nil {
		return nil, err
	}
	itemID, err := parseID("itemId", p.ItemID)
	if err != nil {
		return nil, err
	}
	if p.Category == "" {
		return nil, invalidParam("category is required")
	}

	if err := d.svc.Shop.EquipItem(ctx, caller.UserID, itemID, p.Category); err != nil {
		return nil, err
	}
	return succeeded, nil
}

type transferParams struct {
	ReceiverDiscordID string `json:"receiverDiscordId"`
	Amount            *int64 `json:"amount"`
}

type transferResponse struct {
	success
	*service.TransferResult
}

func (d *Dispatcher) transfer(ctx context.Context, caller Caller, body []byte) (any, error) {
	var p transferParams
	if err := decodeParams(body, &p); err != nil {
		return nil, err
	}
	if p.ReceiverDiscordID == "" {
		return nil, invalidParam("receiverDiscordId is required")
	}
	if p.Amount == nil {
		return nil, invalidParam("amount is required")
	}

	res, err := d.svc.Transfer.Transfer(ctx, caller.UserID, p.ReceiverDiscordID, *p.Amount)
	if err != nil {
		return nil, err
	}
	return transferResponse{succeeded, res}, nil
}

type convertParams struct {
	CurrencyID string `json:"currencyId"`
	Amount     *int64 `json:"amount"`
}

type convertResponse struct {
	success
	*service.ConvertResult
}

func (d *Dispatcher) convertSeasonal(ctx context.Context, caller Caller, body []byte) (any, error) {
	var p convertParams
	if err := decodeParams(body, &p); err != nil {
		return nil, err
	}
	currencyID, err := parseID("currencyId", p.CurrencyID)
	if err != nil {
		return nil, err
	}
	if p.Amount == nil {
		return nil, invalidParam("amount is required")
	}

	res, err := d.svc.Seasonal.Convert(ctx, caller.UserID, currencyID, *p.Amount)
	if err != nil {
		return nil, err
	}
	return convertResponse{succeeded, res}, nil
}

func (d *Dispatcher) getWallet(ctx context.Context, caller Caller, _ []byte) (any, error) {
	return d.svc.Wallet.GetWallet(ctx, caller.UserID)
}

type leaderboardParams struct {
	Type string `json:"type"`
}

type leaderboardResponse struct {
	Leaderboard []model.LeaderboardEntry `json:"leaderboard"`
}

func (d *Dispatcher) getLeaderboard(ctx context.Context, _ Caller, body []byte) (any, error) {
	var p leaderboardParams
	if err := decodeParams(body, &p); err != nil {
		return nil, err
	}
	if p.Type == "" {
		return nil, invalidParam("type is required")
	}

	entries, err := d.svc.Ranking.Leaderboard(ctx, p.Type)
	if err != nil {
		return nil, err
	}
	return leaderboardResponse{Leaderboard: entries}, nil
}

func (d *Dispatcher) getEconomyStats(ctx context.Context, caller Caller, _ []byte) (any, error) {
	return d.svc.Ranking.Stats(ctx, caller.UserID)
}

// decodeParams decodes the action parameters from the request object.
// Unknown fields are ignored so that every action can share one envelope.
func decodeParams(body []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(dst); err != nil {
		return &service.ValidationError{Err: fmt.Errorf("invalid parameters: %w", err)}
	}
	return nil
}

func parseID(field, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, invalidParam(field + " is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalidParam(field + " must be a UUID")
	}
	return id, nil
}

func invalidParam(msg string) error {
	return &service.ValidationError{Err: errors.New(msg)}
}
