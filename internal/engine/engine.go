// Package engine implements order execution against the holding ledger:
// validating a BUY/SELL request, blending the volume-weighted average cost,
// and committing the order record and the mutated holding as one atomic
// write.
//
// All monetary values use shopspring/decimal — never float64 for money.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradepulse/brokerage-engine/internal/model"
	"github.com/tradepulse/brokerage-engine/internal/store"
)

// CostScale is the number of decimal places kept on blended average cost.
const CostScale int32 = 8

// maxConflictRetries bounds internal retries when the store reports a
// concurrent-modification conflict. The conflict is transient, not a
// logical rejection, so a few retries are attempted before surfacing it.
const maxConflictRetries = 3

// Request is a validated order intent. Account identity is resolved by the
// caller (authentication is upstream); the engine trusts AccountID.
type Request struct {
	AccountID  string
	Instrument string
	Side       string // "BUY" or "SELL"
	Quantity   int64
	Price      decimal.Decimal
}

// Engine is the sole writer of holdings. Executions on the same
// (account, instrument) pair are serialized by a per-pair lock held across
// the read-modify-write; different pairs proceed independently. The lock is
// what rules out the lost-update race between concurrent sells, and it
// assumes a single engine instance in front of the store: the holding read
// happens outside the store transaction, so the transaction only makes the
// order+holding write atomic. Horizontal scaling would need the read moved
// inside the transaction or a version check on the write.
type Engine struct {
	store store.Store
	locks *keyedLocks
}

// New creates an execution engine on top of the given store.
func New(st store.Store) *Engine {
	return &Engine{
		store: st,
		locks: newKeyedLocks(),
	}
}

// Execute validates and applies one order. On success the returned order has
// been appended to the order log and the holding for the pair reflects it;
// on any error both stores are untouched.
func (e *Engine) Execute(ctx context.Context, req Request) (*model.Order, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	release := e.locks.acquire(req.AccountID, req.Instrument)
	defer release()

	var order *model.Order
	var err error
	for attempt := 0; ; attempt++ {
		order, err = e.executeLocked(ctx, req)
		if !errors.Is(err, store.ErrConflict) || attempt == maxConflictRetries {
			break
		}
		slog.Warn("execution conflict, retrying",
			"account", req.AccountID,
			"instrument", req.Instrument,
			"attempt", attempt+1,
		)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("order executed",
		"order_id", order.ID,
		"account", req.AccountID,
		"instrument", req.Instrument,
		"side", req.Side,
		"qty", req.Quantity,
		"price", req.Price.String(),
	)
	return order, nil
}

// executeLocked performs one read-modify-write attempt. The per-pair lock is
// already held.
func (e *Engine) executeLocked(ctx context.Context, req Request) (*model.Order, error) {
	existing, err := e.store.GetHolding(ctx, req.AccountID, req.Instrument)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var holding *model.Holding
	var remove bool

	switch req.Side {
	case model.SideBuy:
		holding = applyBuy(existing, req)
	case model.SideSell:
		if existing == nil {
			return nil, ErrInsufficientHoldings
		}
		if req.Quantity > existing.Quantity {
			return nil, ErrOverSell
		}
		holding, remove = applySell(existing, req)
	}

	order := &model.Order{
		ID:         uuid.New().String(),
		AccountID:  req.AccountID,
		Instrument: req.Instrument,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Side:       req.Side,
		CreatedAt:  time.Now().UTC(),
	}

	if err := e.store.ApplyExecution(ctx, order, holding, remove); err != nil {
		return nil, err
	}
	return order, nil
}

// applyBuy blends the order into the holding. A fresh pair starts at the
// order's price; an existing one gets the volume-weighted average cost:
//
//	newAvg = (heldQty*heldAvg + orderQty*orderPrice) / (heldQty + orderQty)
func applyBuy(existing *model.Holding, req Request) *model.Holding {
	if existing == nil {
		return &model.Holding{
			AccountID:      req.AccountID,
			Instrument:     req.Instrument,
			Quantity:       req.Quantity,
			AverageCost:    req.Price,
			LastTradePrice: req.Price,
		}
	}

	heldQty := decimal.NewFromInt(existing.Quantity)
	orderQty := decimal.NewFromInt(req.Quantity)
	totalCost := heldQty.Mul(existing.AverageCost).Add(orderQty.Mul(req.Price))
	newAvg := totalCost.Div(heldQty.Add(orderQty)).Round(CostScale)

	h := *existing
	h.Quantity += req.Quantity
	h.AverageCost = newAvg
	h.LastTradePrice = req.Price
	return &h
}

// applySell decrements the holding. The average cost of the remaining
// shares does not change on a partial sell; a sell that drains the holding
// to zero removes the record entirely, so no zero-quantity row survives a
// full liquidation.
func applySell(existing *model.Holding, req Request) (*model.Holding, bool) {
	h := *existing
	h.Quantity -= req.Quantity
	h.LastTradePrice = req.Price
	return &h, h.Quantity == 0
}

func validate(req Request) error {
	if req.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if req.Price.IsNegative() {
		return ErrInvalidPrice
	}
	if req.Side != model.SideBuy && req.Side != model.SideSell {
		return ErrInvalidSide
	}
	return nil
}
