// Package model defines the core domain types shared across the brokerage
// engine. All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Order is an immutable record of one accepted BUY/SELL instruction.
// Once created, orders are never modified or deleted (audit trail).
type Order struct {
	ID         string          `json:"id" db:"id"`
	AccountID  string          `json:"account_id" db:"account_id"`
	Instrument string          `json:"instrument" db:"instrument"`
	Quantity   int64           `json:"quantity" db:"quantity"` // whole units, > 0
	Price      decimal.Decimal `json:"price" db:"price"`       // execution price, >= 0
	Side       string          `json:"side" db:"side"`         // "BUY" or "SELL"
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// Holding is the mutable aggregate position for one (account, instrument)
// pair. A holding exists iff its quantity is positive: a sell that drains
// the quantity to zero removes the record entirely, so AverageCost is
// always defined on a persisted holding.
type Holding struct {
	AccountID      string          `json:"account_id" db:"account_id"`
	Instrument     string          `json:"instrument" db:"instrument"`
	Quantity       int64           `json:"quantity" db:"quantity"`
	AverageCost    decimal.Decimal `json:"average_cost" db:"average_cost"` // volume-weighted across open BUY lots
	LastTradePrice decimal.Decimal `json:"last_trade_price" db:"last_trade_price"`
	DayChangePct   decimal.Decimal `json:"day_change_pct" db:"day_change_pct"` // display only
	NetChangePct   decimal.Decimal `json:"net_change_pct" db:"net_change_pct"` // display only
}

// Position is a read-only display record, structurally identical to Holding.
// Positions live in a separate collection populated outside the execution
// engine; the engine never writes them.
type Position struct {
	AccountID      string          `json:"account_id" db:"account_id"`
	Instrument     string          `json:"instrument" db:"instrument"`
	Quantity       int64           `json:"quantity" db:"quantity"`
	AverageCost    decimal.Decimal `json:"average_cost" db:"average_cost"`
	LastTradePrice decimal.Decimal `json:"last_trade_price" db:"last_trade_price"`
	DayChangePct   decimal.Decimal `json:"day_change_pct" db:"day_change_pct"`
	NetChangePct   decimal.Decimal `json:"net_change_pct" db:"net_change_pct"`
}
