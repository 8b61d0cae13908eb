// Package store defines the persistence interface for the brokerage engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/tradepulse/brokerage-engine/internal/model"
)

var (
	// ErrNotFound is returned when no holding exists for the requested
	// (account, instrument) pair.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a concurrent mutation was detected and
	// the write could not be applied. Callers may retry.
	ErrConflict = errors.New("store: concurrent modification conflict")

	// ErrUnavailable is returned when the persistence substrate cannot be
	// reached. No partial writes occur on this path.
	ErrUnavailable = errors.New("store: storage unavailable")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. The execution engine is the
// sole writer of holdings; every holding mutation travels with its order
// record through ApplyExecution.
type Store interface {
	// --- Holding ledger ---

	// GetHolding retrieves the holding for one (account, instrument) pair.
	// Returns ErrNotFound when no holding exists.
	GetHolding(ctx context.Context, accountID, instrument string) (*model.Holding, error)

	// ListHoldings returns all holdings for an account.
	ListHoldings(ctx context.Context, accountID string) ([]model.Holding, error)

	// ApplyExecution atomically appends an immutable order record and
	// upserts the resulting holding. When removeHolding is true the
	// holding row is deleted instead (a fully liquidated position leaves
	// no zero-quantity row behind). Either both writes land or neither.
	ApplyExecution(ctx context.Context, order *model.Order, holding *model.Holding, removeHolding bool) error

	// --- Append-only order log ---

	// ListOrders returns all orders for an account, oldest first.
	ListOrders(ctx context.Context, accountID string) ([]model.Order, error)

	// --- Positions (display collection, populated outside the engine) ---

	// ListPositions returns all positions for an account.
	ListPositions(ctx context.Context, accountID string) ([]model.Position, error)

	// UpsertPosition inserts or replaces a position record.
	UpsertPosition(ctx context.Context, p *model.Position) error
}
