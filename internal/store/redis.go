package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradepulse/brokerage-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the hot display reads (holdings, orders, positions). Writes go
// to the primary store and invalidate the affected account's cache entries.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Writes (write to primary, invalidate cache) ---

// ApplyExecution delegates to the primary store, then drops the account's
// cached holdings and orders so the next read sees the new state. Single
// holdings are never cached, so the engine's read-modify-write always hits
// the primary.
func (s *CachedStore) ApplyExecution(ctx context.Context, order *model.Order, holding *model.Holding, removeHolding bool) error {
	if err := s.primary.ApplyExecution(ctx, order, holding, removeHolding); err != nil {
		return err
	}
	s.rdb.Del(ctx, holdingsKey(order.AccountID), ordersKey(order.AccountID))
	return nil
}

func (s *CachedStore) UpsertPosition(ctx context.Context, p *model.Position) error {
	if err := s.primary.UpsertPosition(ctx, p); err != nil {
		return err
	}
	s.rdb.Del(ctx, positionsKey(p.AccountID))
	return nil
}

// --- Reads ---

// GetHolding always reads the primary: the engine's read-modify-write must
// never observe a stale cached quantity.
func (s *CachedStore) GetHolding(ctx context.Context, accountID, instrument string) (*model.Holding, error) {
	return s.primary.GetHolding(ctx, accountID, instrument)
}

func (s *CachedStore) ListHoldings(ctx context.Context, accountID string) ([]model.Holding, error) {
	var holdings []model.Holding
	if s.readCached(ctx, holdingsKey(accountID), &holdings) {
		return holdings, nil
	}

	holdings, err := s.primary.ListHoldings(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.writeCached(ctx, holdingsKey(accountID), holdings)
	return holdings, nil
}

func (s *CachedStore) ListOrders(ctx context.Context, accountID string) ([]model.Order, error) {
	var orders []model.Order
	if s.readCached(ctx, ordersKey(accountID), &orders) {
		return orders, nil
	}

	orders, err := s.primary.ListOrders(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.writeCached(ctx, ordersKey(accountID), orders)
	return orders, nil
}

func (s *CachedStore) ListPositions(ctx context.Context, accountID string) ([]model.Position, error) {
	var positions []model.Position
	if s.readCached(ctx, positionsKey(accountID), &positions) {
		return positions, nil
	}

	positions, err := s.primary.ListPositions(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.writeCached(ctx, positionsKey(accountID), positions)
	return positions, nil
}

// --- Cache helpers ---

func (s *CachedStore) readCached(ctx context.Context, key string, dest interface{}) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (s *CachedStore) writeCached(ctx context.Context, key string, v interface{}) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func holdingsKey(accountID string) string  { return fmt.Sprintf("holdings:%s", accountID) }
func ordersKey(accountID string) string    { return fmt.Sprintf("orders:%s", accountID) }
func positionsKey(accountID string) string { return fmt.Sprintf("positions:%s", accountID) }
