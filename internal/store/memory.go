package store

import (
	"context"
	"sync"

	"github.com/tradepulse/brokerage-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	holdings  map[holdingKey]*model.Holding
	positions map[holdingKey]*model.Position
	orders    []model.Order
}

type holdingKey struct {
	accountID  string
	instrument string
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		holdings:  make(map[holdingKey]*model.Holding),
		positions: make(map[holdingKey]*model.Position),
	}
}

func (s *MemoryStore) GetHolding(_ context.Context, accountID, instrument string) (*model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.holdings[holdingKey{accountID, instrument}]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *h
	return &copy, nil
}

func (s *MemoryStore) ListHoldings(_ context.Context, accountID string) ([]model.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var holdings []model.Holding
	for k, h := range s.holdings {
		if k.accountID == accountID {
			holdings = append(holdings, *h)
		}
	}
	return holdings, nil
}

// ApplyExecution appends the order and upserts or deletes the holding under
// a single lock, so both become visible together.
func (s *MemoryStore) ApplyExecution(_ context.Context, order *model.Order, holding *model.Holding, removeHolding bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := holdingKey{holding.AccountID, holding.Instrument}
	if removeHolding {
		delete(s.holdings, key)
	} else {
		copy := *holding
		s.holdings[key] = &copy
	}
	s.orders = append(s.orders, *order)
	return nil
}

func (s *MemoryStore) ListOrders(_ context.Context, accountID string) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Orders are appended in creation order, so insertion order is already
	// createdAt ascending.
	var orders []model.Order
	for _, o := range s.orders {
		if o.AccountID == accountID {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

func (s *MemoryStore) ListPositions(_ context.Context, accountID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var positions []model.Position
	for k, p := range s.positions {
		if k.accountID == accountID {
			positions = append(positions, *p)
		}
	}
	return positions, nil
}

func (s *MemoryStore) UpsertPosition(_ context.Context, p *model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *p
	s.positions[holdingKey{p.AccountID, p.Instrument}] = &copy
	return nil
}
