package snapshot

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/stxbets/market-engine/internal/model"
)

type positionKey struct {
	marketID uint64
	user     string
}

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	markets   map[uint64]*model.Market
	positions map[positionKey]*model.UserPosition
	liquidity map[positionKey]*model.LiquidityPosition
	lpStates  map[uint64]*model.LpState
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		markets:   make(map[uint64]*model.Market),
		positions: make(map[positionKey]*model.UserPosition),
		liquidity: make(map[positionKey]*model.LiquidityPosition),
		lpStates:  make(map[uint64]*model.LpState),
	}
}

func (s *MemoryStore) UpsertMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	dup := *m
	s.markets[m.ID] = &dup
	return nil
}

func (s *MemoryStore) GetMarket(_ context.Context, id uint64) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, fmt.Errorf("market %d: %w", id, ErrNotFound)
	}
	dup := *m
	return &dup, nil
}

func (s *MemoryStore) ListMarkets(_ context.Context) ([]model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]model.Market, 0, len(s.markets))
	for _, m := range s.markets {
		markets = append(markets, *m)
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].ID < markets[j].ID })
	return markets, nil
}

func (s *MemoryStore) UpsertPosition(_ context.Context, p *model.UserPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dup := *p
	s.positions[positionKey{p.MarketID, p.User}] = &dup
	return nil
}

func (s *MemoryStore) GetPosition(_ context.Context, marketID uint64, user string) (*model.UserPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[positionKey{marketID, user}]
	if !ok {
		return nil, fmt.Errorf("position %d/%s: %w", marketID, user, ErrNotFound)
	}
	dup := *p
	return &dup, nil
}

func (s *MemoryStore) ListUserPositions(_ context.Context, user string) ([]model.UserPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var positions []model.UserPosition
	for k, p := range s.positions {
		if k.user == user {
			positions = append(positions, *p)
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].MarketID < positions[j].MarketID })
	return positions, nil
}

func (s *MemoryStore) UpsertLiquidityPosition(_ context.Context, p *model.LiquidityPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dup := *p
	s.liquidity[positionKey{p.MarketID, p.User}] = &dup
	return nil
}

func (s *MemoryStore) ListUserLiquidity(_ context.Context, user string) ([]model.LiquidityPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stakes []model.LiquidityPosition
	for k, p := range s.liquidity {
		if k.user == user {
			stakes = append(stakes, *p)
		}
	}
	sort.Slice(stakes, func(i, j int) bool { return stakes[i].MarketID < stakes[j].MarketID })
	return stakes, nil
}

func (s *MemoryStore) UpsertLpState(_ context.Context, st *model.LpState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dup := *st
	s.lpStates[st.MarketID] = &dup
	return nil
}

func (s *MemoryStore) GetLpState(_ context.Context, marketID uint64) (*model.LpState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.lpStates[marketID]
	if !ok {
		return nil, fmt.Errorf("lp state %d: %w", marketID, ErrNotFound)
	}
	dup := *st
	return &dup, nil
}
