package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stxbets/market-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and refresh or invalidate the
// cache; reads check Redis first then fall back to the primary.
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

// --- Write-through (write to primary, refresh or invalidate cache) ---

func (s *CachedStore) UpsertMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.UpsertMarket(ctx, m); err != nil {
		return err
	}
	s.cacheMarket(ctx, m)
	return nil
}

func (s *CachedStore) UpsertPosition(ctx context.Context, p *model.UserPosition) error {
	if err := s.primary.UpsertPosition(ctx, p); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, positionKeyFor(p.MarketID, p.User))
	return nil
}

func (s *CachedStore) UpsertLiquidityPosition(ctx context.Context, p *model.LiquidityPosition) error {
	return s.primary.UpsertLiquidityPosition(ctx, p)
}

func (s *CachedStore) UpsertLpState(ctx context.Context, st *model.LpState) error {
	if err := s.primary.UpsertLpState(ctx, st); err != nil {
		return err
	}
	s.rdb.Del(ctx, lpStateKey(st.MarketID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetMarket(ctx context.Context, id uint64) (*model.Market, error) {
	data, err := s.rdb.Get(ctx, marketKey(id)).Bytes()
	if err == nil {
		var m model.Market
		if json.Unmarshal(data, &m) == nil {
			return &m, nil
		}
	}

	m, err := s.primary.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheMarket(ctx, m)
	return m, nil
}

func (s *CachedStore) GetPosition(ctx context.Context, marketID uint64, user string) (*model.UserPosition, error) {
	data, err := s.rdb.Get(ctx, positionKeyFor(marketID, user)).Bytes()
	if err == nil {
		var p model.UserPosition
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetPosition(ctx, marketID, user)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, positionKeyFor(marketID, user), data, s.ttl)
	}
	return p, nil
}

func (s *CachedStore) GetLpState(ctx context.Context, marketID uint64) (*model.LpState, error) {
	data, err := s.rdb.Get(ctx, lpStateKey(marketID)).Bytes()
	if err == nil {
		var st model.LpState
		if json.Unmarshal(data, &st) == nil {
			return &st, nil
		}
	}

	st, err := s.primary.GetLpState(ctx, marketID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(st); err == nil {
		s.rdb.Set(ctx, lpStateKey(marketID), data, s.ttl)
	}
	return st, nil
}

// --- Passthrough (not cached) ---

// List queries pass through: their result sets churn with every indexed
// block and invalidation would cost more than the read.

func (s *CachedStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	return s.primary.ListMarkets(ctx)
}

func (s *CachedStore) ListUserPositions(ctx context.Context, user string) ([]model.UserPosition, error) {
	return s.primary.ListUserPositions(ctx, user)
}

func (s *CachedStore) ListUserLiquidity(ctx context.Context, user string) ([]model.LiquidityPosition, error) {
	return s.primary.ListUserLiquidity(ctx, user)
}

// --- Cache helpers ---

func (s *CachedStore) cacheMarket(ctx context.Context, m *model.Market) {
	if data, err := json.Marshal(m); err == nil {
		s.rdb.Set(ctx, marketKey(m.ID), data, s.ttl)
	}
}

func marketKey(id uint64) string  { return fmt.Sprintf("market:%d", id) }
func lpStateKey(id uint64) string { return fmt.Sprintf("lpstate:%d", id) }

func positionKeyFor(marketID uint64, user string) string {
	return fmt.Sprintf("position:%d:%s", marketID, user)
}
