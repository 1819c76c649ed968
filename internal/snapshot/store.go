// Package snapshot defines persistence for chain-state snapshots: markets,
// user positions, LP positions, and per-market LP fee state as last seen on
// the Stacks contract. Implementations include PostgreSQL (source of
// truth), Redis (read-through cache), and in-memory (for testing).
//
// Snapshots arrive from the chain indexer and are upserted whole; the
// service never mutates them field by field.
package snapshot

import (
	"context"
	"errors"

	"github.com/stxbets/market-engine/internal/model"
)

// ErrNotFound is returned when the requested snapshot does not exist.
var ErrNotFound = errors.New("snapshot: not found")

// Store is the snapshot persistence interface.
type Store interface {
	// --- Market snapshots ---

	// UpsertMarket stores or replaces a market snapshot.
	UpsertMarket(ctx context.Context, m *model.Market) error

	// GetMarket retrieves a market snapshot by contract market ID.
	GetMarket(ctx context.Context, id uint64) (*model.Market, error)

	// ListMarkets returns all market snapshots ordered by ID.
	ListMarkets(ctx context.Context) ([]model.Market, error)

	// --- Position snapshots ---

	// UpsertPosition stores or replaces a user position snapshot.
	UpsertPosition(ctx context.Context, p *model.UserPosition) error

	// GetPosition retrieves one user's position in one market.
	GetPosition(ctx context.Context, marketID uint64, user string) (*model.UserPosition, error)

	// ListUserPositions returns all of a user's positions ordered by market.
	ListUserPositions(ctx context.Context, user string) ([]model.UserPosition, error)

	// --- LP snapshots ---

	// UpsertLiquidityPosition stores or replaces an LP stake snapshot.
	UpsertLiquidityPosition(ctx context.Context, p *model.LiquidityPosition) error

	// ListUserLiquidity returns all of a user's LP stakes ordered by market.
	ListUserLiquidity(ctx context.Context, user string) ([]model.LiquidityPosition, error)

	// UpsertLpState stores or replaces a market's LP aggregate state.
	UpsertLpState(ctx context.Context, s *model.LpState) error

	// GetLpState retrieves a market's LP aggregate state.
	GetLpState(ctx context.Context, marketID uint64) (*model.LpState, error)
}
