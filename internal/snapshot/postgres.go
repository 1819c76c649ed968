package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stxbets/market-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as BIGINT micro-STX; no floating point or
// NUMERIC conversions anywhere in the money path.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const marketColumns = `id, title, description, category, outcome_set,
	pool_a, pool_b, pool_c, pool_d, total_pool, max_pool,
	settlement_height, settlement_type, oracle_address,
	settled, winning_outcome, expired`

func (s *PostgresStore) UpsertMarket(ctx context.Context, m *model.Market) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO markets (`+marketColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title,
		   description = EXCLUDED.description,
		   category = EXCLUDED.category,
		   outcome_set = EXCLUDED.outcome_set,
		   pool_a = EXCLUDED.pool_a,
		   pool_b = EXCLUDED.pool_b,
		   pool_c = EXCLUDED.pool_c,
		   pool_d = EXCLUDED.pool_d,
		   total_pool = EXCLUDED.total_pool,
		   max_pool = EXCLUDED.max_pool,
		   settlement_height = EXCLUDED.settlement_height,
		   settlement_type = EXCLUDED.settlement_type,
		   oracle_address = EXCLUDED.oracle_address,
		   settled = EXCLUDED.settled,
		   winning_outcome = EXCLUDED.winning_outcome,
		   expired = EXCLUDED.expired`,
		m.ID, m.Title, m.Description, m.Category, int16(m.OutcomeSet),
		m.PoolA, m.PoolB, m.PoolC, m.PoolD, m.TotalPool, m.MaxPool,
		m.SettlementHeight, m.SettlementType, m.OracleAddress,
		m.Settled, int16(m.WinningOutcome), m.Expired,
	)
	return err
}

func scanMarket(row pgx.Row) (*model.Market, error) {
	var m model.Market
	var outcomeSet, winning int16

	err := row.Scan(&m.ID, &m.Title, &m.Description, &m.Category, &outcomeSet,
		&m.PoolA, &m.PoolB, &m.PoolC, &m.PoolD, &m.TotalPool, &m.MaxPool,
		&m.SettlementHeight, &m.SettlementType, &m.OracleAddress,
		&m.Settled, &winning, &m.Expired)
	if err != nil {
		return nil, err
	}
	m.OutcomeSet = model.Outcome(outcomeSet)
	m.WinningOutcome = model.Outcome(winning)
	return &m, nil
}

func (s *PostgresStore) GetMarket(ctx context.Context, id uint64) (*model.Market, error) {
	m, err := scanMarket(s.pool.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("market %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get market %d: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketColumns+` FROM markets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

func (s *PostgresStore) UpsertPosition(ctx context.Context, p *model.UserPosition) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions (market_id, user_addr, amount_a, amount_b, amount_c, amount_d, total_invested, claimed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (market_id, user_addr) DO UPDATE SET
		   amount_a = EXCLUDED.amount_a,
		   amount_b = EXCLUDED.amount_b,
		   amount_c = EXCLUDED.amount_c,
		   amount_d = EXCLUDED.amount_d,
		   total_invested = EXCLUDED.total_invested,
		   claimed = EXCLUDED.claimed`,
		p.MarketID, p.User, p.AmountA, p.AmountB, p.AmountC, p.AmountD,
		p.TotalInvested, p.Claimed,
	)
	return err
}

func (s *PostgresStore) GetPosition(ctx context.Context, marketID uint64, user string) (*model.UserPosition, error) {
	var p model.UserPosition
	err := s.pool.QueryRow(ctx,
		`SELECT market_id, user_addr, amount_a, amount_b, amount_c, amount_d, total_invested, claimed
		 FROM positions WHERE market_id = $1 AND user_addr = $2`, marketID, user).
		Scan(&p.MarketID, &p.User, &p.AmountA, &p.AmountB, &p.AmountC, &p.AmountD,
			&p.TotalInvested, &p.Claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("position %d/%s: %w", marketID, user, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get position %d/%s: %w", marketID, user, err)
	}
	return &p, nil
}

func (s *PostgresStore) ListUserPositions(ctx context.Context, user string) ([]model.UserPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT market_id, user_addr, amount_a, amount_b, amount_c, amount_d, total_invested, claimed
		 FROM positions WHERE user_addr = $1 ORDER BY market_id`, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []model.UserPosition
	for rows.Next() {
		var p model.UserPosition
		if err := rows.Scan(&p.MarketID, &p.User, &p.AmountA, &p.AmountB, &p.AmountC, &p.AmountD,
			&p.TotalInvested, &p.Claimed); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (s *PostgresStore) UpsertLiquidityPosition(ctx context.Context, p *model.LiquidityPosition) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lp_positions (market_id, user_addr, liquidity, reward_debt)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (market_id, user_addr) DO UPDATE SET
		   liquidity = EXCLUDED.liquidity,
		   reward_debt = EXCLUDED.reward_debt`,
		p.MarketID, p.User, p.Liquidity, p.RewardDebt,
	)
	return err
}

func (s *PostgresStore) ListUserLiquidity(ctx context.Context, user string) ([]model.LiquidityPosition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT market_id, user_addr, liquidity, reward_debt
		 FROM lp_positions WHERE user_addr = $1 ORDER BY market_id`, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stakes []model.LiquidityPosition
	for rows.Next() {
		var p model.LiquidityPosition
		if err := rows.Scan(&p.MarketID, &p.User, &p.Liquidity, &p.RewardDebt); err != nil {
			return nil, err
		}
		stakes = append(stakes, p)
	}
	return stakes, rows.Err()
}

func (s *PostgresStore) UpsertLpState(ctx context.Context, st *model.LpState) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lp_states (market_id, total_liquidity, acc_fee_per_liquidity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (market_id) DO UPDATE SET
		   total_liquidity = EXCLUDED.total_liquidity,
		   acc_fee_per_liquidity = EXCLUDED.acc_fee_per_liquidity`,
		st.MarketID, st.TotalLiquidity, st.AccFeePerLiquidity,
	)
	return err
}

func (s *PostgresStore) GetLpState(ctx context.Context, marketID uint64) (*model.LpState, error) {
	var st model.LpState
	err := s.pool.QueryRow(ctx,
		`SELECT market_id, total_liquidity, acc_fee_per_liquidity
		 FROM lp_states WHERE market_id = $1`, marketID).
		Scan(&st.MarketID, &st.TotalLiquidity, &st.AccFeePerLiquidity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lp state %d: %w", marketID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get lp state %d: %w", marketID, err)
	}
	return &st, nil
}
