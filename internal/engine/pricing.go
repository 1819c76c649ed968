package engine

import (
	"github.com/stxbets/market-engine/internal/fixedpoint"
	"github.com/stxbets/market-engine/internal/model"
)

// OddsScale is the fixed-point scale for the informational odds
// multiplier: OddsScaled / OddsScale = totalPool / outcomePool.
const OddsScale = 1_000_000

// BetQuote is the potential payout for a hypothetical new bet.
type BetQuote struct {
	MarketID uint64         `json:"market_id"`
	Outcome  model.Outcome  `json:"outcome"`
	Stake    model.MicroSTX `json:"stake"`

	// OddsScaled is the current odds multiplier totalPool/outcomePool,
	// scaled by OddsScale. Zero when the outcome pool is empty (the
	// multiplier is undefined until someone stakes the outcome).
	OddsScaled int64 `json:"odds_scaled"`

	// GrossPayout is the payout if this stake were merged into the pool
	// and won: stake * (totalPool+stake) / (outcomePool+stake).
	GrossPayout model.MicroSTX `json:"gross_payout"`
	Fee         model.MicroSTX `json:"fee"`
	NetPayout   model.MicroSTX `json:"net_payout"`
}

// QuoteBet prices a new stake on one outcome of a market snapshot.
//
// The bet is hypothetically merged into the pool before computing its
// proportional share of the new total, so even the first bettor on an
// empty outcome pool gets a well-defined payout (the whole new pool).
func (e *Engine) QuoteBet(m *model.Market, outcome model.Outcome, stake model.MicroSTX) (*BetQuote, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if !m.Has(outcome) {
		return nil, ErrInvalidOutcome
	}
	if stake <= 0 {
		return nil, ErrInvalidAmount
	}
	if e.minBet > 0 && stake < e.minBet {
		return nil, ErrBetBelowMinimum
	}
	if m.MaxPool > 0 && m.TotalPool+stake > m.MaxPool {
		return nil, ErrMarketCapExceeded
	}

	pool := m.OutcomePool(outcome)

	// newPool = pool + stake > 0 always holds since stake > 0, which is
	// what makes the merged-pool formula total (no division by zero).
	gross, err := fixedpoint.MulDiv(int64(stake), int64(m.TotalPool+stake), int64(pool+stake))
	if err != nil {
		return nil, err
	}

	fee, err := e.fees.TotalFee(model.MicroSTX(gross))
	if err != nil {
		return nil, err
	}

	var odds int64
	if pool > 0 {
		odds, err = fixedpoint.MulDiv(int64(m.TotalPool), OddsScale, int64(pool))
		if err != nil {
			return nil, err
		}
	}

	return &BetQuote{
		MarketID:    m.ID,
		Outcome:     outcome,
		Stake:       stake,
		OddsScaled:  odds,
		GrossPayout: model.MicroSTX(gross),
		Fee:         fee,
		NetPayout:   model.MicroSTX(gross) - fee,
	}, nil
}

// MarketOdds returns the scaled odds multiplier for every outcome in the
// market's set, keyed by outcome. Outcomes with an empty pool map to zero.
func (e *Engine) MarketOdds(m *model.Market) (map[model.Outcome]int64, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	odds := make(map[model.Outcome]int64, 4)
	for _, o := range m.Outcomes() {
		pool := m.OutcomePool(o)
		if pool == 0 {
			odds[o] = 0
			continue
		}
		v, err := fixedpoint.MulDiv(int64(m.TotalPool), OddsScale, int64(pool))
		if err != nil {
			return nil, err
		}
		odds[o] = v
	}
	return odds, nil
}
