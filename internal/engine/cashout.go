package engine

import (
	"github.com/stxbets/market-engine/internal/fixedpoint"
	"github.com/stxbets/market-engine/internal/model"
)

// CashOutQuote prices an early exit from part of a live position. It is a
// quote, not a mutation: moving the funds and shrinking the position is
// the contract's responsibility.
type CashOutQuote struct {
	MarketID   uint64         `json:"market_id"`
	Outcome    model.Outcome  `json:"outcome"`
	ExitAmount model.MicroSTX `json:"exit_amount"`

	GrossPayout model.MicroSTX `json:"gross_payout"`
	Fee         model.MicroSTX `json:"fee"`
	NetPayout   model.MicroSTX `json:"net_payout"`

	// SlippagePct = (gross - exit) * 100 / exit, signed. Positive means
	// the pool has moved in the position's favor (premium), negative is
	// slippage against it.
	SlippagePct int64 `json:"slippage_pct"`
}

// QuoteCashOut prices exiting exitAmount from the position's stake on one
// outcome at the current pool-implied price. Only valid before the market
// resolves.
func (e *Engine) QuoteCashOut(m *model.Market, pos *model.UserPosition, outcome model.Outcome, exitAmount model.MicroSTX) (*CashOutQuote, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := pos.Validate(); err != nil {
		return nil, err
	}
	if m.Settled {
		return nil, ErrMarketSettled
	}
	if !m.Has(outcome) {
		return nil, ErrInvalidOutcome
	}
	if exitAmount <= 0 {
		return nil, ErrInvalidAmount
	}
	if exitAmount > pos.OutcomeAmount(outcome) {
		return nil, ErrInsufficientPosition
	}

	pool := m.OutcomePool(outcome)
	if pool == 0 {
		// Unreachable when exitAmount was drawn from this pool, but the
		// formula must never divide by zero on a bad snapshot.
		return nil, ErrIlliquidOutcome
	}

	gross, err := fixedpoint.MulDiv(int64(exitAmount), int64(m.TotalPool), int64(pool))
	if err != nil {
		return nil, err
	}

	fee, err := e.fees.TotalFee(model.MicroSTX(gross))
	if err != nil {
		return nil, err
	}

	slippage, err := fixedpoint.MulDiv(gross-int64(exitAmount), 100, int64(exitAmount))
	if err != nil {
		return nil, err
	}

	return &CashOutQuote{
		MarketID:    m.ID,
		Outcome:     outcome,
		ExitAmount:  exitAmount,
		GrossPayout: model.MicroSTX(gross),
		Fee:         fee,
		NetPayout:   model.MicroSTX(gross) - fee,
		SlippagePct: slippage,
	}, nil
}
