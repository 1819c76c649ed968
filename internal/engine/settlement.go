package engine

import (
	"github.com/stxbets/market-engine/internal/fixedpoint"
	"github.com/stxbets/market-engine/internal/model"
)

// QuoteWinningsClaim computes the net payout a position can claim from a
// settled market. A position with nothing on the winning outcome, or one
// already claimed, quotes zero — that is an answer, not an error.
//
// Idempotent pure computation; flipping claimed is the contract's job,
// but a claimed position always quoting zero here keeps the aggregator
// from double counting regardless.
func (e *Engine) QuoteWinningsClaim(m *model.Market, pos *model.UserPosition) (model.MicroSTX, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	if err := pos.Validate(); err != nil {
		return 0, err
	}
	if !m.Settled {
		return 0, ErrMarketNotSettled
	}
	if pos.Claimed {
		return 0, nil
	}

	winAmount := pos.OutcomeAmount(m.WinningOutcome)
	if winAmount == 0 {
		return 0, nil
	}

	winPool := m.OutcomePool(m.WinningOutcome)
	if winPool == 0 {
		// Unreachable with winAmount > 0 on a consistent snapshot; guard
		// the division anyway.
		return 0, ErrIlliquidOutcome
	}

	gross, err := fixedpoint.MulDiv(int64(winAmount), int64(m.TotalPool), int64(winPool))
	if err != nil {
		return 0, err
	}
	fee, err := e.fees.TotalFee(model.MicroSTX(gross))
	if err != nil {
		return 0, err
	}
	return model.MicroSTX(gross) - fee, nil
}

// QuoteRefund computes the refund for a position in an expired market:
// the full principal back, no fee. This distinguishes the expired path
// from the settled path, which does deduct fees.
func (e *Engine) QuoteRefund(m *model.Market, pos *model.UserPosition) (model.MicroSTX, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	if err := pos.Validate(); err != nil {
		return 0, err
	}
	if !m.Expired {
		return 0, ErrMarketNotExpired
	}
	if pos.Claimed {
		return 0, nil
	}
	return pos.TotalInvested, nil
}
