// Package lpreward implements accumulated-fee-per-liquidity-unit
// accounting with per-LP reward-debt snapshots.
//
// This is the standard accumulator-with-debt pattern from yield-farming
// reward accounting: each LP's claimable amount is computed in O(1)
// without replaying fee events, and an LP who joins after some fees have
// accrued only earns fees accrued after their rewardDebt snapshot was
// taken. Rounding losses are strictly conservative — the sum of all
// pending rewards never exceeds the sum of accrued LP fees.
package lpreward

import (
	"errors"

	"github.com/stxbets/market-engine/internal/fixedpoint"
	"github.com/stxbets/market-engine/internal/model"
)

// FeePrecision scales the accFeePerLiquidity accumulator. Matches the
// contract's LP_FEE_PRECISION.
const FeePrecision = 1_000_000

// ErrNegativeFee is returned when a negative fee amount is accrued.
var ErrNegativeFee = errors.New("lpreward: fee amount must be non-negative")

// AccrueResult is the outcome of folding one LP fee amount into a market's
// accumulator.
type AccrueResult struct {
	// AccFeePerLiquidity is the updated accumulator value.
	AccFeePerLiquidity int64 `json:"acc_fee_per_liquidity"`

	// Retained is the portion of the fee that could not be distributed.
	// When a market has no liquidity providers, the whole fee is retained
	// (kept by the contract, not credited to anyone) rather than silently
	// dropped — the accumulator is left untouched in that instant.
	Retained model.MicroSTX `json:"retained"`
}

// Accrue folds lpFee into the market's accumulator:
//
//	accFeePerLiquidity += lpFee * FeePrecision / totalLiquidity (truncating)
//
// It is pure — the updated accumulator is returned, not written; the
// contract owns the actual state transition.
func Accrue(state model.LpState, lpFee model.MicroSTX) (AccrueResult, error) {
	if lpFee < 0 {
		return AccrueResult{}, ErrNegativeFee
	}
	if state.TotalLiquidity <= 0 {
		return AccrueResult{
			AccFeePerLiquidity: state.AccFeePerLiquidity,
			Retained:           lpFee,
		}, nil
	}

	delta, err := fixedpoint.MulDiv(int64(lpFee), FeePrecision, int64(state.TotalLiquidity))
	if err != nil {
		return AccrueResult{}, err
	}
	return AccrueResult{
		AccFeePerLiquidity: state.AccFeePerLiquidity + delta,
	}, nil
}

// PendingReward computes one LP's claimable fees against the current
// accumulator:
//
//	earned  = floor(liquidity * accFeePerLiquidity / FeePrecision)
//	pending = max(0, earned - rewardDebt)
//
// The contract resets rewardDebt to earned at every deposit, withdraw,
// and claim, which is what prevents double payment.
func PendingReward(pos model.LiquidityPosition, state model.LpState) (model.MicroSTX, error) {
	if pos.Liquidity <= 0 {
		return 0, nil
	}

	earned, err := fixedpoint.MulDiv(int64(pos.Liquidity), state.AccFeePerLiquidity, FeePrecision)
	if err != nil {
		return 0, err
	}

	pending := earned - int64(pos.RewardDebt)
	if pending < 0 {
		return 0, nil
	}
	return model.MicroSTX(pending), nil
}

// DebtFor returns the rewardDebt snapshot the contract would record for a
// position of the given size at the current accumulator value. Useful for
// reproducing deposit/claim transitions in tests and projections.
func DebtFor(liquidity model.MicroSTX, state model.LpState) (model.MicroSTX, error) {
	if liquidity <= 0 {
		return 0, nil
	}
	earned, err := fixedpoint.MulDiv(int64(liquidity), state.AccFeePerLiquidity, FeePrecision)
	if err != nil {
		return 0, err
	}
	return model.MicroSTX(earned), nil
}
