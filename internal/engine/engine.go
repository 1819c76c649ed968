// Package engine implements the pari-mutuel pricing computations: bet
// quotes, early cash-out quotes, and settlement/refund quotes.
//
// Every operation is a deterministic, pure function of the snapshot it is
// handed — no I/O, no hidden state, no floating point — so an Engine is
// safe to share across goroutines without locking. Applying a quote (moving
// money, flipping claimed flags) is the contract's job, never ours.
package engine

import (
	"errors"

	"github.com/stxbets/market-engine/internal/fees"
	"github.com/stxbets/market-engine/internal/model"
)

var (
	// ErrInvalidAmount is returned for a non-positive stake or exit amount.
	ErrInvalidAmount = errors.New("engine: amount must be positive")

	// ErrBetBelowMinimum is returned when a stake is below the configured
	// minimum bet.
	ErrBetBelowMinimum = errors.New("engine: stake below minimum bet")

	// ErrInvalidOutcome is returned when the outcome bit is not part of the
	// market's outcome set.
	ErrInvalidOutcome = errors.New("engine: outcome not in market outcome set")

	// ErrInsufficientPosition is returned when a cash-out exceeds the
	// amount held on that outcome.
	ErrInsufficientPosition = errors.New("engine: cash-out exceeds held outcome amount")

	// ErrMarketCapExceeded is returned when a bet would push the total pool
	// beyond the market's cap.
	ErrMarketCapExceeded = errors.New("engine: bet would exceed market pool cap")

	// ErrMarketSettled is returned when a cash-out is attempted after
	// resolution. Cash-out is only valid pre-settlement.
	ErrMarketSettled = errors.New("engine: market already settled")

	// ErrMarketNotSettled is returned when a winnings claim is quoted on a
	// market that has not resolved.
	ErrMarketNotSettled = errors.New("engine: market not settled")

	// ErrMarketNotExpired is returned when a refund is quoted on a market
	// that has not expired.
	ErrMarketNotExpired = errors.New("engine: market not expired")

	// ErrIlliquidOutcome is returned for degenerate empty-pool arithmetic:
	// a payout against an outcome pool of zero.
	ErrIlliquidOutcome = errors.New("engine: outcome pool is empty")
)

// Engine computes quotes over market snapshots using a fixed fee schedule.
type Engine struct {
	fees   fees.Schedule
	minBet model.MicroSTX
}

// New creates an engine for one fee regime. minBet is the smallest stake
// QuoteBet will price (the contract's MIN_BET_AMOUNT); pass 0 to accept
// any positive stake.
func New(schedule fees.Schedule, minBet model.MicroSTX) (*Engine, error) {
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	if minBet < 0 {
		return nil, ErrInvalidAmount
	}
	return &Engine{fees: schedule, minBet: minBet}, nil
}

// Fees returns the engine's fee schedule.
func (e *Engine) Fees() fees.Schedule {
	return e.fees
}

// MinBet returns the minimum stake QuoteBet accepts.
func (e *Engine) MinBet() model.MicroSTX {
	return e.minBet
}
