// Package model defines the read-only snapshot types consumed by the
// pricing engine: markets, user positions, liquidity positions, and
// per-market LP fee state.
//
// The Stacks contract is the source of truth for all of these; the engine
// only ever sees immutable snapshots and never writes back. All monetary
// values are integer micro-STX — never float64, and never a decimal type
// in the computation path. Conversion to display units happens only at
// the API boundary.
package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MicroSTX is a monetary amount in micro-STX (1 STX = 1_000_000 micro-STX).
type MicroSTX int64

// Decimal converts a micro-STX amount to its exact display-unit value.
// Lossless (exponent -6); presentation only — engine arithmetic stays on
// the integer type.
func (m MicroSTX) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -6)
}

// String renders the amount in display units, e.g. "13.963636".
func (m MicroSTX) String() string {
	return m.Decimal().String()
}

// Outcome is a single market outcome, encoded as one bit so that a market's
// outcome set is a bitmask. Matches the contract encoding.
type Outcome uint8

const (
	OutcomeA Outcome = 1
	OutcomeB Outcome = 2
	OutcomeC Outcome = 4
	OutcomeD Outcome = 8
)

// AllOutcomes lists every possible outcome bit in contract order.
var AllOutcomes = [4]Outcome{OutcomeA, OutcomeB, OutcomeC, OutcomeD}

// Valid reports whether o is exactly one of the four outcome bits.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeA, OutcomeB, OutcomeC, OutcomeD:
		return true
	}
	return false
}

// Label returns the human-facing outcome letter.
func (o Outcome) Label() string {
	switch o {
	case OutcomeA:
		return "A"
	case OutcomeB:
		return "B"
	case OutcomeC:
		return "C"
	case OutcomeD:
		return "D"
	}
	return "?"
}

// ParseOutcome maps an outcome letter ("A".."D") to its bit.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "A":
		return OutcomeA, nil
	case "B":
		return OutcomeB, nil
	case "C":
		return OutcomeC, nil
	case "D":
		return OutcomeD, nil
	}
	return 0, fmt.Errorf("model: unknown outcome %q", s)
}

// Settlement types recognized by the contract.
const (
	SettlementBlockHash = "block-hash"
	SettlementOracle    = "oracle"
)

// MarketState is the lifecycle state of a market. OPEN is the only
// non-terminal state; SETTLED and EXPIRED are terminal and mutually
// exclusive.
type MarketState string

const (
	StateOpen    MarketState = "open"
	StateSettled MarketState = "settled"
	StateExpired MarketState = "expired"
)

// ErrInvariantViolation is returned when a caller-supplied snapshot fails
// one of the structural invariants below. The engine fails fast rather
// than computing on inconsistent state.
var ErrInvariantViolation = errors.New("model: snapshot violates a market invariant")

// Market is an immutable snapshot of one pari-mutuel market.
type Market struct {
	ID          uint64 `json:"id" db:"id"`
	Title       string `json:"title" db:"title"`
	Description string `json:"description,omitempty" db:"description"`
	Category    string `json:"category,omitempty" db:"category"`

	// OutcomeSet is a bitmask over {A=1, B=2, C=4, D=8}. Two bits set for
	// binary markets, up to four for multi-outcome markets.
	OutcomeSet Outcome `json:"outcome_set" db:"outcome_set"`

	PoolA MicroSTX `json:"pool_a" db:"pool_a"`
	PoolB MicroSTX `json:"pool_b" db:"pool_b"`
	PoolC MicroSTX `json:"pool_c" db:"pool_c"`
	PoolD MicroSTX `json:"pool_d" db:"pool_d"`

	TotalPool MicroSTX `json:"total_pool" db:"total_pool"`
	MaxPool   MicroSTX `json:"max_pool,omitempty" db:"max_pool"` // 0 = uncapped

	SettlementHeight uint64 `json:"settlement_height" db:"settlement_height"`
	SettlementType   string `json:"settlement_type,omitempty" db:"settlement_type"`
	OracleAddress    string `json:"oracle_address,omitempty" db:"oracle_address"`

	Settled        bool    `json:"settled" db:"settled"`
	WinningOutcome Outcome `json:"winning_outcome,omitempty" db:"winning_outcome"` // 0 until settled
	Expired        bool    `json:"expired" db:"expired"`
}

// OutcomePool returns the stake total for one outcome.
func (m *Market) OutcomePool(o Outcome) MicroSTX {
	switch o {
	case OutcomeA:
		return m.PoolA
	case OutcomeB:
		return m.PoolB
	case OutcomeC:
		return m.PoolC
	case OutcomeD:
		return m.PoolD
	}
	return 0
}

// Has reports whether outcome o is part of this market's outcome set.
func (m *Market) Has(o Outcome) bool {
	return o.Valid() && m.OutcomeSet&o != 0
}

// Outcomes returns the outcome bits present in the market's set, in order.
func (m *Market) Outcomes() []Outcome {
	out := make([]Outcome, 0, 4)
	for _, o := range AllOutcomes {
		if m.OutcomeSet&o != 0 {
			out = append(out, o)
		}
	}
	return out
}

// State reports the market lifecycle state.
func (m *Market) State() MarketState {
	switch {
	case m.Settled:
		return StateSettled
	case m.Expired:
		return StateExpired
	}
	return StateOpen
}

// Refundable reports whether positions in this market are refundable:
// the market passed its deadline without ever settling.
func (m *Market) Refundable() bool {
	return m.Expired
}

// Validate checks the structural invariants a snapshot must satisfy before
// any formula runs over it. Violations wrap ErrInvariantViolation.
func (m *Market) Validate() error {
	if m.OutcomeSet == 0 || m.OutcomeSet&^(OutcomeA|OutcomeB|OutcomeC|OutcomeD) != 0 {
		return fmt.Errorf("%w: outcome set %#x is not a subset of {A,B,C,D}", ErrInvariantViolation, uint8(m.OutcomeSet))
	}
	if len(m.Outcomes()) < 2 {
		return fmt.Errorf("%w: market needs at least two outcomes", ErrInvariantViolation)
	}

	var sum MicroSTX
	for _, o := range AllOutcomes {
		p := m.OutcomePool(o)
		if p < 0 {
			return fmt.Errorf("%w: outcome %s pool is negative", ErrInvariantViolation, o.Label())
		}
		if p > 0 && m.OutcomeSet&o == 0 {
			return fmt.Errorf("%w: outcome %s has stake but is not in the outcome set", ErrInvariantViolation, o.Label())
		}
		sum += p
	}
	if sum != m.TotalPool {
		return fmt.Errorf("%w: outcome pools sum to %d, total pool is %d", ErrInvariantViolation, sum, m.TotalPool)
	}
	if m.MaxPool > 0 && m.TotalPool > m.MaxPool {
		return fmt.Errorf("%w: total pool %d exceeds cap %d", ErrInvariantViolation, m.TotalPool, m.MaxPool)
	}

	if m.Settled && m.Expired {
		return fmt.Errorf("%w: settled and expired are mutually exclusive", ErrInvariantViolation)
	}
	if m.Settled {
		if !m.WinningOutcome.Valid() || !m.Has(m.WinningOutcome) {
			return fmt.Errorf("%w: settled market has no valid winning outcome", ErrInvariantViolation)
		}
	} else if m.WinningOutcome != 0 {
		return fmt.Errorf("%w: winning outcome set on an unsettled market", ErrInvariantViolation)
	}

	return nil
}

// UserPosition is an immutable snapshot of one user's stakes in one market.
type UserPosition struct {
	MarketID uint64 `json:"market_id" db:"market_id"`
	User     string `json:"user" db:"user_addr"` // Stacks principal

	AmountA MicroSTX `json:"amount_a" db:"amount_a"`
	AmountB MicroSTX `json:"amount_b" db:"amount_b"`
	AmountC MicroSTX `json:"amount_c" db:"amount_c"`
	AmountD MicroSTX `json:"amount_d" db:"amount_d"`

	// TotalInvested is the sum of stakes placed; cash-outs reduce the
	// per-outcome amounts but not this figure.
	TotalInvested MicroSTX `json:"total_invested" db:"total_invested"`

	// Claimed flips once, terminally, when winnings or a refund are taken.
	// A claimed position quotes zero from every settlement path.
	Claimed bool `json:"claimed" db:"claimed"`
}

// OutcomeAmount returns the user's stake on one outcome.
func (p *UserPosition) OutcomeAmount(o Outcome) MicroSTX {
	switch o {
	case OutcomeA:
		return p.AmountA
	case OutcomeB:
		return p.AmountB
	case OutcomeC:
		return p.AmountC
	case OutcomeD:
		return p.AmountD
	}
	return 0
}

// Validate checks per-position invariants.
func (p *UserPosition) Validate() error {
	for _, o := range AllOutcomes {
		if p.OutcomeAmount(o) < 0 {
			return fmt.Errorf("%w: position amount on %s is negative", ErrInvariantViolation, o.Label())
		}
	}
	if p.TotalInvested < 0 {
		return fmt.Errorf("%w: total invested is negative", ErrInvariantViolation)
	}
	return nil
}

// LiquidityPosition is one user's LP stake in one market, with the
// reward-debt snapshot taken at their last deposit/withdraw/claim.
type LiquidityPosition struct {
	MarketID   uint64   `json:"market_id" db:"market_id"`
	User       string   `json:"user" db:"user_addr"`
	Liquidity  MicroSTX `json:"liquidity" db:"liquidity"`
	RewardDebt MicroSTX `json:"reward_debt" db:"reward_debt"`
}

// LpState is the per-market LP aggregate: total liquidity and the
// accumulated-fee-per-liquidity-unit accumulator, scaled by
// lpreward.FeePrecision. The accumulator only ever grows.
type LpState struct {
	MarketID           uint64   `json:"market_id" db:"market_id"`
	TotalLiquidity     MicroSTX `json:"total_liquidity" db:"total_liquidity"`
	AccFeePerLiquidity int64    `json:"acc_fee_per_liquidity" db:"acc_fee_per_liquidity"`
}
