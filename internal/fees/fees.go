// Package fees splits gross payouts into net payout plus platform,
// creator, and LP fee shares.
//
// The schedule is configuration, not a constant: the engine is constructed
// with one so historical fee regimes can be replayed in tests. Live
// mainnet regime is 200/100/100 bps (2% platform, 1% creator, 1% LP).
package fees

import (
	"errors"
	"fmt"

	"github.com/stxbets/market-engine/internal/fixedpoint"
	"github.com/stxbets/market-engine/internal/model"
)

// BpsDenominator is the basis-point scale: 10000 bps = 100%.
const BpsDenominator = 10_000

var (
	// ErrInvalidSchedule is returned when a component is negative or the
	// total reaches 10000 bps.
	ErrInvalidSchedule = errors.New("fees: invalid fee schedule")

	// ErrNegativeAmount is returned when a fee is requested on a negative
	// gross amount.
	ErrNegativeAmount = errors.New("fees: gross amount must be non-negative")
)

// Schedule is a process-wide fee schedule in basis points.
type Schedule struct {
	PlatformBps int64 `json:"platform_bps" toml:"platform_bps"`
	CreatorBps  int64 `json:"creator_bps" toml:"creator_bps"`
	LPBps       int64 `json:"lp_bps" toml:"lp_bps"`
}

// NewSchedule validates and returns a fee schedule. The combined rate must
// stay strictly below 100%.
func NewSchedule(platformBps, creatorBps, lpBps int64) (Schedule, error) {
	s := Schedule{PlatformBps: platformBps, CreatorBps: creatorBps, LPBps: lpBps}
	if err := s.Validate(); err != nil {
		return Schedule{}, err
	}
	return s, nil
}

// Validate checks the schedule's bounds.
func (s Schedule) Validate() error {
	if s.PlatformBps < 0 || s.CreatorBps < 0 || s.LPBps < 0 {
		return fmt.Errorf("%w: components must be non-negative", ErrInvalidSchedule)
	}
	if s.TotalBps() >= BpsDenominator {
		return fmt.Errorf("%w: total %d bps must be below %d", ErrInvalidSchedule, s.TotalBps(), BpsDenominator)
	}
	return nil
}

// TotalBps is the combined fee rate.
func (s Schedule) TotalBps() int64 {
	return s.PlatformBps + s.CreatorBps + s.LPBps
}

// TotalFee returns trunc(gross * totalBps / 10000).
func (s Schedule) TotalFee(gross model.MicroSTX) (model.MicroSTX, error) {
	if gross < 0 {
		return 0, ErrNegativeAmount
	}
	fee, err := fixedpoint.MulDiv(int64(gross), s.TotalBps(), BpsDenominator)
	if err != nil {
		return 0, err
	}
	return model.MicroSTX(fee), nil
}

// Split is the three-way division of a total fee. Platform + Creator + LP
// always equals the TotalFee of the same gross amount exactly.
type Split struct {
	Platform model.MicroSTX `json:"platform"`
	Creator  model.MicroSTX `json:"creator"`
	LP       model.MicroSTX `json:"lp"`
}

// Total is the sum of the three shares.
func (sp Split) Total() model.MicroSTX {
	return sp.Platform + sp.Creator + sp.LP
}

// SplitFee divides the total fee proportionally by each component's bps.
// Truncation remainders go to the platform share, so the three shares sum
// to the total fee exactly and each non-platform share never exceeds its
// exact proportional value. The LP share is what feeds the LP reward
// accumulator.
func (s Schedule) SplitFee(gross model.MicroSTX) (Split, error) {
	total, err := s.TotalFee(gross)
	if err != nil {
		return Split{}, err
	}
	if total == 0 || s.TotalBps() == 0 {
		return Split{}, nil
	}

	creator, err := fixedpoint.MulDiv(int64(total), s.CreatorBps, s.TotalBps())
	if err != nil {
		return Split{}, err
	}
	lp, err := fixedpoint.MulDiv(int64(total), s.LPBps, s.TotalBps())
	if err != nil {
		return Split{}, err
	}

	return Split{
		Platform: total - model.MicroSTX(creator) - model.MicroSTX(lp),
		Creator:  model.MicroSTX(creator),
		LP:       model.MicroSTX(lp),
	}, nil
}
