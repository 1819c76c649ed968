// Package portfolio rolls a user's positions and LP stakes across many
// markets into one summary view.
//
// It introduces no new arithmetic: everything is composed from the quote
// engine and the LP reward ledger. Its job is correct partitioning by
// market lifecycle state (open vs settled vs expired), exclusion of
// already-claimed positions, and isolating per-market failures so one bad
// snapshot never poisons the rest of the rollup.
package portfolio

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/stxbets/market-engine/internal/engine"
	"github.com/stxbets/market-engine/internal/lpreward"
	"github.com/stxbets/market-engine/internal/model"
)

// Entry pairs one market snapshot with a user's stakes in it. Position,
// LpPosition, and LpState are nil when the user has no such stake.
type Entry struct {
	Market     model.Market
	Position   *model.UserPosition
	LpPosition *model.LiquidityPosition
	LpState    *model.LpState
}

// OpenPosition is the per-market detail for a market still open.
type OpenPosition struct {
	MarketID       uint64                    `json:"market_id"`
	Title          string                    `json:"title"`
	OutcomeAmounts map[string]model.MicroSTX `json:"outcome_amounts"`
	TotalInvested  model.MicroSTX            `json:"total_invested"`
	EstimatedValue model.MicroSTX            `json:"estimated_value"`
	EstimatedPnl   model.MicroSTX            `json:"estimated_pnl"`
}

// ClaimableItem is one not-yet-claimed settlement payout.
type ClaimableItem struct {
	MarketID uint64         `json:"market_id"`
	Title    string         `json:"title"`
	Kind     string         `json:"kind"` // "winnings" or "refund"
	Amount   model.MicroSTX `json:"amount"`
	Outcome  string         `json:"outcome,omitempty"`
}

// LpEntry is one market's LP stake with its pending fees.
type LpEntry struct {
	MarketID    uint64         `json:"market_id"`
	Title       string         `json:"title"`
	Liquidity   model.MicroSTX `json:"liquidity"`
	PendingFees model.MicroSTX `json:"pending_fees"`
}

// Summary is the user-level rollup.
type Summary struct {
	TotalInvested     model.MicroSTX `json:"total_invested"`
	OpenPositions     int            `json:"open_positions"`
	EstimatedValue    model.MicroSTX `json:"estimated_value"`
	EstimatedPnl      model.MicroSTX `json:"estimated_pnl"`
	ClaimableWinnings model.MicroSTX `json:"claimable_winnings"`
	ClaimableRefunds  model.MicroSTX `json:"claimable_refunds"`
	LpLiquidity       model.MicroSTX `json:"lp_liquidity"`
	LpEarnings        model.MicroSTX `json:"lp_earnings"`

	// SkippedMarkets counts entries dropped because their snapshot failed
	// an invariant or a quote errored. Failures stay isolated per market.
	SkippedMarkets int `json:"skipped_markets,omitempty"`
}

// Report is the full aggregation result.
type Report struct {
	Summary       Summary         `json:"summary"`
	OpenPositions []OpenPosition  `json:"open_positions"`
	Claimable     []ClaimableItem `json:"claimable"`
	LpEntries     []LpEntry       `json:"lp_entries"`
}

// marketResult is the per-entry computation output, merged sequentially
// after the fan-out.
type marketResult struct {
	invested     model.MicroSTX
	openInvested model.MicroSTX
	open         *OpenPosition
	claimable    []ClaimableItem
	lp           *LpEntry
	failed       bool
}

// Aggregator composes the quote engine over many market entries.
type Aggregator struct {
	engine *engine.Engine
}

// New creates an aggregator on top of a quote engine.
func New(e *engine.Engine) *Aggregator {
	return &Aggregator{engine: e}
}

// Aggregate computes the portfolio report for one user's entries.
//
// Per-market computations are independent and the merged figures are
// plain sums, so the fan-out runs one goroutine per entry and merges in
// input order afterwards (deterministic output for identical input).
func (a *Aggregator) Aggregate(ctx context.Context, entries []Entry) (*Report, error) {
	results := make([]marketResult, len(entries))

	g, ctx := errgroup.WithContext(ctx)
	for i := range entries {
		i := i
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			results[i] = a.computeEntry(&entries[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{}
	var openInvested model.MicroSTX

	for i := range results {
		r := &results[i]
		if r.failed {
			report.Summary.SkippedMarkets++
			continue
		}

		report.Summary.TotalInvested += r.invested
		openInvested += r.openInvested

		if r.open != nil {
			report.Summary.OpenPositions++
			report.Summary.EstimatedValue += r.open.EstimatedValue
			report.OpenPositions = append(report.OpenPositions, *r.open)
		}
		for _, c := range r.claimable {
			switch c.Kind {
			case "winnings":
				report.Summary.ClaimableWinnings += c.Amount
			case "refund":
				report.Summary.ClaimableRefunds += c.Amount
			}
			report.Claimable = append(report.Claimable, c)
		}
		if r.lp != nil {
			report.Summary.LpLiquidity += r.lp.Liquidity
			report.Summary.LpEarnings += r.lp.PendingFees
			report.LpEntries = append(report.LpEntries, *r.lp)
		}
	}

	report.Summary.EstimatedPnl = report.Summary.EstimatedValue - openInvested
	return report, nil
}

// computeEntry evaluates one market entry. Any engine error marks the
// entry failed; the caller counts it and moves on.
func (a *Aggregator) computeEntry(e *Entry) marketResult {
	var res marketResult
	m := &e.Market

	if err := m.Validate(); err != nil {
		res.failed = true
		return res
	}

	if pos := e.Position; pos != nil {
		res.invested = pos.TotalInvested

		switch m.State() {
		case model.StateOpen:
			open, err := a.estimateOpen(m, pos)
			if err != nil {
				res.failed = true
				return res
			}
			res.open = open
			res.openInvested = pos.TotalInvested

		case model.StateSettled:
			if !pos.Claimed {
				amount, err := a.engine.QuoteWinningsClaim(m, pos)
				if err != nil {
					res.failed = true
					return res
				}
				if amount > 0 {
					res.claimable = append(res.claimable, ClaimableItem{
						MarketID: m.ID,
						Title:    m.Title,
						Kind:     "winnings",
						Amount:   amount,
						Outcome:  m.WinningOutcome.Label(),
					})
				}
			}

		case model.StateExpired:
			if !pos.Claimed && pos.TotalInvested > 0 {
				amount, err := a.engine.QuoteRefund(m, pos)
				if err != nil {
					res.failed = true
					return res
				}
				res.claimable = append(res.claimable, ClaimableItem{
					MarketID: m.ID,
					Title:    m.Title,
					Kind:     "refund",
					Amount:   amount,
				})
			}
		}
	}

	if e.LpPosition != nil && e.LpState != nil {
		pending, err := lpreward.PendingReward(*e.LpPosition, *e.LpState)
		if err != nil {
			res.failed = true
			return res
		}
		res.lp = &LpEntry{
			MarketID:    m.ID,
			Title:       m.Title,
			Liquidity:   e.LpPosition.Liquidity,
			PendingFees: pending,
		}
	}

	return res
}

// estimateOpen marks an open position to the current pool-implied price:
// the sum of full cash-out quotes per held outcome.
func (a *Aggregator) estimateOpen(m *model.Market, pos *model.UserPosition) (*OpenPosition, error) {
	open := &OpenPosition{
		MarketID:       m.ID,
		Title:          m.Title,
		OutcomeAmounts: make(map[string]model.MicroSTX),
		TotalInvested:  pos.TotalInvested,
	}

	for _, o := range m.Outcomes() {
		amount := pos.OutcomeAmount(o)
		if amount == 0 {
			continue
		}
		open.OutcomeAmounts[o.Label()] = amount

		// A held outcome whose pool drained to zero has no implied price;
		// value it at zero rather than failing the whole rollup.
		if m.OutcomePool(o) == 0 {
			continue
		}
		q, err := a.engine.QuoteCashOut(m, pos, o, amount)
		if err != nil {
			return nil, err
		}
		open.EstimatedValue += q.NetPayout
	}

	open.EstimatedPnl = open.EstimatedValue - pos.TotalInvested
	return open, nil
}
