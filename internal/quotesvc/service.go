// Package quotesvc provides the HTTP handlers for the read-model quote
// service: market listings, live odds, bet/cash-out/claim quotes, user
// portfolios, and chain snapshot ingest.
//
// All monetary values in the computation path are integer micro-STX;
// display-unit decimals appear only in JSON responses.
package quotesvc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stxbets/market-engine/internal/engine"
	"github.com/stxbets/market-engine/internal/lpreward"
	"github.com/stxbets/market-engine/internal/metrics"
	"github.com/stxbets/market-engine/internal/model"
	"github.com/stxbets/market-engine/internal/portfolio"
	"github.com/stxbets/market-engine/internal/snapshot"
)

// Service handles quote operations. Every quote is a pure read: the
// contract applies state transitions on-chain, this service only prices
// them against the latest ingested snapshot.
type Service struct {
	store  snapshot.Store
	engine *engine.Engine
	agg    *portfolio.Aggregator
	wsHub  *WSHub // optional WebSocket hub for odds broadcasts
}

// NewService creates a new quote service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st snapshot.Store, e *engine.Engine, hub *WSHub) *Service {
	return &Service{
		store:  st,
		engine: e,
		agg:    portfolio.New(e),
		wsHub:  hub,
	}
}

// --- Request/Response types ---

// BetQuoteRequest is the JSON body for POST /quotes/bet.
type BetQuoteRequest struct {
	MarketID   uint64         `json:"market_id"`
	Outcome    string         `json:"outcome"` // "A".."D"
	StakeMicro model.MicroSTX `json:"stake_micro"`
}

// BetQuoteResponse is the JSON body returned from POST /quotes/bet.
type BetQuoteResponse struct {
	QuoteID    string         `json:"quote_id"`
	MarketID   uint64         `json:"market_id"`
	Outcome    string         `json:"outcome"`
	StakeMicro model.MicroSTX `json:"stake_micro"`

	// OddsScaled is totalPool/outcomePool scaled by 1e6, before the stake
	// lands; Odds is its display form.
	OddsScaled int64           `json:"odds_scaled"`
	Odds       decimal.Decimal `json:"odds"`

	GrossPayoutMicro model.MicroSTX  `json:"gross_payout_micro"`
	FeeMicro         model.MicroSTX  `json:"fee_micro"`
	NetPayoutMicro   model.MicroSTX  `json:"net_payout_micro"`
	NetPayout        decimal.Decimal `json:"net_payout"`
}

// CashOutQuoteRequest is the JSON body for POST /quotes/cashout.
type CashOutQuoteRequest struct {
	MarketID    uint64         `json:"market_id"`
	User        string         `json:"user"`
	Outcome     string         `json:"outcome"`
	AmountMicro model.MicroSTX `json:"amount_micro"`
}

// CashOutQuoteResponse is the JSON body returned from POST /quotes/cashout.
type CashOutQuoteResponse struct {
	QuoteID     string         `json:"quote_id"`
	MarketID    uint64         `json:"market_id"`
	User        string         `json:"user"`
	Outcome     string         `json:"outcome"`
	AmountMicro model.MicroSTX `json:"amount_micro"`

	GrossPayoutMicro model.MicroSTX  `json:"gross_payout_micro"`
	FeeMicro         model.MicroSTX  `json:"fee_micro"`
	NetPayoutMicro   model.MicroSTX  `json:"net_payout_micro"`
	NetPayout        decimal.Decimal `json:"net_payout"`
	SlippagePct      int64           `json:"slippage_pct"`
}

// ClaimQuoteRequest is the JSON body for POST /quotes/claim. The market's
// lifecycle state picks the path: winnings when settled, refund when
// expired.
type ClaimQuoteRequest struct {
	MarketID uint64 `json:"market_id"`
	User     string `json:"user"`
}

// ClaimQuoteResponse is the JSON body returned from POST /quotes/claim.
type ClaimQuoteResponse struct {
	QuoteID  string `json:"quote_id"`
	MarketID uint64 `json:"market_id"`
	User     string `json:"user"`
	Kind     string `json:"kind"` // "winnings" or "refund"

	AmountMicro model.MicroSTX  `json:"amount_micro"`
	Amount      decimal.Decimal `json:"amount"`
}

// marketView is the API rendering of a market snapshot with derived odds.
type marketView struct {
	model.Market
	State      model.MarketState `json:"state"`
	Refundable bool              `json:"refundable"`
	Odds       map[string]int64  `json:"odds"`
}

func (s *Service) viewOf(m *model.Market) marketView {
	odds, err := s.engine.MarketOdds(m)
	if err != nil {
		odds = nil
	}
	view := marketView{
		Market:     *m,
		State:      m.State(),
		Refundable: m.Refundable(),
		Odds:       make(map[string]int64, len(odds)),
	}
	for o, v := range odds {
		view.Odds[o.Label()] = v
	}
	return view
}

// --- HTTP Handlers ---

// ListMarkets handles GET /api/v1/markets
// Returns all markets, optionally filtered by ?category=<name> or
// ?state=open|settled|expired.
func (s *Service) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.store.ListMarkets(r.Context())
	if err != nil {
		writeError(w, "failed to list markets", http.StatusInternalServerError)
		return
	}

	category := r.URL.Query().Get("category")
	state := r.URL.Query().Get("state")

	views := make([]marketView, 0, len(markets))
	for i := range markets {
		m := &markets[i]
		if category != "" && m.Category != category {
			continue
		}
		if state != "" && string(m.State()) != state {
			continue
		}
		views = append(views, s.viewOf(m))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

// GetMarket handles GET /api/v1/markets/{marketID}
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	m, ok := s.loadMarket(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.viewOf(m))
}

// GetOdds handles GET /api/v1/markets/{marketID}/odds
func (s *Service) GetOdds(w http.ResponseWriter, r *http.Request) {
	m, ok := s.loadMarket(w, r)
	if !ok {
		return
	}

	odds, err := s.engine.MarketOdds(m)
	if err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	resp := make(map[string]int64, len(odds))
	for o, v := range odds {
		resp[o.Label()] = v
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// QuoteBet handles POST /api/v1/quotes/bet
// Prices a prospective bet against the latest market snapshot.
func (s *Service) QuoteBet(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req BetQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := model.ParseOutcome(req.Outcome)
	if err != nil {
		metrics.QuotesTotal.WithLabelValues("bet", "rejected").Inc()
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	m, err := s.store.GetMarket(r.Context(), req.MarketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	q, err := s.engine.QuoteBet(m, outcome, req.StakeMicro)
	if err != nil {
		metrics.QuotesTotal.WithLabelValues("bet", "rejected").Inc()
		writeError(w, err.Error(), quoteStatus(err))
		return
	}

	metrics.QuotesTotal.WithLabelValues("bet", "ok").Inc()
	metrics.QuoteLatency.WithLabelValues("bet").Observe(time.Since(start).Seconds())

	resp := BetQuoteResponse{
		QuoteID:          uuid.New().String(),
		MarketID:         q.MarketID,
		Outcome:          q.Outcome.Label(),
		StakeMicro:       q.Stake,
		OddsScaled:       q.OddsScaled,
		Odds:             decimal.New(q.OddsScaled, -6),
		GrossPayoutMicro: q.GrossPayout,
		FeeMicro:         q.Fee,
		NetPayoutMicro:   q.NetPayout,
		NetPayout:        q.NetPayout.Decimal(),
	}

	slog.Info("bet quoted",
		"quote_id", resp.QuoteID,
		"market", q.MarketID,
		"outcome", resp.Outcome,
		"stake", q.Stake,
		"net_payout", q.NetPayout,
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// QuoteCashOut handles POST /api/v1/quotes/cashout
// Prices an early exit from a live position.
func (s *Service) QuoteCashOut(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CashOutQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.User == "" {
		writeError(w, "user is required", http.StatusBadRequest)
		return
	}

	outcome, err := model.ParseOutcome(req.Outcome)
	if err != nil {
		metrics.QuotesTotal.WithLabelValues("cashout", "rejected").Inc()
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	m, err := s.store.GetMarket(ctx, req.MarketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	pos, err := s.store.GetPosition(ctx, req.MarketID, req.User)
	if err != nil {
		writeError(w, "position not found", http.StatusNotFound)
		return
	}

	q, err := s.engine.QuoteCashOut(m, pos, outcome, req.AmountMicro)
	if err != nil {
		metrics.QuotesTotal.WithLabelValues("cashout", "rejected").Inc()
		writeError(w, err.Error(), quoteStatus(err))
		return
	}

	metrics.QuotesTotal.WithLabelValues("cashout", "ok").Inc()
	metrics.QuoteLatency.WithLabelValues("cashout").Observe(time.Since(start).Seconds())

	resp := CashOutQuoteResponse{
		QuoteID:          uuid.New().String(),
		MarketID:         req.MarketID,
		User:             req.User,
		Outcome:          outcome.Label(),
		AmountMicro:      req.AmountMicro,
		GrossPayoutMicro: q.GrossPayout,
		FeeMicro:         q.Fee,
		NetPayoutMicro:   q.NetPayout,
		NetPayout:        q.NetPayout.Decimal(),
		SlippagePct:      q.SlippagePct,
	}

	slog.Info("cash-out quoted",
		"quote_id", resp.QuoteID,
		"market", req.MarketID,
		"user", req.User,
		"outcome", resp.Outcome,
		"net_payout", q.NetPayout,
		"slippage_pct", q.SlippagePct,
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// QuoteClaim handles POST /api/v1/quotes/claim
// Prices a winnings claim on a settled market or a refund on an expired one.
func (s *Service) QuoteClaim(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ClaimQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.User == "" {
		writeError(w, "user is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	m, err := s.store.GetMarket(ctx, req.MarketID)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return
	}

	pos, err := s.store.GetPosition(ctx, req.MarketID, req.User)
	if err != nil {
		writeError(w, "position not found", http.StatusNotFound)
		return
	}

	var kind string
	var amount model.MicroSTX

	switch m.State() {
	case model.StateSettled:
		kind = "winnings"
		amount, err = s.engine.QuoteWinningsClaim(m, pos)
	case model.StateExpired:
		kind = "refund"
		amount, err = s.engine.QuoteRefund(m, pos)
	default:
		metrics.QuotesTotal.WithLabelValues("claim", "rejected").Inc()
		writeError(w, "market is still open", http.StatusConflict)
		return
	}
	if err != nil {
		metrics.QuotesTotal.WithLabelValues("claim", "rejected").Inc()
		writeError(w, err.Error(), quoteStatus(err))
		return
	}

	metrics.QuotesTotal.WithLabelValues("claim", "ok").Inc()
	metrics.QuoteLatency.WithLabelValues("claim").Observe(time.Since(start).Seconds())

	resp := ClaimQuoteResponse{
		QuoteID:     uuid.New().String(),
		MarketID:    req.MarketID,
		User:        req.User,
		Kind:        kind,
		AmountMicro: amount,
		Amount:      amount.Decimal(),
	}

	slog.Info("claim quoted",
		"quote_id", resp.QuoteID,
		"market", req.MarketID,
		"user", req.User,
		"kind", kind,
		"amount", amount,
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetPortfolio handles GET /api/v1/portfolio/{user}
// Rolls the user's positions and LP stakes across all markets into one view.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	ctx := r.Context()

	positions, err := s.store.ListUserPositions(ctx, user)
	if err != nil {
		writeError(w, "failed to load positions", http.StatusInternalServerError)
		return
	}
	stakes, err := s.store.ListUserLiquidity(ctx, user)
	if err != nil {
		writeError(w, "failed to load liquidity", http.StatusInternalServerError)
		return
	}

	// One entry per market the user touches, with position and LP stake
	// attached where present.
	entryIdx := make(map[uint64]int)
	var entries []portfolio.Entry

	entryFor := func(marketID uint64) (int, error) {
		if i, ok := entryIdx[marketID]; ok {
			return i, nil
		}
		m, err := s.store.GetMarket(ctx, marketID)
		if err != nil {
			return -1, err
		}
		entries = append(entries, portfolio.Entry{Market: *m})
		entryIdx[marketID] = len(entries) - 1
		return len(entries) - 1, nil
	}

	for i := range positions {
		idx, err := entryFor(positions[i].MarketID)
		if err != nil {
			continue // market snapshot missing; skip the orphaned position
		}
		entries[idx].Position = &positions[i]
	}
	for i := range stakes {
		idx, err := entryFor(stakes[i].MarketID)
		if err != nil {
			continue
		}
		entries[idx].LpPosition = &stakes[i]
		if st, err := s.store.GetLpState(ctx, stakes[i].MarketID); err == nil {
			entries[idx].LpState = st
		}
	}

	report, err := s.agg.Aggregate(ctx, entries)
	if err != nil {
		writeError(w, "failed to aggregate portfolio", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		User string `json:"user"`
		*portfolio.Report
	}{User: user, Report: report})
}

// SnapshotRequest is the JSON body for POST /api/v1/snapshots: a batch of
// chain state pushed by the indexer after each block.
type SnapshotRequest struct {
	Markets     []model.Market            `json:"markets,omitempty"`
	Positions   []model.UserPosition      `json:"positions,omitempty"`
	LpPositions []model.LiquidityPosition `json:"lp_positions,omitempty"`
	LpStates    []model.LpState           `json:"lp_states,omitempty"`
}

// IngestSnapshots handles POST /api/v1/snapshots
// Validates and upserts a snapshot batch, then broadcasts odds updates for
// every market in it. The whole batch is rejected if any market snapshot
// violates an invariant.
func (s *Service) IngestSnapshots(w http.ResponseWriter, r *http.Request) {
	var req SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	for i := range req.Markets {
		if err := req.Markets[i].Validate(); err != nil {
			metrics.SnapshotRejections.Inc()
			writeError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
	}
	for i := range req.Positions {
		if err := req.Positions[i].Validate(); err != nil {
			metrics.SnapshotRejections.Inc()
			writeError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
	}

	ctx := r.Context()
	for i := range req.Markets {
		if err := s.store.UpsertMarket(ctx, &req.Markets[i]); err != nil {
			writeError(w, "failed to store market snapshot", http.StatusInternalServerError)
			return
		}
	}
	for i := range req.Positions {
		if err := s.store.UpsertPosition(ctx, &req.Positions[i]); err != nil {
			writeError(w, "failed to store position snapshot", http.StatusInternalServerError)
			return
		}
	}
	for i := range req.LpPositions {
		if err := s.store.UpsertLiquidityPosition(ctx, &req.LpPositions[i]); err != nil {
			writeError(w, "failed to store lp position snapshot", http.StatusInternalServerError)
			return
		}
	}
	for i := range req.LpStates {
		if err := s.store.UpsertLpState(ctx, &req.LpStates[i]); err != nil {
			writeError(w, "failed to store lp state snapshot", http.StatusInternalServerError)
			return
		}
	}

	metrics.SnapshotsIngested.WithLabelValues("market").Add(float64(len(req.Markets)))
	metrics.SnapshotsIngested.WithLabelValues("position").Add(float64(len(req.Positions)))
	metrics.SnapshotsIngested.WithLabelValues("lp_position").Add(float64(len(req.LpPositions)))
	metrics.SnapshotsIngested.WithLabelValues("lp_state").Add(float64(len(req.LpStates)))

	s.refreshActiveMarkets(ctx)

	// Broadcast fresh odds for every market that moved.
	if s.wsHub != nil {
		for i := range req.Markets {
			s.broadcastOdds(&req.Markets[i])
		}
	}

	slog.Info("snapshots ingested",
		"markets", len(req.Markets),
		"positions", len(req.Positions),
		"lp_positions", len(req.LpPositions),
		"lp_states", len(req.LpStates),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

// GetLpRewards handles GET /api/v1/markets/{marketID}/lp/{user}
// Returns the LP's pending fee rewards against the current accumulator.
func (s *Service) GetLpRewards(w http.ResponseWriter, r *http.Request) {
	m, ok := s.loadMarket(w, r)
	if !ok {
		return
	}
	user := chi.URLParam(r, "user")
	ctx := r.Context()

	st, err := s.store.GetLpState(ctx, m.ID)
	if err != nil {
		writeError(w, "lp state not found", http.StatusNotFound)
		return
	}

	var pos model.LiquidityPosition
	stakes, err := s.store.ListUserLiquidity(ctx, user)
	if err != nil {
		writeError(w, "failed to load liquidity", http.StatusInternalServerError)
		return
	}
	for i := range stakes {
		if stakes[i].MarketID == m.ID {
			pos = stakes[i]
			break
		}
	}

	pending, err := lpreward.PendingReward(pos, *st)
	if err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		MarketID     uint64          `json:"market_id"`
		User         string          `json:"user"`
		Liquidity    model.MicroSTX  `json:"liquidity"`
		PendingMicro model.MicroSTX  `json:"pending_micro"`
		Pending      decimal.Decimal `json:"pending"`
	}{m.ID, user, pos.Liquidity, pending, pending.Decimal()})
}

// --- Helpers ---

// loadMarket parses {marketID} and fetches the snapshot, writing the error
// response itself on failure.
func (s *Service) loadMarket(w http.ResponseWriter, r *http.Request) (*model.Market, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "marketID"), 10, 64)
	if err != nil {
		writeError(w, "invalid market id", http.StatusBadRequest)
		return nil, false
	}

	m, err := s.store.GetMarket(r.Context(), id)
	if err != nil {
		writeError(w, "market not found", http.StatusNotFound)
		return nil, false
	}
	return m, true
}

func (s *Service) refreshActiveMarkets(ctx context.Context) {
	markets, err := s.store.ListMarkets(ctx)
	if err != nil {
		return
	}
	open := 0
	for i := range markets {
		if markets[i].State() == model.StateOpen {
			open++
		}
	}
	metrics.ActiveMarkets.Set(float64(open))
}

func (s *Service) broadcastOdds(m *model.Market) {
	odds, err := s.engine.MarketOdds(m)
	if err != nil {
		return
	}
	labeled := make(map[string]int64, len(odds))
	for o, v := range odds {
		labeled[o.Label()] = v
	}
	s.wsHub.Broadcast(WSMessage{
		Type:           "odds_update",
		MarketID:       m.ID,
		State:          string(m.State()),
		Odds:           labeled,
		TotalPoolMicro: m.TotalPool,
	})
}

// quoteStatus maps engine errors to HTTP status codes.
func quoteStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrBetBelowMinimum),
		errors.Is(err, engine.ErrInvalidOutcome):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrMarketSettled),
		errors.Is(err, engine.ErrMarketNotSettled),
		errors.Is(err, engine.ErrMarketNotExpired),
		errors.Is(err, engine.ErrMarketCapExceeded),
		errors.Is(err, engine.ErrInsufficientPosition),
		errors.Is(err, engine.ErrIlliquidOutcome):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvariantViolation):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
