package quotesvc_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/stxbets/market-engine/internal/engine"
	"github.com/stxbets/market-engine/internal/fees"
	"github.com/stxbets/market-engine/internal/model"
	"github.com/stxbets/market-engine/internal/quotesvc"
	"github.com/stxbets/market-engine/internal/snapshot"
)

const alice = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*quotesvc.Service, *snapshot.MemoryStore, chi.Router) {
	t.Helper()
	ms := snapshot.NewMemoryStore()
	schedule, err := fees.NewSchedule(200, 100, 100)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	e, err := engine.New(schedule, 1_000000)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	svc := quotesvc.NewService(ms, e, nil)

	r := chi.NewRouter()
	r.Get("/api/v1/markets", svc.ListMarkets)
	r.Get("/api/v1/markets/{marketID}", svc.GetMarket)
	r.Get("/api/v1/markets/{marketID}/odds", svc.GetOdds)
	r.Get("/api/v1/markets/{marketID}/lp/{user}", svc.GetLpRewards)
	r.Post("/api/v1/quotes/bet", svc.QuoteBet)
	r.Post("/api/v1/quotes/cashout", svc.QuoteCashOut)
	r.Post("/api/v1/quotes/claim", svc.QuoteClaim)
	r.Post("/api/v1/snapshots", svc.IngestSnapshots)
	r.Get("/api/v1/portfolio/{user}", svc.GetPortfolio)

	return svc, ms, r
}

// seedMarket stores a binary market with pools A=100 B=50 STX.
func seedMarket(t *testing.T, ms *snapshot.MemoryStore, id uint64) *model.Market {
	t.Helper()
	m := &model.Market{
		ID:         id,
		Title:      "BTC above 100k by March",
		Category:   "crypto",
		OutcomeSet: model.OutcomeA | model.OutcomeB,
		PoolA:      100_000000,
		PoolB:      50_000000,
		TotalPool:  150_000000,
	}
	if err := ms.UpsertMarket(context.Background(), m); err != nil {
		t.Fatalf("failed to seed market: %v", err)
	}
	return m
}

func seedPositionOnA(t *testing.T, ms *snapshot.MemoryStore, marketID uint64, amount model.MicroSTX) {
	t.Helper()
	pos := &model.UserPosition{
		MarketID:      marketID,
		User:          alice,
		AmountA:       amount,
		TotalInvested: amount,
	}
	if err := ms.UpsertPosition(context.Background(), pos); err != nil {
		t.Fatalf("failed to seed position: %v", err)
	}
}

func doPost(t *testing.T, router chi.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doGet(t *testing.T, router chi.Router, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

// --- Bet quote tests ---

func TestQuoteBet_Concrete(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedMarket(t, ms, 1)

	w := doPost(t, router, "/api/v1/quotes/bet", quotesvc.BetQuoteRequest{
		MarketID:   1,
		Outcome:    "A",
		StakeMicro: 10_000000,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp quotesvc.BetQuoteResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.QuoteID == "" {
		t.Error("expected non-empty quote_id")
	}
	// gross = 10e6 * 160e6 / 110e6 = 14_545_454 (truncated)
	if resp.GrossPayoutMicro != 14_545_454 {
		t.Errorf("expected gross 14545454, got %d", resp.GrossPayoutMicro)
	}
	if resp.FeeMicro != 581_818 {
		t.Errorf("expected fee 581818, got %d", resp.FeeMicro)
	}
	if resp.NetPayoutMicro != 13_963_636 {
		t.Errorf("expected net 13963636, got %d", resp.NetPayoutMicro)
	}
	if resp.OddsScaled != 1_500_000 {
		t.Errorf("expected odds 1500000, got %d", resp.OddsScaled)
	}
	if resp.NetPayout.String() != "13.963636" {
		t.Errorf("expected display net 13.963636, got %s", resp.NetPayout)
	}
}

func TestQuoteBet_Rejections(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedMarket(t, ms, 1)

	cases := []struct {
		name   string
		req    quotesvc.BetQuoteRequest
		status int
	}{
		{"below minimum", quotesvc.BetQuoteRequest{MarketID: 1, Outcome: "A", StakeMicro: 500}, http.StatusBadRequest},
		{"unknown outcome letter", quotesvc.BetQuoteRequest{MarketID: 1, Outcome: "E", StakeMicro: 2_000000}, http.StatusBadRequest},
		{"outcome not in set", quotesvc.BetQuoteRequest{MarketID: 1, Outcome: "C", StakeMicro: 2_000000}, http.StatusBadRequest},
		{"missing market", quotesvc.BetQuoteRequest{MarketID: 99, Outcome: "A", StakeMicro: 2_000000}, http.StatusNotFound},
	}
	for _, tc := range cases {
		w := doPost(t, router, "/api/v1/quotes/bet", tc.req)
		if w.Code != tc.status {
			t.Errorf("%s: expected %d, got %d: %s", tc.name, tc.status, w.Code, w.Body.String())
		}
	}
}

func TestQuoteBet_CapExceeded(t *testing.T) {
	_, ms, router := newTestEnv(t)
	m := seedMarket(t, ms, 1)
	m.MaxPool = 155_000000
	if err := ms.UpsertMarket(context.Background(), m); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := doPost(t, router, "/api/v1/quotes/bet", quotesvc.BetQuoteRequest{
		MarketID: 1, Outcome: "A", StakeMicro: 10_000000,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

// --- Cash-out quote tests ---

func TestQuoteCashOut_Concrete(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedMarket(t, ms, 1)
	seedPositionOnA(t, ms, 1, 10_000000)

	w := doPost(t, router, "/api/v1/quotes/cashout", quotesvc.CashOutQuoteRequest{
		MarketID:    1,
		User:        alice,
		Outcome:     "A",
		AmountMicro: 10_000000,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp quotesvc.CashOutQuoteResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	// gross = 10e6 * 150e6 / 100e6 = 15e6, fee 600k, net 14.4 STX.
	if resp.NetPayoutMicro != 14_400000 {
		t.Errorf("expected net 14400000, got %d", resp.NetPayoutMicro)
	}
	if resp.SlippagePct != 50 {
		t.Errorf("expected slippage +50, got %d", resp.SlippagePct)
	}
}

func TestQuoteCashOut_ExceedsPosition(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedMarket(t, ms, 1)
	seedPositionOnA(t, ms, 1, 5_000000)

	w := doPost(t, router, "/api/v1/quotes/cashout", quotesvc.CashOutQuoteRequest{
		MarketID: 1, User: alice, Outcome: "A", AmountMicro: 10_000000,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestQuoteCashOut_NoPosition(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedMarket(t, ms, 1)

	w := doPost(t, router, "/api/v1/quotes/cashout", quotesvc.CashOutQuoteRequest{
		MarketID: 1, User: alice, Outcome: "A", AmountMicro: 1_000000,
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

// --- Claim quote tests ---

func TestQuoteClaim_Winnings(t *testing.T) {
	_, ms, router := newTestEnv(t)
	m := seedMarket(t, ms, 1)
	m.Settled = true
	m.WinningOutcome = model.OutcomeA
	if err := ms.UpsertMarket(context.Background(), m); err != nil {
		t.Fatalf("seed: %v", err)
	}
	seedPositionOnA(t, ms, 1, 10_000000)

	w := doPost(t, router, "/api/v1/quotes/claim", quotesvc.ClaimQuoteRequest{MarketID: 1, User: alice})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp quotesvc.ClaimQuoteResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Kind != "winnings" {
		t.Errorf("expected winnings claim, got %q", resp.Kind)
	}
	if resp.AmountMicro != 14_400000 {
		t.Errorf("expected amount 14400000, got %d", resp.AmountMicro)
	}
}

func TestQuoteClaim_Refund(t *testing.T) {
	_, ms, router := newTestEnv(t)
	m := seedMarket(t, ms, 1)
	m.Expired = true
	if err := ms.UpsertMarket(context.Background(), m); err != nil {
		t.Fatalf("seed: %v", err)
	}
	seedPositionOnA(t, ms, 1, 42_000000)

	w := doPost(t, router, "/api/v1/quotes/claim", quotesvc.ClaimQuoteRequest{MarketID: 1, User: alice})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp quotesvc.ClaimQuoteResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Kind != "refund" {
		t.Errorf("expected refund claim, got %q", resp.Kind)
	}
	// Principal back, no fee.
	if resp.AmountMicro != 42_000000 {
		t.Errorf("expected amount 42000000, got %d", resp.AmountMicro)
	}
}

func TestQuoteClaim_MarketStillOpen(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedMarket(t, ms, 1)
	seedPositionOnA(t, ms, 1, 10_000000)

	w := doPost(t, router, "/api/v1/quotes/claim", quotesvc.ClaimQuoteRequest{MarketID: 1, User: alice})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

// --- Market endpoints ---

func TestGetMarket_WithOdds(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedMarket(t, ms, 1)

	w := doGet(t, router, "/api/v1/markets/1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Title string           `json:"title"`
		State string           `json:"state"`
		Odds  map[string]int64 `json:"odds"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.State != "open" {
		t.Errorf("expected open state, got %q", resp.State)
	}
	if resp.Odds["A"] != 1_500_000 || resp.Odds["B"] != 3_000_000 {
		t.Errorf("unexpected odds: %v", resp.Odds)
	}
}

func TestListMarkets_CategoryFilter(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedMarket(t, ms, 1)
	other := seedMarket(t, ms, 2)
	other.Category = "sports"
	if err := ms.UpsertMarket(context.Background(), other); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := doGet(t, router, "/api/v1/markets?category=sports")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp []json.RawMessage
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp) != 1 {
		t.Errorf("expected 1 market in category, got %d", len(resp))
	}
}

func TestGetMarket_NotFound(t *testing.T) {
	_, _, router := newTestEnv(t)
	if w := doGet(t, router, "/api/v1/markets/42"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if w := doGet(t, router, "/api/v1/markets/notanumber"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for junk id, got %d", w.Code)
	}
}

// --- Snapshot ingest ---

func TestIngestSnapshots_RoundTrip(t *testing.T) {
	_, _, router := newTestEnv(t)

	batch := quotesvc.SnapshotRequest{
		Markets: []model.Market{{
			ID:         5,
			Title:      "ETH flips BTC",
			OutcomeSet: model.OutcomeA | model.OutcomeB,
			PoolA:      20_000000,
			PoolB:      80_000000,
			TotalPool:  100_000000,
		}},
		Positions: []model.UserPosition{{
			MarketID: 5, User: alice, AmountA: 20_000000, TotalInvested: 20_000000,
		}},
		LpStates: []model.LpState{{
			MarketID: 5, TotalLiquidity: 1_000000, AccFeePerLiquidity: 1_000,
		}},
	}

	w := doPost(t, router, "/api/v1/snapshots", batch)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	// Ingested market is immediately quotable.
	w = doGet(t, router, "/api/v1/markets/5/odds")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var odds map[string]int64
	json.Unmarshal(w.Body.Bytes(), &odds)
	if odds["A"] != 5_000_000 {
		t.Errorf("expected odds A 5000000, got %d", odds["A"])
	}
}

func TestIngestSnapshots_RejectsInvariantViolation(t *testing.T) {
	_, ms, router := newTestEnv(t)

	batch := quotesvc.SnapshotRequest{
		Markets: []model.Market{{
			ID:         5,
			OutcomeSet: model.OutcomeA | model.OutcomeB,
			PoolA:      20_000000,
			TotalPool:  99, // pools don't sum
		}},
	}

	w := doPost(t, router, "/api/v1/snapshots", batch)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}

	// Nothing from the rejected batch may land in the store.
	if _, err := ms.GetMarket(context.Background(), 5); err == nil {
		t.Error("rejected market must not be stored")
	}
}

// --- Portfolio ---

func TestGetPortfolio(t *testing.T) {
	_, ms, router := newTestEnv(t)
	ctx := context.Background()

	seedMarket(t, ms, 1)
	seedPositionOnA(t, ms, 1, 10_000000)

	settled := seedMarket(t, ms, 2)
	settled.Settled = true
	settled.WinningOutcome = model.OutcomeA
	if err := ms.UpsertMarket(ctx, settled); err != nil {
		t.Fatalf("seed: %v", err)
	}
	seedPositionOnA(t, ms, 2, 10_000000)

	if err := ms.UpsertLpState(ctx, &model.LpState{MarketID: 1, TotalLiquidity: 1_000000, AccFeePerLiquidity: 1_000}); err != nil {
		t.Fatalf("seed lp state: %v", err)
	}
	if err := ms.UpsertLiquidityPosition(ctx, &model.LiquidityPosition{MarketID: 1, User: alice, Liquidity: 1_000000}); err != nil {
		t.Fatalf("seed lp position: %v", err)
	}

	w := doGet(t, router, "/api/v1/portfolio/"+alice)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		User    string `json:"user"`
		Summary struct {
			TotalInvested     model.MicroSTX `json:"total_invested"`
			OpenPositions     int            `json:"open_positions"`
			ClaimableWinnings model.MicroSTX `json:"claimable_winnings"`
			LpEarnings        model.MicroSTX `json:"lp_earnings"`
		} `json:"summary"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.User != alice {
		t.Errorf("expected user %s, got %s", alice, resp.User)
	}
	if resp.Summary.TotalInvested != 20_000000 {
		t.Errorf("expected invested 20000000, got %d", resp.Summary.TotalInvested)
	}
	if resp.Summary.OpenPositions != 1 {
		t.Errorf("expected 1 open position, got %d", resp.Summary.OpenPositions)
	}
	if resp.Summary.ClaimableWinnings != 14_400000 {
		t.Errorf("expected claimable winnings 14400000, got %d", resp.Summary.ClaimableWinnings)
	}
	if resp.Summary.LpEarnings != 1_000 {
		t.Errorf("expected lp earnings 1000, got %d", resp.Summary.LpEarnings)
	}
}

// --- LP rewards ---

func TestGetLpRewards(t *testing.T) {
	_, ms, router := newTestEnv(t)
	ctx := context.Background()
	seedMarket(t, ms, 1)

	if err := ms.UpsertLpState(ctx, &model.LpState{MarketID: 1, TotalLiquidity: 1_000000, AccFeePerLiquidity: 1_000}); err != nil {
		t.Fatalf("seed lp state: %v", err)
	}
	if err := ms.UpsertLiquidityPosition(ctx, &model.LiquidityPosition{MarketID: 1, User: alice, Liquidity: 1_000000}); err != nil {
		t.Fatalf("seed lp position: %v", err)
	}

	w := doGet(t, router, "/api/v1/markets/1/lp/"+alice)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		PendingMicro model.MicroSTX `json:"pending_micro"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.PendingMicro != 1_000 {
		t.Errorf("expected pending 1000, got %d", resp.PendingMicro)
	}
}
