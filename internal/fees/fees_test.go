package fees

import (
	"errors"
	"testing"

	"github.com/stxbets/market-engine/internal/model"
)

// mainnetSchedule is the live 2%/1%/1% regime.
func mainnetSchedule(t *testing.T) Schedule {
	t.Helper()
	s, err := NewSchedule(200, 100, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

// --- Schedule validation ---

func TestNewSchedule_Valid(t *testing.T) {
	s := mainnetSchedule(t)
	if s.TotalBps() != 400 {
		t.Errorf("expected 400 total bps, got %d", s.TotalBps())
	}
}

func TestNewSchedule_NegativeComponent(t *testing.T) {
	_, err := NewSchedule(-1, 100, 100)
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("expected ErrInvalidSchedule, got %v", err)
	}
}

func TestNewSchedule_TotalAtHundredPercent(t *testing.T) {
	_, err := NewSchedule(5000, 4000, 1000)
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("expected ErrInvalidSchedule for 10000 bps total, got %v", err)
	}
}

// --- TotalFee ---

func TestTotalFee_ConcreteScenario(t *testing.T) {
	// floor(14_545_454 * 400 / 10000) = 581_818
	s := mainnetSchedule(t)
	fee, err := s.TotalFee(14_545_454)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee != 581_818 {
		t.Errorf("expected fee 581818, got %d", fee)
	}
}

func TestTotalFee_ZeroGross(t *testing.T) {
	s := mainnetSchedule(t)
	fee, err := s.TotalFee(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee != 0 {
		t.Errorf("expected zero fee, got %d", fee)
	}
}

func TestTotalFee_NegativeGross(t *testing.T) {
	s := mainnetSchedule(t)
	if _, err := s.TotalFee(-1); !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("expected ErrNegativeAmount, got %v", err)
	}
}

// --- SplitFee ---

func TestSplitFee_SumsExactly(t *testing.T) {
	s := mainnetSchedule(t)

	// Sweep gross values that exercise every truncation remainder.
	for gross := model.MicroSTX(0); gross < 50_000; gross += 7 {
		total, err := s.TotalFee(gross)
		if err != nil {
			t.Fatalf("TotalFee(%d): %v", gross, err)
		}
		split, err := s.SplitFee(gross)
		if err != nil {
			t.Fatalf("SplitFee(%d): %v", gross, err)
		}
		if split.Total() != total {
			t.Fatalf("gross %d: split sums to %d, total fee is %d", gross, split.Total(), total)
		}
	}
}

func TestSplitFee_SharesTrackProportional(t *testing.T) {
	s := mainnetSchedule(t)

	// Creator and LP shares truncate, so each sits within one unit of its
	// proportional value. The platform share absorbs both remainders and
	// may exceed its proportional value by up to two units (e.g. gross 999:
	// total 39, creator=lp=9, platform 21 vs proportional 19).
	for _, gross := range []model.MicroSTX{1, 999, 14_545_454, 1_000_000_001} {
		split, err := s.SplitFee(gross)
		if err != nil {
			t.Fatalf("SplitFee(%d): %v", gross, err)
		}
		checks := []struct {
			name    string
			share   model.MicroSTX
			bps     int64
			maxOver int64
		}{
			{"platform", split.Platform, s.PlatformBps, 2},
			{"creator", split.Creator, s.CreatorBps, 1},
			{"lp", split.LP, s.LPBps, 1},
		}
		for _, c := range checks {
			exact := int64(gross) * c.bps / 10_000
			diff := int64(c.share) - exact
			if diff < -1 || diff > c.maxOver {
				t.Errorf("gross %d: %s share %d deviates from proportional %d by %d (allowed -1..%d)",
					gross, c.name, c.share, exact, diff, c.maxOver)
			}
		}
	}
}

func TestSplitFee_RemainderGoesToPlatform(t *testing.T) {
	// Schedule chosen so the per-component division truncates.
	s, err := NewSchedule(100, 100, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// gross=33334 → total fee = floor(33334*300/10000) = 1000;
	// creator = lp = floor(1000/3) = 333; platform picks up the remainder.
	split, err := s.SplitFee(33_334)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if split.Creator != 333 || split.LP != 333 {
		t.Errorf("expected creator=lp=333, got creator=%d lp=%d", split.Creator, split.LP)
	}
	if split.Platform != 334 {
		t.Errorf("expected platform to absorb remainder (334), got %d", split.Platform)
	}
}

func TestSplitFee_ZeroSchedule(t *testing.T) {
	s, err := NewSchedule(0, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	split, err := s.SplitFee(1_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if split.Total() != 0 {
		t.Errorf("expected zero split for zero schedule, got %+v", split)
	}
}
