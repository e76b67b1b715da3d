package increment

import (
	"testing"

	"github.com/draftroom/auction-engine/internal/model"
)

// --- Default table tests ---

func TestIncrement_DefaultTable(t *testing.T) {
	brackets := DefaultBrackets()

	cases := []struct {
		name       string
		currentBid int64
		basePrice  int64
		want       int64
	}{
		{"at base price", 100, 100, 10},
		{"just under 2x", 199, 100, 10},
		{"exactly 2x", 200, 100, 25},
		{"mid bracket", 350, 100, 25},
		{"exactly 5x", 500, 100, 50},
		{"just under 10x", 999, 100, 50},
		{"exactly 10x", 1000, 100, 100},
		{"far past 10x", 100000, 100, 100},
		{"zero current bid", 0, 100, 10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Increment(tc.currentBid, tc.basePrice, brackets)
			if got != tc.want {
				t.Errorf("Increment(%d, %d) = %d, want %d",
					tc.currentBid, tc.basePrice, got, tc.want)
			}
		})
	}
}

func TestNextBid_DefaultTable(t *testing.T) {
	brackets := DefaultBrackets()

	if got := NextBid(100, 100, brackets); got != 110 {
		t.Errorf("NextBid(100, 100) = %d, want 110", got)
	}
	if got := NextBid(200, 100, brackets); got != 225 {
		t.Errorf("NextBid(200, 100) = %d, want 225", got)
	}
	if got := NextBid(1500, 100, brackets); got != 1600 {
		t.Errorf("NextBid(1500, 100) = %d, want 1600", got)
	}
}

// --- Fallback tests ---

func TestIncrement_EmptyTableFallsBackToBasePrice(t *testing.T) {
	if got := Increment(250, 100, nil); got != 100 {
		t.Errorf("empty table should fall back to base price, got %d", got)
	}
}

func TestIncrement_NoMatchFallsBackToLastBracket(t *testing.T) {
	// Table with a gap: nothing matches multiplier 3.
	brackets := []model.IncrementBracket{
		{FromMultiplier: 0, ToMultiplier: 2, Increment: 5},
		{FromMultiplier: 4, ToMultiplier: 8, Increment: 40},
	}
	if got := Increment(300, 100, brackets); got != 40 {
		t.Errorf("unmatched multiplier should use last bracket, got %d", got)
	}
}

func TestIncrement_OpenEndedBracket(t *testing.T) {
	brackets := []model.IncrementBracket{
		{FromMultiplier: 0, ToMultiplier: 0, Increment: 7},
	}
	if got := Increment(5000, 100, brackets); got != 7 {
		t.Errorf("open-ended bracket should match any multiplier, got %d", got)
	}
}

func TestIncrement_CustomTable(t *testing.T) {
	// Organizer override: flat 20 until 3x, then 75.
	brackets := []model.IncrementBracket{
		{FromMultiplier: 0, ToMultiplier: 3, Increment: 20},
		{FromMultiplier: 3, ToMultiplier: 0, Increment: 75},
	}
	if got := Increment(150, 100, brackets); got != 20 {
		t.Errorf("expected 20 below 3x, got %d", got)
	}
	if got := Increment(300, 100, brackets); got != 75 {
		t.Errorf("expected 75 at 3x, got %d", got)
	}
}

func TestIncrement_ZeroBasePrice(t *testing.T) {
	// Degenerate tier config; last bracket applies rather than dividing
	// by zero.
	brackets := DefaultBrackets()
	if got := Increment(100, 0, brackets); got != 100 {
		t.Errorf("zero base price should use last bracket, got %d", got)
	}
}
