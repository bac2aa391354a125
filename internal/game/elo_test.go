package game

import "testing"

func TestEloZeroSumBetweenEqualPlayers(t *testing.T) {
	winner := eloDelta(1200, 1200, 1)
	loser := eloDelta(1200, 1200, 0)

	if winner != 16 {
		t.Errorf("Expected +16 for an even win at K=32, got %+d", winner)
	}
	if winner+loser != 0 {
		t.Errorf("Deltas are not zero-sum: %+d / %+d", winner, loser)
	}
}

func TestEloZeroSumAcrossRatingGap(t *testing.T) {
	pairs := [][2]int{{1200, 1200}, {1400, 1000}, {1000, 1400}, {2200, 900}}
	for _, p := range pairs {
		for _, score := range []float64{0, 0.5, 1} {
			a := eloDelta(p[0], p[1], score)
			b := eloDelta(p[1], p[0], 1-score)
			if a+b != 0 {
				t.Errorf("Ratings %v score %.1f: deltas %+d / %+d not zero-sum", p, score, a, b)
			}
		}
	}
}

func TestEloUpsetPaysMore(t *testing.T) {
	upset := eloDelta(1000, 1400, 1)
	expected := eloDelta(1400, 1000, 1)
	if upset <= expected {
		t.Errorf("Upset win (%+d) should pay more than expected win (%+d)", upset, expected)
	}
}

func TestEloDrawMovesTowardsOpponent(t *testing.T) {
	higher := eloDelta(1400, 1000, 0.5)
	lower := eloDelta(1000, 1400, 0.5)
	if higher >= 0 {
		t.Errorf("Favored player should lose points on a draw, got %+d", higher)
	}
	if lower <= 0 {
		t.Errorf("Underdog should gain points on a draw, got %+d", lower)
	}
}

func TestRatingFloor(t *testing.T) {
	if got := applyFloor(80); got != ratingFloor {
		t.Errorf("Expected floor %d, got %d", ratingFloor, got)
	}
	if got := applyFloor(ratingFloor); got != ratingFloor {
		t.Errorf("Floor value itself must pass through, got %d", got)
	}
	if got := applyFloor(1500); got != 1500 {
		t.Errorf("Ratings above the floor must pass through, got %d", got)
	}
}
