package game

import "math"

const (
	eloK        = 32
	ratingFloor = 100
)

// eloDelta returns the rating change for a player at `rating` who scored
// (1 win, 0.5 draw, 0 loss) against `opponent`. With a shared K the deltas
// of the two sides are exact negatives of each other.
func eloDelta(rating, opponent int, score float64) int {
	expected := 1.0 / (1.0 + math.Pow(10, float64(opponent-rating)/400.0))
	return int(math.Round(eloK * (score - expected)))
}

// applyFloor clamps a post-game rating to the floor
func applyFloor(rating int) int {
	if rating < ratingFloor {
		return ratingFloor
	}
	return rating
}
