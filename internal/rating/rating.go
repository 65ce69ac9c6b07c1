// Package rating implements the pure, deterministic Elo and contest rating
// math of spec.md §4.A. Nothing here touches I/O, time, or randomness —
// grounded on the teacher's internal/game/pool_math.go, which is itself a
// plain-functions-only file with no receiver state.
package rating

import "math"

// Outcome is the actual score S in the duel Elo formula.
type Outcome float64

const (
	Loss Outcome = 0
	Draw Outcome = 0.5
	Win  Outcome = 1
)

const (
	minRating = 100
	maxRating = 4000

	contestMinRating = 0
	contestMaxRating = 4000

	duelDeltaClamp    = 50
	contestDeltaClamp = 100
)

// Expected returns the Elo expected score of a player rated ratingA against
// an opponent rated ratingB.
func Expected(ratingA, ratingB int) float64 {
	return 1 / (1 + math.Pow(10, float64(ratingB-ratingA)/400))
}

// DuelKFactor implements spec.md §4.A's K-factor table for a 1v1 duel.
func DuelKFactor(gamesPlayed, rating int) int {
	switch {
	case gamesPlayed < 30 || rating < 1200:
		return 40
	case rating >= 2000:
		return 10
	default:
		return 20
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// roundHalfAwayFromZero matches the spec's "round" for ΔR, which must round
// ties away from zero so an exact half (e.g. K=10, S−E=0.25 gives 2.5)
// rounds to 3 rather than banker's rounding to the even 2.
func roundHalfAwayFromZero(x float64) int {
	if x >= 0 {
		return int(math.Floor(x + 0.5))
	}
	return -int(math.Floor(-x + 0.5))
}

// DuelResult is the post-settlement rating change for one duel participant.
type DuelResult struct {
	OldRating    int
	NewRating    int
	RatingChange int
}

// Duel computes both players' rating changes for a completed 1v1 duel.
// scoreA is player A's actual score (Win/Draw/Loss); player B's is the
// complement. gamesPlayedA/B feed each player's own K-factor.
func Duel(ratingA, gamesPlayedA int, ratingB, gamesPlayedB int, scoreA Outcome) (DuelResult, DuelResult) {
	expA := Expected(ratingA, ratingB)
	expB := 1 - expA
	scoreB := 1 - float64(scoreA)

	kA := DuelKFactor(gamesPlayedA, ratingA)
	kB := DuelKFactor(gamesPlayedB, ratingB)

	deltaA := clampInt(roundHalfAwayFromZero(float64(kA)*(float64(scoreA)-expA)), -duelDeltaClamp, duelDeltaClamp)
	deltaB := clampInt(roundHalfAwayFromZero(float64(kB)*(scoreB-expB)), -duelDeltaClamp, duelDeltaClamp)

	newA := clampInt(ratingA+deltaA, minRating, maxRating)
	newB := clampInt(ratingB+deltaB, minRating, maxRating)

	return DuelResult{OldRating: ratingA, NewRating: newA, RatingChange: newA - ratingA},
		DuelResult{OldRating: ratingB, NewRating: newB, RatingChange: newB - ratingB}
}

// ContestParticipant is one entrant in a contest rating-settlement pass.
type ContestParticipant struct {
	UserID       string
	Rating       int
	GamesPlayed  int
	Score        int // contest score, used only to derive actual rank via sort
}

// ContestKFactor implements the rating bands (32/24/16/8) of spec.md §4.A's
// contest K table; the games-played override to 40 is in contestKFactor.
func ContestKFactor(rating int) int {
	switch {
	case rating < 1400:
		return 32
	case rating < 1800:
		return 24
	case rating < 2200:
		return 16
	default:
		return 8
	}
}

// contestKFactor applies the games<6 override (40) ahead of the
// rating bands, per spec.md: "K = 40/32/24/16/8 by games-played<6 /
// rating<1400 / <1800 / <2200 / else".
func contestKFactor(p ContestParticipant) int {
	if p.GamesPlayed < 6 {
		return 40
	}
	return ContestKFactor(p.Rating)
}

// SettleContest computes rating changes for every participant of one
// contest, given their final scores. Ranking is by score desc (ties keep
// their relative input order, i.e. a stable sort) — actual rank r is
// 1-indexed position in that order.
func SettleContest(participants []ContestParticipant) map[string]DuelResult {
	ranked := make([]ContestParticipant, len(participants))
	copy(ranked, participants)
	stableSortByScoreDesc(ranked)

	results := make(map[string]DuelResult, len(ranked))

	for i, p := range ranked {
		actualRank := i + 1

		expectedRank := 1.0
		for j, other := range ranked {
			if j == i {
				continue
			}
			expectedRank += 1 / (1 + math.Pow(10, float64(other.Rating-p.Rating)/400))
		}

		factor := (expectedRank - float64(actualRank)) / expectedRank

		k := contestKFactor(p)
		delta := roundHalfAwayFromZero(float64(k) * factor)

		if p.GamesPlayed < 6 && delta > 0 {
			delta = roundHalfAwayFromZero(float64(delta) * 1.2)
		}

		delta = clampInt(delta, -contestDeltaClamp, contestDeltaClamp)
		newRating := clampInt(p.Rating+delta, contestMinRating, contestMaxRating)

		results[p.UserID] = DuelResult{
			OldRating:    p.Rating,
			NewRating:    newRating,
			RatingChange: newRating - p.Rating,
		}
	}

	return results
}

// stableSortByScoreDesc sorts by Score descending, preserving relative order
// of equal-score entries (spec.md §4.A tie-break note and §8 property 7).
func stableSortByScoreDesc(p []ContestParticipant) {
	// insertion sort: stable and plenty fast for contest-sized rosters.
	for i := 1; i < len(p); i++ {
		j := i
		for j > 0 && p[j-1].Score < p[j].Score {
			p[j-1], p[j] = p[j], p[j-1]
			j--
		}
	}
}
