package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpectedSymmetry(t *testing.T) {
	assert.InDelta(t, 0.5, Expected(1200, 1200), 1e-9)
	assert.InDelta(t, 1.0, Expected(1000, 1400)+Expected(1400, 1000), 1e-9)
}

func TestDuelKFactor(t *testing.T) {
	assert.Equal(t, 40, DuelKFactor(5, 1500))  // new player
	assert.Equal(t, 40, DuelKFactor(40, 1100)) // low rating
	assert.Equal(t, 10, DuelKFactor(40, 2100)) // high rating, established
	assert.Equal(t, 20, DuelKFactor(40, 1500)) // established mid-rating
}

// S3: X(1000) vs Y(1000), X forfeits, Y wins. Both <1200 so K=40 for both.
// Expected = 0.5 each, delta = round(40*(1-0.5)) = 20.
func TestDuelForfeitScenarioS3(t *testing.T) {
	resA, resB := Duel(1000, 0, 1000, 0, Win) // A = Y (winner), B = X (loser)
	assert.Equal(t, 20, resA.RatingChange)
	assert.Equal(t, -20, resB.RatingChange)
	assert.Equal(t, 1020, resA.NewRating)
	assert.Equal(t, 980, resB.NewRating)
}

// Property 3: Elo conservation when K-factors match.
func TestEloConservationEqualK(t *testing.T) {
	resA, resB := Duel(1500, 40, 1520, 40, Draw)
	assert.Equal(t, 0, resA.RatingChange+resB.RatingChange)
}

func TestEloConservationDrawEqualRatings(t *testing.T) {
	// S2: both players rated equally, draw (timeout, both score 0).
	resA, resB := Duel(1200, 40, 1200, 40, Draw)
	assert.Equal(t, 0, resA.RatingChange)
	assert.Equal(t, 0, resB.RatingChange)
}

func TestDuelClampsAtRatingFloor(t *testing.T) {
	resA, _ := Duel(110, 0, 2000, 0, Loss)
	assert.GreaterOrEqual(t, resA.NewRating, 100)
}

func TestDuelClampsDeltaAt50(t *testing.T) {
	// A huge expected-score gap with the largest K (40) gives a delta of 40,
	// which stays within the +-50 clamp.
	resA, _ := Duel(800, 0, 2800, 0, Win)
	assert.LessOrEqual(t, resA.RatingChange, 50)
}

func TestContestKFactorBands(t *testing.T) {
	assert.Equal(t, 32, ContestKFactor(1300))
	assert.Equal(t, 24, ContestKFactor(1700))
	assert.Equal(t, 16, ContestKFactor(2100))
	assert.Equal(t, 8, ContestKFactor(2300))
}

func TestSettleContestOrderingAndSymmetry(t *testing.T) {
	participants := []ContestParticipant{
		{UserID: "a", Rating: 1500, GamesPlayed: 40, Score: 90},
		{UserID: "b", Rating: 1500, GamesPlayed: 40, Score: 50},
		{UserID: "c", Rating: 1500, GamesPlayed: 40, Score: 10},
	}
	results := SettleContest(participants)
	require.Len(t, results, 3)

	// Equal ratings: top scorer gains, bottom scorer loses, by symmetry.
	assert.Greater(t, results["a"].RatingChange, 0)
	assert.Less(t, results["c"].RatingChange, 0)
}

func TestSettleContestNewUserBonus(t *testing.T) {
	participants := []ContestParticipant{
		{UserID: "newbie", Rating: 1000, GamesPlayed: 1, Score: 100},
		{UserID: "vet", Rating: 1000, GamesPlayed: 40, Score: 10},
	}
	results := SettleContest(participants)
	// newbie outperformed an equally-rated, more-established opponent, so
	// the new-user 1.2x bonus should apply on top of the base K=40.
	assert.Greater(t, results["newbie"].RatingChange, results["vet"].RatingChange*-1-1)
}

func TestSettleContestRespectsDeltaClamp(t *testing.T) {
	participants := []ContestParticipant{
		{UserID: "low", Rating: 400, GamesPlayed: 40, Score: 1000},
		{UserID: "hi1", Rating: 3900, GamesPlayed: 40, Score: 1},
		{UserID: "hi2", Rating: 3900, GamesPlayed: 40, Score: 1},
	}
	results := SettleContest(participants)
	assert.LessOrEqual(t, results["low"].RatingChange, 100)
}
