package matchmaking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddThenHasAndSize(t *testing.T) {
	q := New(200)
	q.Add(&QueuedPlayer{UserID: "a", Rating: 1500, JoinedAt: time.Now()})

	assert.True(t, q.Has("a"))
	assert.Equal(t, 1, q.Size())
}

// Property 1: a userId can never appear twice; re-adding replaces.
func TestAddIsIdempotentPerUser(t *testing.T) {
	q := New(200)
	now := time.Now()
	q.Add(&QueuedPlayer{UserID: "a", Rating: 1500, JoinedAt: now})
	q.Add(&QueuedPlayer{UserID: "a", Rating: 1600, JoinedAt: now.Add(time.Second)})

	require.Equal(t, 1, q.Size())
	assert.Equal(t, 1600, q.Get("a").Rating)
}

func TestRemoveEvictsAndReturnsEntry(t *testing.T) {
	q := New(200)
	q.Add(&QueuedPlayer{UserID: "a", Rating: 1500, JoinedAt: time.Now()})

	removed := q.Remove("a")
	require.NotNil(t, removed)
	assert.Equal(t, "a", removed.UserID)
	assert.False(t, q.Has("a"))
	assert.Nil(t, q.Remove("a"))
}

// Property 2 (window bound): a lone candidate 150 away, inside the 200
// window, is returned as the match.
func TestFindMatchWithinWindow(t *testing.T) {
	q := New(200)
	now := time.Now()
	q.Add(&QueuedPlayer{UserID: "b", Rating: 1650, JoinedAt: now})

	match := q.FindMatch(&QueuedPlayer{UserID: "a", Rating: 1500, JoinedAt: now.Add(time.Second)})
	require.NotNil(t, match)
	assert.Equal(t, "b", match.UserID)
}

func TestFindMatchOutsideWindowReturnsNil(t *testing.T) {
	q := New(200)
	now := time.Now()
	q.Add(&QueuedPlayer{UserID: "b", Rating: 2000, JoinedAt: now})

	match := q.FindMatch(&QueuedPlayer{UserID: "a", Rating: 1500, JoinedAt: now})
	assert.Nil(t, match)
}

func TestFindMatchNeverReturnsSelf(t *testing.T) {
	q := New(200)
	q.Add(&QueuedPlayer{UserID: "a", Rating: 1500, JoinedAt: time.Now()})

	match := q.FindMatch(&QueuedPlayer{UserID: "a", Rating: 1500, JoinedAt: time.Now()})
	assert.Nil(t, match)
}

// Carol (1520) joins after Alice (1500) and Bob (1510) are both already
// queued. Bob is the closer rating match (diff 10 vs 20), so Carol matches
// Bob, not Alice, even though Alice joined first.
func TestFindMatchPrefersClosestRatingOverJoinOrder(t *testing.T) {
	q := New(200)
	base := time.Now()
	q.Add(&QueuedPlayer{UserID: "alice", Rating: 1500, JoinedAt: base})
	q.Add(&QueuedPlayer{UserID: "bob", Rating: 1510, JoinedAt: base.Add(time.Second)})

	carol := &QueuedPlayer{UserID: "carol", Rating: 1520, JoinedAt: base.Add(2 * time.Second)}
	match := q.FindMatch(carol)

	require.NotNil(t, match)
	assert.Equal(t, "bob", match.UserID)
}

// When two candidates are equally close in rating, the earlier joiner wins.
func TestFindMatchBreaksTiesByEarliestJoin(t *testing.T) {
	q := New(200)
	base := time.Now()
	q.Add(&QueuedPlayer{UserID: "alice", Rating: 1490, JoinedAt: base})
	q.Add(&QueuedPlayer{UserID: "bob", Rating: 1510, JoinedAt: base.Add(time.Second)})

	carol := &QueuedPlayer{UserID: "carol", Rating: 1500, JoinedAt: base.Add(2 * time.Second)}
	match := q.FindMatch(carol)

	require.NotNil(t, match)
	assert.Equal(t, "alice", match.UserID)
}

// S1 (pairing), literal spec scenario: Alice(1100,t0), Bob(1300,t1), both
// 100 away from Carol(1200,t2) — tie broken by Alice's earlier join.
func TestFindMatchScenarioS1(t *testing.T) {
	q := New(200)
	t0 := time.Now()
	t1 := t0.Add(time.Minute)
	t2 := t0.Add(2 * time.Minute)

	q.Add(&QueuedPlayer{UserID: "alice", Rating: 1100, JoinedAt: t0})
	q.Add(&QueuedPlayer{UserID: "bob", Rating: 1300, JoinedAt: t1})

	match := q.FindMatch(&QueuedPlayer{UserID: "carol", Rating: 1200, JoinedAt: t2})
	require.NotNil(t, match)
	assert.Equal(t, "alice", match.UserID)
}

func TestPositionReflectsJoinOrder(t *testing.T) {
	q := New(200)
	base := time.Now()
	q.Add(&QueuedPlayer{UserID: "alice", Rating: 1500, JoinedAt: base})
	q.Add(&QueuedPlayer{UserID: "bob", Rating: 1510, JoinedAt: base.Add(time.Second)})

	assert.Equal(t, 1, q.Position("alice"))
	assert.Equal(t, 2, q.Position("bob"))
	assert.Equal(t, 0, q.Position("nobody"))
}
