package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/codearena/core/internal/models"
	"github.com/codearena/core/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is a minimal ports.Store double exercising only what Room uses.
type fakeStore struct {
	mu      sync.Mutex
	rooms   map[string]*models.Room
	ratings map[string]int
	problem *models.Problem
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:   make(map[string]*models.Room),
		ratings: make(map[string]int),
		problem: &models.Problem{ID: "p1", Title: "Two Sum"},
	}
}

func (s *fakeStore) GetUser(context.Context, string) (*models.User, error) { return nil, nil }
func (s *fakeStore) UpdateUserRating(_ context.Context, userID string, newRating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings[userID] = newRating
	return nil
}
func (s *fakeStore) MarkProblemSolved(context.Context, string, string, time.Time) error { return nil }
func (s *fakeStore) RandomProblem(context.Context) (*models.Problem, error)             { return s.problem, nil }
func (s *fakeStore) GetProblem(context.Context, string) (*models.Problem, error)        { return s.problem, nil }
func (s *fakeStore) ListProblems(context.Context, int, int) ([]*models.Problem, error)  { return nil, nil }
func (s *fakeStore) CreateSolution(context.Context, *models.Solution) (string, error)   { return "", nil }
func (s *fakeStore) LatestSolution(context.Context, string, string, string) (*models.Solution, error) {
	return nil, nil
}
func (s *fakeStore) SaveRoom(_ context.Context, r *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.RoomID] = r
	return nil
}
func (s *fakeStore) GetRoom(_ context.Context, roomID string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[roomID], nil
}
func (s *fakeStore) GetContest(context.Context, string) (*models.Contest, error) { return nil, nil }
func (s *fakeStore) IsParticipant(context.Context, string, string) (bool, error) { return false, nil }
func (s *fakeStore) AppendContestSubmission(context.Context, string, string) error { return nil }
func (s *fakeStore) UpsertContestProblemScore(context.Context, string, string, string, int, bool) error {
	return nil
}
func (s *fakeStore) LeaderboardRows(context.Context, string) ([]ports.LeaderboardRow, error) {
	return nil, nil
}

// fakeClock never fires the scheduled timeout (AfterFunc drops the
// callback); tests call Room.Timeout directly instead of waiting out the
// real 30 minutes.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Now()} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(_ time.Duration, _ func()) ports.Timer {
	return &noopTimer{}
}

type noopTimer struct{ stopped bool }

func (t *noopTimer) Stop() bool {
	wasRunning := !t.stopped
	t.stopped = true
	return wasRunning
}

// fakeBroadcaster records every broadcast event for assertions.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

type broadcastEvent struct {
	roomID  string
	event   string
	payload interface{}
}

func (b *fakeBroadcaster) BroadcastToRoom(roomID, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{roomID, event, payload})
}

func (b *fakeBroadcaster) countOf(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func newTestManager() (*Manager, *fakeStore, *fakeBroadcaster) {
	store := newFakeStore()
	broadcaster := &fakeBroadcaster{}
	mgr := NewManager(store, NewFakeEvaluator(), newFakeClock(), nil, broadcaster, 30*time.Minute)
	return mgr, store, broadcaster
}

func TestCreateEmitsMatchFoundAndPersistsLiveRoom(t *testing.T) {
	mgr, store, bcast := newTestManager()
	ctx := context.Background()

	r, err := mgr.Create(ctx, "room1", PlayerInfo{UserID: "a", Username: "Alice", Rating: 1200}, PlayerInfo{UserID: "b", Username: "Bob", Rating: 1250})
	require.NoError(t, err)
	require.NotNil(t, r)

	assert.Equal(t, 1, bcast.countOf("matchFound"))
	saved := store.rooms["room1"]
	require.NotNil(t, saved)
	assert.Equal(t, models.RoomLive, saved.RoomStatus)
	assert.True(t, saved.IsActive)
}

// Property 4: submissionStatus only ever transitions pending->submitted or
// pending->forfeited, never backwards and never submitted<->forfeited.
func TestSubmitTransitionsPendingToSubmitted(t *testing.T) {
	mgr, _, _ := newTestManager()
	ctx := context.Background()
	mgr.Create(ctx, "room1", PlayerInfo{UserID: "a", Rating: 1200}, PlayerInfo{UserID: "b", Rating: 1200})

	_, _, err := mgr.Submit(ctx, "room1", "a", "print(1)", models.LangPython)
	require.NoError(t, err)

	_, _, err = mgr.Submit(ctx, "room1", "a", "print(1)", models.LangPython)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestSubmitRejectsUnsupportedLanguage(t *testing.T) {
	mgr, _, _ := newTestManager()
	ctx := context.Background()
	mgr.Create(ctx, "room1", PlayerInfo{UserID: "a", Rating: 1200}, PlayerInfo{UserID: "b", Rating: 1200})

	_, _, err := mgr.Submit(ctx, "room1", "a", "1+1;", "ruby")
	assert.ErrorIs(t, err, ErrUnsupportedLang)
}

// Property 5: a room emits exactly one matchFinished, regardless of whether
// settlement was triggered by both-submitted or by a racing timer.
func TestSettlementFiresExactlyOnce(t *testing.T) {
	mgr, _, bcast := newTestManager()
	ctx := context.Background()
	r, _ := mgr.Create(ctx, "room1", PlayerInfo{UserID: "a", Rating: 1200}, PlayerInfo{UserID: "b", Rating: 1200})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Timeout(ctx)
		}()
	}
	wg.Wait()

	_, _, err := mgr.Submit(ctx, "room1", "a", "code", models.LangPython)
	assert.ErrorIs(t, err, ErrNotLive)

	assert.Equal(t, 1, bcast.countOf("matchFinished"))
}

// S2: both players submit nothing; timeout fires a draw with zero rating
// change since ratings are equal.
func TestTimeoutWithNoSubmissionsIsADraw(t *testing.T) {
	mgr, store, bcast := newTestManager()
	ctx := context.Background()
	r, _ := mgr.Create(ctx, "room1", PlayerInfo{UserID: "x", Rating: 1200}, PlayerInfo{UserID: "y", Rating: 1200})

	r.Timeout(ctx)

	assert.Equal(t, 1, bcast.countOf("matchFinished"))
	assert.Equal(t, 1200, store.ratings["x"])
	assert.Equal(t, 1200, store.ratings["y"])

	saved := store.rooms["room1"]
	assert.Equal(t, models.RoomCompleted, saved.RoomStatus)
	assert.False(t, saved.IsActive)
}

// S3: X(1000) vs Y(1000), X forfeits. Y wins, both deltas are +-20 (K=40
// for both since rating < 1200).
func TestForfeitScenarioS3(t *testing.T) {
	mgr, store, _ := newTestManager()
	ctx := context.Background()
	mgr.Create(ctx, "room1", PlayerInfo{UserID: "x", Rating: 1000}, PlayerInfo{UserID: "y", Rating: 1000})

	require.NoError(t, mgr.Forfeit(ctx, "room1", "x"))

	assert.Equal(t, 980, store.ratings["x"])
	assert.Equal(t, 1020, store.ratings["y"])
}

// Property 8: idempotent rejoin — N calls return the same snapshot (save
// for remainingTime) and never mutate room state.
func TestRejoinIsIdempotent(t *testing.T) {
	mgr, _, _ := newTestManager()
	ctx := context.Background()
	mgr.Create(ctx, "room1", PlayerInfo{UserID: "a", Rating: 1200}, PlayerInfo{UserID: "b", Rating: 1200})

	status1, users1, _, err := mgr.Rejoin(ctx, "room1", "a")
	require.NoError(t, err)
	status2, users2, _, err := mgr.Rejoin(ctx, "room1", "a")
	require.NoError(t, err)

	assert.Equal(t, status1, status2)
	assert.Equal(t, users1, users2)
}

func TestRejoinRejectsNonMember(t *testing.T) {
	mgr, _, _ := newTestManager()
	ctx := context.Background()
	mgr.Create(ctx, "room1", PlayerInfo{UserID: "a", Rating: 1200}, PlayerInfo{UserID: "b", Rating: 1200})

	_, _, _, err := mgr.Rejoin(ctx, "room1", "stranger")
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestStatusReturnsLiveRoomAndPositiveRemainingTime(t *testing.T) {
	mgr, _, _ := newTestManager()
	ctx := context.Background()
	mgr.Create(ctx, "room1", PlayerInfo{UserID: "a", Rating: 1200}, PlayerInfo{UserID: "b", Rating: 1200})

	status, problemID, users, isActive, remaining, err := mgr.Status("room1")
	require.NoError(t, err)
	assert.Equal(t, models.RoomLive, status)
	assert.Equal(t, "p1", problemID)
	assert.True(t, isActive)
	assert.Len(t, users, 2)
	assert.Greater(t, remaining, time.Duration(0))
}
