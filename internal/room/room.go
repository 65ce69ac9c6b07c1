// Package room implements the duel state machine of spec.md §4.C: Create,
// Submit, Forfeit, Timeout, Rejoin, Status, and the single-shot Settlement
// procedure. Grounded on the teacher's internal/game/pool_state.go —
// PoolGameState's mutex-guarded struct with single-purpose state-transition
// methods is kept; pool/ball/shot fields are replaced with room/submission
// fields, and physics foul detection is replaced by the rating-settlement
// procedure of 4.C.
package room

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/codearena/core/internal/models"
	"github.com/codearena/core/internal/ports"
	"github.com/codearena/core/internal/rating"
)

var (
	ErrNotMember          = errors.New("room: user is not a member of this room")
	ErrNotLive            = errors.New("room: not live")
	ErrAlreadySubmitted   = errors.New("room: user has already submitted or forfeited")
	ErrUnsupportedLang    = errors.New("room: unsupported language")
	ErrRoomNotFound       = errors.New("room: not found")
	ErrRoomNotActive      = errors.New("room: not active")
)

// Settled is the payload broadcast as matchFinished (4.C step 7).
type Settled struct {
	RoomID        string
	Reason        string // allSubmitted | forfeit | timeout
	Users         []models.RoomUser
	Winner        string // empty if draw
	IsDraw        bool
	RatingChanges map[string]rating.DuelResult
}

// Broadcaster is the narrow piece of the session gateway a Room pushes
// events through. session.Hub implements this directly over its
// in-process client/room membership maps; ports.PubSub remains available
// for a future multi-process deployment to implement the same interface
// over a shared channel instead.
type Broadcaster interface {
	BroadcastToRoom(roomID string, event string, payload interface{})
}

// Room is one live or completed duel.
type Room struct {
	mu sync.Mutex

	id        string
	problemID string
	users     map[string]*models.RoomUser
	order     []string // stable member order, for settlement tie-breaks

	status      string
	isActive    bool
	matchStart  time.Time
	endsAt      time.Time
	completed   bool
	timer       ports.Timer

	store      ports.Store
	evaluator  Evaluator
	clock      ports.Clock
	broadcast  Broadcaster
}

// Manager owns the set of live rooms and the collaborators Create needs.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	Store     ports.Store
	Evaluator Evaluator
	Clock     ports.Clock
	Random    ports.Random
	Broadcast Broadcaster

	// MatchDuration is how long a duel stays live before Timeout fires.
	// Defaults to 30 minutes if left zero (see NewManager).
	MatchDuration time.Duration
}

const defaultMatchDuration = 30 * time.Minute

// NewManager wires a room Manager over its collaborators (spec.md §1).
// matchDuration is the configured duel length (spec.md §6 MATCH_DURATION);
// zero falls back to defaultMatchDuration.
func NewManager(store ports.Store, evaluator Evaluator, clock ports.Clock, random ports.Random, broadcast Broadcaster, matchDuration time.Duration) *Manager {
	if matchDuration <= 0 {
		matchDuration = defaultMatchDuration
	}
	return &Manager{
		rooms:         make(map[string]*Room),
		Store:         store,
		Evaluator:     evaluator,
		Clock:         clock,
		Random:        random,
		Broadcast:     broadcast,
		MatchDuration: matchDuration,
	}
}

// PlayerInfo is the caller-supplied identity/rating snapshot for Create.
type PlayerInfo struct {
	UserID   string
	Username string
	Rating   int
}

// Create starts a new duel room between two players (4.C Create).
func (m *Manager) Create(ctx context.Context, roomID string, p1, p2 PlayerInfo) (*Room, error) {
	problem, err := m.Store.RandomProblem(ctx)
	if err != nil {
		return nil, err
	}

	now := m.Clock.Now()
	r := &Room{
		id:        roomID,
		problemID: problem.ID,
		users: map[string]*models.RoomUser{
			p1.UserID: {UserID: p1.UserID, Username: p1.Username, Rating: p1.Rating, SubmissionStatus: models.SubmissionPending},
			p2.UserID: {UserID: p2.UserID, Username: p2.Username, Rating: p2.Rating, SubmissionStatus: models.SubmissionPending},
		},
		order:      []string{p1.UserID, p2.UserID},
		status:     models.RoomLive,
		isActive:   true,
		matchStart: now,
		endsAt:     now.Add(m.MatchDuration),
		store:      m.Store,
		evaluator:  m.Evaluator,
		clock:      m.Clock,
		broadcast:  m.Broadcast,
	}

	if err := m.Store.SaveRoom(ctx, r.snapshotLocked()); err != nil {
		return nil, err
	}

	r.timer = m.Clock.AfterFunc(m.MatchDuration, func() {
		r.Timeout(context.Background())
	})

	m.mu.Lock()
	m.rooms[roomID] = r
	m.mu.Unlock()

	if m.Broadcast != nil {
		m.Broadcast.BroadcastToRoom(roomID, "matchFound", map[string]interface{}{
			"roomId":    roomID,
			"problem":   problem,
			"startedAt": r.matchStart,
			"endsAt":    r.endsAt,
		})
	}

	return r, nil
}

// Get returns the live room for roomID, or nil.
func (m *Manager) Get(roomID string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[roomID]
}

// snapshotLocked builds a models.Room from in-memory state. Caller must
// hold r.mu (or be constructing r before it is published).
func (r *Room) snapshotLocked() *models.Room {
	users := make([]models.RoomUser, 0, len(r.order))
	for _, id := range r.order {
		users = append(users, *r.users[id])
	}
	return &models.Room{
		RoomID:     r.id,
		ProblemID:  r.problemID,
		Users:      users,
		RoomStatus: r.status,
		IsActive:   r.isActive,
		CreatedAt:  r.matchStart,
	}
}

// Submit implements 4.C Submit, returning the evaluated score and passed
// test-case count for the caller's own acknowledgement.
func (m *Manager) Submit(ctx context.Context, roomID, userID, code, language string) (score, passed int, err error) {
	r := m.Get(roomID)
	if r == nil {
		return 0, 0, ErrRoomNotFound
	}
	return r.submit(ctx, code, language, userID)
}

func (r *Room) submit(ctx context.Context, code, language, userID string) (int, int, error) {
	r.mu.Lock()
	if r.status != models.RoomLive {
		r.mu.Unlock()
		return 0, 0, ErrNotLive
	}
	u, ok := r.users[userID]
	if !ok {
		r.mu.Unlock()
		return 0, 0, ErrNotMember
	}
	if u.SubmissionStatus != models.SubmissionPending {
		r.mu.Unlock()
		return 0, 0, ErrAlreadySubmitted
	}
	if !models.SupportedLanguages[language] {
		r.mu.Unlock()
		return 0, 0, ErrUnsupportedLang
	}
	r.mu.Unlock()

	score, passed, err := r.evaluator.Evaluate(ctx, userID, r.problemID, code, language)
	if err != nil {
		return 0, 0, err
	}

	r.mu.Lock()
	now := r.clock.Now()
	u.Score = score
	u.SubmissionStatus = models.SubmissionSubmitted
	u.SubmissionTime = &now
	allDone := r.allDoneLocked()
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	if err := r.store.SaveRoom(ctx, snapshot); err != nil {
		return 0, 0, err
	}

	if r.broadcast != nil {
		r.broadcast.BroadcastToRoom(r.id, "scoreUpdate", snapshot.Users)
		r.broadcast.BroadcastToRoom(r.id, "submissionUpdate", map[string]interface{}{
			"userId":          userID,
			"score":           score,
			"passedTestcases": passed,
		})
	}

	if allDone {
		r.settle(ctx, "allSubmitted")
	}
	return score, passed, nil
}

// Forfeit implements 4.C Forfeit.
func (m *Manager) Forfeit(ctx context.Context, roomID, userID string) error {
	r := m.Get(roomID)
	if r == nil {
		return ErrRoomNotFound
	}
	return r.forfeit(ctx, userID)
}

func (r *Room) forfeit(ctx context.Context, userID string) error {
	r.mu.Lock()
	if r.status != models.RoomLive {
		r.mu.Unlock()
		return ErrNotLive
	}
	u, ok := r.users[userID]
	if !ok {
		r.mu.Unlock()
		return ErrNotMember
	}
	if u.SubmissionStatus != models.SubmissionPending {
		r.mu.Unlock()
		return ErrAlreadySubmitted
	}
	u.SubmissionStatus = models.SubmissionForfeited
	u.Score = 0
	remaining := 0
	for _, other := range r.users {
		if other.SubmissionStatus != models.SubmissionForfeited {
			remaining++
		}
	}
	r.mu.Unlock()

	if remaining <= 1 {
		r.settle(ctx, "forfeit")
	}
	return nil
}

// allDoneLocked reports whether every member is submitted or forfeited.
// Caller must hold r.mu.
func (r *Room) allDoneLocked() bool {
	for _, u := range r.users {
		if u.SubmissionStatus == models.SubmissionPending {
			return false
		}
	}
	return true
}

// Timeout implements 4.C Timeout: idempotent, no-op once completed.
func (r *Room) Timeout(ctx context.Context) {
	r.settle(ctx, "timeout")
}

// settle runs the single-shot settlement procedure (4.C Settlement),
// guarded so only the first caller (timer firing or a final submission)
// actually settles; everyone else observes completed and returns.
func (r *Room) settle(ctx context.Context, reason string) {
	r.mu.Lock()
	if r.completed {
		r.mu.Unlock()
		return
	}
	r.completed = true
	if r.timer != nil {
		r.timer.Stop()
	}

	users := make([]models.RoomUser, 0, len(r.order))
	for _, id := range r.order {
		users = append(users, *r.users[id])
	}
	r.mu.Unlock()

	sortForSettlement(users)

	isDraw := len(users) >= 2 && users[0].Score == users[1].Score

	var ratingChanges map[string]rating.DuelResult
	var winner string

	if reason == "forfeit" {
		var remaining, forfeited *models.RoomUser
		for i := range users {
			if users[i].SubmissionStatus == models.SubmissionForfeited {
				forfeited = &users[i]
			} else {
				remaining = &users[i]
			}
		}
		if remaining != nil && forfeited != nil {
			resA, resB := rating.Duel(remaining.Rating, 0, forfeited.Rating, 0, rating.Win)
			ratingChanges = map[string]rating.DuelResult{
				remaining.UserID: resA,
				forfeited.UserID: resB,
			}
			winner = remaining.UserID
		}
	} else if len(users) >= 2 {
		outcome := rating.Draw
		if !isDraw {
			outcome = rating.Win
			winner = users[0].UserID
		}
		resA, resB := rating.Duel(users[0].Rating, 0, users[1].Rating, 0, outcome)
		ratingChanges = map[string]rating.DuelResult{
			users[0].UserID: resA,
			users[1].UserID: resB,
		}
	}

	for userID, rc := range ratingChanges {
		_ = r.store.UpdateUserRating(ctx, userID, rc.NewRating)
	}

	r.mu.Lock()
	r.status = models.RoomCompleted
	r.isActive = false
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	_ = r.store.SaveRoom(ctx, snapshot)

	if r.broadcast != nil {
		r.broadcast.BroadcastToRoom(r.id, "matchFinished", Settled{
			RoomID:        r.id,
			Reason:        reason,
			Users:         users,
			Winner:        winner,
			IsDraw:        isDraw && reason != "forfeit",
			RatingChanges: ratingChanges,
		})
	}
}

// sortForSettlement orders users per 4.C step 2: score desc, submissionTime
// asc, submitted-before-never-submitted, stable otherwise.
func sortForSettlement(users []models.RoomUser) {
	sort.SliceStable(users, func(i, j int) bool {
		a, b := users[i], users[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		aSubmitted := a.SubmissionTime != nil
		bSubmitted := b.SubmissionTime != nil
		if aSubmitted != bSubmitted {
			return aSubmitted // submitted sorts before never-submitted
		}
		if aSubmitted && bSubmitted {
			return a.SubmissionTime.Before(*b.SubmissionTime)
		}
		return false
	})
}

// Rejoin implements 4.C Rejoin.
func (m *Manager) Rejoin(ctx context.Context, roomID, userID string) (status string, users []models.RoomUser, remaining time.Duration, err error) {
	r := m.Get(roomID)
	if r == nil {
		return "", nil, 0, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isActive {
		return "", nil, 0, ErrRoomNotActive
	}
	if _, ok := r.users[userID]; !ok {
		return "", nil, 0, ErrNotMember
	}

	remaining = r.endsAt.Sub(r.clock.Now())
	if remaining < 0 {
		remaining = 0
	}

	usersCopy := make([]models.RoomUser, 0, len(r.order))
	for _, id := range r.order {
		usersCopy = append(usersCopy, *r.users[id])
	}

	return r.status, usersCopy, remaining, nil
}

// Status implements 4.C Status.
func (m *Manager) Status(roomID string) (status, problemID string, users []models.RoomUser, isActive bool, remaining time.Duration, err error) {
	r := m.Get(roomID)
	if r == nil {
		return "", "", nil, false, 0, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	remaining = r.endsAt.Sub(r.clock.Now())
	if remaining < 0 {
		remaining = 0
	}

	usersCopy := make([]models.RoomUser, 0, len(r.order))
	for _, id := range r.order {
		usersCopy = append(usersCopy, *r.users[id])
	}

	return r.status, r.problemID, usersCopy, r.isActive, remaining, nil
}

// ListActiveForUser returns the roomIds of every currently-active room
// userID is a member of (used by getActiveMatches, 4.E).
func (m *Manager) ListActiveForUser(userID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for roomID, r := range m.rooms {
		r.mu.Lock()
		_, member := r.users[userID]
		active := r.isActive
		r.mu.Unlock()
		if member && active {
			ids = append(ids, roomID)
		}
	}
	return ids
}
