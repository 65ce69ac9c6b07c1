package judge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/codearena/core/internal/models"
	"github.com/codearena/core/internal/ports"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	created []*models.Solution
}

func (f *fakeStore) GetUser(context.Context, string) (*models.User, error) { return nil, nil }
func (f *fakeStore) UpdateUserRating(context.Context, string, int) error  { return nil }
func (f *fakeStore) MarkProblemSolved(context.Context, string, string, time.Time) error {
	return nil
}
func (f *fakeStore) RandomProblem(context.Context) (*models.Problem, error)            { return nil, nil }
func (f *fakeStore) GetProblem(context.Context, string) (*models.Problem, error)       { return nil, nil }
func (f *fakeStore) ListProblems(context.Context, int, int) ([]*models.Problem, error) { return nil, nil }
func (f *fakeStore) CreateSolution(_ context.Context, sol *models.Solution) (string, error) {
	f.created = append(f.created, sol)
	return "sol-1", nil
}
func (f *fakeStore) LatestSolution(context.Context, string, string, string) (*models.Solution, error) {
	return nil, nil
}
func (f *fakeStore) SaveRoom(context.Context, *models.Room) error          { return nil }
func (f *fakeStore) GetRoom(context.Context, string) (*models.Room, error) { return nil, nil }
func (f *fakeStore) GetContest(context.Context, string) (*models.Contest, error) { return nil, nil }
func (f *fakeStore) IsParticipant(context.Context, string, string) (bool, error) { return false, nil }
func (f *fakeStore) AppendContestSubmission(context.Context, string, string) error { return nil }
func (f *fakeStore) UpsertContestProblemScore(context.Context, string, string, string, int, bool) error {
	return nil
}
func (f *fakeStore) LeaderboardRows(context.Context, string) ([]ports.LeaderboardRow, error) {
	return nil, nil
}

func newTestQueue(t *testing.T) (*Queue, *redis.Client, *fakeStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := &fakeStore{}
	return New(client, store, 120*time.Second, 600*time.Second), client, store
}

func TestEnqueueRejectsUnsupportedLanguage(t *testing.T) {
	q, _, _ := newTestQueue(t)
	_, err := q.Enqueue(context.Background(), ports.EnqueueRequest{
		Mode: "run", Language: "ruby", Code: "1+1", TestCases: []models.TestCase{},
	})
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestEnqueueRejectsSubmitWithoutProblemID(t *testing.T) {
	q, _, _ := newTestQueue(t)
	_, err := q.Enqueue(context.Background(), ports.EnqueueRequest{
		Mode: "submit", Language: models.LangPython, Code: "x", TestCases: []models.TestCase{},
	})
	assert.ErrorIs(t, err, ErrMissingProblemID)
}

func TestPollMissingJobReturnsNotFound(t *testing.T) {
	q, _, _ := newTestQueue(t)
	_, err := q.Poll(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestPollBeforeCompletionReturnsStatusOnly(t *testing.T) {
	q, _, _ := newTestQueue(t)
	jobID, err := q.Enqueue(context.Background(), ports.EnqueueRequest{
		Mode: "run", Language: models.LangPython, Code: "print(1)", TestCases: []models.TestCase{{Input: "", ExpectedOutput: "1"}},
	})
	require.NoError(t, err)

	res, err := q.Poll(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, statusQueued, res.Status)
	assert.Zero(t, res.Score)
}

// S4: a worker marks the job completed once; polling 5 times must create
// exactly one Solution row and return identical responses every time.
func TestExactlyOncePersistenceAcrossRepeatedPolls(t *testing.T) {
	q, client, store := newTestQueue(t)
	ctx := context.Background()

	jobID, err := q.Enqueue(ctx, ports.EnqueueRequest{
		Mode: "submit", Language: models.LangPython, Code: "print(1)", ProblemID: "p1",
		TestCases: []models.TestCase{{Input: "", ExpectedOutput: "1"}},
		UserID:    "u1",
	})
	require.NoError(t, err)

	results, _ := json.Marshal([]ports.TestCaseResult{{Index: 0, Status: models.TestPassed}})
	key := jobKey(jobID)
	require.NoError(t, client.HSet(ctx, key, map[string]interface{}{
		"status":  statusCompleted,
		"score":   80,
		"passed":  4,
		"total":   5,
		"results": string(results),
	}).Err())

	var responses []*ports.PollResult
	for i := 0; i < 5; i++ {
		res, err := q.Poll(ctx, jobID)
		require.NoError(t, err)
		responses = append(responses, res)
	}

	require.Len(t, store.created, 1)
	assert.Equal(t, "u1", store.created[0].UserID)
	for _, res := range responses {
		assert.Equal(t, statusCompleted, res.Status)
		assert.Equal(t, 80, res.Score)
		assert.Equal(t, 4, res.Passed)
		assert.Equal(t, 5, res.Total)
		require.Len(t, res.Results, 1)
		assert.Equal(t, models.TestPassed, res.Results[0].Status)
	}
}

func TestEnqueuePushesOntoPerLanguageModeQueue(t *testing.T) {
	q, client, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, ports.EnqueueRequest{
		Mode: "run", Language: models.LangCPP, Code: "int main(){}", TestCases: []models.TestCase{},
	})
	require.NoError(t, err)

	length, err := client.LLen(ctx, queueKey(models.LangCPP, modeRun)).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, length)
}
