package room

import (
	"context"
	"errors"
	"time"

	"github.com/codearena/core/internal/ports"
)

// Evaluator is the narrow synchronous collaborator Submit (4.C) needs: run
// a submitted solution against a problem's test cases and return a score
// plus passed-count. It exists so the room engine never has to know how
// code actually executes.
type Evaluator interface {
	Evaluate(ctx context.Context, userID, problemID, code, language string) (score, passedTestcases int, err error)
}

// JudgeEvaluator is the production Evaluator: it submits the same job the
// HTTP/judge-queue path (4.D) would, then blocks on a bounded poll loop
// until the job completes or the deadline elapses. This keeps a single
// code-execution path instead of giving Submit its own worker wiring.
type JudgeEvaluator struct {
	Queue        ports.JudgeQueue
	Store        ports.Store
	Clock        ports.Clock
	PollInterval time.Duration
	Deadline     time.Duration
}

// NewJudgeEvaluator builds a JudgeEvaluator with the given poll cadence and
// overall deadline (grounded on spec.md §4.A's evaluatorPollInterval/
// evaluatorDeadline config knobs).
func NewJudgeEvaluator(queue ports.JudgeQueue, store ports.Store, clock ports.Clock, pollInterval, deadline time.Duration) *JudgeEvaluator {
	return &JudgeEvaluator{Queue: queue, Store: store, Clock: clock, PollInterval: pollInterval, Deadline: deadline}
}

var (
	ErrEvaluationTimedOut = errors.New("room: evaluation did not complete before deadline")
	ErrProblemNotFound    = errors.New("room: problem not found")
)

func (e *JudgeEvaluator) Evaluate(ctx context.Context, userID, problemID, code, language string) (int, int, error) {
	problem, err := e.Store.GetProblem(ctx, problemID)
	if err != nil {
		return 0, 0, err
	}
	if problem == nil {
		return 0, 0, ErrProblemNotFound
	}

	jobID, err := e.Queue.Enqueue(ctx, ports.EnqueueRequest{
		Mode:      "submit",
		Language:  language,
		Code:      code,
		ProblemID: problemID,
		TestCases: problem.TestCases,
		UserID:    userID,
	})
	if err != nil {
		return 0, 0, err
	}

	deadline := e.Clock.Now().Add(e.Deadline)
	ticker := time.NewTicker(e.PollInterval)
	defer ticker.Stop()

	for {
		res, err := e.Queue.Poll(ctx, jobID)
		if err != nil {
			return 0, 0, err
		}
		if res.Status == "completed" {
			return res.Score, res.Passed, nil
		}
		if e.Clock.Now().After(deadline) {
			return 0, 0, ErrEvaluationTimedOut
		}

		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		case <-ticker.C:
		}
	}
}

// FakeEvaluator is a deterministic, in-memory Evaluator for tests: it
// returns whatever score/passed pair was configured for a (problemID,
// userCode) pair, defaulting to a full pass if unconfigured.
type FakeEvaluator struct {
	Scores map[string]FakeResult
}

// FakeResult is one canned Evaluate response.
type FakeResult struct {
	Score           int
	PassedTestcases int
	Err             error
}

func NewFakeEvaluator() *FakeEvaluator {
	return &FakeEvaluator{Scores: make(map[string]FakeResult)}
}

func (f *FakeEvaluator) Evaluate(_ context.Context, _, problemID, code, _ string) (int, int, error) {
	key := problemID + "|" + code
	if r, ok := f.Scores[key]; ok {
		return r.Score, r.PassedTestcases, r.Err
	}
	return 100, 1, nil
}
