// Package judge implements the out-of-process code-execution dispatch of
// spec.md §4.D: Enqueue writes a job hash plus pushes a descriptor onto a
// per-language, per-mode FIFO list; Poll reads the hash back and persists
// exactly once on first-seen completion.
//
// Grounded on the teacher's internal/ws/handler.go resetIdleTimersForGame
// (direct go-redis hash/ZAdd read-modify-write) and
// internal/game/idle_worker.go's ZRem-then-verify idiom for race-safe,
// single-winner removal — adapted here from sorted-set sweeping to a
// single CAS-guarded hash field (`persisted`).
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/codearena/core/internal/models"
	"github.com/codearena/core/internal/ports"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var supportedLanguages = map[string]bool{
	models.LangPython:     true,
	models.LangCPP:        true,
	models.LangJava:       true,
	models.LangJavaScript: true,
}

const (
	statusQueued    = "queued"
	statusRunning   = "running"
	statusCompleted = "completed"
	statusFailed    = "failed"

	modeRun    = "run"
	modeSubmit = "submit"
)

func jobKey(jobID string) string { return "job:" + jobID }

func queueKey(language, mode string) string { return fmt.Sprintf("code_jobs:%s:%s", language, mode) }

// Queue is a Redis-backed ports.JudgeQueue.
type Queue struct {
	rdb       *redis.Client
	store     ports.Store
	runTTL    time.Duration
	submitTTL time.Duration
}

// New builds a judge Queue over an existing Redis client. runTTL/submitTTL
// are the job-hash refresh intervals from 4.D step 4/Poll step 4.
func New(rdb *redis.Client, store ports.Store, runTTL, submitTTL time.Duration) *Queue {
	return &Queue{rdb: rdb, store: store, runTTL: runTTL, submitTTL: submitTTL}
}

var (
	ErrUnsupportedLanguage = fmt.Errorf("judge: unsupported language")
	ErrMissingTestCases    = fmt.Errorf("judge: testCases required")
	ErrMissingProblemID    = fmt.Errorf("judge: problemId required for submit mode")
	ErrJobNotFound         = fmt.Errorf("judge: job not found")
)

// jobDescriptor is what gets pushed onto the per-language/mode FIFO list
// (4.D step 4).
type jobDescriptor struct {
	JobID     string            `json:"jobId"`
	Mode      string            `json:"mode"`
	Language  string            `json:"language"`
	Code      string            `json:"code"`
	ProblemID string            `json:"problemId,omitempty"`
	UserID    string            `json:"userId,omitempty"`
	TestCases []models.TestCase `json:"testCases"`
}

// Enqueue implements 4.D Enqueue.
func (q *Queue) Enqueue(ctx context.Context, req ports.EnqueueRequest) (string, error) {
	if !supportedLanguages[req.Language] {
		return "", ErrUnsupportedLanguage
	}
	if req.TestCases == nil {
		return "", ErrMissingTestCases
	}
	if req.Mode == modeSubmit && req.ProblemID == "" {
		return "", ErrMissingProblemID
	}

	jobID := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)

	fields := map[string]interface{}{
		"status":    statusQueued,
		"mode":      req.Mode,
		"language":  req.Language,
		"code":      req.Code,
		"createdAt": now,
	}
	if req.ProblemID != "" {
		fields["problemId"] = req.ProblemID
	}
	if req.UserID != "" {
		fields["userId"] = req.UserID
	}

	ttl := q.runTTL
	if req.Mode == modeSubmit {
		ttl = q.submitTTL
	}

	key := jobKey(jobID)
	if err := q.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return "", err
	}
	if err := q.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return "", err
	}

	descriptor := jobDescriptor{
		JobID:     jobID,
		Mode:      req.Mode,
		Language:  req.Language,
		Code:      req.Code,
		ProblemID: req.ProblemID,
		UserID:    req.UserID,
		TestCases: req.TestCases,
	}
	payload, err := json.Marshal(descriptor)
	if err != nil {
		return "", err
	}

	listKey := queueKey(req.Language, req.Mode)
	if err := q.rdb.RPush(ctx, listKey, payload).Err(); err != nil {
		return "", err
	}

	return jobID, nil
}

// Poll implements 4.D Poll.
func (q *Queue) Poll(ctx context.Context, jobID string) (*ports.PollResult, error) {
	key := jobKey(jobID)
	hash, err := q.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(hash) == 0 {
		return nil, ErrJobNotFound
	}

	status := hash["status"]
	result := &ports.PollResult{Status: status, Mode: hash["mode"]}

	if status != statusCompleted {
		return result, nil
	}

	if hash["mode"] == modeSubmit && hash["persisted"] != "true" {
		if err := q.persistSolution(ctx, key, hash); err != nil {
			return nil, err
		}
	}

	result.Score, _ = strconv.Atoi(hash["score"])
	result.Passed, _ = strconv.Atoi(hash["passed"])
	result.Total, _ = strconv.Atoi(hash["total"])
	if raw, ok := hash["results"]; ok && raw != "" {
		var results []ports.TestCaseResult
		if err := json.Unmarshal([]byte(raw), &results); err == nil {
			result.Results = results
		}
	}

	ttl := q.runTTL
	if hash["mode"] == modeSubmit {
		ttl = q.submitTTL
	}
	_ = q.rdb.Expire(ctx, key, ttl).Err()

	return result, nil
}

// persistSolution creates the Solution record on first-seen completion and
// flips the `persisted` guard so repeat polls never double-insert (4.D
// step 3). The guard write uses HSetNX so a racing concurrent poll loses
// the persist even if both observed persisted != "true" beforehand.
func (q *Queue) persistSolution(ctx context.Context, key string, hash map[string]string) error {
	won, err := q.rdb.HSetNX(ctx, key, "persisted", "true").Result()
	if err != nil {
		return err
	}
	if !won {
		return nil
	}

	score, _ := strconv.Atoi(hash["score"])
	sol := &models.Solution{
		UserID:       hash["userId"],
		ProblemID:    hash["problemId"],
		SolutionCode: hash["code"],
		LanguageUsed: hash["language"],
		Score:        score,
	}

	_, err = q.store.CreateSolution(ctx, sol)
	return err
}
