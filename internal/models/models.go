package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Supported judge/submission languages.
const (
	LangCPP        = "cpp"
	LangPython     = "python"
	LangJavaScript = "javascript"
	LangC          = "c"
	LangJava       = "java"
)

// SupportedLanguages is the set accepted by the room engine (4.C). The judge
// queue (4.D) keeps its own set, which is this one without "c". Language
// names arrive lowercased.
var SupportedLanguages = map[string]bool{
	LangCPP:        true,
	LangPython:     true,
	LangJavaScript: true,
	LangC:          true,
	LangJava:       true,
}

// Per test-case status values recorded on a Solution.
const (
	TestPassed     = "Passed"
	TestFailed     = "Failed"
	TestTLE        = "TLE"
	TestRuntimeErr = "RuntimeError"
)

// User is a platform identity with an Elo rating and solved/contest history.
type User struct {
	ID                   string         `db:"id" json:"id"`
	Username             string         `db:"username" json:"username"`
	Rating               int            `db:"rating" json:"rating"`
	SolvedProblems       []SolvedEntry  `db:"-" json:"solvedProblems"`
	ContestsParticipated []ContestEntry `db:"-" json:"contestsParticipated"`
	CreatedAt            time.Time      `db:"created_at" json:"createdAt"`
}

// SolvedEntry records when a user first fully solved a problem.
type SolvedEntry struct {
	ProblemID string    `db:"problem_id" json:"problemId"`
	SolvedAt  time.Time `db:"solved_at" json:"solvedAt"`
}

// ContestEntry is a user's participation record for one contest.
type ContestEntry struct {
	ContestID       string                `json:"contestId"`
	Score           int                   `json:"score"`
	ContestProblems []ContestProblemEntry `json:"contestProblems"`
}

// ContestProblemEntry is the best score a user achieved on one contest problem.
type ContestProblemEntry struct {
	ProblemID        string `json:"problemId"`
	Score            int    `json:"score"`
	SubmissionStatus string `json:"submissionStatus"` // "correct" once score >= maxScore
}

// Problem is a competitive-programming problem with its test cases.
type Problem struct {
	ID          string         `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	Difficulty  string         `db:"difficulty" json:"difficulty"`
	Examples    pq.StringArray `db:"examples" json:"examples"`
	Constraints pq.StringArray `db:"constraints" json:"constraints"`
	TestCases   []TestCase     `db:"-" json:"testCases"`
	MaxScoreRaw int            `db:"max_score" json:"-"`
	Solution    sql.NullString `db:"solution" json:"solution,omitempty"`
}

// MaxScore derives the effective max score: the greater of the stored value
// and len(testCases)*100, per spec.md §3.
func (p *Problem) MaxScore() int {
	derived := len(p.TestCases) * 100
	if p.MaxScoreRaw > derived {
		return p.MaxScoreRaw
	}
	return derived
}

// TestCase is one input/expected-output pair for a problem.
type TestCase struct {
	Input          string `db:"input" json:"input"`
	ExpectedOutput string `db:"expected_output" json:"expectedOutput"`
}

// SolutionTestResult is the per-test-case outcome recorded on a Solution.
type SolutionTestResult struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	ActualOutput   string `json:"actualOutput"`
	Status         string `json:"status"` // Passed | Failed | TLE | RuntimeError
}

// Solution is an immutable submission record.
type Solution struct {
	ID                   string               `db:"id" json:"id"`
	UserID               string               `db:"user_id" json:"userId"`
	ContestID            sql.NullString       `db:"contest_id" json:"contestId,omitempty"`
	ProblemID            string               `db:"problem_id" json:"problemId"`
	SolutionCode         string               `db:"solution_code" json:"solutionCode"`
	LanguageUsed         string               `db:"language_used" json:"languageUsed"`
	Score                int                  `db:"score" json:"score"`
	MaxScore             int                  `db:"max_score" json:"maxScore"`
	TestCases            []SolutionTestResult `db:"-" json:"testCases"`
	TimeOccupiedMS       sql.NullInt64 `db:"time_occupied_ms" json:"timeOccupied,omitempty"`
	MemoryOccupiedKB     sql.NullInt64 `db:"memory_occupied_kb" json:"memoryOccupied,omitempty"`
	TimeGivenOnSolutionS sql.NullInt64 `db:"time_given_on_solution_s" json:"timeGivenOnSolution,omitempty"`
	CreatedAt            time.Time     `db:"created_at" json:"createdAt"`
}

// Room statuses.
const (
	RoomLive      = "Live"
	RoomCompleted = "completed"
)

// Submission statuses for a room member.
const (
	SubmissionPending   = "pending"
	SubmissionSubmitted = "submitted"
	SubmissionForfeited = "forfeited"
)

// RoomUser is one of the (exactly two) members of a duel room.
type RoomUser struct {
	UserID           string     `db:"user_id" json:"userId"`
	Username         string     `db:"username" json:"username"`
	Rating           int        `db:"rating" json:"rating"` // snapshot at room creation
	Score            int        `db:"score" json:"score"`
	SubmissionStatus string     `db:"submission_status" json:"submissionStatus"`
	SubmissionTime   *time.Time `db:"submission_time" json:"submissionTime,omitempty"`
}

// Room is the persisted state of one duel.
type Room struct {
	RoomID     string     `db:"room_id" json:"roomId"`
	ProblemID  string     `db:"problem_id" json:"problemId"`
	Users      []RoomUser `db:"-" json:"users"`
	RoomStatus string     `db:"room_status" json:"roomStatus"`
	IsActive   bool       `db:"is_active" json:"isActive"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// Contest is a multi-problem scored event.
type Contest struct {
	ID          string         `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	ProblemIDs  pq.StringArray `db:"problem_ids" json:"problemIds"`
	Submissions pq.StringArray `db:"submissions" json:"submissions"`
	StartsAt    time.Time      `db:"starts_at" json:"startsAt"`
	EndsAt      time.Time      `db:"ends_at" json:"endsAt"`
}
