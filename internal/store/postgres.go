// Package store is the sqlx/lib-pq backed implementation of ports.Store
// (spec.md §1: concrete storage schemas are the core's only external
// collaborator surface). Grounded on the teacher's internal/game/manager.go
// raw-SQL-with-$N-placeholders style and internal/database/database.go's
// connection setup, generalized from the teacher's single flat players/
// game_sessions schema to the normalized users/problems/solutions/rooms
// tables spec.md §3 describes.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/codearena/core/internal/models"
	"github.com/codearena/core/internal/ports"
)

// Postgres implements ports.Store against a PostgreSQL database.
type Postgres struct {
	db *sqlx.DB
}

// New wraps an already-connected *sqlx.DB.
func New(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `SELECT id, username, rating, created_at FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := s.db.SelectContext(ctx, &u.SolvedProblems,
		`SELECT problem_id, solved_at FROM solved_problems WHERE user_id = $1 ORDER BY solved_at`, userID); err != nil {
		return nil, fmt.Errorf("get user solved problems: %w", err)
	}

	return &u, nil
}

func (s *Postgres) UpdateUserRating(ctx context.Context, userID string, newRating int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET rating = $1 WHERE id = $2`, newRating, userID)
	if err != nil {
		return fmt.Errorf("update user rating: %w", err)
	}
	return nil
}

func (s *Postgres) MarkProblemSolved(ctx context.Context, userID, problemID string, solvedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO solved_problems (user_id, problem_id, solved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, problem_id) DO NOTHING`, userID, problemID, solvedAt)
	if err != nil {
		return fmt.Errorf("mark problem solved: %w", err)
	}
	return nil
}

func (s *Postgres) RandomProblem(ctx context.Context) (*models.Problem, error) {
	var p models.Problem
	err := s.db.GetContext(ctx, &p, `
		SELECT id, title, description, difficulty, examples, constraints, max_score, solution
		FROM problems ORDER BY random() LIMIT 1`)
	if err != nil {
		return nil, fmt.Errorf("random problem: %w", err)
	}
	if err := s.loadTestCases(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Postgres) GetProblem(ctx context.Context, problemID string) (*models.Problem, error) {
	var p models.Problem
	err := s.db.GetContext(ctx, &p, `
		SELECT id, title, description, difficulty, examples, constraints, max_score, solution
		FROM problems WHERE id = $1`, problemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get problem: %w", err)
	}
	if err := s.loadTestCases(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Postgres) loadTestCases(ctx context.Context, p *models.Problem) error {
	if err := s.db.SelectContext(ctx, &p.TestCases,
		`SELECT input, expected_output FROM test_cases WHERE problem_id = $1 ORDER BY ordinal`, p.ID); err != nil {
		return fmt.Errorf("load test cases: %w", err)
	}
	return nil
}

func (s *Postgres) ListProblems(ctx context.Context, limit, offset int) ([]*models.Problem, error) {
	var problems []*models.Problem
	if err := s.db.SelectContext(ctx, &problems, `
		SELECT id, title, description, difficulty, examples, constraints, max_score, solution
		FROM problems ORDER BY id LIMIT $1 OFFSET $2`, limit, offset); err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	return problems, nil
}

func (s *Postgres) CreateSolution(ctx context.Context, sol *models.Solution) (string, error) {
	if sol.ID == "" {
		sol.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO solutions (id, user_id, contest_id, problem_id, solution_code, language_used,
			score, max_score, time_occupied_ms, memory_occupied_kb, time_given_on_solution_s, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())`,
		sol.ID, sol.UserID, sol.ContestID, sol.ProblemID, sol.SolutionCode, sol.LanguageUsed,
		sol.Score, sol.MaxScore, sol.TimeOccupiedMS, sol.MemoryOccupiedKB, sol.TimeGivenOnSolutionS)
	if err != nil {
		return "", fmt.Errorf("create solution: %w", err)
	}
	return sol.ID, nil
}

func (s *Postgres) LatestSolution(ctx context.Context, userID, problemID, contestID string) (*models.Solution, error) {
	var sol models.Solution
	var err error
	if contestID == "" {
		err = s.db.GetContext(ctx, &sol, `
			SELECT id, user_id, contest_id, problem_id, solution_code, language_used, score, max_score,
				time_occupied_ms, memory_occupied_kb, time_given_on_solution_s, created_at
			FROM solutions WHERE user_id = $1 AND problem_id = $2 AND contest_id IS NULL
			ORDER BY created_at DESC LIMIT 1`, userID, problemID)
	} else {
		err = s.db.GetContext(ctx, &sol, `
			SELECT id, user_id, contest_id, problem_id, solution_code, language_used, score, max_score,
				time_occupied_ms, memory_occupied_kb, time_given_on_solution_s, created_at
			FROM solutions WHERE user_id = $1 AND problem_id = $2 AND contest_id = $3
			ORDER BY created_at DESC LIMIT 1`, userID, problemID, contestID)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest solution: %w", err)
	}
	return &sol, nil
}

func (s *Postgres) SaveRoom(ctx context.Context, room *models.Room) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save room: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rooms (room_id, problem_id, room_status, is_active, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (room_id) DO UPDATE SET room_status = $3, is_active = $4`,
		room.RoomID, room.ProblemID, room.RoomStatus, room.IsActive)
	if err != nil {
		return fmt.Errorf("save room: upsert room: %w", err)
	}

	for _, u := range room.Users {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO room_users (room_id, user_id, username, rating, score, submission_status, submission_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (room_id, user_id) DO UPDATE SET
				score = $5, submission_status = $6, submission_time = $7`,
			room.RoomID, u.UserID, u.Username, u.Rating, u.Score, u.SubmissionStatus, u.SubmissionTime)
		if err != nil {
			return fmt.Errorf("save room: upsert room_user %s: %w", u.UserID, err)
		}
	}

	return tx.Commit()
}

func (s *Postgres) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var r models.Room
	err := s.db.GetContext(ctx, &r, `
		SELECT room_id, problem_id, room_status, is_active, created_at FROM rooms WHERE room_id = $1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}

	if err := s.db.SelectContext(ctx, &r.Users, `
		SELECT user_id, username, rating, score, submission_status, submission_time
		FROM room_users WHERE room_id = $1`, roomID); err != nil {
		return nil, fmt.Errorf("get room users: %w", err)
	}

	return &r, nil
}

func (s *Postgres) GetContest(ctx context.Context, contestID string) (*models.Contest, error) {
	var c models.Contest
	err := s.db.GetContext(ctx, &c, `
		SELECT id, title, problem_ids, submissions, starts_at, ends_at FROM contests WHERE id = $1`, contestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contest: %w", err)
	}
	return &c, nil
}

func (s *Postgres) IsParticipant(ctx context.Context, contestID, userID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM contest_participants WHERE contest_id = $1 AND user_id = $2)`,
		contestID, userID)
	if err != nil {
		return false, fmt.Errorf("is participant: %w", err)
	}
	return exists, nil
}

func (s *Postgres) AppendContestSubmission(ctx context.Context, contestID, solutionID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE contests SET submissions = array_append(submissions, $1) WHERE id = $2`,
		solutionID, contestID)
	if err != nil {
		return fmt.Errorf("append contest submission: %w", err)
	}
	return nil
}

func (s *Postgres) UpsertContestProblemScore(ctx context.Context, userID, contestID, problemID string, score int, correct bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contest_problem_scores (contest_id, user_id, problem_id, score, correct)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (contest_id, user_id, problem_id) DO UPDATE SET
			score = GREATEST(contest_problem_scores.score, $4),
			correct = contest_problem_scores.correct OR $5`,
		contestID, userID, problemID, score, correct)
	if err != nil {
		return fmt.Errorf("upsert contest problem score: %w", err)
	}
	return nil
}

func (s *Postgres) LeaderboardRows(ctx context.Context, contestID string) ([]ports.LeaderboardRow, error) {
	var rows []ports.LeaderboardRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT u.id AS user_id, u.username AS username,
			COALESCE(SUM(cps.score), 0) AS score,
			COALESCE(SUM(CASE WHEN cps.correct THEN 1 ELSE 0 END), 0) AS problems_solved
		FROM contest_participants p
		JOIN users u ON u.id = p.user_id
		LEFT JOIN contest_problem_scores cps ON cps.contest_id = p.contest_id AND cps.user_id = p.user_id
		WHERE p.contest_id = $1
		GROUP BY u.id, u.username`, contestID)
	if err != nil {
		return nil, fmt.Errorf("leaderboard rows: %w", err)
	}
	return rows, nil
}
