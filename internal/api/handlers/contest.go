package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codearena/core/internal/config"
	"github.com/codearena/core/internal/middleware"
	"github.com/codearena/core/internal/models"
	"github.com/codearena/core/internal/ports"
)

func errEnvelope(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"statusCode": status,
		"success":    false,
		"message":    message,
	})
}

func dataEnvelope(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"statusCode": status,
		"success":    true,
		"data":       data,
	})
}

type submitSolutionBody struct {
	Score        int    `json:"score"`
	SolutionCode string `json:"solutionCode" binding:"required"`
	LanguageUsed string `json:"languageUsed" binding:"required"`
}

// SubmitSolution implements 4.F's `POST /submit-solution/:contestId/:problemId`.
func SubmitSolution(store ports.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			errEnvelope(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		contestID := c.Param("contestId")
		problemID := c.Param("problemId")

		ctx := c.Request.Context()

		isParticipant, err := store.IsParticipant(ctx, contestID, userID)
		if err != nil {
			errEnvelope(c, http.StatusInternalServerError, err.Error())
			return
		}
		if !isParticipant {
			errEnvelope(c, http.StatusForbidden, "not a contest participant")
			return
		}

		var body submitSolutionBody
		if err := c.ShouldBindJSON(&body); err != nil {
			errEnvelope(c, http.StatusBadRequest, "invalid request body")
			return
		}

		problem, err := store.GetProblem(ctx, problemID)
		if err != nil {
			errEnvelope(c, http.StatusInternalServerError, err.Error())
			return
		}
		if problem == nil {
			errEnvelope(c, http.StatusNotFound, "problem not found")
			return
		}

		actualMaxScore := problem.MaxScore()

		sol := &models.Solution{
			UserID:       userID,
			ProblemID:    problemID,
			SolutionCode: body.SolutionCode,
			LanguageUsed: body.LanguageUsed,
			Score:        body.Score,
			MaxScore:     actualMaxScore,
		}
		sol.ContestID.String = contestID
		sol.ContestID.Valid = true

		solutionID, err := store.CreateSolution(ctx, sol)
		if err != nil {
			errEnvelope(c, http.StatusInternalServerError, err.Error())
			return
		}

		if err := store.AppendContestSubmission(ctx, contestID, solutionID); err != nil {
			errEnvelope(c, http.StatusInternalServerError, err.Error())
			return
		}

		correct := body.Score >= actualMaxScore
		if err := store.UpsertContestProblemScore(ctx, userID, contestID, problemID, body.Score, correct); err != nil {
			errEnvelope(c, http.StatusInternalServerError, err.Error())
			return
		}

		// Legacy "+10 on first full solve" heuristic. This is the only
		// rating change on the contest path; rating.SettleContest is not
		// called from here or anywhere else in this repository.
		if correct {
			user, err := store.GetUser(ctx, userID)
			if err == nil && user != nil && !alreadySolved(user.SolvedProblems, problemID) {
				if err := store.MarkProblemSolved(ctx, userID, problemID, time.Now()); err == nil {
					store.UpdateUserRating(ctx, userID, user.Rating+10)
				}
			}
		}

		dataEnvelope(c, http.StatusOK, gin.H{"solutionId": solutionID})
	}
}

func alreadySolved(solved []models.SolvedEntry, problemID string) bool {
	for _, s := range solved {
		if s.ProblemID == problemID {
			return true
		}
	}
	return false
}

// GetContestProblem implements 4.F's participant-gated `GET
// /get-problem/:contestId/:problemId`.
func GetContestProblem(store ports.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			errEnvelope(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		contestID := c.Param("contestId")
		problemID := c.Param("problemId")
		ctx := c.Request.Context()

		isParticipant, err := store.IsParticipant(ctx, contestID, userID)
		if err != nil {
			errEnvelope(c, http.StatusInternalServerError, err.Error())
			return
		}
		if !isParticipant {
			errEnvelope(c, http.StatusForbidden, "not a contest participant")
			return
		}

		problem, err := store.GetProblem(ctx, problemID)
		if err != nil {
			errEnvelope(c, http.StatusInternalServerError, err.Error())
			return
		}
		if problem == nil {
			errEnvelope(c, http.StatusNotFound, "problem not found")
			return
		}

		solution, err := store.LatestSolution(ctx, userID, problemID, contestID)
		if err != nil {
			errEnvelope(c, http.StatusInternalServerError, err.Error())
			return
		}

		dataEnvelope(c, http.StatusOK, gin.H{"problem": problem, "solution": solution})
	}
}

// GetProblem implements 4.F's `GET /get-problem/:problemId`: public, with
// the solution populated, plus the caller's latest attempt if authenticated.
func GetProblem(cfg *config.Config, store ports.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		problemID := c.Param("problemId")
		ctx := c.Request.Context()

		problem, err := store.GetProblem(ctx, problemID)
		if err != nil {
			errEnvelope(c, http.StatusInternalServerError, err.Error())
			return
		}
		if problem == nil {
			errEnvelope(c, http.StatusNotFound, "problem not found")
			return
		}

		resp := gin.H{"problem": problem}

		if userID, err := middleware.VerifyToken(cfg, middleware.TokenFromRequest(c)); err == nil {
			solution, err := store.LatestSolution(ctx, userID, problemID, "")
			if err == nil {
				resp["solution"] = solution
			}
		}

		dataEnvelope(c, http.StatusOK, resp)
	}
}

// GetAllProblems implements 4.F's `GET /get-all-problems`, with the default
// limit/offset pagination the teacher's list endpoints use.
func GetAllProblems(store ports.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := queryInt(c, "limit", 20)
		offset := queryInt(c, "offset", 0)

		problems, err := store.ListProblems(c.Request.Context(), limit, offset)
		if err != nil {
			errEnvelope(c, http.StatusInternalServerError, err.Error())
			return
		}

		dataEnvelope(c, http.StatusOK, gin.H{"problems": problems})
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

type leaderboardEntry struct {
	Rank           int    `json:"rank"`
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	Score          int    `json:"score"`
	ProblemsSolved int    `json:"problemsSolved"`
}

// GetLeaderboard implements 4.F's `GET /get-leaderboard/:contestId`: sort
// by score desc and rank by position, 1..n; equal scores keep their row
// order and get distinct ranks.
func GetLeaderboard(store ports.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		contestID := c.Param("contestId")

		rows, err := store.LeaderboardRows(c.Request.Context(), contestID)
		if err != nil {
			errEnvelope(c, http.StatusInternalServerError, err.Error())
			return
		}

		sortLeaderboardRows(rows)

		entries := make([]leaderboardEntry, len(rows))
		for i, r := range rows {
			entries[i] = leaderboardEntry{
				Rank:           i + 1,
				UserID:         r.UserID,
				Username:       r.Username,
				Score:          r.Score,
				ProblemsSolved: r.ProblemsSolved,
			}
		}

		dataEnvelope(c, http.StatusOK, gin.H{"leaderboard": entries})
	}
}

func sortLeaderboardRows(rows []ports.LeaderboardRow) {
	for i := 1; i < len(rows); i++ {
		j := i
		for j > 0 && rows[j-1].Score < rows[j].Score {
			rows[j-1], rows[j] = rows[j], rows[j-1]
			j--
		}
	}
}
