package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codearena/core/internal/config"
	"github.com/codearena/core/internal/judge"
	"github.com/codearena/core/internal/middleware"
	"github.com/codearena/core/internal/models"
	"github.com/codearena/core/internal/ports"
)

type codeRequest struct {
	Code      string             `json:"code" binding:"required"`
	Language  string             `json:"language" binding:"required"`
	ProblemID string             `json:"problemId,omitempty"`
	TestCases []models.TestCase `json:"testCases"`
}

// enqueueHandler wires the 4.D enqueue step for either mode onto an HTTP
// endpoint, wrapping the response in the {statusCode, data, message,
// success} envelope spec.md §6 names.
func enqueueHandler(cfg *config.Config, queue *judge.Queue, mode string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req codeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"statusCode": http.StatusBadRequest,
				"success":    false,
				"message":    "invalid request body",
				"errors":     []string{err.Error()},
			})
			return
		}

		userID, _ := middleware.VerifyToken(cfg, middleware.TokenFromRequest(c))

		jobID, err := queue.Enqueue(c.Request.Context(), ports.EnqueueRequest{
			Mode:      mode,
			Language:  req.Language,
			Code:      req.Code,
			ProblemID: req.ProblemID,
			TestCases: req.TestCases,
			UserID:    userID,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"statusCode": http.StatusBadRequest,
				"success":    false,
				"message":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"statusCode": http.StatusAccepted,
			"success":    true,
			"data":       gin.H{"jobId": jobID},
		})
	}
}

// RunCode enqueues a run-mode job (no problemId / persistence).
func RunCode(cfg *config.Config, queue *judge.Queue) gin.HandlerFunc {
	return enqueueHandler(cfg, queue, "run")
}

// SubmitCode enqueues a submit-mode job (persists a Solution on completion).
func SubmitCode(cfg *config.Config, queue *judge.Queue) gin.HandlerFunc {
	return enqueueHandler(cfg, queue, "submit")
}

// PollCode implements the 4.D Poll(jobId) step as an HTTP GET.
func PollCode(queue *judge.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("jobId")

		result, err := queue.Poll(c.Request.Context(), jobID)
		if errors.Is(err, judge.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"statusCode": http.StatusNotFound,
				"success":    false,
				"message":    "invalid job",
			})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"statusCode": http.StatusInternalServerError,
				"success":    false,
				"message":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"statusCode": http.StatusOK,
			"success":    true,
			"data":       result,
		})
	}
}
