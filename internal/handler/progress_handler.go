package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"studymind-go/internal/service"
)

// ProgressHandler 负责测验成绩、学习记录、统计和排行榜。
type ProgressHandler struct {
	progressService service.ProgressService
}

// NewProgressHandler 创建一个新的 ProgressHandler 实例。
func NewProgressHandler(progressService service.ProgressService) *ProgressHandler {
	return &ProgressHandler{progressService: progressService}
}

type quizAttemptRequest struct {
	QuizID         string `json:"quizId"`
	TopicID        string `json:"topicId"`
	TopicTitle     string `json:"topicTitle"`
	Score          *int   `json:"score" binding:"required,min=0"`
	TotalQuestions int    `json:"totalQuestions" binding:"required,min=1"`
}

type studySessionRequest struct {
	StartedAt       time.Time  `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt"`
	DurationSeconds int        `json:"durationSeconds"`
}

// SubmitQuizAttempt 处理 POST /api/v1/quiz-attempts。
func (h *ProgressHandler) SubmitQuizAttempt(c *gin.Context) {
	var req quizAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "score and totalQuestions are required")
		return
	}
	if *req.Score > req.TotalQuestions {
		badRequest(c, "score cannot exceed totalQuestions")
		return
	}
	if req.QuizID != "" && !validID(req.QuizID) {
		badRequest(c, "quizId is not a valid id")
		return
	}

	attempt, err := h.progressService.SubmitQuizAttempt(c.Request.Context(), userIDFrom(c), service.QuizAttemptInput{
		QuizID:         req.QuizID,
		TopicID:        req.TopicID,
		TopicTitle:     req.TopicTitle,
		Score:          *req.Score,
		TotalQuestions: req.TotalQuestions,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	ok(c, "测验成绩已保存", attempt)
}

// RecordStudySession 处理 POST /api/v1/study-sessions。
func (h *ProgressHandler) RecordStudySession(c *gin.Context) {
	var req studySessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.StartedAt.IsZero() {
		badRequest(c, "startedAt and durationSeconds are required")
		return
	}

	session, err := h.progressService.RecordStudySession(c.Request.Context(), userIDFrom(c), service.StudySessionInput{
		StartedAt:       req.StartedAt,
		EndedAt:         req.EndedAt,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	ok(c, "学习记录已保存", session)
}

// Stats 处理 GET /api/v1/me/stats。
func (h *ProgressHandler) Stats(c *gin.Context) {
	stats, err := h.progressService.Stats(c.Request.Context(), userIDFrom(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	ok(c, "获取学习统计成功", stats)
}

// Leaderboard 处理 GET /api/v1/leaderboard?limit=10。
func (h *ProgressHandler) Leaderboard(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(service.DefaultLeaderboardSize)))
	if err != nil {
		limit = service.DefaultLeaderboardSize
	}
	entries, err := h.progressService.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	ok(c, "获取排行榜成功", entries)
}
