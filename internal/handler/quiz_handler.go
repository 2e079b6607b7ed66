package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"studymind-go/internal/service"
)

// QuizHandler 负责测验生成。
type QuizHandler struct {
	quizService service.QuizService
}

// NewQuizHandler 创建一个新的 QuizHandler 实例。
func NewQuizHandler(quizService service.QuizService) *QuizHandler {
	return &QuizHandler{quizService: quizService}
}

type generateQuizRequest struct {
	Topic   string `json:"topic"`
	Subject string `json:"subject"`
	Count   int    `json:"count" binding:"omitempty,min=1,max=20"`
	TopicID string `json:"topicId"`
}

// Generate 处理 POST /generate-quiz。
func (h *QuizHandler) Generate(c *gin.Context) {
	var req generateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			badRequest(c, "count must be between 1 and 20")
			return
		}
		badRequest(c, "Invalid request body")
		return
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		badRequest(c, "Topic is required")
		return
	}

	result, err := h.quizService.Generate(c.Request.Context(), service.QuizRequest{
		UserID:  userIDFrom(c),
		Topic:   topic,
		Subject: strings.TrimSpace(req.Subject),
		Count:   req.Count,
		TopicID: req.TopicID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
