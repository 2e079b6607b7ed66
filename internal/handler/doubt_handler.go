package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"studymind-go/internal/service"
)

// DoubtSessionHeader 携带本次答疑使用或新建的会话 ID。
const DoubtSessionHeader = "X-Doubt-Session-Id"

// DoubtHandler 负责答疑接口。
type DoubtHandler struct {
	doubtService service.DoubtService
}

// NewDoubtHandler 创建一个新的 DoubtHandler 实例。
func NewDoubtHandler(doubtService service.DoubtService) *DoubtHandler {
	return &DoubtHandler{doubtService: doubtService}
}

type solveDoubtRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId"`
}

// Solve 处理 POST /solve-doubt。
func (h *DoubtHandler) Solve(c *gin.Context) {
	var req solveDoubtRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		badRequest(c, "Question is required")
		return
	}
	if req.SessionID != "" && !validID(req.SessionID) {
		// 无法识别的会话按新会话处理
		req.SessionID = ""
	}

	out, err := h.doubtService.Solve(c.Request.Context(), service.DoubtRequest{
		UserID:    userIDFrom(c),
		Question:  req.Question,
		SessionID: req.SessionID,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	if out.SessionID != "" {
		c.Header(DoubtSessionHeader, out.SessionID)
	}
	streamSSE(c, out.Body)
}

// ListSessions 处理 GET /api/v1/doubts。
func (h *DoubtHandler) ListSessions(c *gin.Context) {
	sessions, err := h.doubtService.ListSessions(c.Request.Context(), userIDFrom(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	ok(c, "获取答疑会话成功", sessions)
}

// ListMessages 处理 GET /api/v1/doubts/:id/messages。
func (h *DoubtHandler) ListMessages(c *gin.Context) {
	sessionID := c.Param("id")
	if !validID(sessionID) {
		abortWithError(c, service.ErrSessionNotFound)
		return
	}
	messages, err := h.doubtService.ListMessages(c.Request.Context(), userIDFrom(c), sessionID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	ok(c, "获取会话消息成功", messages)
}
