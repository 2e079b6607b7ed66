// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"studymind-go/internal/middleware"
	"studymind-go/internal/service"
	"studymind-go/pkg/llm"
	"studymind-go/pkg/log"
)

const streamBufferSize = 4 * 1024

// statusFor 把错误映射为状态码和展示给用户的消息。
func statusFor(err error) (int, string) {
	var statusErr *llm.StatusError
	switch {
	case errors.Is(err, llm.ErrRateLimited):
		return http.StatusTooManyRequests, "Rate limit exceeded. Please try again in a moment."
	case errors.Is(err, llm.ErrCreditsExhausted):
		return http.StatusPaymentRequired, "AI credits exhausted. Please add credits."
	case errors.Is(err, service.ErrMaterialNotFound):
		return http.StatusNotFound, "Material not found"
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, "Session not found"
	case errors.Is(err, service.ErrNoExtractedText):
		return http.StatusBadRequest, "Material has no extracted text yet"
	case errors.Is(err, service.ErrQuizMismatch):
		return http.StatusBadRequest, "totalQuestions does not match the quiz"
	case errors.Is(err, service.ErrSessionTooShort):
		return http.StatusBadRequest, "Study session must last at least 10 seconds"
	case errors.Is(err, service.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, service.ErrDownloadFailed):
		return http.StatusInternalServerError, "Could not download file"
	case errors.As(err, &statusErr):
		return http.StatusInternalServerError, "AI service error"
	case errors.Is(err, llm.ErrNoStream):
		return http.StatusInternalServerError, "No response stream"
	}
	if msg := err.Error(); msg != "" {
		return http.StatusInternalServerError, msg
	}
	return http.StatusInternalServerError, "Unknown error"
}

func abortWithError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("[Handler] %s %s 失败: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// ok 是 /api/v1 接口的统一响应格式。
func ok(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": message, "data": data})
}

func userIDFrom(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

// validID 报告 id 是否为合法 UUID。所有主键列都是 uuid 类型，非法值直接按不存在处理。
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// streamSSE 把上游 SSE 原样转发给浏览器，每写一块就 flush。
// 浏览器断开时停止写入并关闭 body，不影响另一个分支。
func streamSSE(c *gin.Context, body io.ReadCloser) {
	defer body.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	buf := make([]byte, streamBufferSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				log.Warnf("[Handler] 写入 SSE 响应失败, path=%s: %v", c.Request.URL.Path, werr)
				return
			}
			c.Writer.Flush()
		}
		if err != nil {
			if err != io.EOF {
				log.Warnf("[Handler] 读取上游流失败, path=%s: %v", c.Request.URL.Path, err)
			}
			return
		}
	}
}
